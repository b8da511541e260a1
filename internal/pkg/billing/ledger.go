package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learnfox/LearnFox/app/models"
	"github.com/learnfox/LearnFox/app/repository"
)

// Ledger wraps the append-only payment ledger with the integrity rules that
// make "grant access on successful payment" safe to call twice.
type Ledger struct {
	repo repository.LedgerRepository
}

func NewLedger(repo repository.LedgerRepository) *Ledger {
	return &Ledger{repo: repo}
}

// LedgerAppendInput is one charge or failed charge to record. The
// idempotency key mirrors the gateway's payment/event id and is the durable
// dedup key.
type LedgerAppendInput struct {
	IdempotencyKey string
	UserID         uint
	SubscriptionID string
	AmountCents    int64
	Currency       string
	Status         string
	Purpose        string
	OccurredAt     time.Time
}

func (in *LedgerAppendInput) validate() error {
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return fmt.Errorf("%w: idempotency key is required", ErrValidation)
	}
	if in.UserID == 0 {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if in.AmountCents < 0 {
		return fmt.Errorf("%w: charge amount must not be negative", ErrValidation)
	}
	switch in.Status {
	case models.LedgerStatusSucceeded, models.LedgerStatusFailed:
	default:
		return fmt.Errorf("%w: unsupported ledger status %q", ErrValidation, in.Status)
	}
	switch in.Purpose {
	case models.LedgerPurposeSubscription, models.LedgerPurposeBookPurchase:
	default:
		return fmt.Errorf("%w: unsupported ledger purpose %q", ErrValidation, in.Purpose)
	}
	return nil
}

// Append records a charge. Re-appending the same idempotency key returns the
// existing row with created=false and performs no write.
func (l *Ledger) Append(in LedgerAppendInput) (*models.LedgerEntry, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "usd"
	}
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	entry := &models.LedgerEntry{
		TransactionID:  uuid.NewString(),
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
		UserID:         in.UserID,
		SubscriptionID: in.SubscriptionID,
		AmountCents:    in.AmountCents,
		Currency:       currency,
		Status:         in.Status,
		Purpose:        in.Purpose,
		OccurredAt:     occurredAt,
	}
	created, stored, err := l.repo.AppendIfNew(entry)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// Refund appends a negative entry against a succeeded charge. The original
// row is never mutated; the refundable balance is the original amount minus
// everything already refunded against it.
func (l *Ledger) Refund(originalTransactionID string, amountCents int64, reason, idempotencyKey string, occurredAt time.Time) (*models.LedgerEntry, error) {
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", ErrValidation)
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", ErrValidation)
	}

	// Lock the original row for the rest of the transaction: the balance
	// check below must not race a concurrent refund of the same charge.
	original, err := l.repo.GetByTransactionIDForUpdate(strings.TrimSpace(originalTransactionID))
	if err != nil {
		return nil, err
	}
	if original.Status != models.LedgerStatusSucceeded {
		return nil, fmt.Errorf("%w: refunds require a succeeded charge, original is %q", ErrLedgerIntegrity, original.Status)
	}

	refunded, err := l.repo.SumRefundedCents(original.TransactionID)
	if err != nil {
		return nil, err
	}
	remaining := original.AmountCents - refunded
	if amountCents > remaining {
		return nil, fmt.Errorf("%w: refund of %d exceeds refundable balance %d", ErrLedgerIntegrity, amountCents, remaining)
	}

	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	entry := &models.LedgerEntry{
		TransactionID:         uuid.NewString(),
		IdempotencyKey:        strings.TrimSpace(idempotencyKey),
		UserID:                original.UserID,
		SubscriptionID:        original.SubscriptionID,
		AmountCents:           -amountCents,
		Currency:              original.Currency,
		Status:                models.LedgerStatusRefunded,
		Purpose:               original.Purpose,
		RefundedTransactionID: original.TransactionID,
		Reason:                strings.TrimSpace(reason),
		OccurredAt:            occurredAt,
	}
	created, stored, err := l.repo.AppendIfNew(entry)
	if err != nil {
		return nil, err
	}
	if !created {
		// Same refund delivered twice: the stored row already covers it.
		return stored, nil
	}
	return stored, nil
}
