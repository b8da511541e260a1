package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/learnfox/LearnFox/app/models"
	"github.com/learnfox/LearnFox/app/repository"
	"github.com/learnfox/LearnFox/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// EventType enumerates the gateway events this system interprets. The
// dispatch table in NewProcessor is keyed by these constants, so an
// unhandled type is a visible gap in one place instead of a silent switch
// fallthrough.
type EventType string

const (
	EventCheckoutCompleted    EventType = "checkout.session.completed"
	EventSubscriptionUpdated  EventType = "subscription.updated"
	EventSubscriptionDeleted  EventType = "subscription.deleted"
	EventInvoicePaid          EventType = "invoice.paid"
	EventInvoicePaymentFailed EventType = "invoice.payment_failed"
	EventChargeRefunded       EventType = "charge.refunded"
)

// Event is one webhook delivery after signature verification.
type Event struct {
	EventID     string
	Type        EventType
	OccurredAt  time.Time
	PayloadJSON []byte
}

// ProcessStatus reports what processing an event amounted to.
type ProcessStatus string

const (
	// StatusApplied means the event's side effect was committed.
	StatusApplied ProcessStatus = "applied"
	// StatusDuplicate means the event id was already processed; nothing ran.
	StatusDuplicate ProcessStatus = "duplicate"
	// StatusIgnored means the event was durably acknowledged without a side
	// effect: unknown type, unresolvable reference, or a stale delivery.
	StatusIgnored ProcessStatus = "ignored"
)

// ProcessResult is the terminal outcome of one delivery.
type ProcessResult struct {
	Status ProcessStatus
	Reason string
}

// eventPayload is the superset of fields the handled event types carry.
// Handlers read only what their type defines.
type eventPayload struct {
	GatewayCustomerID     string `json:"customer"`
	GatewaySubscriptionID string `json:"subscription"`
	Mode                  string `json:"mode"`
	PriceRef              string `json:"price"`
	Status                string `json:"status"`
	PeriodStart           int64  `json:"period_start"`
	PeriodEnd             int64  `json:"period_end"`
	Trialing              bool   `json:"trialing"`
	CancelAtPeriodEnd     *bool  `json:"cancel_at_period_end"`
	PaymentID             string `json:"payment_id"`
	AmountCents           int64  `json:"amount_cents"`
	Currency              string `json:"currency"`
	UserID                uint   `json:"user_id"`
	ItemID                uint   `json:"item_id"`
	RefundedPaymentID     string `json:"refunded_payment_id"`
	Reason                string `json:"reason"`
}

type eventHandler func(repos *repository.Repositories, payload *eventPayload, ev Event) (ProcessResult, error)

// Processor is the single ingress point for asynchronous gateway events. It
// deduplicates on the durable event id, guards against out-of-order delivery
// with monotonic-field checks, and applies the dedup record plus the event's
// side effect in one database transaction.
type Processor struct {
	db       *gorm.DB
	handlers map[EventType]eventHandler
	now      func() time.Time
}

func NewProcessor(db *gorm.DB) *Processor {
	p := &Processor{
		db:  db,
		now: time.Now,
	}
	p.handlers = map[EventType]eventHandler{
		EventCheckoutCompleted:    p.handleCheckoutCompleted,
		EventSubscriptionUpdated:  p.handleSubscriptionUpdated,
		EventSubscriptionDeleted:  p.handleSubscriptionDeleted,
		EventInvoicePaid:          p.handleInvoicePaid,
		EventInvoicePaymentFailed: p.handleInvoicePaymentFailed,
		EventChargeRefunded:       p.handleChargeRefunded,
	}
	return p
}

// Process applies one delivery. Infrastructure failures roll back everything
// (including the dedup row) and surface as retryable errors so the gateway
// redelivers; every other path commits the dedup record and returns success.
func (p *Processor) Process(ctx context.Context, ev Event, signatureValid bool) (ProcessResult, error) {
	eventID := strings.TrimSpace(ev.EventID)
	if eventID == "" {
		// Defensive fallback: hash the payload so even an id-less delivery
		// still deduplicates.
		sum := sha256.Sum256(ev.PayloadJSON)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}
	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = p.now()
	}

	var result ProcessResult
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		created, stored, err := repos.WebhookEvent.CreateIfNew(&models.WebhookEvent{
			EventID:        eventID,
			EventType:      string(ev.Type),
			PayloadJSON:    string(ev.PayloadJSON),
			SignatureValid: signatureValid,
			OccurredAt:     occurredAt,
		})
		if err != nil {
			return err
		}
		if !created && stored.ProcessedAt != nil {
			result = ProcessResult{Status: StatusDuplicate, Reason: "event already processed"}
			return nil
		}
		// A stored-but-unprocessed row means a previous attempt crashed
		// after rollback never happened (it did) or the handler below is
		// re-running after redelivery; either way the side effects are
		// idempotent and safe to re-apply.

		handler, ok := p.handlers[ev.Type]
		if !ok {
			log.Printf("[billing] acknowledging unsupported webhook event type %q (event %s)", ev.Type, eventID)
			if err := repos.WebhookEvent.MarkProcessed(stored.ID, "unsupported event type"); err != nil {
				return err
			}
			result = ProcessResult{Status: StatusIgnored, Reason: "unsupported event type"}
			return nil
		}

		var payload eventPayload
		if err := json.Unmarshal(ev.PayloadJSON, &payload); err != nil {
			if markErr := repos.WebhookEvent.MarkProcessed(stored.ID, "payload decode failed: "+err.Error()); markErr != nil {
				return markErr
			}
			result = ProcessResult{Status: StatusIgnored, Reason: "payload decode failed"}
			return nil
		}

		res, err := handler(repos, &payload, ev)
		if err != nil {
			// Handler errors are infrastructure failures; roll everything
			// back so redelivery retries from scratch.
			return err
		}

		processingNote := ""
		if res.Status == StatusIgnored {
			processingNote = res.Reason
		}
		if err := repos.WebhookEvent.MarkProcessed(stored.ID, processingNote); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return ProcessResult{}, Retryable(err)
	}
	return result, nil
}

func (p *Processor) handleCheckoutCompleted(repos *repository.Repositories, payload *eventPayload, ev Event) (ProcessResult, error) {
	user, res, err := resolveUser(repos, payload)
	if user == nil {
		return res, err
	}
	if payload.GatewayCustomerID != "" && user.GatewayCustomerID == "" {
		if err := repos.User.SetGatewayCustomerID(user.ID, payload.GatewayCustomerID); err != nil {
			return ProcessResult{}, err
		}
	}

	if payload.Mode == CheckoutModePayment {
		return p.grantPurchase(repos, user, payload, ev)
	}

	plan, ok := PlanForGatewayPrice(payload.PriceRef)
	if !ok {
		return ProcessResult{Status: StatusIgnored, Reason: fmt.Sprintf("unmapped gateway price %q", payload.PriceRef)}, nil
	}

	// Replays and races against an existing open subscription resolve via
	// the unique open-slot index, not a pre-check.
	sub := NewSubscriptionFromCheckout(CheckoutParams{
		UserID:                user.ID,
		Plan:                  plan,
		GatewayCustomerID:     payload.GatewayCustomerID,
		GatewaySubscriptionID: payload.GatewaySubscriptionID,
		PeriodStart:           time.Unix(payload.PeriodStart, 0),
		PeriodEnd:             time.Unix(payload.PeriodEnd, 0),
		Trialing:              payload.Trialing,
	})
	if err := repos.Subscription.CreateIfNoOpen(sub); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, lookupErr := repos.Subscription.GetOpenByUserID(user.ID)
			if lookupErr != nil {
				return ProcessResult{}, lookupErr
			}
			if existing.GatewaySubscriptionID == payload.GatewaySubscriptionID {
				return ProcessResult{Status: StatusIgnored, Reason: "subscription already created"}, nil
			}
			return ProcessResult{Status: StatusIgnored, Reason: "user already has an open subscription"}, nil
		}
		return ProcessResult{}, err
	}

	if err := repos.User.SetTier(user.ID, string(plan.Tier)); err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{Status: StatusApplied}, nil
}

func (p *Processor) grantPurchase(repos *repository.Repositories, user *models.User, payload *eventPayload, ev Event) (ProcessResult, error) {
	if payload.ItemID == 0 {
		return ProcessResult{Status: StatusIgnored, Reason: "payment checkout without item id"}, nil
	}
	paymentKey := payload.PaymentID
	if paymentKey == "" {
		paymentKey = ev.EventID
	}

	ledger := NewLedger(repos.Ledger)
	entry, _, err := ledger.Append(LedgerAppendInput{
		IdempotencyKey: paymentKey,
		UserID:         user.ID,
		AmountCents:    payload.AmountCents,
		Currency:       payload.Currency,
		Status:         models.LedgerStatusSucceeded,
		Purpose:        models.LedgerPurposeBookPurchase,
		OccurredAt:     ev.OccurredAt,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return ProcessResult{Status: StatusIgnored, Reason: err.Error()}, nil
		}
		return ProcessResult{}, err
	}

	_, _, err = repos.Purchase.GrantIfAbsent(&models.OneOffPurchase{
		UserID:              user.ID,
		ItemID:              payload.ItemID,
		PurchasePriceCents:  payload.AmountCents,
		SourceTransactionID: entry.TransactionID,
		PurchasedAt:         entry.OccurredAt,
	})
	if err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{Status: StatusApplied}, nil
}

func (p *Processor) handleSubscriptionUpdated(repos *repository.Repositories, payload *eventPayload, ev Event) (ProcessResult, error) {
	sub, res, err := resolveSubscription(repos, payload)
	if sub == nil {
		return res, err
	}

	var tr Transition
	switch strings.ToLower(strings.TrimSpace(payload.Status)) {
	case models.SubscriptionStatusPastDue:
		tr = MarkPastDue(sub)
	default:
		tr = ApplyRenewal(sub, time.Unix(payload.PeriodStart, 0), time.Unix(payload.PeriodEnd, 0))
	}

	changed := tr.Outcome == OutcomeApplied

	// Gateway truth for plan and cancellation flag piggybacks on the same
	// event type.
	if !sub.IsTerminal() {
		if plan, ok := PlanForGatewayPrice(payload.PriceRef); ok {
			if planTr := ChangePlan(sub, plan); planTr.Outcome == OutcomeApplied {
				changed = true
			}
		}
		if payload.CancelAtPeriodEnd != nil && sub.CancelAtPeriodEnd != *payload.CancelAtPeriodEnd {
			sub.CancelAtPeriodEnd = *payload.CancelAtPeriodEnd
			changed = true
		}
	}

	if !changed {
		return ProcessResult{Status: StatusIgnored, Reason: tr.Reason}, nil
	}
	if err := repos.Subscription.UpdateWithVersion(sub); err != nil {
		return ProcessResult{}, err
	}
	if err := repos.User.SetTier(sub.UserID, string(EffectiveTier(sub))); err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{Status: StatusApplied}, nil
}

func (p *Processor) handleSubscriptionDeleted(repos *repository.Repositories, payload *eventPayload, ev Event) (ProcessResult, error) {
	sub, res, err := resolveSubscription(repos, payload)
	if sub == nil {
		return res, err
	}

	tr := TerminateFromGateway(sub, p.now())
	if tr.Outcome != OutcomeApplied {
		return ProcessResult{Status: StatusIgnored, Reason: tr.Reason}, nil
	}
	if err := repos.Subscription.UpdateWithVersion(sub); err != nil {
		return ProcessResult{}, err
	}
	if err := repos.User.SetTier(sub.UserID, string(entitlements.PlanFree)); err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{Status: StatusApplied}, nil
}

func (p *Processor) handleInvoicePaid(repos *repository.Repositories, payload *eventPayload, ev Event) (ProcessResult, error) {
	sub, res, err := resolveSubscription(repos, payload)
	if sub == nil {
		return res, err
	}
	paymentKey := payload.PaymentID
	if paymentKey == "" {
		paymentKey = ev.EventID
	}

	ledger := NewLedger(repos.Ledger)
	_, _, err = ledger.Append(LedgerAppendInput{
		IdempotencyKey: paymentKey,
		UserID:         sub.UserID,
		SubscriptionID: sub.SubscriptionID,
		AmountCents:    payload.AmountCents,
		Currency:       payload.Currency,
		Status:         models.LedgerStatusSucceeded,
		Purpose:        models.LedgerPurposeSubscription,
		OccurredAt:     ev.OccurredAt,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return ProcessResult{Status: StatusIgnored, Reason: err.Error()}, nil
		}
		return ProcessResult{}, err
	}
	return ProcessResult{Status: StatusApplied}, nil
}

func (p *Processor) handleInvoicePaymentFailed(repos *repository.Repositories, payload *eventPayload, ev Event) (ProcessResult, error) {
	sub, res, err := resolveSubscription(repos, payload)
	if sub == nil {
		return res, err
	}

	if tr := MarkPastDue(sub); tr.Outcome == OutcomeApplied {
		if err := repos.Subscription.UpdateWithVersion(sub); err != nil {
			return ProcessResult{}, err
		}
	}

	paymentKey := payload.PaymentID
	if paymentKey == "" {
		paymentKey = ev.EventID
	}
	ledger := NewLedger(repos.Ledger)
	_, _, err = ledger.Append(LedgerAppendInput{
		IdempotencyKey: paymentKey,
		UserID:         sub.UserID,
		SubscriptionID: sub.SubscriptionID,
		AmountCents:    payload.AmountCents,
		Currency:       payload.Currency,
		Status:         models.LedgerStatusFailed,
		Purpose:        models.LedgerPurposeSubscription,
		OccurredAt:     ev.OccurredAt,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return ProcessResult{Status: StatusIgnored, Reason: err.Error()}, nil
		}
		return ProcessResult{}, err
	}
	return ProcessResult{Status: StatusApplied}, nil
}

func (p *Processor) handleChargeRefunded(repos *repository.Repositories, payload *eventPayload, ev Event) (ProcessResult, error) {
	if payload.RefundedPaymentID == "" {
		return ProcessResult{Status: StatusIgnored, Reason: "refund event without original payment id"}, nil
	}
	refundKey := payload.PaymentID
	if refundKey == "" {
		refundKey = ev.EventID
	}

	ledger := NewLedger(repos.Ledger)
	original, err := repos.Ledger.GetByIdempotencyKey(payload.RefundedPaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProcessResult{Status: StatusIgnored, Reason: "no ledger entry for refunded payment"}, nil
		}
		return ProcessResult{}, err
	}

	_, err = ledger.Refund(original.TransactionID, payload.AmountCents, payload.Reason, refundKey, ev.OccurredAt)
	if err != nil {
		if errors.Is(err, ErrLedgerIntegrity) || errors.Is(err, ErrValidation) {
			return ProcessResult{Status: StatusIgnored, Reason: err.Error()}, nil
		}
		return ProcessResult{}, err
	}
	return ProcessResult{Status: StatusApplied}, nil
}

// resolveUser maps the payload's user reference (explicit id first, then the
// gateway customer) to a local user. A nil user with nil error means the
// event should be acknowledged and skipped.
func resolveUser(repos *repository.Repositories, payload *eventPayload) (*models.User, ProcessResult, error) {
	if payload.UserID != 0 {
		user, err := repos.User.GetByID(payload.UserID)
		if err == nil {
			return user, ProcessResult{}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ProcessResult{}, err
		}
	}
	if payload.GatewayCustomerID != "" {
		user, err := repos.User.GetByGatewayCustomerID(payload.GatewayCustomerID)
		if err == nil {
			return user, ProcessResult{}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ProcessResult{}, err
		}
	}
	return nil, ProcessResult{Status: StatusIgnored, Reason: "no local user for event"}, nil
}

// resolveSubscription maps the payload's gateway subscription id to the
// local record. A nil record with nil error means acknowledge-and-skip.
func resolveSubscription(repos *repository.Repositories, payload *eventPayload) (*models.SubscriptionRecord, ProcessResult, error) {
	if payload.GatewaySubscriptionID == "" {
		return nil, ProcessResult{Status: StatusIgnored, Reason: "event without subscription reference"}, nil
	}
	sub, err := repos.Subscription.GetByGatewaySubscriptionID(payload.GatewaySubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ProcessResult{Status: StatusIgnored, Reason: "no local subscription for event"}, nil
		}
		return nil, ProcessResult{}, err
	}
	return sub, ProcessResult{}, nil
}
