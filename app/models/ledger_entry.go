package models

import "time"

const (
	LedgerStatusSucceeded = "succeeded"
	LedgerStatusFailed    = "failed"
	LedgerStatusRefunded  = "refunded"
)

const (
	LedgerPurposeSubscription = "subscription"
	LedgerPurposeBookPurchase = "book_purchase"
)

// LedgerEntry is one append-only row of the payment ledger. AmountCents is
// signed: positive rows are charges, negative rows are refunds. A refund is a
// new row referencing the original via RefundedTransactionID; the original is
// never mutated.
type LedgerEntry struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	TransactionID         string    `gorm:"type:char(36);not null;uniqueIndex" json:"transaction_id"`
	IdempotencyKey        string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"idempotency_key"`
	UserID                uint      `gorm:"not null;index" json:"user_id"`
	SubscriptionID        string    `gorm:"type:char(36);default:'';index" json:"subscription_id,omitempty"`
	AmountCents           int64     `gorm:"not null" json:"amount_cents"`
	Currency              string    `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status                string    `gorm:"type:varchar(20);not null;index" json:"status"`
	Purpose               string    `gorm:"type:varchar(30);not null;index" json:"purpose"`
	RefundedTransactionID string    `gorm:"type:char(36);default:'';index" json:"refunded_transaction_id,omitempty"`
	Reason                string    `gorm:"type:varchar(255);default:''" json:"reason,omitempty"`
	OccurredAt            time.Time `gorm:"not null;index" json:"occurred_at"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "payment_ledger"
}
