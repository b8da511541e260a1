package models

import "time"

// OneOffPurchase grants permanent access to a single item (e.g. a book).
// The (user_id, item_id) unique index makes re-granting a no-op instead of a
// duplicate row.
type OneOffPurchase struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"not null;index:ux_purchases_user_item,unique,priority:1" json:"user_id"`
	ItemID              uint      `gorm:"not null;index:ux_purchases_user_item,unique,priority:2" json:"item_id"`
	PurchasePriceCents  int64     `gorm:"not null" json:"purchase_price_cents"`
	SourceTransactionID string    `gorm:"type:char(36);not null;index" json:"source_transaction_id"`
	PurchasedAt         time.Time `gorm:"not null" json:"purchased_at"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
}
