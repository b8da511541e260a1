package models

import (
	"time"

	"gorm.io/gorm"
)

// Item is a purchasable piece of content (book, question bank, course
// add-on). PremiumInclusive items are unlocked for every Pro/Premium
// subscriber without an individual purchase.
type Item struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Title            string         `gorm:"type:varchar(255);not null" json:"title"`
	Slug             string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	PriceCents       int64          `gorm:"not null" json:"price_cents"`
	Currency         string         `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	PremiumInclusive bool           `gorm:"default:false;index" json:"premium_inclusive"`
	GatewayPriceRef  string         `gorm:"type:varchar(191);default:''" json:"gateway_price_ref"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
