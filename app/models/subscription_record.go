package models

import (
	"time"
)

const (
	BillingPeriodMonthly = "monthly"
	BillingPeriodYearly  = "yearly"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// OpenSlot is the ActiveSlot value shared by every non-terminal subscription
// row. Because (user_id, active_slot) is unique, at most one open row can
// exist per user; terminal rows park their own SubscriptionID in the slot and
// stop competing for it.
const OpenSlot = "open"

// SubscriptionRecord is the local source of truth for one gateway
// subscription. Rows are never deleted: terminal rows are kept for history.
type SubscriptionRecord struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID        string     `gorm:"type:char(36);not null;uniqueIndex" json:"subscription_id"`
	UserID                uint       `gorm:"not null;index;index:ux_subscriptions_user_slot,unique,priority:1" json:"user_id"`
	ActiveSlot            string     `gorm:"type:varchar(36);not null;default:'open';index:ux_subscriptions_user_slot,unique,priority:2" json:"-"`
	GatewayCustomerID     string     `gorm:"type:varchar(191);not null;index" json:"gateway_customer_id"`
	GatewaySubscriptionID string     `gorm:"type:varchar(191);default:'';index" json:"gateway_subscription_id"`
	PlanTier              string     `gorm:"type:varchar(50);not null" json:"plan_tier"`
	BillingPeriod         string     `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_period"`
	AmountCents           int64      `gorm:"not null" json:"amount_cents"`
	Currency              string     `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status                string     `gorm:"type:varchar(32);not null;index" json:"status"`
	CurrentPeriodStart    *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd      *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd     bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt            *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	EndedAt               *time.Time `gorm:"type:timestamp;default:null" json:"ended_at,omitempty"`
	Version               uint       `gorm:"not null;default:0" json:"-"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the record reached its absorbing state.
func (s *SubscriptionRecord) IsTerminal() bool {
	return s.Status == SubscriptionStatusCanceled
}

// IsOpen reports whether the record still occupies the user's open slot.
func (s *SubscriptionRecord) IsOpen() bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}

// DaysRemaining returns full days until the current period ends, never
// negative. Zero when no period end is known.
func (s *SubscriptionRecord) DaysRemaining(now time.Time) int {
	if s.CurrentPeriodEnd == nil {
		return 0
	}
	d := s.CurrentPeriodEnd.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
