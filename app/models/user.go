package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"
)

// User is the minimal account record the commerce layer needs. The Tier
// column is a fast-path copy of the entitlement tier so access checks on hot
// read paths do not need to join subscriptions; the subscription table stays
// the source of truth and Tier is rewritten on every reconciliation.
type User struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Name              string         `gorm:"type:varchar(100);not null" json:"name"`
	Email             string         `gorm:"type:varchar(200);not null;uniqueIndex" json:"email"`
	Role              string         `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	Tier              string         `gorm:"type:varchar(50);not null;default:'free';index" json:"tier"`
	GatewayCustomerID string         `gorm:"type:varchar(191);default:'';index" json:"gateway_customer_id"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == ROLE_ADMIN
}
