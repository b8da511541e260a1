package repository

import (
	"time"

	"github.com/learnfox/LearnFox/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) CreateIfNoOpen(sub *models.SubscriptionRecord) error {
	if sub.ActiveSlot == "" {
		sub.ActiveSlot = models.OpenSlot
	}
	// The (user_id, active_slot) unique index rejects a second open row.
	return r.db.Create(sub).Error
}

func (r *subscriptionRepository) GetBySubscriptionID(subscriptionID string) (*models.SubscriptionRecord, error) {
	var sub models.SubscriptionRecord
	err := r.db.Where("subscription_id = ?", subscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByGatewaySubscriptionID(gatewaySubID string) (*models.SubscriptionRecord, error) {
	var sub models.SubscriptionRecord
	err := r.db.Where("gateway_subscription_id = ?", gatewaySubID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetOpenByUserID(userID uint) (*models.SubscriptionRecord, error) {
	var sub models.SubscriptionRecord
	err := r.db.Where("user_id = ? AND active_slot = ?", userID, models.OpenSlot).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListByUserID(userID uint) ([]models.SubscriptionRecord, error) {
	var subs []models.SubscriptionRecord
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&subs).Error
	return subs, err
}

// UpdateWithVersion writes every mutable field guarded by the version the
// caller loaded. RowsAffected = 0 means a concurrent writer advanced the row
// first and the caller must reload.
func (r *subscriptionRepository) UpdateWithVersion(sub *models.SubscriptionRecord) error {
	loadedVersion := sub.Version
	res := r.db.Model(&models.SubscriptionRecord{}).
		Where("id = ? AND version = ?", sub.ID, loadedVersion).
		Updates(map[string]interface{}{
			"active_slot":             sub.ActiveSlot,
			"gateway_subscription_id": sub.GatewaySubscriptionID,
			"plan_tier":               sub.PlanTier,
			"billing_period":          sub.BillingPeriod,
			"amount_cents":            sub.AmountCents,
			"currency":                sub.Currency,
			"status":                  sub.Status,
			"current_period_start":    sub.CurrentPeriodStart,
			"current_period_end":      sub.CurrentPeriodEnd,
			"cancel_at_period_end":    sub.CancelAtPeriodEnd,
			"canceled_at":             sub.CanceledAt,
			"ended_at":                sub.EndedAt,
			"version":                 loadedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRecord
	}
	sub.Version = loadedVersion + 1
	return nil
}

func (r *subscriptionRepository) CountOpenByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.SubscriptionRecord{}).
		Where("active_slot = ? AND status = ?", models.OpenSlot, status).
		Count(&count).Error
	return count, err
}

func (r *subscriptionRepository) ListOpen() ([]models.SubscriptionRecord, error) {
	var subs []models.SubscriptionRecord
	err := r.db.Where("active_slot = ?", models.OpenSlot).Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) CountCanceledInWindow(from, to time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.SubscriptionRecord{}).
		Where("status = ? AND canceled_at >= ? AND canceled_at < ?", models.SubscriptionStatusCanceled, from, to).
		Count(&count).Error
	return count, err
}
