package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/learnfox/LearnFox/app/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.SubscriptionRecord{},
		&models.LedgerEntry{},
		&models.OneOffPurchase{},
		&models.WebhookEvent{},
		&models.Item{},
	)
	require.NoError(t, err)
	return db
}

func openRecord(userID uint, subscriptionID, gatewaySubID string) *models.SubscriptionRecord {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return &models.SubscriptionRecord{
		SubscriptionID:        subscriptionID,
		UserID:                userID,
		ActiveSlot:            models.OpenSlot,
		GatewayCustomerID:     "cus_1",
		GatewaySubscriptionID: gatewaySubID,
		PlanTier:              "pro",
		BillingPeriod:         models.BillingPeriodMonthly,
		AmountCents:           2999,
		Currency:              "usd",
		Status:                models.SubscriptionStatusActive,
		CurrentPeriodStart:    &start,
		CurrentPeriodEnd:      &end,
	}
}
