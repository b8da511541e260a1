package billing

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

// newTestDB opens an isolated in-memory database with the same schema and
// error translation the real setup uses.
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

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Name:  "Test User",
		Email: email,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
