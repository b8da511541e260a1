package repository

import (
	"github.com/learnfox/LearnFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ledgerRepository implements the LedgerRepository interface
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new payment ledger repository instance
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) AppendIfNew(entry *models.LedgerEntry) (bool, *models.LedgerEntry, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(entry)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.LedgerEntry
	if err := r.db.Where("idempotency_key = ?", entry.IdempotencyKey).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *ledgerRepository) GetByTransactionID(transactionID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.Where("transaction_id = ?", transactionID).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByTransactionIDForUpdate takes a FOR UPDATE row lock on the entry.
// SQLite has no FOR UPDATE syntax and a single writer, so the clause is
// skipped there; MySQL needs it to keep two refunds of the same charge from
// both reading the pre-refund balance.
func (r *ledgerRepository) GetByTransactionIDForUpdate(transactionID string) (*models.LedgerEntry, error) {
	tx := r.db
	if tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var entry models.LedgerEntry
	err := tx.Where("transaction_id = ?", transactionID).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ledgerRepository) GetByIdempotencyKey(key string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.Where("idempotency_key = ?", key).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ledgerRepository) ListByUserID(userID uint, offset, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Offset(offset).Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepository) SumRefundedCents(originalTransactionID string) (int64, error) {
	var total int64
	err := r.db.Model(&models.LedgerEntry{}).
		Where("refunded_transaction_id = ?", originalTransactionID).
		Select("COALESCE(SUM(-amount_cents), 0)").
		Scan(&total).Error
	return total, err
}
