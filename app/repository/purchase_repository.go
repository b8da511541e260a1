package repository

import (
	"github.com/learnfox/LearnFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// purchaseRepository implements the PurchaseRepository interface
type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a new one-off purchase repository instance
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

func (r *purchaseRepository) GrantIfAbsent(p *models.OneOffPurchase) (bool, *models.OneOffPurchase, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "item_id"},
		},
		DoNothing: true,
	}).Create(p)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.OneOffPurchase
	if err := r.db.Where("user_id = ? AND item_id = ?", p.UserID, p.ItemID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *purchaseRepository) ListByUserID(userID uint) ([]models.OneOffPurchase, error) {
	var purchases []models.OneOffPurchase
	err := r.db.Where("user_id = ?", userID).Find(&purchases).Error
	return purchases, err
}

func (r *purchaseRepository) GetByUserAndItem(userID, itemID uint) (*models.OneOffPurchase, error) {
	var p models.OneOffPurchase
	err := r.db.Where("user_id = ? AND item_id = ?", userID, itemID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
