package repository

import (
	"github.com/learnfox/LearnFox/app/models"
	"gorm.io/gorm"
)

// itemRepository implements the ItemRepository interface
type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new item repository instance
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(item *models.Item) error {
	return r.db.Create(item).Error
}

func (r *itemRepository) GetByID(id uint) (*models.Item, error) {
	var item models.Item
	err := r.db.First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) ListPremiumInclusiveIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Item{}).
		Where("premium_inclusive = ?", true).
		Pluck("id", &ids).Error
	return ids, err
}
