package sellers

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository handles seller directory persistence.
type Repository struct {
	repo.Base
}

// NewRepository binds a GORM DB to seller lookups.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindByID loads one seller.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Seller, error) {
	var seller models.Seller
	if err := r.DB(ctx).Where("id = ?", id).First(&seller).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

// FindByIDs loads every seller in ids; unknown ids are simply absent.
func (r *Repository) FindByIDs(ctx context.Context, ids []string) ([]models.Seller, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var sellers []models.Seller
	if err := r.DB(ctx).Where("id IN ?", ids).Order("id ASC").Find(&sellers).Error; err != nil {
		return nil, err
	}
	return sellers, nil
}

// Upsert inserts the seller or refreshes its store name.
func (r *Repository) Upsert(ctx context.Context, seller *models.Seller) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"store_name"}),
		}).
		Create(seller).Error
}
