package invoices

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
)

// BusinessRepository reads merchant records.
type BusinessRepository interface {
	WithTx(tx *gorm.DB) BusinessRepository
	Create(ctx context.Context, business *models.Business) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
}

type businessRepository struct {
	db *gorm.DB
}

// NewBusinessRepository returns a business repository bound to the provided database.
func NewBusinessRepository(db *gorm.DB) BusinessRepository {
	return &businessRepository{db: db}
}

func (r *businessRepository) WithTx(tx *gorm.DB) BusinessRepository {
	if tx == nil {
		return r
	}
	return &businessRepository{db: tx}
}

func (r *businessRepository) Create(ctx context.Context, business *models.Business) error {
	return r.db.WithContext(ctx).Create(business).Error
}

func (r *businessRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var business models.Business
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&business).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &business, nil
}
