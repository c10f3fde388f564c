package cashout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
)

// Repository manages persistence for fiat settlements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, settlement *models.FiatSettlement) error
	ListByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]models.FiatSettlement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a fiat settlement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, settlement *models.FiatSettlement) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

func (r *repository) ListByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]models.FiatSettlement, error) {
	var settlements []models.FiatSettlement
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&settlements).Error; err != nil {
		return nil, err
	}
	return settlements, nil
}
