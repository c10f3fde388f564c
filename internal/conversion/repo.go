package conversion

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
)

// Repository manages persistence for conversion legs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, conversion *models.Conversion) error
	ListByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]models.Conversion, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a conversion repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, conversion *models.Conversion) error {
	return r.db.WithContext(ctx).Create(conversion).Error
}

func (r *repository) ListByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]models.Conversion, error) {
	var conversions []models.Conversion
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&conversions).Error; err != nil {
		return nil, err
	}
	return conversions, nil
}
