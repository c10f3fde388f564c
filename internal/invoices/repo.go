package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/pagination"
)

// Repository manages invoice persistence. Status moves go through
// UpdateStatusIf so concurrent workers can never race an invoice backward or
// double-apply a transition.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.InvoiceStatus, to enums.InvoiceStatus) (bool, error)
	ListByStatus(ctx context.Context, statuses []enums.InvoiceStatus, limit int) ([]models.Invoice, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Invoice, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) Update(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

// UpdateStatusIf is a compare-and-set on the status column. It returns false
// when the invoice is no longer in any of the expected source states, which
// callers treat as losing the race rather than an error. Every requested
// edge must exist in the transition graph; a caller asking for a move the
// graph forbids is a programming error, not a race.
func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.InvoiceStatus, to enums.InvoiceStatus) (bool, error) {
	for _, status := range from {
		if !status.CanTransitionTo(to) {
			return false, fmt.Errorf("status %s cannot transition to %s", status, to)
		}
	}
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListByBusiness pages a business's invoices newest first using a keyset
// cursor on (created_at, id). Callers pass a buffered limit and trim the
// extra row themselves to decide whether another page exists.
func (r *repository) ListByBusiness(ctx context.Context, businessID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var invoices []models.Invoice
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) ListByStatus(ctx context.Context, statuses []enums.InvoiceStatus, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Limit(limit).
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}
