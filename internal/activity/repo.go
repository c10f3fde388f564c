package activity

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
)

// Repository persists invoice activity rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an activity repository on the shared gorm handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts an activity row. A replay of an already-recorded event is
// dropped by the unique event_id index instead of erroring, so the consumer
// stays idempotent even after its Redis marks expire.
func (r *Repository) Create(ctx context.Context, record *models.InvoiceActivity) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(record).Error
}
