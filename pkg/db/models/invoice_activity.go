package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
)

// InvoiceActivity is one entry in the per-invoice activity feed, materialized
// from published domain events.
type InvoiceActivity struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID    uuid.UUID             `gorm:"column:event_id;type:uuid;not null"`
	InvoiceID  uuid.UUID             `gorm:"column:invoice_id;type:uuid;not null"`
	BusinessID uuid.UUID             `gorm:"column:business_id;type:uuid;not null"`
	EventType  enums.OutboxEventType `gorm:"column:event_type;type:event_type_enum;not null"`
	Summary    string                `gorm:"column:summary;not null"`
	OccurredAt time.Time             `gorm:"column:occurred_at;not null"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// TableName keeps the singular feed-style table name.
func (InvoiceActivity) TableName() string {
	return "invoice_activity"
}
