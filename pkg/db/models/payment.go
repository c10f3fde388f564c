package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
)

// Payment records one detected inbound transfer. Immutable once created;
// native amounts are decimal strings so no precision is lost in storage.
type Payment struct {
	ID             uuid.UUID   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID      uuid.UUID   `gorm:"column:invoice_id;type:uuid;not null"`
	Chain          enums.Chain `gorm:"column:chain;type:chain_enum;not null"`
	Asset          enums.Asset `gorm:"column:asset;type:asset_enum;not null"`
	AmountNative   string      `gorm:"column:amount_native;not null"`
	AmountUSDCents int64       `gorm:"column:amount_usd_cents;not null"`
	TxRef          string      `gorm:"column:tx_ref;not null"`
	Confirmations  int         `gorm:"column:confirmations;not null;default:0"`
	DetectedAt     time.Time   `gorm:"column:detected_at;not null"`
	CreatedAt      time.Time   `gorm:"column:created_at;autoCreateTime"`
}
