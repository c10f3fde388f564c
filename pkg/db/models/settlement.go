package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
)

// Settlement records a crypto payout to the merchant's configured address.
type Settlement struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID      uuid.UUID              `gorm:"column:invoice_id;type:uuid;not null"`
	Asset          enums.Asset            `gorm:"column:asset;type:asset_enum;not null"`
	AmountNative   string                 `gorm:"column:amount_native;not null"`
	AmountUSDCents int64                  `gorm:"column:amount_usd_cents;not null"`
	ToAddress      string                 `gorm:"column:to_address;not null"`
	TxRef          string                 `gorm:"column:tx_ref;not null"`
	Status         enums.SettlementStatus `gorm:"column:status;type:settlement_status_enum;not null;default:'pending'"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
}
