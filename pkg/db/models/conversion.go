package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
)

// Conversion records a single asset-conversion leg. USD value is conserved
// across the leg (fees are not modeled), so FromAmountUSDCents always equals
// ToAmountUSDCents on a completed record.
type Conversion struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID          uuid.UUID              `gorm:"column:invoice_id;type:uuid;not null"`
	FromAsset          enums.Asset            `gorm:"column:from_asset;type:asset_enum;not null"`
	ToAsset            enums.Asset            `gorm:"column:to_asset;type:asset_enum;not null"`
	FromAmount         string                 `gorm:"column:from_amount;not null"`
	ToAmount           string                 `gorm:"column:to_amount;not null"`
	FromAmountUSDCents int64                  `gorm:"column:from_amount_usd_cents;not null"`
	ToAmountUSDCents   int64                  `gorm:"column:to_amount_usd_cents;not null"`
	RateSnapshot       json.RawMessage        `gorm:"column:rate_snapshot;type:jsonb"`
	TxRef              string                 `gorm:"column:tx_ref;not null"`
	Status             enums.SettlementStatus `gorm:"column:status;type:settlement_status_enum;not null;default:'pending'"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
}
