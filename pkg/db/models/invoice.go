package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

// Invoice owns the payment lifecycle for one billing document. Evidence
// records (Payment, Conversion, Settlement, FiatSettlement) reference it but
// are never embedded; the status column only moves forward through the
// transition graph in enums.InvoiceStatus.
type Invoice struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BusinessID       uuid.UUID                `gorm:"column:business_id;type:uuid;not null"`
	Number           string                   `gorm:"column:number;not null"`
	TotalUSDCents    int64                    `gorm:"column:total_usd_cents;not null"`
	SettlementTarget enums.Asset              `gorm:"column:settlement_target;type:asset_enum;not null"`
	ConversionMode   enums.ConversionMode     `gorm:"column:conversion_mode;type:conversion_mode_enum;not null;default:'convert_and_settle'"`
	PaymentOptions   types.ChainList          `gorm:"column:payment_options;type:jsonb"`
	DepositAddresses types.DepositAddressBook `gorm:"column:deposit_addresses;type:jsonb"`
	LockedQuote      types.LockedQuote        `gorm:"column:locked_quote;type:jsonb"`
	Status           enums.InvoiceStatus      `gorm:"column:status;type:invoice_status_enum;not null;default:'draft'"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
