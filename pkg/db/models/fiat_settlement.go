package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
)

// FiatSettlement records a bank-rail payout. When the rail was unreachable
// and the simulate-on-failure policy was enabled, Status is
// completed_simulated and ErrorNote carries the original rail error for
// audit, so downstream consumers can tell real deposits from synthesized
// ones.
type FiatSettlement struct {
	ID                 uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID          uuid.UUID                  `gorm:"column:invoice_id;type:uuid;not null"`
	AmountUSDCents     int64                      `gorm:"column:amount_usd_cents;not null"`
	BankAccountID      string                     `gorm:"column:bank_account_id;not null"`
	ExternalTransferID string                     `gorm:"column:external_transfer_id;not null"`
	Status             enums.FiatSettlementStatus `gorm:"column:status;type:fiat_settlement_status_enum;not null;default:'pending'"`
	ErrorNote          *string                    `gorm:"column:error_note"`
	CreatedAt          time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
