package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

// Business is the merchant issuing invoices and receiving settlements.
type Business struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string                  `gorm:"column:name;not null"`
	Email           string                  `gorm:"column:email;not null"`
	PayoutAddresses types.PayoutAddressBook `gorm:"column:payout_addresses;type:jsonb"`
	BankAccountID   *string                 `gorm:"column:bank_account_id"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// PayoutAddress returns the configured address for the asset, or empty.
func (b *Business) PayoutAddress(asset enums.Asset) string {
	if b == nil || b.PayoutAddresses == nil {
		return ""
	}
	return b.PayoutAddresses[asset]
}
