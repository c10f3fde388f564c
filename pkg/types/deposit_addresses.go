package types

import (
	"database/sql/driver"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
)

// DepositAddress is the payer-facing destination provisioned for one chain.
// Custodial chains carry a throwaway key placeholder; the solana flow instead
// carries a payment reference because funds route straight to the merchant.
type DepositAddress struct {
	Address          string  `json:"address"`
	TrackingHandle   string  `json:"tracking_handle"`
	PaymentReference *string `json:"payment_reference,omitempty"`
	KeyPlaceholder   *string `json:"key_placeholder,omitempty"`
}

// DepositAddressBook maps each enabled chain to its deposit address.
type DepositAddressBook map[enums.Chain]DepositAddress

// Value implements driver.Valuer for the jsonb column.
func (b DepositAddressBook) Value() (driver.Value, error) {
	if b == nil {
		b = DepositAddressBook{}
	}
	return jsonbValue(b)
}

// Scan implements sql.Scanner for the jsonb column.
func (b *DepositAddressBook) Scan(src any) error {
	return jsonbScan(src, b)
}

// PayoutAddressBook maps settlement assets to the merchant's payout address.
type PayoutAddressBook map[enums.Asset]string

// Value implements driver.Valuer for the jsonb column.
func (b PayoutAddressBook) Value() (driver.Value, error) {
	if b == nil {
		b = PayoutAddressBook{}
	}
	return jsonbValue(b)
}

// Scan implements sql.Scanner for the jsonb column.
func (b *PayoutAddressBook) Scan(src any) error {
	return jsonbScan(src, b)
}

// ChainList is the jsonb-backed set of chains a payer may use.
type ChainList []enums.Chain

// Value implements driver.Valuer for the jsonb column.
func (l ChainList) Value() (driver.Value, error) {
	if l == nil {
		l = ChainList{}
	}
	return jsonbValue(l)
}

// Scan implements sql.Scanner for the jsonb column.
func (l *ChainList) Scan(src any) error {
	return jsonbScan(src, l)
}

// Contains reports whether the chain is enabled for payment.
func (l ChainList) Contains(chain enums.Chain) bool {
	for _, candidate := range l {
		if candidate == chain {
			return true
		}
	}
	return false
}
