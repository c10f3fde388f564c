package types

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
)

// LockedQuote is the time-boxed rate snapshot stored on an invoice. Payer
// amounts always derive from these rates, never from a live feed, so a price
// move between invoice issuance and payment cannot cause an underpayment.
type LockedQuote struct {
	// Rates maps asset symbol to its USD price as a decimal string.
	Rates     map[string]string `json:"rates"`
	LockedAt  time.Time         `json:"locked_at"`
	ExpiresAt time.Time         `json:"expires_at"`

	// Payment lock, populated once an inbound transfer is detected.
	PaidChain          *enums.Chain `json:"paid_chain,omitempty"`
	PaidAsset          *enums.Asset `json:"paid_asset,omitempty"`
	PaidAmount         *string      `json:"paid_amount,omitempty"`
	PaidAmountUSDCents *int64       `json:"paid_amount_usd_cents,omitempty"`
	PaidAt             *time.Time   `json:"paid_at,omitempty"`
}

// IsZero reports whether the quote has never been locked.
func (q LockedQuote) IsZero() bool {
	return q.LockedAt.IsZero()
}

// IsValidAt reports whether the quote is still live at the given instant.
func (q LockedQuote) IsValidAt(now time.Time) bool {
	return !q.IsZero() && now.Before(q.ExpiresAt)
}

// SecondsRemaining returns the whole seconds until expiry, floored at zero.
func (q LockedQuote) SecondsRemaining(now time.Time) int64 {
	if q.IsZero() || !now.Before(q.ExpiresAt) {
		return 0
	}
	return int64(q.ExpiresAt.Sub(now) / time.Second)
}

// Rate returns the locked USD price for the asset.
func (q LockedQuote) Rate(asset enums.Asset) (decimal.Decimal, error) {
	raw, ok := q.Rates[asset.String()]
	if !ok {
		return decimal.Zero, fmt.Errorf("quote has no rate for asset %q", asset)
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote rate for %q is malformed: %w", asset, err)
	}
	return rate, nil
}

// Value implements driver.Valuer for the jsonb column.
func (q LockedQuote) Value() (driver.Value, error) {
	return jsonbValue(q)
}

// Scan implements sql.Scanner for the jsonb column.
func (q *LockedQuote) Scan(src any) error {
	return jsonbScan(src, q)
}
