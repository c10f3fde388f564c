package chains

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

// PaymentMatch is the evidence an adapter returns once an address has
// received enough value to cover the expected amount.
type PaymentMatch struct {
	TxRef         string
	Amount        *big.Int
	Confirmations int
	DetectedAt    time.Time
}

// Adapter is the per-chain integration surface. Native amounts are base
// units (satoshi, wei, lamports) carried as big integers; USD values are
// cents. Conversions between the two are exact: USDToNative rounds up so a
// payer can never underpay by rounding, and NativeToUSD rounds half up.
type Adapter interface {
	Chain() enums.Chain
	NativeAsset() enums.Asset
	Decimals() int
	GenerateDepositAddress(ctx context.Context, invoiceID uuid.UUID) (types.DepositAddress, error)
	CheckPayment(ctx context.Context, deposit types.DepositAddress, expected *big.Int) (*PaymentMatch, error)
	USDToNative(usdCents int64, rate decimal.Decimal) (*big.Int, error)
	NativeToUSD(native *big.Int, rate decimal.Decimal) (int64, error)
	FormatAmount(native *big.Int) string
	IsValidAddress(address string) bool
	ExplorerURL(txRef string) string
}
