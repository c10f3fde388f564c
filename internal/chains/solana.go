package chains

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcutil/base58"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

const lamportDecimals = 9

type solanaAdapter struct {
	network enums.Network
	store   *simnet.Store
}

// NewSolanaAdapter builds the solana ledger adapter backed by the simulated
// network store. Solana deposits are non-custodial: payers send straight to
// the merchant address and transfers are attributed by a per-invoice payment
// reference, so no throwaway key is held.
func NewSolanaAdapter(network enums.Network, store *simnet.Store) (Adapter, error) {
	if !network.IsValid() {
		return nil, fmt.Errorf("invalid network %q", network)
	}
	if store == nil {
		return nil, fmt.Errorf("simnet store required")
	}
	return &solanaAdapter{network: network, store: store}, nil
}

func (a *solanaAdapter) Chain() enums.Chain       { return enums.ChainSolana }
func (a *solanaAdapter) NativeAsset() enums.Asset { return enums.AssetSOL }
func (a *solanaAdapter) Decimals() int            { return lamportDecimals }

// GenerateDepositAddress derives the receiving address and a distinct
// payment reference. The reference, not the address, is the tracking handle:
// many invoices can share one receiving address and still be attributed
// unambiguously.
func (a *solanaAdapter) GenerateDepositAddress(ctx context.Context, invoiceID uuid.UUID) (types.DepositAddress, error) {
	if invoiceID == uuid.Nil {
		return types.DepositAddress{}, fmt.Errorf("invoice id is required")
	}

	addrSeed := sha256.Sum256(append(invoiceID[:], []byte("sol-deposit")...))
	address := base58.Encode(addrSeed[:])

	refSeed := sha256.Sum256(append(invoiceID[:], []byte("sol-reference")...))
	reference := base58.Encode(refSeed[:])

	return types.DepositAddress{
		Address:          address,
		TrackingHandle:   reference,
		PaymentReference: &reference,
	}, nil
}

func (a *solanaAdapter) CheckPayment(ctx context.Context, deposit types.DepositAddress, expected *big.Int) (*PaymentMatch, error) {
	return matchSimnetPayment(a.store, deposit.TrackingHandle, expected)
}

func (a *solanaAdapter) USDToNative(usdCents int64, rate decimal.Decimal) (*big.Int, error) {
	return usdCentsToNative(usdCents, rate, lamportDecimals)
}

func (a *solanaAdapter) NativeToUSD(native *big.Int, rate decimal.Decimal) (int64, error) {
	return nativeToUSDCents(native, rate, lamportDecimals)
}

func (a *solanaAdapter) FormatAmount(native *big.Int) string {
	return formatNative(native, lamportDecimals)
}

// IsValidAddress accepts 32-byte base58 public keys.
func (a *solanaAdapter) IsValidAddress(address string) bool {
	if address == "" {
		return false
	}
	decoded := base58.Decode(address)
	return len(decoded) == 32
}

func (a *solanaAdapter) ExplorerURL(txRef string) string {
	if a.network == enums.NetworkMainnet {
		return "https://explorer.solana.com/tx/" + txRef
	}
	return "https://explorer.solana.com/tx/" + txRef + "?cluster=testnet"
}
