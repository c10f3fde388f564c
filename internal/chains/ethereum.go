package chains

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

const weiDecimals = 18

type ethereumAdapter struct {
	network enums.Network
	store   *simnet.Store
}

// NewEthereumAdapter builds the ethereum ledger adapter backed by the
// simulated network store.
func NewEthereumAdapter(network enums.Network, store *simnet.Store) (Adapter, error) {
	if !network.IsValid() {
		return nil, fmt.Errorf("invalid network %q", network)
	}
	if store == nil {
		return nil, fmt.Errorf("simnet store required")
	}
	return &ethereumAdapter{network: network, store: store}, nil
}

func (a *ethereumAdapter) Chain() enums.Chain       { return enums.ChainEthereum }
func (a *ethereumAdapter) NativeAsset() enums.Asset { return enums.AssetETH }
func (a *ethereumAdapter) Decimals() int            { return weiDecimals }

// GenerateDepositAddress derives a per-invoice EIP-55 checksummed address
// from a deterministic digest of the invoice id.
func (a *ethereumAdapter) GenerateDepositAddress(ctx context.Context, invoiceID uuid.UUID) (types.DepositAddress, error) {
	if invoiceID == uuid.Nil {
		return types.DepositAddress{}, fmt.Errorf("invoice id is required")
	}

	seed := sha256.Sum256(append(invoiceID[:], []byte("eth-deposit")...))
	address := common.BytesToAddress(seed[:20]).Hex()

	keySeed := sha256.Sum256(append(invoiceID[:], []byte("eth-key")...))
	placeholder := "simkey_eth_" + hex.EncodeToString(keySeed[:8])
	return types.DepositAddress{
		Address:        address,
		TrackingHandle: address,
		KeyPlaceholder: &placeholder,
	}, nil
}

func (a *ethereumAdapter) CheckPayment(ctx context.Context, deposit types.DepositAddress, expected *big.Int) (*PaymentMatch, error) {
	return matchSimnetPayment(a.store, deposit.TrackingHandle, expected)
}

func (a *ethereumAdapter) USDToNative(usdCents int64, rate decimal.Decimal) (*big.Int, error) {
	return usdCentsToNative(usdCents, rate, weiDecimals)
}

func (a *ethereumAdapter) NativeToUSD(native *big.Int, rate decimal.Decimal) (int64, error) {
	return nativeToUSDCents(native, rate, weiDecimals)
}

func (a *ethereumAdapter) FormatAmount(native *big.Int) string {
	return formatNative(native, weiDecimals)
}

func (a *ethereumAdapter) IsValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

func (a *ethereumAdapter) ExplorerURL(txRef string) string {
	if a.network == enums.NetworkMainnet {
		return "https://etherscan.io/tx/" + txRef
	}
	return "https://sepolia.etherscan.io/tx/" + txRef
}
