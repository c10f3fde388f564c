package chains

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

const satoshiDecimals = 8

type bitcoinAdapter struct {
	network enums.Network
	store   *simnet.Store
}

// NewBitcoinAdapter builds the bitcoin ledger adapter backed by the
// simulated network store.
func NewBitcoinAdapter(network enums.Network, store *simnet.Store) (Adapter, error) {
	if !network.IsValid() {
		return nil, fmt.Errorf("invalid network %q", network)
	}
	if store == nil {
		return nil, fmt.Errorf("simnet store required")
	}
	return &bitcoinAdapter{network: network, store: store}, nil
}

func (a *bitcoinAdapter) Chain() enums.Chain       { return enums.ChainBitcoin }
func (a *bitcoinAdapter) NativeAsset() enums.Asset { return enums.AssetBTC }
func (a *bitcoinAdapter) Decimals() int            { return satoshiDecimals }

func (a *bitcoinAdapter) hrp() string {
	if a.network == enums.NetworkMainnet {
		return "bc"
	}
	return "tb"
}

// GenerateDepositAddress derives a per-invoice segwit v0 address. The
// witness program is a deterministic digest of the invoice id, so repeated
// provisioning for the same invoice yields the same address.
func (a *bitcoinAdapter) GenerateDepositAddress(ctx context.Context, invoiceID uuid.UUID) (types.DepositAddress, error) {
	if invoiceID == uuid.Nil {
		return types.DepositAddress{}, fmt.Errorf("invoice id is required")
	}

	seed := sha256.Sum256(append(invoiceID[:], []byte("btc-deposit")...))
	program := seed[:20]
	conv, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return types.DepositAddress{}, fmt.Errorf("convert witness program: %w", err)
	}
	address, err := bech32.Encode(a.hrp(), append([]byte{0}, conv...))
	if err != nil {
		return types.DepositAddress{}, fmt.Errorf("encode address: %w", err)
	}

	keySeed := sha256.Sum256(append(invoiceID[:], []byte("btc-key")...))
	placeholder := "simkey_btc_" + hex.EncodeToString(keySeed[:8])
	return types.DepositAddress{
		Address:        address,
		TrackingHandle: address,
		KeyPlaceholder: &placeholder,
	}, nil
}

func (a *bitcoinAdapter) CheckPayment(ctx context.Context, deposit types.DepositAddress, expected *big.Int) (*PaymentMatch, error) {
	return matchSimnetPayment(a.store, deposit.TrackingHandle, expected)
}

func (a *bitcoinAdapter) USDToNative(usdCents int64, rate decimal.Decimal) (*big.Int, error) {
	return usdCentsToNative(usdCents, rate, satoshiDecimals)
}

func (a *bitcoinAdapter) NativeToUSD(native *big.Int, rate decimal.Decimal) (int64, error) {
	return nativeToUSDCents(native, rate, satoshiDecimals)
}

func (a *bitcoinAdapter) FormatAmount(native *big.Int) string {
	return formatNative(native, satoshiDecimals)
}

// IsValidAddress accepts segwit bech32 addresses for the configured network
// and legacy base58check addresses.
func (a *bitcoinAdapter) IsValidAddress(address string) bool {
	if address == "" {
		return false
	}
	if hrp, data, err := bech32.Decode(address); err == nil {
		if hrp != a.hrp() || len(data) == 0 {
			return false
		}
		program, err := bech32.ConvertBits(data[1:], 5, 8, false)
		if err != nil {
			return false
		}
		return len(program) == 20 || len(program) == 32
	}
	decoded, _, err := base58.CheckDecode(address)
	return err == nil && len(decoded) == 20
}

func (a *bitcoinAdapter) ExplorerURL(txRef string) string {
	if a.network == enums.NetworkMainnet {
		return "https://blockstream.info/tx/" + txRef
	}
	return "https://blockstream.info/testnet/tx/" + txRef
}
