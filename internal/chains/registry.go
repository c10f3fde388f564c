package chains

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/pkg/config"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	pkgerrors "github.com/atlaspay-io/atlaspay-backend/pkg/errors"
)

// RateSource quotes the USD price for one whole coin of an asset.
type RateSource interface {
	USDRate(asset enums.Asset) (decimal.Decimal, error)
}

type staticRateSource struct {
	rates map[enums.Asset]decimal.Decimal
}

// NewStaticRateSource builds the demo rate table from configuration.
func NewStaticRateSource(cfg config.RatesConfig) (RateSource, error) {
	parsed := make(map[enums.Asset]decimal.Decimal, 4)
	for asset, raw := range map[enums.Asset]string{
		enums.AssetBTC: cfg.BTCUSD,
		enums.AssetETH: cfg.ETHUSD,
		enums.AssetSOL: cfg.SOLUSD,
	} {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s rate %q: %w", asset, raw, err)
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("%s rate must be positive", asset)
		}
		parsed[asset] = rate
	}
	parsed[enums.AssetUSD] = decimal.NewFromInt(1)
	return &staticRateSource{rates: parsed}, nil
}

func (s *staticRateSource) USDRate(asset enums.Asset) (decimal.Decimal, error) {
	rate, ok := s.rates[asset]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no rate for asset %q", asset)
	}
	return rate, nil
}

// Registry dispatches to the per-chain adapters and carries the rate source
// they quote against.
type Registry struct {
	adapters map[enums.Chain]Adapter
	rates    RateSource
}

// NewRegistry builds adapters for every supported chain on the configured
// network.
func NewRegistry(cfg config.ChainsConfig, rates RateSource, store *simnet.Store) (*Registry, error) {
	if rates == nil {
		return nil, fmt.Errorf("rate source required")
	}
	if store == nil {
		return nil, fmt.Errorf("simnet store required")
	}
	network, err := enums.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}

	bitcoin, err := NewBitcoinAdapter(network, store)
	if err != nil {
		return nil, err
	}
	ethereum, err := NewEthereumAdapter(network, store)
	if err != nil {
		return nil, err
	}
	solana, err := NewSolanaAdapter(network, store)
	if err != nil {
		return nil, err
	}

	adapters := map[enums.Chain]Adapter{
		enums.ChainBitcoin:  bitcoin,
		enums.ChainEthereum: ethereum,
		enums.ChainSolana:   solana,
	}
	return &Registry{adapters: adapters, rates: rates}, nil
}

// Adapter returns the adapter for the chain.
func (r *Registry) Adapter(chain enums.Chain) (Adapter, error) {
	adapter, ok := r.adapters[chain]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnsupportedChain, fmt.Sprintf("unsupported chain %q", chain))
	}
	return adapter, nil
}

// AdapterForAsset returns the adapter whose native asset matches.
func (r *Registry) AdapterForAsset(asset enums.Asset) (Adapter, error) {
	for _, adapter := range r.adapters {
		if adapter.NativeAsset() == asset {
			return adapter, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeUnsupportedChain, fmt.Sprintf("no chain settles asset %q", asset))
}

// Chains lists every registered chain in canonical order.
func (r *Registry) Chains() []enums.Chain {
	out := make([]enums.Chain, 0, len(r.adapters))
	for _, chain := range enums.Chains() {
		if _, ok := r.adapters[chain]; ok {
			out = append(out, chain)
		}
	}
	return out
}

// Rates exposes the registry's rate source.
func (r *Registry) Rates() RateSource {
	return r.rates
}
