package enums

import "fmt"

// Asset represents a value a merchant can receive or settle into.
type Asset string

const (
	AssetBTC Asset = "BTC"
	AssetETH Asset = "ETH"
	AssetSOL Asset = "SOL"
	AssetUSD Asset = "USD"
)

var validAssets = []Asset{
	AssetBTC,
	AssetETH,
	AssetSOL,
	AssetUSD,
}

// String implements fmt.Stringer.
func (a Asset) String() string {
	return string(a)
}

// IsValid reports whether the value is a known Asset.
func (a Asset) IsValid() bool {
	for _, candidate := range validAssets {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsFiat reports whether the asset settles on a bank rail instead of a chain.
func (a Asset) IsFiat() bool {
	return a == AssetUSD
}

// IsCrypto reports whether the asset lives on one of the supported chains.
func (a Asset) IsCrypto() bool {
	return a.IsValid() && !a.IsFiat()
}

// Chain returns the chain that carries this asset natively.
func (a Asset) Chain() (Chain, error) {
	switch a {
	case AssetBTC:
		return ChainBitcoin, nil
	case AssetETH:
		return ChainEthereum, nil
	case AssetSOL:
		return ChainSolana, nil
	}
	return "", fmt.Errorf("asset %q has no carrying chain", a)
}

// ParseAsset converts raw input into an Asset.
func ParseAsset(value string) (Asset, error) {
	for _, candidate := range validAssets {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid asset %q", value)
}
