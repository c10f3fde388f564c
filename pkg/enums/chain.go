package enums

import "fmt"

// Chain identifies a supported payment ledger.
type Chain string

const (
	ChainBitcoin  Chain = "bitcoin"
	ChainEthereum Chain = "ethereum"
	ChainSolana   Chain = "solana"
)

var validChains = []Chain{
	ChainBitcoin,
	ChainEthereum,
	ChainSolana,
}

// String implements fmt.Stringer.
func (c Chain) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Chain.
func (c Chain) IsValid() bool {
	for _, candidate := range validChains {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChain converts raw input into a Chain.
func ParseChain(value string) (Chain, error) {
	for _, candidate := range validChains {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid chain %q", value)
}

// Chains returns every supported chain in declaration order.
func Chains() []Chain {
	out := make([]Chain, len(validChains))
	copy(out, validChains)
	return out
}

// NativeAsset returns the asset carried natively by the chain.
func (c Chain) NativeAsset() Asset {
	switch c {
	case ChainBitcoin:
		return AssetBTC
	case ChainEthereum:
		return AssetETH
	case ChainSolana:
		return AssetSOL
	}
	return ""
}
