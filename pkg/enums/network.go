package enums

import "fmt"

// Network selects between mainnet and testnet address formats.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

var validNetworks = []Network{
	NetworkMainnet,
	NetworkTestnet,
}

// String implements fmt.Stringer.
func (n Network) String() string {
	return string(n)
}

// IsValid reports whether the value is a known Network.
func (n Network) IsValid() bool {
	for _, candidate := range validNetworks {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNetwork converts raw input into a Network.
func ParseNetwork(value string) (Network, error) {
	for _, candidate := range validNetworks {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid network %q", value)
}
