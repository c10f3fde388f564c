package chains

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var big100 = big.NewInt(100)

func pow10(decimals int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// usdCentsToNative converts USD cents to native base units at the given
// USD-per-coin rate, rounding up. Rounding up guarantees the round trip
// nativeToUSDCents(usdCentsToNative(x)) >= x, so an exact-amount payer can
// never come up short of the invoiced USD value.
func usdCentsToNative(usdCents int64, rate decimal.Decimal, decimals int) (*big.Int, error) {
	if usdCents < 0 {
		return nil, fmt.Errorf("usd cents must be non-negative")
	}
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("rate must be positive")
	}

	// native = ceil(cents * 10^decimals / (rate * 100))
	rat := rate.Rat()
	num := new(big.Int).Mul(big.NewInt(usdCents), pow10(decimals))
	num.Mul(num, rat.Denom())
	den := new(big.Int).Mul(rat.Num(), big100)

	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo, nil
}

// nativeToUSDCents converts native base units to USD cents at the given
// USD-per-coin rate, rounding half up.
func nativeToUSDCents(native *big.Int, rate decimal.Decimal, decimals int) (int64, error) {
	if native == nil || native.Sign() < 0 {
		return 0, fmt.Errorf("native amount must be non-negative")
	}
	if rate.Sign() <= 0 {
		return 0, fmt.Errorf("rate must be positive")
	}

	// cents = round(native * rate * 100 / 10^decimals)
	rat := rate.Rat()
	num := new(big.Int).Mul(native, rat.Num())
	num.Mul(num, big100)
	den := new(big.Int).Mul(rat.Denom(), pow10(decimals))

	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	rem.Mul(rem, big.NewInt(2))
	if rem.Cmp(den) >= 0 {
		quo.Add(quo, big.NewInt(1))
	}
	if !quo.IsInt64() {
		return 0, fmt.Errorf("usd value overflows cents")
	}
	return quo.Int64(), nil
}

// formatNative renders base units as a decimal coin amount, e.g. 153847
// satoshi as "0.00153847".
func formatNative(native *big.Int, decimals int) string {
	if native == nil {
		return "0"
	}
	return decimal.NewFromBigInt(native, -int32(decimals)).String()
}
