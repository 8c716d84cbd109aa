package numeric

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// RatioScale is the number of fractional digits kept by SafeDiv.
const RatioScale = 18

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
	ten  = decimal.NewFromInt(10)
)

// ExponentFor returns 10^decimals, built by multiplying one by ten decimals times.
func ExponentFor(decimals uint8) decimal.Decimal {
	bd := One
	for i := uint8(0); i < decimals; i++ {
		bd = bd.Mul(ten)
	}
	return bd
}

// ToDecimal converts a raw token amount into display units.
// A token with zero decimals is returned unscaled.
func ToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return Zero
	}
	if decimals == 0 {
		return decimal.NewFromBigInt(amount, 0)
	}
	// NewFromBigInt with a negative exponent is an exact division by 10^decimals.
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// ConvertEthToDecimal converts a wei-denominated amount using 18 decimals.
func ConvertEthToDecimal(amount *big.Int) decimal.Decimal {
	return ToDecimal(amount, 18)
}

// IsZero compares by value, so 0 and 0.000 are both zero.
func IsZero(value decimal.Decimal) bool {
	return value.Cmp(Zero) == 0
}

// SafeDiv returns a/b rounded to RatioScale digits, or zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if IsZero(b) {
		return Zero
	}
	return a.DivRound(b, RatioScale)
}

// ParseBigInt parses a base-10 integer string; empty input is zero.
func ParseBigInt(value string) (*big.Int, bool) {
	if value == "" {
		return big.NewInt(0), true
	}
	return new(big.Int).SetString(value, 10)
}
