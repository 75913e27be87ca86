package dapp

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// ToWei converts a decimal amount string into base units.
func ToWei(amount string, decimals int) (*big.Int, error) {
	const (
		defaultDecimalBase  = 10
		defaultFloatBits    = 256
		defaultRoundingMode = big.ToNearestEven
		defaultScaleBase    = 10
	)

	amountFloat, _, err := big.ParseFloat(amount, defaultDecimalBase, defaultFloatBits, defaultRoundingMode)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token amount")
	}
	if amountFloat.Sign() < 0 {
		return nil, errors.Errorf("negative amount %q", amount)
	}

	if decimals > 0 {
		scale := new(big.Int).Exp(big.NewInt(defaultScaleBase), big.NewInt(int64(decimals)), nil)
		amountFloat.Mul(amountFloat, new(big.Float).SetInt(scale))
	}

	result := new(big.Int)
	amountFloat.Int(result)
	return result, nil
}

// FromWei renders base units as a decimal string without trailing zeros.
func FromWei(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	if decimals <= 0 {
		return value.String()
	}

	sign := ""
	v := new(big.Int).Set(value)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(v, scale, new(big.Int))
	if frac.Sign() == 0 {
		return sign + whole.String()
	}

	fracStr := frac.String()
	fracStr = strings.Repeat("0", decimals-len(fracStr)) + fracStr
	return sign + whole.String() + "." + strings.TrimRight(fracStr, "0")
}
