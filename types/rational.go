package types

import (
	"fmt"
	"math/big"
)

// Rational is a 0..1 ratio represented as Numerator/Denominator, used for a
// validator's commission_rate and the protocol's burn/treasury fractions.
type Rational struct {
	Numerator   int64 `json:"numerator"`
	Denominator int64 `json:"denominator"`
}

// NewRational builds a Rational, panicking on a non-positive denominator or
// a ratio outside [0, 1] -- both are programmer errors at construction time
// (genesis parsing, config loading), not runtime conditions.
func NewRational(num, den int64) Rational {
	if den <= 0 {
		panic(fmt.Sprintf("rational: non-positive denominator %d", den))
	}
	if num < 0 || num > den {
		panic(fmt.Sprintf("rational: %d/%d is outside [0,1]", num, den))
	}
	return Rational{Numerator: num, Denominator: den}
}

// MulInt64 returns floor(x * r).
func (r Rational) MulInt64(x int64) int64 {
	return (x * r.Numerator) / r.Denominator
}

// MulBig returns floor(x * r) for an arbitrary-precision x, used for
// reward/fee splits over *big.Int balances.
func (r Rational) MulBig(x *big.Int) *big.Int {
	out := new(big.Int).Mul(x, big.NewInt(r.Numerator))
	return out.Div(out, big.NewInt(r.Denominator))
}

// Complement returns 1 - r.
func (r Rational) Complement() Rational {
	return Rational{Numerator: r.Denominator - r.Numerator, Denominator: r.Denominator}
}
