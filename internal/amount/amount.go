// Package amount implements exact arithmetic and unit conversion over token
// base-unit quantities. Every value is a non-negative arbitrary-precision
// integer; floating point is never used for anything that feeds back into
// further arithmetic.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Decimals is the number of base-unit decimal places in one display unit
// (10^18 wei = 1 MOR).
const Decimals = 18

var (
	ErrInvalidNumericInput = errors.New("invalid numeric input")
	ErrDivisionByZero      = errors.New("division by zero")
)

// Amount is a non-negative quantity of base units. The zero value is 0.
// Amounts are immutable; every operation returns a new value.
type Amount struct {
	v *big.Int
}

// Zero returns the zero amount.
func Zero() Amount { return Amount{} }

// FromUint64 returns an Amount holding n.
func FromUint64(n uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(n)}
}

// FromBig copies b into a new Amount. Negative values are rejected.
func FromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Zero(), nil
	}
	if b.Sign() < 0 {
		return Zero(), fmt.Errorf("amount: %w: negative value %s", ErrInvalidNumericInput, b.String())
	}
	return Amount{v: new(big.Int).Set(b)}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and
// tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse reads a base-10 integer string of base units.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || !isDigits(s) {
		return Zero(), fmt.Errorf("amount: %w: %q is not a non-negative integer", ErrInvalidNumericInput, s)
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Zero(), fmt.Errorf("amount: %w: %q", ErrInvalidNumericInput, s)
	}
	return Amount{v: b}, nil
}

// Big returns a copy of the underlying integer.
func (a Amount) Big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) int() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.v == nil || a.v.Sign() == 0 }

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.int().Cmp(b.int()) }

// Equal reports whether a and b hold the same value.
func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

// String returns the base-10 representation in base units.
func (a Amount) String() string { return a.int().String() }

// MarshalText encodes the amount as a base-10 string so JSON never rounds
// it through a float.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts a base-10 integer string.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Multiply returns the exact product a*b.
func Multiply(a, b Amount) Amount {
	return Amount{v: new(big.Int).Mul(a.int(), b.int())}
}

// Divide returns floor(a/b). It fails with ErrDivisionByZero when b is 0.
func Divide(a, b Amount) (Amount, error) {
	if b.IsZero() {
		return Zero(), ErrDivisionByZero
	}
	// Quo truncates toward zero, which is floor for non-negative operands.
	return Amount{v: new(big.Int).Quo(a.int(), b.int())}, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
