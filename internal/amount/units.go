package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit names the denomination a user typed an amount in.
type Unit string

const (
	UnitWei Unit = "wei"
	UnitMOR Unit = "MOR"
)

// gweiDecimals is the base-unit exponent of one gwei.
const gweiDecimals = 9

var (
	oneMOR  = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	oneGwei = new(big.Int).Exp(big.NewInt(10), big.NewInt(gweiDecimals), nil)
)

// ParseUnit maps a case-insensitive unit name to a Unit. An empty name means
// wei.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wei":
		return UnitWei, nil
	case "mor":
		return UnitMOR, nil
	default:
		return "", fmt.Errorf("amount: %w: unknown unit %q", ErrInvalidNumericInput, s)
	}
}

// ParseInput converts user input in the given unit to base units. Wei input
// must be an integer; MOR input may carry up to 18 fractional digits.
func ParseInput(s string, unit Unit) (Amount, error) {
	switch unit {
	case UnitMOR:
		return FromDisplayUnits(s, Decimals)
	case UnitWei, "":
		return Parse(s)
	default:
		return Zero(), fmt.Errorf("amount: %w: unknown unit %q", ErrInvalidNumericInput, unit)
	}
}

// ToDisplayUnits scales a down by 10^decimals and renders the exact result
// as a decimal numeral. The fractional part keeps at least one digit
// ("1.0") and drops trailing zeros ("1.5", not "1.500").
func ToDisplayUnits(a Amount, decimals uint) string {
	digits := a.String()
	if decimals == 0 {
		return digits
	}
	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	whole := digits[:len(digits)-d]
	frac := strings.TrimRight(digits[len(digits)-d:], "0")
	if frac == "" {
		frac = "0"
	}
	return whole + "." + frac
}

// FromDisplayUnits parses a non-negative decimal numeral and scales it up by
// 10^decimals. A trailing dot ("1.") reads as the whole number. Input with
// more significant fractional digits than decimals cannot be represented
// exactly and is rejected.
func FromDisplayUnits(s string, decimals uint) (Amount, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return Zero(), fmt.Errorf("amount: %w: empty input", ErrInvalidNumericInput)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return Zero(), fmt.Errorf("amount: %w: %q is not a non-negative decimal", ErrInvalidNumericInput, s)
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > int(decimals) {
		return Zero(), fmt.Errorf("amount: %w: %q has more than %d fractional digits", ErrInvalidNumericInput, s, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	return Parse(whole + frac + strings.Repeat("0", int(decimals)-len(frac)))
}

// RoundDisplay renders a in display units rounded to the given number of
// decimal places. It is a presentation helper only.
func RoundDisplay(a Amount, places int32) string {
	return decimal.NewFromBigInt(a.Big(), -Decimals).StringFixed(places)
}

// FormatWei picks the largest readable denomination: MOR for at least one
// token, GWEI for at least one gwei, WEI otherwise.
func FormatWei(a Amount) string {
	v := a.int()
	switch {
	case v.Cmp(oneMOR) >= 0:
		return ToDisplayUnits(a, Decimals) + " MOR"
	case v.Cmp(oneGwei) >= 0:
		return ToDisplayUnits(a, gweiDecimals) + " GWEI"
	default:
		return v.String() + " WEI"
	}
}

// FormatDuration renders a number of seconds as "N seconds",
// "M minutes S seconds" or "H hours M minutes".
func FormatDuration(seconds Amount) string {
	secs := seconds.int()
	minute := big.NewInt(60)
	hour := big.NewInt(3600)

	switch {
	case secs.Cmp(minute) < 0:
		return plural(secs, "second")
	case secs.Cmp(hour) < 0:
		mins, rem := new(big.Int).QuoRem(secs, minute, new(big.Int))
		out := plural(mins, "minute")
		if rem.Sign() > 0 {
			out += " " + plural(rem, "second")
		}
		return out
	default:
		hours, rem := new(big.Int).QuoRem(secs, hour, new(big.Int))
		mins := new(big.Int).Quo(rem, minute)
		out := plural(hours, "hour")
		if mins.Sign() > 0 {
			out += " " + plural(mins, "minute")
		}
		return out
	}
}

func plural(n *big.Int, word string) string {
	if n.IsInt64() && n.Int64() == 1 {
		return "1 " + word
	}
	return n.String() + " " + word + "s"
}
