// Package money holds a fixed-precision decimal amount, grounded on the
// teacher pack's integer-minor-units pattern so reported income never
// round-trips through a float.
package money

import (
	"fmt"
	"math/big"
	"strings"
)

// Amount is a fixed-precision decimal value stored as minor units
// (amount * 10^Scale) so arithmetic never touches a float.
type Amount struct {
	Minor    int64
	Scale    int
	Currency string
}

// ParseBRL parses a Brazilian-formatted decimal string (comma as the
// fractional separator, optional thousands dots) into a two-decimal BRL
// Amount. Empty input yields a zero Amount, not an error, since reported
// income is frequently absent in provider payloads.
func ParseBRL(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Amount{Scale: 2, Currency: "BRL"}, nil
	}
	raw = strings.ReplaceAll(raw, ".", "")
	raw = strings.ReplaceAll(raw, ",", ".")

	r, ok := new(big.Rat).SetString(raw)
	if !ok {
		return Amount{}, fmt.Errorf("parse BRL amount %q: not a decimal number", raw)
	}
	r.Mul(r, big.NewRat(100, 1))
	minor, rem := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	// Round half away from zero to whole cents.
	if rem.Lsh(rem.Abs(rem), 1).Cmp(r.Denom()) >= 0 {
		minor.Add(minor, big.NewInt(int64(r.Sign())))
	}
	return Amount{Minor: minor.Int64(), Scale: 2, Currency: "BRL"}, nil
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// MulRat multiplies the amount by a rational factor expressed as
// numerator/denominator over minor units, avoiding floating point.
func (a Amount) MulRat(numerator, denominator int64) Amount {
	return Amount{
		Minor:    a.Minor * numerator / denominator,
		Scale:    a.Scale,
		Currency: a.Currency,
	}
}

// String renders the amount using the decimal point convention (not the
// Brazilian comma), since this is the canonical stored representation.
func (a Amount) String() string {
	scale := int64(1)
	for i := 0; i < a.Scale; i++ {
		scale *= 10
	}
	whole := a.Minor / scale
	frac := a.Minor % scale
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%0*d", whole, a.Scale, frac)
}

// Float64 exposes the amount as a float purely for JSON/display purposes;
// never feed it back into arithmetic.
func (a Amount) Float64() float64 {
	scale := 1.0
	for i := 0; i < a.Scale; i++ {
		scale *= 10
	}
	return float64(a.Minor) / scale
}
