package utilities

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimalDigits bounds both the integer and the fractional part of any
// amount the service accepts. It matches the NUMERIC(78,0) amount columns.
const MaxDecimalDigits = 78

var (
	ErrDecimalSyntax = errors.New("not a decimal number")
	ErrDecimalRange  = errors.New("decimal out of range")
)

// ParseDecimal parses s and rejects values whose magnitude or precision
// exceeds MaxDecimalDigits. Exponent forms are accepted only while they stay
// inside that bound, so "1e999999999" never reaches big-integer arithmetic.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrDecimalSyntax
	}
	if len(s) > 2*MaxDecimalDigits+8 {
		return decimal.Zero, ErrDecimalRange
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrDecimalSyntax
	}
	if err := CheckDecimal(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckDecimal reports ErrDecimalRange when d has more than MaxDecimalDigits
// integer or fractional digits.
func CheckDecimal(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if exp < -MaxDecimalDigits || exp > MaxDecimalDigits {
		return ErrDecimalRange
	}
	if !d.IsZero() && int64(d.NumDigits())+exp > MaxDecimalDigits {
		return ErrDecimalRange
	}
	return nil
}
