package paymentrequest

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

// BaseUnitDecimals is the number of decimal places between one unit of the
// payment asset and its smallest indivisible unit (1 unit = 10^8 octas).
const BaseUnitDecimals = 8

// ToBaseUnits converts a human decimal amount ("0.01") into an integer string
// of base units. Fractions of a base unit are floored, never rounded up.
func ToBaseUnits(human string) (string, error) {
	d, err := utilities.ParseDecimal(human)
	switch {
	case errors.Is(err, utilities.ErrDecimalRange):
		return "", apperr.InvalidInput("amount is out of range")
	case err != nil:
		return "", apperr.InvalidInput("amount must be a decimal number")
	case d.IsNegative():
		return "", apperr.InvalidInput("amount must not be negative")
	}
	units := d.Shift(BaseUnitDecimals).Floor().BigInt().String()
	if len(units) > utilities.MaxDecimalDigits {
		return "", apperr.InvalidInput("amount is out of range")
	}
	return units, nil
}

// ParseBaseUnits validates a pre-converted base-unit amount and returns it
// without leading zeros.
func ParseBaseUnits(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperr.InvalidInput("amount must be a non-negative integer")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", apperr.InvalidInput("amount must be a non-negative integer")
		}
	}
	if len(strings.TrimLeft(s, "0")) > utilities.MaxDecimalDigits {
		return "", apperr.InvalidInput("amount is out of range")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return "", apperr.InvalidInput("amount must be a non-negative integer")
	}
	return n.String(), nil
}
