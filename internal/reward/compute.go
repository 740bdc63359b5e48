package reward

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

// RewardRate is the number of points awarded per whole unit transferred.
const RewardRate = 100

// Compute returns floor(metadata["amount"] * RewardRate). A missing,
// non-numeric or non-positive amount earns nothing. An amount whose reward
// does not fit in an int64 yields utilities.ErrDecimalRange.
func Compute(metadata map[string]any) (int64, error) {
	amount, err := amountOf(metadata)
	if err != nil {
		if errors.Is(err, utilities.ErrDecimalRange) {
			return 0, err
		}
		return 0, nil
	}
	if !amount.IsPositive() {
		return 0, nil
	}
	points := amount.Mul(decimal.NewFromInt(RewardRate)).Floor().BigInt()
	if !points.IsInt64() {
		return 0, utilities.ErrDecimalRange
	}
	return points.Int64(), nil
}

func amountOf(metadata map[string]any) (decimal.Decimal, error) {
	raw, ok := metadata["amount"]
	if !ok || raw == nil {
		return decimal.Zero, utilities.ErrDecimalSyntax
	}
	var d decimal.Decimal
	switch v := raw.(type) {
	case string:
		return utilities.ParseDecimal(v)
	case json.Number:
		return utilities.ParseDecimal(v.String())
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	default:
		return decimal.Zero, utilities.ErrDecimalSyntax
	}
	return d, utilities.CheckDecimal(d)
}

// applyOverride replaces the provider's reward figure with the local one,
// creating the data object when the provider omitted it.
func applyOverride(payload map[string]any, reward int64) {
	data, ok := payload["data"].(map[string]any)
	if !ok {
		data = map[string]any{}
		payload["data"] = data
	}
	data["token_amount"] = reward
}
