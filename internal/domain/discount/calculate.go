package discount

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Calculate returns the discount amount for the given kind against orderTotal.
// A positive minimumPurchase below which the discount does not apply yields
// zero. The result is always within [0, orderTotal], rounded to 2 decimal
// places. Pure: no clock, no repository access.
func Calculate(k Kind, minimumPurchase, orderTotal decimal.Decimal) decimal.Decimal {
	if orderTotal.IsNegative() {
		return zero
	}
	if minimumPurchase.IsPositive() && orderTotal.LessThan(minimumPurchase) {
		return zero
	}

	var amount decimal.Decimal
	switch v := k.(type) {
	case Percentage:
		amount = orderTotal.Mul(v.Value).Div(hundred)
		if v.Cap.IsPositive() {
			amount = decimal.Min(amount, v.Cap)
		}
	case Fixed:
		amount = decimal.Min(v.Value, orderTotal)
	case BuyXGetY:
		// Data-carrying variant: monetary effect is resolved by callers
		// that know the order's line items.
		return zero
	default:
		return zero
	}

	amount = decimal.Min(amount, orderTotal)
	return floorAtZero(amount).Round(2)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
