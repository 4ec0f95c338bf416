// Package discount holds the building blocks shared by coupons and
// promotions: the discount kind variants, the pure calculator, scopes,
// schedules, and attachable eligibility conditions.
package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind is the closed set of discount kinds. Adding a kind means adding a
// variant type here and a case to Calculate, which the compiler will point
// out via the exhaustive type switch.
type Kind interface {
	// Type returns the wire/storage name of the kind.
	Type() string

	kind()
}

// Percentage discounts the order total by Value percent. When Cap is
// positive the computed amount never exceeds it.
type Percentage struct {
	Value decimal.Decimal
	Cap   decimal.Decimal
}

// Fixed subtracts a flat monetary Value, never exceeding the total being
// discounted.
type Fixed struct {
	Value decimal.Decimal
}

// BuyXGetY carries "buy X get Y" quantities. The engine stores and surfaces
// this variant but does not compute a monetary effect for it: unit-level
// resolution needs line items and belongs to the caller.
type BuyXGetY struct {
	BuyQuantity        int
	GetQuantity        int
	GetDiscountPercent decimal.Decimal
}

func (Percentage) kind() {}
func (Fixed) kind()      {}
func (BuyXGetY) kind()   {}

// Type implements Kind.
func (Percentage) Type() string { return "percentage" }

// Type implements Kind.
func (Fixed) Type() string { return "fixed" }

// Type implements Kind.
func (BuyXGetY) Type() string { return "bogo" }

// ValueOf returns the display value of a kind: the percentage for Percentage,
// the amount for Fixed, and the get-discount percent for BuyXGetY.
func ValueOf(k Kind) decimal.Decimal {
	switch v := k.(type) {
	case Percentage:
		return v.Value
	case Fixed:
		return v.Value
	case BuyXGetY:
		return v.GetDiscountPercent
	}
	return decimal.Zero
}

// ParseKind builds a Kind from its stored representation. maxDiscount only
// applies to percentage discounts; the buy/get fields only to bogo.
func ParseKind(
	discountType string,
	value, maxDiscount decimal.Decimal,
	buyQty, getQty int,
	getDiscountPercent decimal.Decimal,
) (Kind, error) {
	switch discountType {
	case "percentage":
		return Percentage{Value: value, Cap: maxDiscount}, nil
	case "fixed":
		return Fixed{Value: value}, nil
	case "bogo":
		return BuyXGetY{
			BuyQuantity:        buyQty,
			GetQuantity:        getQty,
			GetDiscountPercent: getDiscountPercent,
		}, nil
	default:
		return nil, errors.Errorf("unsupported discount type: %q", discountType)
	}
}
