// Package coupon defines the code-addressable discount entity and its
// eligibility rules.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/discount-engine/internal/domain/discount"
)

// ErrNotFound is returned when no coupon exists for a given code.
var ErrNotFound = errors.New("coupon not found")

// Coupon is a named, limited-use, code-addressable discount rule. Codes are
// unique and matched case-insensitively.
type Coupon struct {
	ID          string
	Code        string
	Name        string
	Description string

	Kind            discount.Kind
	Scope           discount.Scope
	MinimumPurchase decimal.Decimal // zero = no minimum

	MaxUses            int // 0 = unlimited
	MaxUsesPerCustomer int // 0 = unlimited
	CurrentUses        int // monotonic, advanced only by the usage ledger

	ValidFrom  time.Time
	ValidUntil *time.Time // nil = open-ended

	Active    bool
	Priority  int
	Stackable bool

	ProductIDs  []string
	CategoryIDs []string
	Conditions  []discount.Condition

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemainingUses returns how many uses are left, or nil when unlimited.
func (c *Coupon) RemainingUses() *int {
	if c.MaxUses == 0 {
		return nil
	}
	left := c.MaxUses - c.CurrentUses
	if left < 0 {
		left = 0
	}
	return &left
}

// CanUse runs the ordered eligibility chain against the caller-supplied
// clock, order total, per-customer usage count, and condition context. It
// short-circuits at the first failing check and reports a human-readable
// reason. Pass customerUses < 0 when the customer is unknown to skip the
// per-customer check. Window boundaries are inclusive on both ends.
func (c *Coupon) CanUse(
	now time.Time,
	orderTotal decimal.Decimal,
	customerUses int,
	condCtx discount.EvalContext,
) (bool, string) {
	if !c.Active {
		return false, "coupon is not active"
	}
	if now.Before(c.ValidFrom) {
		return false, "coupon is not yet valid"
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false, "coupon has expired"
	}
	if c.MaxUses > 0 && c.CurrentUses >= c.MaxUses {
		return false, "coupon usage limit reached"
	}
	if c.MinimumPurchase.IsPositive() && orderTotal.LessThan(c.MinimumPurchase) {
		return false, fmt.Sprintf("minimum purchase of %s required", c.MinimumPurchase.StringFixed(2))
	}
	if customerUses >= 0 && c.MaxUsesPerCustomer > 0 && customerUses >= c.MaxUsesPerCustomer {
		return false, "you have already used this coupon"
	}
	if !discount.EvalConditions(c.Conditions, condCtx) {
		return false, "coupon conditions not met"
	}
	return true, "coupon is valid"
}

// Status derives the display state for now, checked in priority order:
// inactive, exhausted, scheduled, expired, active.
func (c *Coupon) Status(now time.Time) discount.Status {
	switch {
	case !c.Active:
		return discount.StatusInactive
	case c.MaxUses > 0 && c.CurrentUses >= c.MaxUses:
		return discount.StatusExhausted
	case now.Before(c.ValidFrom):
		return discount.StatusScheduled
	case c.ValidUntil != nil && now.After(*c.ValidUntil):
		return discount.StatusExpired
	default:
		return discount.StatusActive
	}
}

// Repository provides read access to coupon records. Implementations match
// codes case-insensitively and return the coupon with its scope membership
// sets and conditions materialized.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}
