// Package engine implements the order discount orchestrator and the usage
// ledger. The orchestrator is pure apart from repository reads: callers own
// all writes via the Ledger, invoked after a sale commits.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/discount-engine/internal/domain/coupon"
	"github.com/xenking/discount-engine/internal/domain/discount"
	"github.com/xenking/discount-engine/internal/domain/promotion"
)

// Source identifies which entity kind produced a discount or usage record.
type Source string

const (
	SourceCoupon    Source = "coupon"
	SourcePromotion Source = "promotion"
)

// AppliedDiscount describes one discount that was applied to an order.
type AppliedDiscount struct {
	Source        Source
	SourceID      string
	SourceName    string
	DiscountType  string
	DiscountValue decimal.Decimal
	Amount        decimal.Decimal
	// AppliedTo is the total the amount was computed against: the original
	// total for the coupon, the running total for promotions.
	AppliedTo decimal.Decimal
}

// Result is the full applied-discount breakdown for an order. Ordinary
// ineligibility never aborts computation: it accumulates into Errors and
// the result stays complete and well-formed.
type Result struct {
	OriginalTotal   decimal.Decimal
	DiscountedTotal decimal.Decimal
	TotalDiscount   decimal.Decimal
	Applied         []AppliedDiscount
	Errors          []string
}

// ValidationResult is the outcome of checking a coupon code for an order.
type ValidationResult struct {
	Valid   bool
	Message string
	Coupon  *coupon.Coupon
}

// ComputeRequest carries the order facts the orchestrator evaluates against.
// All entities are fetched by the engine; the caller supplies only data.
type ComputeRequest struct {
	OrderTotal    decimal.Decimal
	CouponCode    string
	CustomerID    string
	CustomerGroup string
	FirstPurchase bool
	TotalQuantity int
	ProductIDs    []string
	CategoryIDs   []string
	AllowStacking bool
}

// UsageCounter provides the per-customer usage history read used by coupon
// eligibility.
type UsageCounter interface {
	// CountUses returns how many usage records exist for the given entity
	// and customer.
	CountUses(ctx context.Context, source Source, sourceID, customerID string) (int, error)
}

// Engine is the order discount orchestrator. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	coupons    coupon.Repository
	promotions promotion.Repository
	usage      UsageCounter

	now func() time.Time
}

// New creates an Engine with the given repositories.
func New(coupons coupon.Repository, promotions promotion.Repository, usage UsageCounter) *Engine {
	return &Engine{
		coupons:    coupons,
		promotions: promotions,
		usage:      usage,
		now:        time.Now,
	}
}

// Validate checks a coupon code against an order total and optional
// customer. An unknown code or failed eligibility check is reported in the
// result, not as an error; only repository failures return a non-nil error.
func (e *Engine) Validate(ctx context.Context, code string, orderTotal decimal.Decimal, customerID string) (*ValidationResult, error) {
	c, res, err := e.checkCoupon(ctx, code, orderTotal, discount.EvalContext{
		Now:        e.now(),
		OrderTotal: orderTotal,
	}, customerID)
	if err != nil {
		return nil, err
	}
	if res.Valid {
		res.Coupon = c
	}
	return res, nil
}

// checkCoupon looks up the code and runs the eligibility chain. The coupon
// is returned even when ineligible so callers can compute against it.
func (e *Engine) checkCoupon(
	ctx context.Context,
	code string,
	orderTotal decimal.Decimal,
	condCtx discount.EvalContext,
	customerID string,
) (*coupon.Coupon, *ValidationResult, error) {
	c, err := e.coupons.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			return nil, &ValidationResult{Valid: false, Message: "invalid coupon code"}, nil
		}
		return nil, nil, errors.Wrap(err, "lookup coupon")
	}

	customerUses := -1
	if customerID != "" && c.MaxUsesPerCustomer > 0 {
		customerUses, err = e.usage.CountUses(ctx, SourceCoupon, c.ID, customerID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "count customer uses")
		}
	}

	ok, reason := c.CanUse(e.now(), orderTotal, customerUses, condCtx)
	return c, &ValidationResult{Valid: ok, Message: reason}, nil
}

// Compute produces the full discount breakdown for an order.
//
// The coupon (when a code is supplied) is evaluated first, against the
// original total. If it applies and stacking is not allowed, the coupon wins
// exclusively and promotions are not considered. Otherwise active promotions
// are evaluated in descending priority order, each against the running
// total; iteration stops after the first non-stackable promotion applies.
func (e *Engine) Compute(ctx context.Context, req ComputeRequest) (*Result, error) {
	res := &Result{
		OriginalTotal: req.OrderTotal,
		TotalDiscount: decimal.Zero,
	}
	workingTotal := req.OrderTotal
	now := e.now()

	condCtx := discount.EvalContext{
		Now:           now,
		OrderTotal:    req.OrderTotal,
		TotalQuantity: req.TotalQuantity,
		CustomerGroup: req.CustomerGroup,
		FirstPurchase: req.FirstPurchase,
	}

	// Coupon phase: always computed against the original total.
	if req.CouponCode != "" {
		c, check, err := e.checkCoupon(ctx, req.CouponCode, req.OrderTotal, condCtx, req.CustomerID)
		if err != nil {
			return nil, err
		}
		switch {
		case !check.Valid:
			res.Errors = append(res.Errors, check.Message)
		default:
			amount := discount.Calculate(c.Kind, c.MinimumPurchase, req.OrderTotal)
			if amount.IsPositive() {
				res.Applied = append(res.Applied, AppliedDiscount{
					Source:        SourceCoupon,
					SourceID:      c.ID,
					SourceName:    c.Name,
					DiscountType:  c.Kind.Type(),
					DiscountValue: discount.ValueOf(c.Kind),
					Amount:        amount,
					AppliedTo:     req.OrderTotal,
				})
				res.TotalDiscount = res.TotalDiscount.Add(amount)
				workingTotal = workingTotal.Sub(amount)

				// Coupon wins exclusively unless stacking is allowed.
				if !req.AllowStacking {
					return finish(res, workingTotal), nil
				}
			}
		}
	}

	// Promotion phase: chain on the running total in priority order.
	promos, err := e.promotions.FindActive(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "find active promotions")
	}

	for _, p := range promos {
		if !p.CurrentlyValid(now) {
			continue
		}
		if p.MinimumPurchase.IsPositive() && workingTotal.LessThan(p.MinimumPurchase) {
			continue
		}
		if !p.AppliesTo(workingTotal, req.ProductIDs, req.CategoryIDs) {
			continue
		}
		if !discount.EvalConditions(p.Conditions, condCtx) {
			continue
		}
		if !req.AllowStacking && len(res.Applied) > 0 && !p.Stackable {
			continue
		}

		amount := discount.Calculate(p.Kind, p.MinimumPurchase, workingTotal)
		if !amount.IsPositive() {
			continue
		}

		res.Applied = append(res.Applied, AppliedDiscount{
			Source:        SourcePromotion,
			SourceID:      p.ID,
			SourceName:    p.Name,
			DiscountType:  p.Kind.Type(),
			DiscountValue: discount.ValueOf(p.Kind),
			Amount:        amount,
			AppliedTo:     workingTotal,
		})
		res.TotalDiscount = res.TotalDiscount.Add(amount)
		workingTotal = workingTotal.Sub(amount)

		// Only one non-stackable promotion may apply per order; iteration
		// stops entirely once it has, matching the priority-order semantics
		// of the stacking rules.
		if !p.Stackable {
			break
		}
	}

	return finish(res, workingTotal), nil
}

// finish clamps the discounted total at zero and rounds monetary fields.
func finish(res *Result, workingTotal decimal.Decimal) *Result {
	if workingTotal.IsNegative() {
		workingTotal = decimal.Zero
	}
	res.DiscountedTotal = workingTotal.Round(2)
	res.TotalDiscount = res.TotalDiscount.Round(2)
	return res
}
