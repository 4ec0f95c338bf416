package engine

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/discount-engine/internal/domain/coupon"
	"github.com/xenking/discount-engine/internal/domain/discount"
	"github.com/xenking/discount-engine/internal/domain/promotion"
)

type mockCouponRepo struct {
	coupons map[string]*coupon.Coupon
	err     error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

type mockPromotionRepo struct {
	promotions []*promotion.Promotion
	err        error
}

func (m *mockPromotionRepo) FindActive(_ context.Context, _ time.Time) ([]*promotion.Promotion, error) {
	return m.promotions, m.err
}

type mockUsageCounter struct {
	counts map[string]int
	err    error
}

func (m *mockUsageCounter) CountUses(_ context.Context, _ Source, sourceID, customerID string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[sourceID+"/"+customerID], nil
}

var fixedNow = time.Date(2025, 6, 16, 17, 0, 0, 0, time.UTC) // Monday 17:00

func newTestEngine(coupons *mockCouponRepo, promos *mockPromotionRepo, usage *mockUsageCounter) *Engine {
	if coupons == nil {
		coupons = &mockCouponRepo{}
	}
	if promos == nil {
		promos = &mockPromotionRepo{}
	}
	if usage == nil {
		usage = &mockUsageCounter{}
	}
	e := New(coupons, promos, usage)
	e.now = func() time.Time { return fixedNow }
	return e
}

func percentCoupon(code string, percent int64) *coupon.Coupon {
	return &coupon.Coupon{
		ID:     "c-" + code,
		Code:   code,
		Name:   code,
		Kind:   discount.Percentage{Value: decimal.NewFromInt(percent)},
		Scope:  discount.ScopeOrder,
		Active: true,
	}
}

func percentPromotion(id string, percent int64, priority int, stackable bool) *promotion.Promotion {
	return &promotion.Promotion{
		ID:         id,
		Name:       id,
		Kind:       discount.Percentage{Value: decimal.NewFromInt(percent)},
		Scope:      discount.ScopeOrder,
		ValidFrom:  fixedNow.Add(-24 * time.Hour),
		ValidUntil: fixedNow.Add(24 * time.Hour),
		Priority:   priority,
		Stackable:  stackable,
		Active:     true,
	}
}

func TestEngineValidate(t *testing.T) {
	t.Run("valid coupon", func(t *testing.T) {
		e := newTestEngine(&mockCouponRepo{
			coupons: map[string]*coupon.Coupon{"SAVE10": percentCoupon("SAVE10", 10)},
		}, nil, nil)

		res, err := e.Validate(context.Background(), "SAVE10", decimal.NewFromInt(100), "")
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, "coupon is valid", res.Message)
		require.NotNil(t, res.Coupon)
		assert.Equal(t, "SAVE10", res.Coupon.Code)
	})

	t.Run("code is trimmed before lookup", func(t *testing.T) {
		e := newTestEngine(&mockCouponRepo{
			coupons: map[string]*coupon.Coupon{"SAVE10": percentCoupon("SAVE10", 10)},
		}, nil, nil)

		res, err := e.Validate(context.Background(), "  SAVE10  ", decimal.NewFromInt(100), "")
		require.NoError(t, err)
		assert.True(t, res.Valid)
	})

	t.Run("unknown code", func(t *testing.T) {
		e := newTestEngine(nil, nil, nil)

		res, err := e.Validate(context.Background(), "BOGUS", decimal.NewFromInt(100), "")
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "invalid coupon code", res.Message)
		assert.Nil(t, res.Coupon)
	})

	t.Run("ineligible coupon keeps reason", func(t *testing.T) {
		c := percentCoupon("SAVE10", 10)
		c.MinimumPurchase = decimal.NewFromInt(200)
		e := newTestEngine(&mockCouponRepo{
			coupons: map[string]*coupon.Coupon{"SAVE10": c},
		}, nil, nil)

		res, err := e.Validate(context.Background(), "SAVE10", decimal.NewFromInt(100), "")
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "minimum purchase of 200.00 required", res.Message)
	})

	t.Run("per-customer limit consults the usage counter", func(t *testing.T) {
		c := percentCoupon("ONCE", 10)
		c.MaxUsesPerCustomer = 1
		e := newTestEngine(
			&mockCouponRepo{coupons: map[string]*coupon.Coupon{"ONCE": c}},
			nil,
			&mockUsageCounter{counts: map[string]int{"c-ONCE/cust-1": 1}},
		)

		res, err := e.Validate(context.Background(), "ONCE", decimal.NewFromInt(100), "cust-1")
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "you have already used this coupon", res.Message)

		res, err = e.Validate(context.Background(), "ONCE", decimal.NewFromInt(100), "cust-2")
		require.NoError(t, err)
		assert.True(t, res.Valid)
	})

	t.Run("repository failure surfaces as error", func(t *testing.T) {
		e := newTestEngine(&mockCouponRepo{err: errors.New("connection refused")}, nil, nil)

		_, err := e.Validate(context.Background(), "SAVE10", decimal.NewFromInt(100), "")
		assert.Error(t, err)
	})
}

func TestEngineCompute(t *testing.T) {
	t.Run("coupon only", func(t *testing.T) {
		e := newTestEngine(&mockCouponRepo{
			coupons: map[string]*coupon.Coupon{"SAVE10": percentCoupon("SAVE10", 10)},
		}, nil, nil)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal: decimal.NewFromInt(100),
			CouponCode: "SAVE10",
		})
		require.NoError(t, err)

		require.Len(t, res.Applied, 1)
		assert.Equal(t, SourceCoupon, res.Applied[0].Source)
		assert.True(t, decimal.NewFromInt(10).Equal(res.Applied[0].Amount))
		assert.True(t, decimal.NewFromInt(90).Equal(res.DiscountedTotal))
		assert.True(t, decimal.NewFromInt(10).Equal(res.TotalDiscount))
		assert.Empty(t, res.Errors)
	})

	t.Run("applied coupon wins exclusively without stacking", func(t *testing.T) {
		e := newTestEngine(
			&mockCouponRepo{coupons: map[string]*coupon.Coupon{"SAVE10": percentCoupon("SAVE10", 10)}},
			&mockPromotionRepo{promotions: []*promotion.Promotion{
				percentPromotion("p-20", 20, 50, false),
			}},
			nil,
		)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal:    decimal.NewFromInt(100),
			CouponCode:    "SAVE10",
			AllowStacking: false,
		})
		require.NoError(t, err)

		require.Len(t, res.Applied, 1, "eligible promotion must not apply")
		assert.Equal(t, SourceCoupon, res.Applied[0].Source)
		assert.True(t, decimal.NewFromInt(90).Equal(res.DiscountedTotal))
	})

	t.Run("stacking chains promotions on the running total", func(t *testing.T) {
		e := newTestEngine(
			&mockCouponRepo{coupons: map[string]*coupon.Coupon{"SAVE10": percentCoupon("SAVE10", 10)}},
			&mockPromotionRepo{promotions: []*promotion.Promotion{
				percentPromotion("p-20", 20, 50, true),
			}},
			nil,
		)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal:    decimal.NewFromInt(100),
			CouponCode:    "SAVE10",
			AllowStacking: true,
		})
		require.NoError(t, err)

		require.Len(t, res.Applied, 2)
		// Coupon: 10% of 100. Promotion: 20% of the remaining 90.
		assert.True(t, decimal.NewFromInt(10).Equal(res.Applied[0].Amount))
		assert.True(t, decimal.NewFromInt(18).Equal(res.Applied[1].Amount))
		assert.True(t, decimal.NewFromInt(90).Equal(res.Applied[1].AppliedTo))
		assert.True(t, decimal.NewFromInt(72).Equal(res.DiscountedTotal))
		assert.True(t, decimal.NewFromInt(28).Equal(res.TotalDiscount))
	})

	t.Run("non-stackable promotion stops the chain", func(t *testing.T) {
		e := newTestEngine(nil, &mockPromotionRepo{promotions: []*promotion.Promotion{
			percentPromotion("p-20", 20, 50, false),
			percentPromotion("p-5", 5, 10, true),
		}}, nil)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal: decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		require.Len(t, res.Applied, 1, "chain stops after the non-stackable winner")
		assert.Equal(t, "p-20", res.Applied[0].SourceID)
		assert.True(t, decimal.NewFromInt(80).Equal(res.DiscountedTotal))
	})

	t.Run("stackable promotions chain in priority order", func(t *testing.T) {
		e := newTestEngine(nil, &mockPromotionRepo{promotions: []*promotion.Promotion{
			percentPromotion("p-20", 20, 50, true),
			percentPromotion("p-5", 5, 10, true),
		}}, nil)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal: decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		require.Len(t, res.Applied, 2)
		assert.True(t, decimal.NewFromInt(20).Equal(res.Applied[0].Amount))
		assert.True(t, decimal.NewFromInt(4).Equal(res.Applied[1].Amount), "5 percent of the remaining 80")
		assert.True(t, decimal.NewFromInt(76).Equal(res.DiscountedTotal))
	})

	t.Run("non-stackable promotion skipped after stackable coupon applied", func(t *testing.T) {
		c := percentCoupon("SAVE10", 10)
		e := newTestEngine(
			&mockCouponRepo{coupons: map[string]*coupon.Coupon{"SAVE10": c}},
			&mockPromotionRepo{promotions: []*promotion.Promotion{
				percentPromotion("p-exclusive", 20, 50, false),
				percentPromotion("p-stackable", 5, 10, true),
			}},
			nil,
		)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal:    decimal.NewFromInt(100),
			CouponCode:    "SAVE10",
			AllowStacking: true,
		})
		require.NoError(t, err)

		// With stacking allowed everything applies; the non-stackable
		// promotion still ends the chain, but here it is first by priority.
		require.Len(t, res.Applied, 2)
		assert.Equal(t, "p-exclusive", res.Applied[1].SourceID)
	})

	t.Run("invalid code records error and promotions still apply", func(t *testing.T) {
		e := newTestEngine(nil, &mockPromotionRepo{promotions: []*promotion.Promotion{
			percentPromotion("p-20", 20, 50, false),
		}}, nil)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal: decimal.NewFromInt(100),
			CouponCode: "BOGUS",
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"invalid coupon code"}, res.Errors)
		require.Len(t, res.Applied, 1)
		assert.Equal(t, SourcePromotion, res.Applied[0].Source)
		assert.True(t, decimal.NewFromInt(80).Equal(res.DiscountedTotal))
	})

	t.Run("schedule-gated promotion is silently skipped", func(t *testing.T) {
		weekend := percentPromotion("p-weekend", 30, 50, false)
		weekend.DaysOfWeek = []int{5, 6} // fixedNow is a Monday
		e := newTestEngine(nil, &mockPromotionRepo{promotions: []*promotion.Promotion{weekend}}, nil)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal: decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		assert.Empty(t, res.Applied)
		assert.Empty(t, res.Errors)
		assert.True(t, decimal.NewFromInt(100).Equal(res.DiscountedTotal))
	})

	t.Run("promotion below minimum purchase is skipped", func(t *testing.T) {
		p := percentPromotion("p-min", 20, 50, false)
		p.MinimumPurchase = decimal.NewFromInt(200)
		e := newTestEngine(nil, &mockPromotionRepo{promotions: []*promotion.Promotion{p}}, nil)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal: decimal.NewFromInt(100),
		})
		require.NoError(t, err)
		assert.Empty(t, res.Applied)
	})

	t.Run("promotion with failing condition is skipped", func(t *testing.T) {
		p := percentPromotion("p-vip", 20, 50, false)
		p.Conditions = []discount.Condition{
			{Kind: discount.ConditionCustomerGroup, Value: "vip", Inclusive: true},
		}
		e := newTestEngine(nil, &mockPromotionRepo{promotions: []*promotion.Promotion{p}}, nil)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal:    decimal.NewFromInt(100),
			CustomerGroup: "regular",
		})
		require.NoError(t, err)
		assert.Empty(t, res.Applied)

		res, err = e.Compute(context.Background(), ComputeRequest{
			OrderTotal:    decimal.NewFromInt(100),
			CustomerGroup: "vip",
		})
		require.NoError(t, err)
		assert.Len(t, res.Applied, 1)
	})

	t.Run("discounted total never goes negative", func(t *testing.T) {
		c := &coupon.Coupon{
			ID: "c-big", Code: "BIG", Name: "BIG",
			Kind:   discount.Fixed{Value: decimal.NewFromInt(500)},
			Scope:  discount.ScopeOrder,
			Active: true,
		}
		e := newTestEngine(&mockCouponRepo{coupons: map[string]*coupon.Coupon{"BIG": c}}, nil, nil)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal: decimal.NewFromInt(50),
			CouponCode: "BIG",
		})
		require.NoError(t, err)

		assert.True(t, res.DiscountedTotal.Equal(decimal.Zero))
		assert.True(t, decimal.NewFromInt(50).Equal(res.TotalDiscount))
	})

	t.Run("no code and no promotions", func(t *testing.T) {
		e := newTestEngine(nil, nil, nil)

		res, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal: decimal.NewFromInt(42),
		})
		require.NoError(t, err)

		assert.Empty(t, res.Applied)
		assert.Empty(t, res.Errors)
		assert.True(t, decimal.NewFromInt(42).Equal(res.DiscountedTotal))
		assert.True(t, res.TotalDiscount.Equal(decimal.Zero))
	})

	t.Run("promotion repository failure surfaces as error", func(t *testing.T) {
		e := newTestEngine(nil, &mockPromotionRepo{err: errors.New("connection refused")}, nil)

		_, err := e.Compute(context.Background(), ComputeRequest{
			OrderTotal: decimal.NewFromInt(100),
		})
		assert.Error(t, err)
	})
}
