package discount

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConditionMatches(t *testing.T) {
	// Monday 2025-06-16, 17:30 local.
	now := time.Date(2025, 6, 16, 17, 30, 0, 0, time.UTC)

	ctx := EvalContext{
		Now:           now,
		OrderTotal:    decimal.NewFromInt(120),
		TotalQuantity: 3,
		CustomerGroup: "vip",
		FirstPurchase: true,
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{
			name: "min quantity met",
			cond: Condition{Kind: ConditionMinQuantity, Value: "3"},
			want: true,
		},
		{
			name: "min quantity not met",
			cond: Condition{Kind: ConditionMinQuantity, Value: "4"},
			want: false,
		},
		{
			name: "min quantity garbage payload fails closed",
			cond: Condition{Kind: ConditionMinQuantity, Value: "three"},
			want: false,
		},
		{
			name: "min amount met",
			cond: Condition{Kind: ConditionMinAmount, Value: "120.00"},
			want: true,
		},
		{
			name: "min amount not met",
			cond: Condition{Kind: ConditionMinAmount, Value: "120.01"},
			want: false,
		},
		{
			name: "customer group case-insensitive match",
			cond: Condition{Kind: ConditionCustomerGroup, Value: "VIP"},
			want: true,
		},
		{
			name: "customer group mismatch",
			cond: Condition{Kind: ConditionCustomerGroup, Value: "staff"},
			want: false,
		},
		{
			name: "first purchase",
			cond: Condition{Kind: ConditionFirstPurchase},
			want: true,
		},
		{
			name: "day of week includes monday",
			cond: Condition{Kind: ConditionDayOfWeek, Value: "0,4,5"},
			want: true,
		},
		{
			name: "day of week excludes monday",
			cond: Condition{Kind: ConditionDayOfWeek, Value: "5,6"},
			want: false,
		},
		{
			name: "day of week bad payload fails closed",
			cond: Condition{Kind: ConditionDayOfWeek, Value: "mon,tue"},
			want: false,
		},
		{
			name: "time of day inside window",
			cond: Condition{Kind: ConditionTimeOfDay, Value: "16:00-18:00"},
			want: true,
		},
		{
			name: "time of day boundary is inclusive",
			cond: Condition{Kind: ConditionTimeOfDay, Value: "17:30-18:00"},
			want: true,
		},
		{
			name: "time of day outside window",
			cond: Condition{Kind: ConditionTimeOfDay, Value: "09:00-12:00"},
			want: false,
		},
		{
			name: "time of day bad payload fails closed",
			cond: Condition{Kind: ConditionTimeOfDay, Value: "late-evening"},
			want: false,
		},
		{
			name: "unknown kind fails closed",
			cond: Condition{Kind: "loyalty_tier", Value: "gold"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Matches(ctx))
		})
	}
}

func TestEvalConditions(t *testing.T) {
	now := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	ctx := EvalContext{
		Now:           now,
		OrderTotal:    decimal.NewFromInt(50),
		TotalQuantity: 2,
		CustomerGroup: "staff",
	}

	t.Run("empty set grants", func(t *testing.T) {
		assert.True(t, EvalConditions(nil, ctx))
	})

	t.Run("all inclusive must match", func(t *testing.T) {
		conds := []Condition{
			{Kind: ConditionMinQuantity, Value: "2", Inclusive: true},
			{Kind: ConditionMinAmount, Value: "100", Inclusive: true},
		}
		assert.False(t, EvalConditions(conds, ctx))
	})

	t.Run("exclusive condition denies on match", func(t *testing.T) {
		conds := []Condition{
			{Kind: ConditionCustomerGroup, Value: "staff", Inclusive: false},
		}
		assert.False(t, EvalConditions(conds, ctx))
	})

	t.Run("exclusive condition grants on mismatch", func(t *testing.T) {
		conds := []Condition{
			{Kind: ConditionCustomerGroup, Value: "wholesale", Inclusive: false},
		}
		assert.True(t, EvalConditions(conds, ctx))
	})

	t.Run("mixed set is AND semantics", func(t *testing.T) {
		conds := []Condition{
			{Kind: ConditionMinQuantity, Value: "2", Inclusive: true},
			{Kind: ConditionFirstPurchase, Inclusive: false},
		}
		assert.True(t, EvalConditions(conds, ctx))
	})
}
