package discount

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConditionKind enumerates the built-in condition predicates.
type ConditionKind string

const (
	// ConditionMinQuantity requires the order to contain at least N items.
	// Value: integer.
	ConditionMinQuantity ConditionKind = "min_quantity"
	// ConditionMinAmount requires the order total to reach an amount.
	// Value: decimal.
	ConditionMinAmount ConditionKind = "min_amount"
	// ConditionCustomerGroup requires the customer to belong to a group.
	// Value: group name, matched case-insensitively.
	ConditionCustomerGroup ConditionKind = "customer_group"
	// ConditionFirstPurchase requires this to be the customer's first
	// purchase. Value: unused.
	ConditionFirstPurchase ConditionKind = "first_purchase"
	// ConditionDayOfWeek requires the evaluation day to be in an allow-set.
	// Value: comma-separated days, 0=Monday.
	ConditionDayOfWeek ConditionKind = "day_of_week"
	// ConditionTimeOfDay requires the wall-clock time to fall in a window.
	// Value: "HH:MM-HH:MM".
	ConditionTimeOfDay ConditionKind = "time_of_day"
)

// Condition is an extra eligibility rule attached to a coupon or promotion.
// When Inclusive is true the condition must match for the discount to apply;
// when false a match denies it.
type Condition struct {
	ID        string
	Kind      ConditionKind
	Value     string
	Inclusive bool
}

// EvalContext carries the order and customer facts conditions are checked
// against. The clock value comes from the caller so evaluation stays pure.
type EvalContext struct {
	Now           time.Time
	OrderTotal    decimal.Decimal
	TotalQuantity int
	CustomerGroup string
	FirstPurchase bool
}

// Matches reports whether the condition's predicate holds for ctx, before
// the Inclusive flag is taken into account. Unparseable payloads fail
// closed: they never match.
func (c Condition) Matches(ctx EvalContext) bool {
	switch c.Kind {
	case ConditionMinQuantity:
		n, err := strconv.Atoi(strings.TrimSpace(c.Value))
		return err == nil && ctx.TotalQuantity >= n
	case ConditionMinAmount:
		amount, err := decimal.NewFromString(strings.TrimSpace(c.Value))
		return err == nil && ctx.OrderTotal.GreaterThanOrEqual(amount)
	case ConditionCustomerGroup:
		return ctx.CustomerGroup != "" &&
			strings.EqualFold(strings.TrimSpace(c.Value), ctx.CustomerGroup)
	case ConditionFirstPurchase:
		return ctx.FirstPurchase
	case ConditionDayOfWeek:
		days, err := ParseDays(c.Value)
		if err != nil || len(days) == 0 {
			return false
		}
		today := Weekday(ctx.Now)
		for _, d := range days {
			if d == today {
				return true
			}
		}
		return false
	case ConditionTimeOfDay:
		from, until, ok := strings.Cut(c.Value, "-")
		if !ok {
			return false
		}
		start, err := ParseTimeOfDay(strings.TrimSpace(from))
		if err != nil {
			return false
		}
		end, err := ParseTimeOfDay(strings.TrimSpace(until))
		if err != nil {
			return false
		}
		minutes := MinutesOfDay(ctx.Now)
		return minutes >= start.Minutes() && minutes <= end.Minutes()
	}
	return false
}

// EvalConditions reports whether every condition grants eligibility: an
// inclusive condition must match, an exclusive one must not (AND semantics).
func EvalConditions(conds []Condition, ctx EvalContext) bool {
	for _, c := range conds {
		if c.Matches(ctx) != c.Inclusive {
			return false
		}
	}
	return true
}
