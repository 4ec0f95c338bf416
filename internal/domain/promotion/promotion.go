// Package promotion defines the schedule-gated, code-less discount entity.
// Promotions are discovered by scanning the active set, never entered by the
// customer, so their eligibility failures are silent: they filter the
// candidate list instead of producing user-facing errors.
package promotion

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/discount-engine/internal/domain/discount"
)

// Promotion is an automatically applied discount gated by a mandatory date
// window, an optional day-of-week allow-set, and an optional daily
// time-of-day window.
type Promotion struct {
	ID          string
	Name        string
	Description string

	Kind            discount.Kind
	Scope           discount.Scope
	MinimumPurchase decimal.Decimal // zero = no minimum

	ValidFrom  time.Time
	ValidUntil time.Time

	DaysOfWeek []int               // 0=Monday..6=Sunday; empty = every day
	StartTime  *discount.TimeOfDay // nil = from midnight
	EndTime    *discount.TimeOfDay // nil = until end of day

	Priority  int // 0..100, higher applies first
	Stackable bool
	Active    bool

	ProductIDs  []string
	CategoryIDs []string
	Conditions  []discount.Condition

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentlyValid reports whether the promotion may apply at now: active
// flag, date window (boundary-inclusive), day-of-week allow-set, and daily
// time window.
func (p *Promotion) CurrentlyValid(now time.Time) bool {
	if !p.Active {
		return false
	}
	if now.Before(p.ValidFrom) || now.After(p.ValidUntil) {
		return false
	}

	if len(p.DaysOfWeek) > 0 {
		today := discount.Weekday(now)
		allowed := false
		for _, d := range p.DaysOfWeek {
			if d == today {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	minutes := discount.MinutesOfDay(now)
	if p.StartTime != nil && minutes < p.StartTime.Minutes() {
		return false
	}
	if p.EndTime != nil && minutes > p.EndTime.Minutes() {
		return false
	}
	return true
}

// AppliesTo reports whether the promotion's scope matches the order
// contents. workingTotal is the running total after earlier discounts,
// which is what minimum-purchase scoping is checked against.
func (p *Promotion) AppliesTo(workingTotal decimal.Decimal, productIDs, categoryIDs []string) bool {
	switch p.Scope {
	case discount.ScopeOrder:
		return true
	case discount.ScopeProducts:
		return discount.Intersects(p.ProductIDs, productIDs)
	case discount.ScopeCategories:
		return discount.Intersects(p.CategoryIDs, categoryIDs)
	case discount.ScopeMinimum:
		return !p.MinimumPurchase.IsPositive() || workingTotal.GreaterThanOrEqual(p.MinimumPurchase)
	}
	return false
}

// Status derives the display state for now: inactive, scheduled, expired,
// or active. Promotions have no usage counter, so no exhausted state.
func (p *Promotion) Status(now time.Time) discount.Status {
	switch {
	case !p.Active:
		return discount.StatusInactive
	case now.Before(p.ValidFrom):
		return discount.StatusScheduled
	case now.After(p.ValidUntil):
		return discount.StatusExpired
	default:
		return discount.StatusActive
	}
}

// Repository provides read access to promotion records.
type Repository interface {
	// FindActive returns active promotions whose date window contains now,
	// ordered by descending priority, with membership sets and conditions
	// materialized. Day-of-week and time-of-day gating is NOT applied here;
	// the engine checks it via CurrentlyValid.
	FindActive(ctx context.Context, now time.Time) ([]*Promotion, error)
}
