package engine

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUsageLimitRace is returned when a concurrent usage recording exhausted
// the coupon's limit first. Distinct from ordinary ineligibility so callers
// can tell the customer the coupon just ran out rather than never existed.
var ErrUsageLimitRace = errors.New("coupon usage limit exceeded")

// UsageRecord is an immutable, append-only fact that a discount was consumed
// by a completed sale.
type UsageRecord struct {
	ID         string
	Source     Source
	SourceID   string
	CustomerID string // empty = anonymous
	SaleID     string // empty = not linked to a sale
	Amount     decimal.Decimal
	OrderTotal decimal.Decimal // pre-discount
	UsedAt     time.Time
}

// UsageRepository is the write side of the ledger. RecordCouponUse must
// atomically increment the coupon's usage counter and append the record in
// one transaction, failing with ErrUsageLimitRace when the guarded
// increment loses to a concurrent writer.
type UsageRepository interface {
	UsageCounter

	RecordCouponUse(ctx context.Context, rec *UsageRecord) error
	RecordPromotionUse(ctx context.Context, rec *UsageRecord) error
}

// Ledger records that discounts were actually consumed. The orchestrator
// never invokes it; the caller does, exactly once per discount application,
// after the sale commits.
type Ledger struct {
	usage UsageRepository
	now   func() time.Time
}

// NewLedger creates a Ledger backed by the given repository.
func NewLedger(usage UsageRepository) *Ledger {
	return &Ledger{usage: usage, now: time.Now}
}

// RecordCouponUsage increments the coupon's usage counter and appends a
// usage record atomically. Returns ErrUsageLimitRace when a concurrent sale
// consumed the last remaining use.
func (l *Ledger) RecordCouponUsage(
	ctx context.Context,
	couponID, customerID, saleID string,
	amount, orderTotal decimal.Decimal,
) (*UsageRecord, error) {
	rec := l.newRecord(SourceCoupon, couponID, customerID, saleID, amount, orderTotal)
	if err := l.usage.RecordCouponUse(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "record coupon use")
	}
	return rec, nil
}

// RecordPromotionUsage appends a usage record for a promotion. Promotions
// carry no usage counter, so this is a plain append.
func (l *Ledger) RecordPromotionUsage(
	ctx context.Context,
	promotionID, customerID, saleID string,
	amount, orderTotal decimal.Decimal,
) (*UsageRecord, error) {
	rec := l.newRecord(SourcePromotion, promotionID, customerID, saleID, amount, orderTotal)
	if err := l.usage.RecordPromotionUse(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "record promotion use")
	}
	return rec, nil
}

func (l *Ledger) newRecord(
	source Source,
	sourceID, customerID, saleID string,
	amount, orderTotal decimal.Decimal,
) *UsageRecord {
	return &UsageRecord{
		ID:         uuid.New().String(),
		Source:     source,
		SourceID:   sourceID,
		CustomerID: customerID,
		SaleID:     saleID,
		Amount:     amount.Round(2),
		OrderTotal: orderTotal.Round(2),
		UsedAt:     l.now(),
	}
}
