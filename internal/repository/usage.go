package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/discount-engine/internal/domain/coupon"
	"github.com/xenking/discount-engine/internal/domain/engine"
)

const (
	// The counter increment is guarded by the stored limit so that at most
	// max_uses increments ever succeed, no matter how many writers race.
	incrementCouponUsesSQL = `UPDATE coupons
		SET current_uses = current_uses + 1, updated_at = now()
		WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)`

	insertUsageSQL = `INSERT INTO discount_usages
		(id, source, coupon_id, promotion_id, customer_id, sale_id, amount, order_total, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

var _ engine.UsageRepository = (*UsageRepository)(nil)

// UsageRepository implements engine.UsageRepository backed by PostgreSQL.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// CountUses returns how many usage records exist for the given entity and
// customer.
func (r *UsageRepository) CountUses(ctx context.Context, source engine.Source, sourceID, customerID string) (int, error) {
	column := "coupon_id"
	if source == engine.SourcePromotion {
		column = "promotion_id"
	}

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM discount_usages WHERE `+column+` = $1 AND customer_id = $2`,
		sourceID, customerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting uses for %s %q: %w", source, sourceID, err)
	}
	return count, nil
}

// RecordCouponUse increments the coupon's usage counter and appends the
// usage record in one transaction. When the guarded increment matches no
// row, it returns coupon.ErrNotFound for an unknown coupon and
// engine.ErrUsageLimitRace when the limit was consumed by a concurrent
// writer.
func (r *UsageRepository) RecordCouponUse(ctx context.Context, rec *engine.UsageRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("recording coupon use: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, incrementCouponUsesSQL, rec.SourceID)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", rec.SourceID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "no such coupon" from "limit just hit".
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM coupons WHERE id = $1)`, rec.SourceID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking coupon %q: %w", rec.SourceID, err)
		}
		if !exists {
			return coupon.ErrNotFound
		}
		return engine.ErrUsageLimitRace
	}

	if err := insertUsage(ctx, tx, rec); err != nil {
		return fmt.Errorf("appending usage record for coupon %q: %w", rec.SourceID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("recording coupon use: %w", err)
	}
	return nil
}

// RecordPromotionUse appends a usage record for a promotion. Promotions
// carry no counter, so no increment is involved.
func (r *UsageRepository) RecordPromotionUse(ctx context.Context, rec *engine.UsageRecord) error {
	if err := insertUsage(ctx, r.pool, rec); err != nil {
		return fmt.Errorf("appending usage record for promotion %q: %w", rec.SourceID, err)
	}
	return nil
}

// execer covers both pgxpool.Pool and pgx.Tx for the insert.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertUsage(ctx context.Context, db execer, rec *engine.UsageRecord) error {
	var couponID, promotionID *string
	switch rec.Source {
	case engine.SourceCoupon:
		couponID = &rec.SourceID
	case engine.SourcePromotion:
		promotionID = &rec.SourceID
	default:
		return errors.Errorf("unknown usage source: %q", rec.Source)
	}

	_, err := db.Exec(ctx, insertUsageSQL,
		rec.ID, string(rec.Source), couponID, promotionID,
		nilIfEmpty(rec.CustomerID), nilIfEmpty(rec.SaleID),
		rec.Amount, rec.OrderTotal, rec.UsedAt,
	)
	return err
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
