package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/discount-engine/internal/domain/coupon"
	"github.com/xenking/discount-engine/internal/domain/discount"
)

const getCouponByCodeSQL = `SELECT id, code, name, description,
	discount_type, discount_value, scope, minimum_purchase, maximum_discount,
	buy_quantity, get_quantity, get_discount_percent,
	max_uses, max_uses_per_customer, current_uses,
	valid_from, valid_until, is_active, priority, stackable,
	created_at, updated_at
	FROM coupons WHERE UPPER(code) = UPPER($1)`

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive) with its
// scope membership sets and conditions materialized.
// Returns coupon.ErrNotFound when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c.ProductIDs, err = collectIDs(ctx, r.pool,
		`SELECT product_id FROM coupon_products WHERE coupon_id = $1`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("loading coupon %q products: %w", c.ID, err)
	}
	c.CategoryIDs, err = collectIDs(ctx, r.pool,
		`SELECT category_id FROM coupon_categories WHERE coupon_id = $1`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("loading coupon %q categories: %w", c.ID, err)
	}
	c.Conditions, err = collectConditions(ctx, r.pool,
		`SELECT id, condition_type, value, is_inclusive FROM discount_conditions WHERE coupon_id = $1`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("loading coupon %q conditions: %w", c.ID, err)
	}

	return c, nil
}

func scanCoupon(row pgx.CollectableRow) (*coupon.Coupon, error) {
	var (
		c                  coupon.Coupon
		discountType       string
		value              decimal.Decimal
		scope              string
		minPurchase        decimal.NullDecimal
		maxDiscount        decimal.NullDecimal
		buyQty, getQty     int32
		getDiscountPercent decimal.Decimal
		maxUses            *int32
		maxPerCustomer     int32
		currentUses        int32
		validUntil         *time.Time
		priority           int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Name, &c.Description,
		&discountType, &value, &scope, &minPurchase, &maxDiscount,
		&buyQty, &getQty, &getDiscountPercent,
		&maxUses, &maxPerCustomer, &currentUses,
		&c.ValidFrom, &validUntil, &c.Active, &priority, &c.Stackable,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Kind, err = discount.ParseKind(
		discountType, value, maxDiscount.Decimal,
		int(buyQty), int(getQty), getDiscountPercent,
	)
	if err != nil {
		return nil, err
	}
	c.Scope = discount.Scope(scope)
	c.MinimumPurchase = minPurchase.Decimal
	if maxUses != nil {
		c.MaxUses = int(*maxUses)
	}
	c.MaxUsesPerCustomer = int(maxPerCustomer)
	c.CurrentUses = int(currentUses)
	c.ValidUntil = validUntil
	c.Priority = int(priority)
	return &c, nil
}

// collectIDs runs a single-column query and returns the values.
func collectIDs(ctx context.Context, pool *pgxpool.Pool, sql, parentID string) ([]string, error) {
	rows, err := pool.Query(ctx, sql, parentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func collectConditions(ctx context.Context, pool *pgxpool.Pool, sql, parentID string) ([]discount.Condition, error) {
	rows, err := pool.Query(ctx, sql, parentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (discount.Condition, error) {
		var (
			cond discount.Condition
			kind string
		)
		err := row.Scan(&cond.ID, &kind, &cond.Value, &cond.Inclusive)
		cond.Kind = discount.ConditionKind(kind)
		return cond, err
	})
}
