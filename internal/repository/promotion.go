package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/discount-engine/internal/domain/discount"
	"github.com/xenking/discount-engine/internal/domain/promotion"
)

const findActivePromotionsSQL = `SELECT id, name, description,
	discount_type, discount_value, scope, minimum_purchase, maximum_discount,
	buy_quantity, get_quantity, get_discount_percent,
	valid_from, valid_until, days_of_week, start_time, end_time,
	priority, stackable, is_active, created_at, updated_at
	FROM promotions
	WHERE is_active = TRUE AND valid_from <= $1 AND valid_until >= $1
	ORDER BY priority DESC, created_at DESC`

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// FindActive returns active promotions whose date window contains now,
// ordered by descending priority, with membership sets and conditions
// loaded in three batch queries.
func (r *PromotionRepository) FindActive(ctx context.Context, now time.Time) ([]*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, findActivePromotionsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("finding active promotions: %w", err)
	}

	promos, err := pgx.CollectRows(rows, scanPromotion)
	if err != nil {
		return nil, fmt.Errorf("finding active promotions: %w", err)
	}
	if len(promos) == 0 {
		return nil, nil
	}

	byID := make(map[string]*promotion.Promotion, len(promos))
	ids := make([]string, len(promos))
	for i, p := range promos {
		byID[p.ID] = p
		ids[i] = p.ID
	}

	if err := r.loadMemberships(ctx, byID, ids); err != nil {
		return nil, err
	}
	if err := r.loadConditions(ctx, byID, ids); err != nil {
		return nil, err
	}

	return promos, nil
}

func (r *PromotionRepository) loadMemberships(ctx context.Context, byID map[string]*promotion.Promotion, ids []string) error {
	rows, err := r.pool.Query(ctx,
		`SELECT promotion_id, product_id FROM promotion_products WHERE promotion_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("loading promotion products: %w", err)
	}
	if err := forEachPair(rows, func(parentID, id string) {
		if p, ok := byID[parentID]; ok {
			p.ProductIDs = append(p.ProductIDs, id)
		}
	}); err != nil {
		return fmt.Errorf("loading promotion products: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		`SELECT promotion_id, category_id FROM promotion_categories WHERE promotion_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("loading promotion categories: %w", err)
	}
	if err := forEachPair(rows, func(parentID, id string) {
		if p, ok := byID[parentID]; ok {
			p.CategoryIDs = append(p.CategoryIDs, id)
		}
	}); err != nil {
		return fmt.Errorf("loading promotion categories: %w", err)
	}
	return nil
}

func (r *PromotionRepository) loadConditions(ctx context.Context, byID map[string]*promotion.Promotion, ids []string) error {
	rows, err := r.pool.Query(ctx,
		`SELECT promotion_id, id, condition_type, value, is_inclusive
		 FROM discount_conditions WHERE promotion_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("loading promotion conditions: %w", err)
	}
	for rows.Next() {
		var (
			parentID string
			cond     discount.Condition
			kind     string
		)
		if err := rows.Scan(&parentID, &cond.ID, &kind, &cond.Value, &cond.Inclusive); err != nil {
			rows.Close()
			return fmt.Errorf("loading promotion conditions: %w", err)
		}
		cond.Kind = discount.ConditionKind(kind)
		if p, ok := byID[parentID]; ok {
			p.Conditions = append(p.Conditions, cond)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading promotion conditions: %w", err)
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (*promotion.Promotion, error) {
	var (
		p                  promotion.Promotion
		discountType       string
		value              decimal.Decimal
		scope              string
		minPurchase        decimal.NullDecimal
		maxDiscount        decimal.NullDecimal
		buyQty, getQty     int32
		getDiscountPercent decimal.Decimal
		daysOfWeek         string
		startTime, endTime *string
		priority           int32
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description,
		&discountType, &value, &scope, &minPurchase, &maxDiscount,
		&buyQty, &getQty, &getDiscountPercent,
		&p.ValidFrom, &p.ValidUntil, &daysOfWeek, &startTime, &endTime,
		&priority, &p.Stackable, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Kind, err = discount.ParseKind(
		discountType, value, maxDiscount.Decimal,
		int(buyQty), int(getQty), getDiscountPercent,
	)
	if err != nil {
		return nil, err
	}
	p.Scope = discount.Scope(scope)
	p.MinimumPurchase = minPurchase.Decimal
	p.Priority = int(priority)

	p.DaysOfWeek, err = discount.ParseDays(daysOfWeek)
	if err != nil {
		return nil, fmt.Errorf("promotion %q: %w", p.ID, err)
	}
	if p.StartTime, err = parseTimePtr(startTime); err != nil {
		return nil, fmt.Errorf("promotion %q: %w", p.ID, err)
	}
	if p.EndTime, err = parseTimePtr(endTime); err != nil {
		return nil, fmt.Errorf("promotion %q: %w", p.ID, err)
	}
	return &p, nil
}

func parseTimePtr(s *string) (*discount.TimeOfDay, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := discount.ParseTimeOfDay(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// forEachPair iterates a two-string-column result set.
func forEachPair(rows pgx.Rows, fn func(a, b string)) error {
	defer rows.Close()
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return err
		}
		fn(a, b)
	}
	return rows.Err()
}
