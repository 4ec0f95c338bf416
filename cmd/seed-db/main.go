// Command seed-db loads a small set of sample coupons and promotions for
// local development and integration tests.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/discount-engine/internal/repository"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedPromotions(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promotions")
	}

	return nil
}

const seedCouponSQL = `
INSERT INTO coupons (
	code, name, description, discount_type, discount_value, scope,
	minimum_purchase, maximum_discount, max_uses, max_uses_per_customer, stackable
)
VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (UPPER(code)) DO NOTHING`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding sample coupons")

	type seedCoupon struct {
		code            string
		name            string
		description     string
		discountType    string
		value           string
		scope           string
		minimumPurchase any
		maximumDiscount any
		maxUses         any
		maxUsesPerCust  int
		stackable       bool
	}

	coupons := []seedCoupon{
		{
			code: "TEST10", name: "Test 10%", description: "10% off the entire order",
			discountType: "percentage", value: "10", scope: "order",
			maximumDiscount: "25", maxUsesPerCust: 1,
		},
		{
			code: "FIXED5", name: "Five off", description: "$5 off orders over $25",
			discountType: "fixed", value: "5", scope: "minimum",
			minimumPurchase: "25", maxUsesPerCust: 3, stackable: true,
		},
		{
			code: "WELCOME", name: "Welcome offer", description: "20% off your first order",
			discountType: "percentage", value: "20", scope: "order",
			maxUses: 1000, maxUsesPerCust: 1,
		},
	}

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, seedCouponSQL,
			c.code, c.name, c.description, c.discountType, c.value, c.scope,
			c.minimumPurchase, c.maximumDiscount, c.maxUses, c.maxUsesPerCust, c.stackable,
		); err != nil {
			return errors.Wrapf(err, "seed coupon %s", c.code)
		}
		slog.Info("seeded coupon", slog.String("code", c.code), slog.String("name", c.name))
	}

	return nil
}

const seedPromotionSQL = `
INSERT INTO promotions (
	name, description, discount_type, discount_value, scope,
	valid_from, valid_until, days_of_week, start_time, end_time,
	priority, stackable
)
SELECT $1, $2, $3, $4, $5,
	now() - interval '1 day', now() + interval '90 days', $6, $7, $8,
	$9, $10
WHERE NOT EXISTS (SELECT 1 FROM promotions WHERE name = $1)`

func seedPromotions(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding sample promotions")

	type seedPromotion struct {
		name         string
		description  string
		discountType string
		value        string
		scope        string
		daysOfWeek   string
		startTime    any
		endTime      any
		priority     int
		stackable    bool
	}

	promotions := []seedPromotion{
		{
			name: "Happy hour", description: "20% off weekday afternoons",
			discountType: "percentage", value: "20", scope: "order",
			daysOfWeek: "0,1,2,3,4", startTime: "16:00", endTime: "18:00",
			priority: 50,
		},
		{
			name: "Loyalty bonus", description: "5% off everything",
			discountType: "percentage", value: "5", scope: "order",
			priority: 10, stackable: true,
		},
	}

	for _, p := range promotions {
		if _, err := pool.Exec(ctx, seedPromotionSQL,
			p.name, p.description, p.discountType, p.value, p.scope,
			p.daysOfWeek, p.startTime, p.endTime, p.priority, p.stackable,
		); err != nil {
			return errors.Wrapf(err, "seed promotion %s", p.name)
		}
		slog.Info("seeded promotion", slog.String("name", p.name))
	}

	return nil
}
