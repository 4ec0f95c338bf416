// Command coupon-import bulk-loads campaign coupon codes from gzip-compressed
// code lists (one code per line) into the coupons table. All imported codes
// share a single discount rule given on the command line, the way a marketing
// campaign generates millions of single-use codes for one offer.
//
// Files are streamed concurrently. A shared bloom filter deduplicates codes
// across files before they reach the database; the occasional false positive
// drops a code, which is acceptable for generated campaign lists. The upsert
// is idempotent, so re-running an import is safe.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/discount-engine/internal/repository"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.0001
	progressEvery = 1_000_000
	minCodeLen    = 4
	maxCodeLen    = 64
	batchSize     = 1000
)

const upsertCouponSQL = `
INSERT INTO coupons (code, name, description, discount_type, discount_value, scope)
VALUES (UPPER($1), $2, $3, $4, $5, 'order')
ON CONFLICT (UPPER(code)) DO NOTHING`

type campaign struct {
	name         string
	description  string
	discountType string
	value        decimal.Decimal
}

func main() {
	var (
		databaseURL  string
		name         string
		description  string
		discountType string
		value        string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&name, "name", "Campaign coupon", "coupon display name for all imported codes")
	flag.StringVar(&description, "description", "", "coupon description")
	flag.StringVar(&discountType, "discount-type", "percentage", "discount type: percentage or fixed")
	flag.StringVar(&value, "value", "10", "discount value (percent or fixed amount)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("at least one code file is required (gzip, one code per line)")
		os.Exit(1)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ruleValue, err := decimal.NewFromString(value)
	if err != nil {
		slog.Error("invalid discount value", slog.String("value", value))
		os.Exit(1)
	}
	if discountType != "percentage" && discountType != "fixed" {
		slog.Error("unsupported discount type", slog.String("type", discountType))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c := campaign{name: name, description: description, discountType: discountType, value: ruleValue}
	start := time.Now()
	if err := run(ctx, databaseURL, files, c); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed", slog.Duration("elapsed", time.Since(start)))
}

func run(ctx context.Context, databaseURL string, files []string, c campaign) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("importing code files", slog.Int("files", len(files)))

	codes := make(chan string, 4*batchSize)
	g, gctx := errgroup.WithContext(ctx)

	// Readers: stream each file, dedupe through a shared bloom filter.
	readers, rctx := errgroup.WithContext(gctx)
	dedupe := newBloomDedupe()
	for i, f := range files {
		readers.Go(streamCodes(rctx, i, f, dedupe, codes))
	}
	g.Go(func() error {
		defer close(codes)
		return readers.Wait()
	})

	// Writer: batch upserts into the coupons table.
	g.Go(func() error {
		return writeCoupons(gctx, pool, codes, c)
	})

	return g.Wait()
}

// bloomDedupe is a concurrency-safe seen-set over a bloom filter.
type bloomDedupe struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func newBloomDedupe() *bloomDedupe {
	return &bloomDedupe{filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR)}
}

// seen marks code as seen and reports whether it was already present.
func (d *bloomDedupe) seen(code string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter.TestAndAddString(code)
}

func streamCodes(ctx context.Context, idx int, path string, dedupe *bloomDedupe, out chan<- string) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var total, unique uint64
		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}

			code := strings.TrimSpace(scanner.Text())
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				continue
			}

			total++
			if total%progressEvery == 0 {
				slog.Info("import progress",
					slog.Int("file", idx+1),
					slog.Uint64("codes", total),
				)
			}

			if dedupe.seen(strings.ToUpper(code)) {
				continue
			}
			unique++

			select {
			case out <- code:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("file complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", total),
			slog.Uint64("unique_codes", unique),
		)
		return nil
	}
}

// writeCoupons drains the code channel and upserts coupons one batch per
// transaction.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, codes <-chan string, c campaign) error {
	var written int
	batch := make([]string, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return errors.Wrap(err, "begin tx")
		}
		defer func() { _ = tx.Rollback(ctx) }()

		for _, code := range batch {
			if _, err := tx.Exec(ctx, upsertCouponSQL,
				code, c.name, c.description, c.discountType, c.value,
			); err != nil {
				return errors.Wrapf(err, "upsert coupon %s", code)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return errors.Wrap(err, "commit tx")
		}

		written += len(batch)
		batch = batch[:0]
		if written%(10*batchSize) == 0 {
			slog.Info("write progress", slog.Int("written", written))
		}
		return nil
	}

	for code := range codes {
		batch = append(batch, code)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("coupons written", slog.Int("count", written))
	return nil
}
