package engine

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUsageRepo struct {
	mockUsageCounter

	couponRecs    []*UsageRecord
	promotionRecs []*UsageRecord
	couponErr     error
	promotionErr  error
}

func (m *mockUsageRepo) RecordCouponUse(_ context.Context, rec *UsageRecord) error {
	if m.couponErr != nil {
		return m.couponErr
	}
	m.couponRecs = append(m.couponRecs, rec)
	return nil
}

func (m *mockUsageRepo) RecordPromotionUse(_ context.Context, rec *UsageRecord) error {
	if m.promotionErr != nil {
		return m.promotionErr
	}
	m.promotionRecs = append(m.promotionRecs, rec)
	return nil
}

func TestLedgerRecordCouponUsage(t *testing.T) {
	usedAt := time.Date(2025, 6, 16, 17, 0, 0, 0, time.UTC)

	t.Run("builds and stores the record", func(t *testing.T) {
		repo := &mockUsageRepo{}
		l := NewLedger(repo)
		l.now = func() time.Time { return usedAt }

		rec, err := l.RecordCouponUsage(context.Background(),
			"c-1", "cust-1", "sale-1",
			decimal.RequireFromString("10.005"), decimal.NewFromInt(100),
		)
		require.NoError(t, err)

		require.Len(t, repo.couponRecs, 1)
		assert.Same(t, rec, repo.couponRecs[0])
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, SourceCoupon, rec.Source)
		assert.Equal(t, "c-1", rec.SourceID)
		assert.Equal(t, "cust-1", rec.CustomerID)
		assert.Equal(t, "sale-1", rec.SaleID)
		assert.True(t, decimal.RequireFromString("10.00").Equal(rec.Amount), "amount rounds to cents")
		assert.True(t, decimal.NewFromInt(100).Equal(rec.OrderTotal))
		assert.Equal(t, usedAt, rec.UsedAt)
	})

	t.Run("usage limit race passes through", func(t *testing.T) {
		repo := &mockUsageRepo{couponErr: ErrUsageLimitRace}
		l := NewLedger(repo)

		_, err := l.RecordCouponUsage(context.Background(),
			"c-1", "", "", decimal.NewFromInt(5), decimal.NewFromInt(50))
		assert.ErrorIs(t, err, ErrUsageLimitRace)
	})
}

func TestLedgerRecordPromotionUsage(t *testing.T) {
	t.Run("plain append", func(t *testing.T) {
		repo := &mockUsageRepo{}
		l := NewLedger(repo)

		rec, err := l.RecordPromotionUsage(context.Background(),
			"p-1", "", "sale-2", decimal.NewFromInt(18), decimal.NewFromInt(90))
		require.NoError(t, err)

		require.Len(t, repo.promotionRecs, 1)
		assert.Equal(t, SourcePromotion, rec.Source)
		assert.Equal(t, "p-1", rec.SourceID)
		assert.Empty(t, rec.CustomerID)
	})

	t.Run("repository failure wraps", func(t *testing.T) {
		repo := &mockUsageRepo{promotionErr: errors.New("insert failed")}
		l := NewLedger(repo)

		_, err := l.RecordPromotionUsage(context.Background(),
			"p-1", "", "", decimal.NewFromInt(1), decimal.NewFromInt(10))
		assert.Error(t, err)
	})
}
