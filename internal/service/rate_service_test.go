package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"carmen/internal/dto"
	"carmen/internal/pricing"
	"carmen/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cachedRates(t *testing.T) (service.ExchangeRateService, *stubRateRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := &stubRateRepo{rates: fixtureRates()}
	return service.NewExchangeRateService(repo, rdb, "USD", time.Minute), repo
}

func TestSnapshotAt_CachedPerMinute(t *testing.T) {
	svc, repo := cachedRates(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Minute)

	first, err := svc.SnapshotAt(ctx, at.Add(5*time.Second))
	require.NoError(t, err)
	second, err := svc.SnapshotAt(ctx, at.Add(40*time.Second))
	require.NoError(t, err)

	assert.Equal(t, 1, repo.readCount())
	assert.True(t, first.Epoch().Equal(second.Epoch()))
	r, err := second.Rate("USD", "THB")
	require.NoError(t, err)
	assert.Equal(t, "35.5", r.String())
}

func TestSnapshotAt_RecordingStartsNewGeneration(t *testing.T) {
	svc, repo := cachedRates(t)
	ctx := context.Background()
	now := time.Now()

	_, err := svc.SnapshotAt(ctx, now)
	require.NoError(t, err)

	past := now.Add(-time.Minute)
	_, err = svc.Record(ctx, dto.ExchangeRateRequest{
		BaseCurrency:  "usd",
		QuoteCurrency: "thb",
		Rate:          decimal.RequireFromString("36.10"),
		EffectiveAt:   &past,
	})
	require.NoError(t, err)

	table, err := svc.SnapshotAt(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.readCount())
	r, err := table.Rate("USD", "THB")
	require.NoError(t, err)
	assert.Equal(t, "36.1", r.String())
}

func TestRecordRate_Validation(t *testing.T) {
	svc, _ := cachedRates(t)

	_, err := svc.Record(context.Background(), dto.ExchangeRateRequest{BaseCurrency: "USD", QuoteCurrency: "USD", Rate: decimal.Zero})
	var ve *pricing.ValidationError
	require.True(t, errors.As(err, &ve))
	fields := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"quoteCurrency", "rate"}, fields)
}

func TestRecordRate_DefaultsSourceToManual(t *testing.T) {
	svc, _ := cachedRates(t)

	resp, err := svc.Record(context.Background(), dto.ExchangeRateRequest{BaseCurrency: "USD", QuoteCurrency: "SGD", Rate: decimal.RequireFromString("1.35")})
	require.NoError(t, err)
	assert.Equal(t, "manual", resp.Source)

	listed, err := svc.List(context.Background(), dto.ExchangeRateFilter{Quote: "sgd"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "SGD", listed[0].QuoteCurrency)
}
