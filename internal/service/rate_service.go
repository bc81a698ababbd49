package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"carmen/internal/dto"
	"carmen/internal/metrics"
	"carmen/internal/model"
	"carmen/internal/pricing"
	"carmen/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	fxGenerationKey = "fx:generation"
	fxSnapshotKey   = "fx:snapshot:%d:%d"
)

// ExchangeRateService is the currency normalizer's rate store. Snapshots are
// cached per minute and per rate generation: recording any rate starts a new
// generation, so cached snapshots never outlive the data they came from.
type ExchangeRateService interface {
	pricing.RateSource
	Record(ctx context.Context, req dto.ExchangeRateRequest) (*dto.ExchangeRateResponse, error)
	RecordRates(ctx context.Context, rates []model.ExchangeRate) error
	List(ctx context.Context, filter dto.ExchangeRateFilter) ([]dto.ExchangeRateResponse, error)
}

type exchangeRateService struct {
	repo repository.ExchangeRateRepository
	rdb  *redis.Client // nil disables the snapshot cache
	base string
	ttl  time.Duration
	now  func() time.Time
}

func NewExchangeRateService(repo repository.ExchangeRateRepository, rdb *redis.Client, baseCurrency string, ttl time.Duration) ExchangeRateService {
	return &exchangeRateService{
		repo: repo,
		rdb:  rdb,
		base: strings.ToUpper(baseCurrency),
		ttl:  ttl,
		now:  time.Now,
	}
}

// SnapshotAt returns the rates in force at the end of at's minute. Every
// request in the same minute and generation shares one snapshot.
func (s *exchangeRateService) SnapshotAt(ctx context.Context, at time.Time) (*pricing.RateTable, error) {
	bucket := at.UTC().Truncate(time.Minute)
	asOf := bucket.Add(time.Minute - time.Nanosecond)

	if s.rdb == nil {
		return s.load(ctx, asOf)
	}

	gen, err := s.rdb.Get(ctx, fxGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Msg("fx cache: generation lookup failed, reading store")
		return s.load(ctx, asOf)
	}
	key := fmt.Sprintf(fxSnapshotKey, gen, bucket.Unix())

	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var table pricing.RateTable
		if json.Unmarshal(data, &table) == nil {
			metrics.CacheLookups.WithLabelValues("fx", "hit").Inc()
			return &table, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("fx", "miss").Inc()

	table, err := s.load(ctx, asOf)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(table); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("fx cache: store failed")
		}
	}
	return table, nil
}

func (s *exchangeRateService) load(ctx context.Context, asOf time.Time) (*pricing.RateTable, error) {
	rows, err := s.repo.InForceAt(ctx, asOf)
	if err != nil {
		return nil, storeErr("exchange rate snapshot", err)
	}
	return pricing.NewRateTable(s.base, asOf, rows), nil
}

func (s *exchangeRateService) Record(ctx context.Context, req dto.ExchangeRateRequest) (*dto.ExchangeRateResponse, error) {
	rate := model.ExchangeRate{
		ID:            uuid.New(),
		BaseCurrency:  strings.ToUpper(strings.TrimSpace(req.BaseCurrency)),
		QuoteCurrency: strings.ToUpper(strings.TrimSpace(req.QuoteCurrency)),
		Rate:          req.Rate,
		EffectiveAt:   s.now(),
		Source:        req.Source,
	}
	if req.EffectiveAt != nil {
		rate.EffectiveAt = *req.EffectiveAt
	}
	if rate.Source == "" {
		rate.Source = "manual"
	}

	verr := &pricing.ValidationError{}
	if !pricing.IsCurrencyCode(rate.BaseCurrency) {
		verr.Add("baseCurrency", "baseCurrency must be a recognized three-letter ISO code")
	}
	if !pricing.IsCurrencyCode(rate.QuoteCurrency) {
		verr.Add("quoteCurrency", "quoteCurrency must be a recognized three-letter ISO code")
	}
	if rate.BaseCurrency == rate.QuoteCurrency {
		verr.Add("quoteCurrency", "quoteCurrency must differ from baseCurrency")
	}
	if !rate.Rate.IsPositive() {
		verr.Add("rate", "rate must be greater than 0")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.RecordRates(ctx, []model.ExchangeRate{rate}); err != nil {
		return nil, err
	}
	resp := rateToResponse(&rate)
	return &resp, nil
}

// RecordRates appends rates and starts a new snapshot generation.
func (s *exchangeRateService) RecordRates(ctx context.Context, rates []model.ExchangeRate) error {
	for i := range rates {
		if rates[i].ID == uuid.Nil {
			rates[i].ID = uuid.New()
		}
	}
	if err := s.repo.Create(ctx, rates...); err != nil {
		return storeErr("record exchange rates", err)
	}
	if s.rdb != nil {
		if err := s.rdb.Incr(ctx, fxGenerationKey).Err(); err != nil {
			log.Error().Err(err).Msg("fx cache: failed to bump generation")
		}
	}
	return nil
}

func (s *exchangeRateService) List(ctx context.Context, filter dto.ExchangeRateFilter) ([]dto.ExchangeRateResponse, error) {
	rows, err := s.repo.List(ctx, repository.ExchangeRateFilter{
		BaseCurrency:  strings.ToUpper(filter.Base),
		QuoteCurrency: strings.ToUpper(filter.Quote),
		Limit:         filter.Limit,
	})
	if err != nil {
		return nil, storeErr("list exchange rates", err)
	}
	resp := make([]dto.ExchangeRateResponse, len(rows))
	for i := range rows {
		resp[i] = rateToResponse(&rows[i])
	}
	return resp, nil
}
