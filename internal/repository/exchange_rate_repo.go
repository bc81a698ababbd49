package repository

import (
	"context"
	"time"

	"carmen/internal/model"

	"gorm.io/gorm"
)

type ExchangeRateFilter struct {
	BaseCurrency  string
	QuoteCurrency string
	Limit         int
}

type ExchangeRateRepository interface {
	Create(ctx context.Context, rates ...model.ExchangeRate) error
	// InForceAt returns, per currency pair, the latest rate effective at or before at.
	InForceAt(ctx context.Context, at time.Time) ([]model.ExchangeRate, error)
	List(ctx context.Context, filter ExchangeRateFilter) ([]model.ExchangeRate, error)
}

type exchangeRateRepo struct{ db *gorm.DB }

func NewExchangeRateRepository(db *gorm.DB) ExchangeRateRepository {
	return &exchangeRateRepo{db: db}
}

func (r *exchangeRateRepo) Create(ctx context.Context, rates ...model.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rates).Error
}

func (r *exchangeRateRepo) InForceAt(ctx context.Context, at time.Time) ([]model.ExchangeRate, error) {
	var rows []model.ExchangeRate
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (base_currency, quote_currency) *
		FROM exchange_rates
		WHERE effective_at <= ?
		ORDER BY base_currency, quote_currency, effective_at DESC, created_at DESC`, at).
		Scan(&rows).Error
	return rows, err
}

func (r *exchangeRateRepo) List(ctx context.Context, filter ExchangeRateFilter) ([]model.ExchangeRate, error) {
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	q := r.db.WithContext(ctx).Model(&model.ExchangeRate{})
	if filter.BaseCurrency != "" {
		q = q.Where("base_currency = ?", filter.BaseCurrency)
	}
	if filter.QuoteCurrency != "" {
		q = q.Where("quote_currency = ?", filter.QuoteCurrency)
	}
	var rows []model.ExchangeRate
	err := q.Order("effective_at DESC").Limit(filter.Limit).Find(&rows).Error
	return rows, err
}
