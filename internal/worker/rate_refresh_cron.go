package worker

// Background goroutine that periodically pulls exchange rates from the
// treasury feed and appends them as new effective rates. Uses the circuit
// breaker to avoid hammering a downed feed.

import (
	"context"
	"strings"
	"time"

	"carmen/internal/infra"
	"carmen/internal/model"

	"github.com/rs/zerolog/log"
)

// RateFeed fetches the current rates quoted against base.
type RateFeed interface {
	Latest(ctx context.Context, base string) (*infra.RateFeedResponse, error)
}

// RateRecorder appends rates and invalidates cached snapshots.
type RateRecorder interface {
	RecordRates(ctx context.Context, rates []model.ExchangeRate) error
}

// RateRefreshConfig holds all dependencies for the refresh goroutine.
type RateRefreshConfig struct {
	Feed         RateFeed
	Recorder     RateRecorder
	CB           *infra.CircuitBreaker
	BaseCurrency string
	Interval     time.Duration
}

// StartRateRefreshCron refreshes once immediately, then every cfg.Interval,
// until ctx is cancelled.
func StartRateRefreshCron(ctx context.Context, cfg RateRefreshConfig) {
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("rate_refresh: started")
		RefreshRates(ctx, cfg)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("rate_refresh: shutting down")
				return
			case <-ticker.C:
				RefreshRates(ctx, cfg)
			}
		}
	}()
}

// RefreshRates runs one refresh cycle and returns how many rates were stored.
func RefreshRates(ctx context.Context, cfg RateRefreshConfig) int {
	// If CB is open, skip entirely
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("rate_refresh: circuit breaker is open, skipping tick")
		return 0
	}

	var feed *infra.RateFeedResponse
	err := cfg.CB.Execute(func() error {
		resp, err := cfg.Feed.Latest(ctx, cfg.BaseCurrency)
		if err != nil {
			return err
		}
		feed = resp
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("cb_state", cfg.CB.State().String()).Msg("rate_refresh: feed unavailable")
		return 0
	}

	base := strings.ToUpper(feed.Base)
	rows := make([]model.ExchangeRate, 0, len(feed.Rates))
	for quote, rate := range feed.Rates {
		quote = strings.ToUpper(quote)
		if quote == base || !rate.IsPositive() {
			continue
		}
		rows = append(rows, model.ExchangeRate{
			BaseCurrency:  base,
			QuoteCurrency: quote,
			Rate:          rate,
			EffectiveAt:   feed.Timestamp,
			Source:        "feed",
		})
	}
	if len(rows) == 0 {
		return 0
	}

	if err := cfg.Recorder.RecordRates(ctx, rows); err != nil {
		log.Error().Err(err).Msg("rate_refresh: failed to store rates")
		return 0
	}
	log.Info().Int("count", len(rows)).Str("base", base).Time("effective_at", feed.Timestamp).Msg("rate_refresh: rates stored")
	return len(rows)
}
