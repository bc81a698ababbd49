package service

import (
	"context"

	"carmen/internal/dto"
	"carmen/internal/pricing"
	"carmen/internal/repository"

	"github.com/shopspring/decimal"
)

// AnalyticsService summarises assignments over an optional period.
type AnalyticsService interface {
	Analytics(ctx context.Context, filter dto.AnalyticsFilter) (*dto.AnalyticsResponse, error)
}

type analyticsService struct {
	repo repository.AssignmentRepository
}

func NewAnalyticsService(repo repository.AssignmentRepository) AnalyticsService {
	return &analyticsService{repo: repo}
}

// Analytics rates are fractions in [0, 1] rounded to 4 places. The automation
// rate is the share of assignments never overridden; an empty period yields zeros.
func (s *analyticsService) Analytics(ctx context.Context, filter dto.AnalyticsFilter) (*dto.AnalyticsResponse, error) {
	period := dto.AnalyticsPeriod{}
	verr := &pricing.ValidationError{}
	if filter.From != "" {
		if t, ok := parseDate(filter.From); ok {
			period.From = &t
		} else {
			verr.Add("from", "from must be an RFC 3339 timestamp or YYYY-MM-DD date")
		}
	}
	if filter.To != "" {
		if t, ok := parseDate(filter.To); ok {
			period.To = &t
		} else {
			verr.Add("to", "to must be an RFC 3339 timestamp or YYYY-MM-DD date")
		}
	}
	if period.From != nil && period.To != nil && !period.To.After(*period.From) {
		verr.Add("to", "to must be after from")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	stats, err := s.repo.Stats(ctx, period.From, period.To)
	if err != nil {
		return nil, storeErr("assignment analytics", err)
	}

	resp := &dto.AnalyticsResponse{
		TotalAssignments:   stats.Total,
		AutomationRate:     decimal.Zero,
		AverageConfidence:  stats.AverageConfidence.Round(4),
		OverrideRate:       decimal.Zero,
		RuleAppliedRate:    decimal.Zero,
		ReviewFlaggedCount: stats.ReviewFlagged,
		Period:             period,
	}
	if stats.Total > 0 {
		resp.AutomationRate = ratio(stats.Total-stats.Overridden, stats.Total)
		resp.OverrideRate = ratio(stats.Overridden, stats.Total)
		resp.RuleAppliedRate = ratio(stats.RuleApplied, stats.Total)
	}
	return resp, nil
}

func ratio(part, total int64) decimal.Decimal {
	return decimal.NewFromInt(part).DivRound(decimal.NewFromInt(total), 4)
}
