package service_test

import (
	"context"
	"errors"
	"testing"

	"carmen/internal/dto"
	"carmen/internal/pricing"
	"carmen/internal/repository"
	"carmen/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalytics_Rates(t *testing.T) {
	repo := newStubAssignmentRepo()
	repo.stats = &repository.AssignmentStats{
		Total:             8,
		Overridden:        2,
		RuleApplied:       3,
		ReviewFlagged:     1,
		AverageConfidence: decimal.RequireFromString("0.876543"),
	}
	svc := service.NewAnalyticsService(repo)

	resp, err := svc.Analytics(context.Background(), dto.AnalyticsFilter{From: "2026-01-01", To: "2026-02-01T00:00:00Z"})
	require.NoError(t, err)

	assert.Equal(t, int64(8), resp.TotalAssignments)
	assert.Equal(t, "0.75", resp.AutomationRate.String())
	assert.Equal(t, "0.25", resp.OverrideRate.String())
	assert.Equal(t, "0.375", resp.RuleAppliedRate.String())
	assert.Equal(t, "0.8765", resp.AverageConfidence.String())
	assert.Equal(t, int64(1), resp.ReviewFlaggedCount)
	require.NotNil(t, repo.statsFrom)
	require.NotNil(t, repo.statsTo)
}

func TestAnalytics_EmptyPeriodIsZero(t *testing.T) {
	svc := service.NewAnalyticsService(newStubAssignmentRepo())

	resp, err := svc.Analytics(context.Background(), dto.AnalyticsFilter{})
	require.NoError(t, err)
	assert.Zero(t, resp.TotalAssignments)
	assert.True(t, resp.AutomationRate.IsZero())
	assert.True(t, resp.OverrideRate.IsZero())
}

func TestAnalytics_RejectsInvertedPeriod(t *testing.T) {
	svc := service.NewAnalyticsService(newStubAssignmentRepo())

	_, err := svc.Analytics(context.Background(), dto.AnalyticsFilter{From: "2026-03-01", To: "2026-02-01"})
	var ve *pricing.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "to", ve.Fields[0].Field)
}

func TestAnalytics_CountsRealAssignments(t *testing.T) {
	e := newEngine()
	_, err := e.assignSvc.AssignPrice(context.Background(), laptopRequest())
	require.NoError(t, err)
	e.assignments.stats = &repository.AssignmentStats{Total: int64(e.assignments.count()), AverageConfidence: decimal.Zero}

	resp, err := service.NewAnalyticsService(e.assignments).Analytics(context.Background(), dto.AnalyticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.TotalAssignments)
	assert.Equal(t, "1", resp.AutomationRate.String())
}
