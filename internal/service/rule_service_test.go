package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"carmen/internal/dto"
	"carmen/internal/model"
	"carmen/internal/pricing"
	"carmen/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func premiumRuleRequest() dto.RuleRequest {
	return dto.RuleRequest{
		Name:       "Electronics to premium",
		Priority:   1,
		Conditions: []model.RuleCondition{{Field: "categoryId", Operator: "equals", Value: "electronics"}},
		Actions:    []model.RuleAction{{Type: "assignVendor", Parameters: map[string]string{"vendorId": "vendor-premium"}}},
	}
}

func TestRuleCreate_ChangesNextAssignment(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	before, err := e.assignSvc.AssignPrice(ctx, laptopRequest())
	require.NoError(t, err)
	assert.Equal(t, "vendor-1", before.VendorID)

	rule, err := e.ruleSvc.Create(ctx, "manager-1", premiumRuleRequest())
	require.NoError(t, err)
	assert.True(t, rule.IsActive)
	assert.Equal(t, "manager-1", rule.CreatedBy)

	after, err := e.assignSvc.AssignPrice(ctx, laptopRequest())
	require.NoError(t, err)
	assert.Equal(t, "vendor-premium", after.VendorID)
	assert.Greater(t, after.RuleSetVersion, before.RuleSetVersion)
}

func TestRuleCreate_RejectsUncompilableRule(t *testing.T) {
	e := newEngine()
	req := premiumRuleRequest()
	req.Conditions = []model.RuleCondition{{Field: "colour", Operator: "equals", Value: "red"}}
	req.Actions = []model.RuleAction{{Type: "teleport"}}

	_, err := e.ruleSvc.Create(context.Background(), "manager-1", req)
	var ve *pricing.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Fields, 2)
}

func TestRuleCreate_DuplicateNameIsValidationError(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	_, err := e.ruleSvc.Create(ctx, "", premiumRuleRequest())
	require.NoError(t, err)

	_, err = e.ruleSvc.Create(ctx, "", premiumRuleRequest())
	var ve *pricing.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "name", ve.Fields[0].Field)
}

func TestRuleUpdateAndDelete(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	created, err := e.ruleSvc.Create(ctx, "manager-1", premiumRuleRequest())
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	inactive := false
	req := premiumRuleRequest()
	req.IsActive = &inactive
	updated, err := e.ruleSvc.Update(ctx, id, req)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	list, err := e.ruleSvc.List(ctx, dto.RuleFilter{IsActive: "false"})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	_, err = e.ruleSvc.List(ctx, dto.RuleFilter{IsActive: "maybe"})
	var ve *pricing.ValidationError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, e.ruleSvc.Delete(ctx, id))
	_, err = e.ruleSvc.Get(ctx, id)
	var nf *pricing.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestRuleSnapshot_CachedPerVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := newStubRuleRepo(electronicsRule(1, "vendor-premium"))
	svc := service.NewRuleService(repo, rdb, time.Minute)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	second, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.snapshotCount())
	require.Len(t, second.Rules, 1)
	assert.Equal(t, first.Version, second.Version)

	_, err = svc.Create(ctx, "admin", dto.RuleRequest{
		Name:    "Always review",
		Actions: []model.RuleAction{{Type: "flagReview"}},
	})
	require.NoError(t, err)

	third, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.snapshotCount())
	assert.Len(t, third.Rules, 2)
	assert.Greater(t, third.Version, second.Version)
}
