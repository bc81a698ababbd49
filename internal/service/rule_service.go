package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
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
	"gorm.io/gorm"
)

const rulesSnapshotKey = "rules:snapshot:%d"

// RuleService manages business rules and serves the compiled, versioned rule
// set to the assignment pipeline.
type RuleService interface {
	pricing.RuleSource
	List(ctx context.Context, filter dto.RuleFilter) (*dto.RuleListResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.RuleResponse, error)
	Create(ctx context.Context, actor string, req dto.RuleRequest) (*dto.RuleResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.RuleRequest) (*dto.RuleResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ruleService struct {
	repo repository.BusinessRuleRepository
	rdb  *redis.Client // nil disables the snapshot cache
	ttl  time.Duration
}

func NewRuleService(repo repository.BusinessRuleRepository, rdb *redis.Client, ttl time.Duration) RuleService {
	return &ruleService{repo: repo, rdb: rdb, ttl: ttl}
}

// Snapshot returns the active rules of the current rule-set version. Rows
// are cached per version; a rule edit bumps the version, so a cached entry is
// never stale.
func (s *ruleService) Snapshot(ctx context.Context) (pricing.RuleSet, error) {
	if s.rdb != nil {
		version, err := s.repo.Version(ctx)
		if err != nil {
			return pricing.RuleSet{}, storeErr("rule set version", err)
		}
		key := fmt.Sprintf(rulesSnapshotKey, version)
		if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
			var rows []model.BusinessRule
			if json.Unmarshal(data, &rows) == nil {
				metrics.CacheLookups.WithLabelValues("rules", "hit").Inc()
				return compileSnapshot(version, rows), nil
			}
		}
		metrics.CacheLookups.WithLabelValues("rules", "miss").Inc()
	}

	version, rows, err := s.repo.Snapshot(ctx)
	if err != nil {
		return pricing.RuleSet{}, storeErr("rule snapshot", err)
	}
	if s.rdb != nil {
		if data, err := json.Marshal(rows); err == nil {
			if err := s.rdb.Set(ctx, fmt.Sprintf(rulesSnapshotKey, version), data, s.ttl).Err(); err != nil {
				log.Warn().Err(err).Msg("rules cache: store failed")
			}
		}
	}
	return compileSnapshot(version, rows), nil
}

func compileSnapshot(version int64, rows []model.BusinessRule) pricing.RuleSet {
	set, bad := pricing.NewRuleSet(version, rows)
	for id, err := range bad {
		log.Warn().Str("rule_id", id.String()).Err(err).Msg("rules: skipping rule that does not compile")
	}
	return set
}

func (s *ruleService) List(ctx context.Context, filter dto.RuleFilter) (*dto.RuleListResponse, error) {
	f := repository.RuleFilter{Search: strings.TrimSpace(filter.Search)}
	if filter.IsActive != "" {
		active, err := strconv.ParseBool(filter.IsActive)
		if err != nil {
			verr := &pricing.ValidationError{}
			verr.Add("isActive", "isActive must be true or false")
			return nil, verr
		}
		f.Active = &active
	}

	rules, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, storeErr("list rules", err)
	}
	version, err := s.repo.Version(ctx)
	if err != nil {
		return nil, storeErr("rule set version", err)
	}

	data := make([]dto.RuleResponse, len(rules))
	for i := range rules {
		data[i] = ruleToResponse(&rules[i])
	}
	return &dto.RuleListResponse{Data: data, Total: len(data), Version: version}, nil
}

func (s *ruleService) Get(ctx context.Context, id uuid.UUID) (*dto.RuleResponse, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get rule", err)
	}
	resp := ruleToResponse(rule)
	return &resp, nil
}

func (s *ruleService) Create(ctx context.Context, actor string, req dto.RuleRequest) (*dto.RuleResponse, error) {
	rule := &model.BusinessRule{ID: uuid.New(), CreatedBy: actor, Active: true}
	if rule.CreatedBy == "" {
		rule.CreatedBy = "system"
	}
	applyRuleRequest(rule, req)
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, ruleStoreErr("create rule", rule.Name, err)
	}
	log.Info().Str("rule_id", rule.ID.String()).Str("name", rule.Name).Int("priority", rule.Priority).Msg("rules: created")
	resp := ruleToResponse(rule)
	return &resp, nil
}

func (s *ruleService) Update(ctx context.Context, id uuid.UUID, req dto.RuleRequest) (*dto.RuleResponse, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get rule", err)
	}
	applyRuleRequest(rule, req)
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, ruleStoreErr("update rule", rule.Name, err)
	}
	log.Info().Str("rule_id", rule.ID.String()).Str("name", rule.Name).Msg("rules: updated")
	resp := ruleToResponse(rule)
	return &resp, nil
}

func (s *ruleService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr("delete rule", err)
	}
	log.Info().Str("rule_id", id.String()).Msg("rules: deleted")
	return nil
}

func applyRuleRequest(rule *model.BusinessRule, req dto.RuleRequest) {
	rule.Name = strings.TrimSpace(req.Name)
	rule.Description = req.Description
	rule.Priority = req.Priority
	rule.Conditions = req.Conditions
	if rule.Conditions == nil {
		rule.Conditions = []model.RuleCondition{}
	}
	rule.Actions = req.Actions
	if req.IsActive != nil {
		rule.Active = *req.IsActive
	}
	rule.EffectiveFrom = req.EffectiveFrom
	rule.EffectiveTo = req.EffectiveTo
}

// validateRule rejects rules the evaluator could not run.
func validateRule(rule *model.BusinessRule) error {
	_, err := pricing.CompileRule(*rule)
	return err
}

func ruleStoreErr(op, name string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		verr := &pricing.ValidationError{}
		verr.Add("name", "a rule named "+name+" already exists")
		return verr
	}
	return storeErr(op, err)
}
