package repository

import (
	"context"
	"database/sql"

	"carmen/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleFilter narrows rule listings. Active nil lists every rule.
type RuleFilter struct {
	Active *bool
	Search string
}

// BusinessRuleRepository persists rules. Every mutation bumps the rule-set
// version in the same transaction, so a version always names one exact set.
type BusinessRuleRepository interface {
	Create(ctx context.Context, r *model.BusinessRule) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.BusinessRule, error)
	List(ctx context.Context, filter RuleFilter) ([]model.BusinessRule, error)
	Update(ctx context.Context, r *model.BusinessRule) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Snapshot reads the current version and its active rules in one
	// consistent read.
	Snapshot(ctx context.Context) (int64, []model.BusinessRule, error)
	Version(ctx context.Context) (int64, error)
}

type businessRuleRepo struct{ db *gorm.DB }

func NewBusinessRuleRepository(db *gorm.DB) BusinessRuleRepository {
	return &businessRuleRepo{db: db}
}

func bumpRuleSetVersion(tx *gorm.DB) error {
	return tx.Exec(`UPDATE rule_set_version SET version = version + 1, updated_at = NOW() WHERE id = 1`).Error
}

func (r *businessRuleRepo) Create(ctx context.Context, rule *model.BusinessRule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rule).Error; err != nil {
			return err
		}
		return bumpRuleSetVersion(tx)
	})
}

func (r *businessRuleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.BusinessRule, error) {
	var rule model.BusinessRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "business rule", id.String())
	}
	return &rule, nil
}

func (r *businessRuleRepo) List(ctx context.Context, filter RuleFilter) ([]model.BusinessRule, error) {
	q := r.db.WithContext(ctx).Model(&model.BusinessRule{})
	if filter.Active != nil {
		q = q.Where("active = ?", *filter.Active)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name ILIKE ? OR description ILIKE ?", like, like)
	}
	var rules []model.BusinessRule
	err := q.Order("priority DESC, created_at ASC, id ASC").Find(&rules).Error
	return rules, err
}

func (r *businessRuleRepo) Update(ctx context.Context, rule *model.BusinessRule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Save(rule)
		if res.Error != nil {
			return res.Error
		}
		return bumpRuleSetVersion(tx)
	})
}

func (r *businessRuleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.BusinessRule{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(gorm.ErrRecordNotFound, "business rule", id.String())
		}
		return bumpRuleSetVersion(tx)
	})
}

func (r *businessRuleRepo) Snapshot(ctx context.Context) (int64, []model.BusinessRule, error) {
	var (
		version int64
		rules   []model.BusinessRule
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(`SELECT version FROM rule_set_version WHERE id = 1`).Scan(&version).Error; err != nil {
			return err
		}
		return tx.Where("active = true").Order("priority DESC, created_at ASC, id ASC").Find(&rules).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	return version, rules, err
}

func (r *businessRuleRepo) Version(ctx context.Context) (int64, error) {
	var version int64
	err := r.db.WithContext(ctx).Raw(`SELECT version FROM rule_set_version WHERE id = 1`).Scan(&version).Error
	return version, err
}
