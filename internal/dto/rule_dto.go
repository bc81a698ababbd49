package dto

import (
	"time"

	"carmen/internal/model"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RuleRequest struct {
	Name          string                `json:"name"          validate:"required,min=2,max=120"`
	Description   string                `json:"description"   validate:"max=500"`
	Priority      int                   `json:"priority"`
	Conditions    []model.RuleCondition `json:"conditions"`
	Actions       []model.RuleAction    `json:"actions"       validate:"required,min=1"`
	IsActive      *bool                 `json:"isActive"`
	EffectiveFrom *time.Time            `json:"effectiveFrom"`
	EffectiveTo   *time.Time            `json:"effectiveTo"`
}

type RuleFilter struct {
	IsActive string `form:"isActive"` // "true" | "false" | "" (all)
	Search   string `form:"search"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type RuleResponse struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	Priority      int                   `json:"priority"`
	Conditions    []model.RuleCondition `json:"conditions"`
	Actions       []model.RuleAction    `json:"actions"`
	IsActive      bool                  `json:"isActive"`
	EffectiveFrom *time.Time            `json:"effectiveFrom"`
	EffectiveTo   *time.Time            `json:"effectiveTo"`
	CreatedBy     string                `json:"createdBy"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

type RuleListResponse struct {
	Data    []RuleResponse `json:"data"`
	Total   int            `json:"total"`
	Version int64          `json:"version"`
}
