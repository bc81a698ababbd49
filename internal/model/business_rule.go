package model

import (
	"time"

	"github.com/google/uuid"
)

// RuleCondition is stored as written by the rule editor; operators and field
// names are normalised when the rule set is compiled.
type RuleCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// RuleAction carries the action type plus free-form parameters
// (vendorId, categoryId, message, email).
type RuleAction struct {
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// BusinessRule is a prioritised conditional policy evaluated on every assignment.
type BusinessRule struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name          string          `gorm:"uniqueIndex;not null"`
	Description   string          `gorm:"not null;default:''"`
	Priority      int             `gorm:"not null;default:0;index"`
	Conditions    []RuleCondition `gorm:"serializer:json;type:jsonb;not null"`
	Actions       []RuleAction    `gorm:"serializer:json;type:jsonb;not null"`
	Active        bool            `gorm:"not null;default:true"`
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
	CreatedBy     string `gorm:"not null;default:'system'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (BusinessRule) TableName() string { return "business_rules" }
