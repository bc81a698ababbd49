package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Alternative is a runner-up candidate kept on the assignment for review.
type Alternative struct {
	VendorID        string          `json:"vendorId"`
	VendorName      string          `json:"vendorName"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency"`
	NormalizedPrice decimal.Decimal `json:"normalizedPrice"`
	ExchangeRate    decimal.Decimal `json:"exchangeRate"`
	Available       bool            `json:"availability"`
	MinOrderQty     decimal.Decimal `json:"minQuantity"`
	LeadTimeDays    int             `json:"leadTime"`
}

// PriceAssignment is the recorded vendor/price decision for one purchase-request
// line. The decision columns are written once; overrides only touch the
// Current* view and Version, and append AssignmentHistory rows.
type PriceAssignment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PRItemID      *string         `gorm:"column:pr_item_id;type:varchar(64);index"`
	ProductID     string          `gorm:"type:varchar(64);not null;index"`
	ProductName   string          `gorm:"not null;default:''"`
	CategoryID    string          `gorm:"type:varchar(64);not null;default:''"`
	Quantity      decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Location      string          `gorm:"not null;default:''"`
	Department    string          `gorm:"not null;default:''"`
	RequestedDate time.Time       `gorm:"not null"`
	// RuleContext is the field map the rule evaluator saw for this request.
	RuleContext datatypes.JSONMap `gorm:"type:jsonb"`

	VendorID           string          `gorm:"type:varchar(64);not null;index"`
	VendorName         string          `gorm:"not null;default:''"`
	AssignedPrice      decimal.Decimal `gorm:"type:decimal(14,4);not null"`
	Currency           string          `gorm:"type:char(3);not null"`
	NormalizedPrice    decimal.Decimal `gorm:"type:decimal(14,4);not null"`
	ComparisonCurrency string          `gorm:"type:char(3);not null"`
	ExchangeRate       decimal.Decimal `gorm:"type:decimal(20,10);not null"`
	RateEpoch          time.Time
	Confidence         decimal.Decimal `gorm:"type:decimal(5,4);not null"`
	Reason             string          `gorm:"not null"`
	RuleID             *uuid.UUID      `gorm:"type:uuid"`
	RuleName           *string
	RuleNotHonored     bool          `gorm:"not null;default:false"`
	RequiresReview     bool          `gorm:"not null;default:false"`
	ReviewMessage      *string
	Alternatives       []Alternative `gorm:"serializer:json;type:jsonb;not null"`
	NoAlternatives     bool          `gorm:"not null;default:false"`
	RuleSetVersion     int64         `gorm:"not null;default:0"`

	CurrentVendorID        string           `gorm:"type:varchar(64);not null"`
	CurrentVendorName      string           `gorm:"not null;default:''"`
	CurrentPrice           decimal.Decimal  `gorm:"type:decimal(14,4);not null"`
	CurrentCurrency        string           `gorm:"type:char(3);not null"`
	CurrentNormalizedPrice *decimal.Decimal `gorm:"type:decimal(14,4)"`
	Overridden             bool             `gorm:"not null;default:false;index"`
	OverrideCount          int              `gorm:"not null;default:0"`
	Version                int              `gorm:"not null;default:1"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (PriceAssignment) TableName() string { return "price_assignments" }
