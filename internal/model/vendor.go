package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Vendor is a supplier that publishes price submissions through the vendor portal.
// IDs are the vendor codes issued by vendor management (e.g. "vendor-001").
type Vendor struct {
	ID           string          `gorm:"type:varchar(64);primaryKey"`
	Name         string          `gorm:"not null"`
	Categories   []string        `gorm:"serializer:json;type:jsonb;not null;default:'[]'"`
	Preferred    bool            `gorm:"not null;default:false"`
	Rating       decimal.Decimal `gorm:"type:decimal(3,2);not null;default:0"`
	LeadTimeDays int             `gorm:"not null;default:0"`
	Email        *string
	Active       bool `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Vendor) TableName() string { return "vendors" }

// Serves reports whether the vendor lists categoryID among its categories.
func (v Vendor) Serves(categoryID string) bool {
	for _, c := range v.Categories {
		if strings.EqualFold(c, categoryID) {
			return true
		}
	}
	return false
}
