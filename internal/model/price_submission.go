package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceSubmission is one vendor quote for a product. Rows are never updated:
// a newer submission for the same vendor and scope supersedes the older one.
// Location "" means the quote applies to every location.
type PriceSubmission struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VendorID     string           `gorm:"type:varchar(64);not null;index"`
	ProductID    string           `gorm:"type:varchar(64);not null;index"`
	Location     string           `gorm:"type:varchar(64);not null;default:''"`
	UnitPrice    decimal.Decimal  `gorm:"type:decimal(14,4);not null"`
	Currency     string           `gorm:"type:char(3);not null"`
	MinOrderQty  decimal.Decimal  `gorm:"type:decimal(12,3);not null;default:1"`
	AvailableQty *decimal.Decimal `gorm:"type:decimal(12,3)"` // nil = no stock ceiling
	LeadTimeDays *int
	SubmittedAt  time.Time  `gorm:"not null"`
	ValidFrom    time.Time  `gorm:"not null"`
	ValidTo      *time.Time // exclusive; nil = open-ended
	CreatedAt    time.Time

	Vendor *Vendor `gorm:"foreignKey:VendorID"`
}

func (PriceSubmission) TableName() string { return "price_submissions" }

// ValidAt reports whether t falls inside [ValidFrom, ValidTo).
func (s PriceSubmission) ValidAt(t time.Time) bool {
	if t.Before(s.ValidFrom) {
		return false
	}
	return s.ValidTo == nil || t.Before(*s.ValidTo)
}

// Satisfies reports whether qty meets the minimum order and stays within stock.
func (s PriceSubmission) Satisfies(qty decimal.Decimal) bool {
	if qty.LessThan(s.MinOrderQty) {
		return false
	}
	return s.AvailableQty == nil || !qty.GreaterThan(*s.AvailableQty)
}
