package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type VendorRequest struct {
	ID           string          `json:"id"           validate:"required,max=64"`
	Name         string          `json:"name"         validate:"required,min=2,max=200"`
	Categories   []string        `json:"categories"`
	Preferred    bool            `json:"preferred"`
	Rating       decimal.Decimal `json:"rating"       validate:"gte=0,lte=5"`
	LeadTimeDays int             `json:"leadTimeDays" validate:"min=0"`
	Email        *string         `json:"email"        validate:"omitempty,email"`
}

type PriceSubmissionRequest struct {
	VendorID     string           `json:"vendorId"     validate:"required,max=64"`
	ProductID    string           `json:"productId"    validate:"required,max=64"`
	Location     string           `json:"location"     validate:"max=64"`
	UnitPrice    decimal.Decimal  `json:"unitPrice"    validate:"gte=0"`
	Currency     string           `json:"currency"     validate:"required,len=3"`
	MinOrderQty  *decimal.Decimal `json:"minQuantity"`
	AvailableQty *decimal.Decimal `json:"availableQuantity"`
	LeadTimeDays *int             `json:"leadTime"     validate:"omitempty,min=0"`
	ValidFrom    *time.Time       `json:"validFrom"`
	ValidTo      *time.Time       `json:"validTo"`
}

type PriceFilter struct {
	VendorID string `form:"vendorId"`
	Location string `form:"location"`
	At       string `form:"at"` // RFC 3339, default now
}

type ExchangeRateRequest struct {
	BaseCurrency  string          `json:"baseCurrency"  validate:"required,len=3"`
	QuoteCurrency string          `json:"quoteCurrency" validate:"required,len=3"`
	Rate          decimal.Decimal `json:"rate"          validate:"gt=0"`
	EffectiveAt   *time.Time      `json:"effectiveAt"`
	Source        string          `json:"source"        validate:"omitempty,max=32"`
}

type ExchangeRateFilter struct {
	Base  string `form:"base"`
	Quote string `form:"quote"`
	Limit int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type VendorResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Categories   []string        `json:"categories"`
	Preferred    bool            `json:"preferred"`
	Rating       decimal.Decimal `json:"rating"`
	LeadTimeDays int             `json:"leadTimeDays"`
	Email        *string         `json:"email"`
	Active       bool            `json:"active"`
}

type PriceSubmissionResponse struct {
	ID           string           `json:"id"`
	VendorID     string           `json:"vendorId"`
	VendorName   string           `json:"vendorName,omitempty"`
	ProductID    string           `json:"productId"`
	Location     string           `json:"location,omitempty"`
	UnitPrice    decimal.Decimal  `json:"unitPrice"`
	Currency     string           `json:"currency"`
	MinOrderQty  decimal.Decimal  `json:"minQuantity"`
	AvailableQty *decimal.Decimal `json:"availableQuantity"`
	LeadTimeDays *int             `json:"leadTime"`
	SubmittedAt  time.Time        `json:"submittedAt"`
	ValidFrom    time.Time        `json:"validFrom"`
	ValidTo      *time.Time       `json:"validTo"`
}

type ExchangeRateResponse struct {
	ID            string          `json:"id"`
	BaseCurrency  string          `json:"baseCurrency"`
	QuoteCurrency string          `json:"quoteCurrency"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveAt   time.Time       `json:"effectiveAt"`
	Source        string          `json:"source"`
}
