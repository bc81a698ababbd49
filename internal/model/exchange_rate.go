package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExchangeRate states that 1 unit of BaseCurrency buys Rate units of
// QuoteCurrency from EffectiveAt onwards. Rates are appended, never edited.
type ExchangeRate struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BaseCurrency  string          `gorm:"type:char(3);not null;index:idx_exchange_rates_pair,priority:1"`
	QuoteCurrency string          `gorm:"type:char(3);not null;index:idx_exchange_rates_pair,priority:2"`
	Rate          decimal.Decimal `gorm:"type:decimal(20,10);not null"`
	EffectiveAt   time.Time       `gorm:"not null;index:idx_exchange_rates_pair,priority:3"`
	Source        string          `gorm:"not null;default:'manual'"` // manual | feed | seed
	CreatedAt     time.Time
}

func (ExchangeRate) TableName() string { return "exchange_rates" }
