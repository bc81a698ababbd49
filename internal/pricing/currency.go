package pricing

import (
	"encoding/json"
	"strings"
	"time"

	"carmen/internal/model"

	"github.com/shopspring/decimal"
)

// NormalizedScale is the number of decimal places kept on normalized prices.
const NormalizedScale = 4

const rateScale = 10

// isoCurrencies are the ISO-4217 codes accepted on input.
var isoCurrencies = map[string]struct{}{
	"AED": {}, "AUD": {}, "BDT": {}, "BRL": {}, "CAD": {}, "CHF": {}, "CNY": {},
	"CZK": {}, "DKK": {}, "EUR": {}, "GBP": {}, "HKD": {}, "HUF": {}, "IDR": {},
	"ILS": {}, "INR": {}, "JPY": {}, "KHR": {}, "KRW": {}, "LAK": {}, "LKR": {},
	"MMK": {}, "MXN": {}, "MYR": {}, "NOK": {}, "NZD": {}, "PHP": {}, "PKR": {},
	"PLN": {}, "QAR": {}, "RUB": {}, "SAR": {}, "SEK": {}, "SGD": {}, "THB": {},
	"TRY": {}, "TWD": {}, "USD": {}, "VND": {}, "ZAR": {},
}

// IsCurrencyCode reports whether code is a recognized three-letter code.
// Matching is exact: lower-case codes are rejected.
func IsCurrencyCode(code string) bool {
	_, ok := isoCurrencies[code]
	return ok
}

// RateTable is an immutable exchange-rate snapshot. Rates are keyed
// "BASE/QUOTE" meaning 1 BASE = rate QUOTE.
type RateTable struct {
	epoch time.Time
	base  string
	rates map[string]decimal.Decimal
}

// NewRateTable keeps the latest rate per pair (by EffectiveAt) from rows.
// Epoch is the newest EffectiveAt kept, or at when rows is empty.
func NewRateTable(base string, at time.Time, rows []model.ExchangeRate) *RateTable {
	t := &RateTable{base: strings.ToUpper(base), rates: make(map[string]decimal.Decimal)}
	seen := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		if r.EffectiveAt.After(at) || !r.Rate.IsPositive() {
			continue
		}
		key := pairKey(r.BaseCurrency, r.QuoteCurrency)
		if prev, ok := seen[key]; ok && !r.EffectiveAt.After(prev) {
			continue
		}
		seen[key] = r.EffectiveAt
		t.rates[key] = r.Rate
		if r.EffectiveAt.After(t.epoch) {
			t.epoch = r.EffectiveAt
		}
	}
	if t.epoch.IsZero() {
		t.epoch = at
	}
	return t
}

func pairKey(from, to string) string {
	return strings.ToUpper(from) + "/" + strings.ToUpper(to)
}

// Epoch identifies the snapshot; equal epochs give equal conversions.
func (t *RateTable) Epoch() time.Time { return t.epoch }

// Base is the currency used for cross rates.
func (t *RateTable) Base() string { return t.base }

// Len is the number of stored pairs.
func (t *RateTable) Len() int { return len(t.rates) }

// Rate returns how many units of to one unit of from buys. Lookup order is
// identity, direct pair, inverse pair, then a cross through the base currency.
func (t *RateTable) Rate(from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if r, ok := t.simple(from, to); ok {
		return r, nil
	}
	if t.base != "" && from != t.base && to != t.base {
		a, okA := t.simple(from, t.base)
		b, okB := t.simple(t.base, to)
		if okA && okB {
			return a.Mul(b).Round(rateScale), nil
		}
	}
	return decimal.Zero, &RateUnavailableError{From: from, To: to, Epoch: t.epoch}
}

func (t *RateTable) simple(from, to string) (decimal.Decimal, bool) {
	if r, ok := t.rates[pairKey(from, to)]; ok {
		return r, true
	}
	if r, ok := t.rates[pairKey(to, from)]; ok {
		return decimal.NewFromInt(1).DivRound(r, rateScale), true
	}
	return decimal.Zero, false
}

// Normalize converts amount from one currency into target and returns the
// normalized amount (NormalizedScale places) together with the rate used.
func (t *RateTable) Normalize(amount decimal.Decimal, from, target string) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := t.Rate(from, target)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return amount.Mul(rate).Round(NormalizedScale), rate, nil
}

type rateTableJSON struct {
	Epoch time.Time                  `json:"epoch"`
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// MarshalJSON lets snapshots be cached as plain JSON.
func (t *RateTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(rateTableJSON{Epoch: t.epoch, Base: t.base, Rates: t.rates})
}

func (t *RateTable) UnmarshalJSON(b []byte) error {
	var raw rateTableJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t.epoch, t.base, t.rates = raw.Epoch, raw.Base, raw.Rates
	if t.rates == nil {
		t.rates = make(map[string]decimal.Decimal)
	}
	return nil
}
