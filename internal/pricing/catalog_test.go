package pricing

import (
	"testing"
	"time"

	"carmen/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fixtures ─────────────────────────────────────────────────────────────────

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func submission(vendor, product, price, currency string) model.PriceSubmission {
	return model.PriceSubmission{
		ID:          uuid.New(),
		VendorID:    vendor,
		ProductID:   product,
		UnitPrice:   decimal.RequireFromString(price),
		Currency:    currency,
		MinOrderQty: decimal.NewFromInt(1),
		SubmittedAt: t0.Add(-48 * time.Hour),
		ValidFrom:   t0.Add(-24 * time.Hour),
	}
}

func vendorIDs(subs []model.PriceSubmission) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.VendorID
	}
	return out
}

// ── FilterValid ──────────────────────────────────────────────────────────────

func TestFilterValid_DropsExpiredAndFutureSubmissions(t *testing.T) {
	expired := submission("vendor-1", "PROD-001", "90.00", "USD")
	end := t0.Add(-time.Hour)
	expired.ValidTo = &end

	future := submission("vendor-2", "PROD-001", "80.00", "USD")
	future.ValidFrom = t0.Add(time.Hour)

	current := submission("vendor-3", "PROD-001", "99.99", "USD")

	got := FilterValid([]model.PriceSubmission{expired, future, current}, CatalogFilter{At: t0})
	assert.Equal(t, []string{"vendor-3"}, vendorIDs(got))
}

func TestFilterValid_ValidToIsExclusive(t *testing.T) {
	s := submission("vendor-1", "PROD-001", "10", "USD")
	end := t0
	s.ValidTo = &end

	assert.Empty(t, FilterValid([]model.PriceSubmission{s}, CatalogFilter{At: t0}))
}

func TestFilterValid_NewerSubmissionSupersedesOlder(t *testing.T) {
	older := submission("vendor-1", "PROD-001", "100.00", "USD")
	newer := submission("vendor-1", "PROD-001", "95.00", "USD")
	newer.SubmittedAt = older.SubmittedAt.Add(time.Hour)

	got := FilterValid([]model.PriceSubmission{newer, older}, CatalogFilter{At: t0})
	require.Len(t, got, 1)
	assert.True(t, got[0].UnitPrice.Equal(decimal.RequireFromString("95.00")))
}

func TestFilterValid_LocationSpecificQuoteBeatsGlobal(t *testing.T) {
	global := submission("vendor-1", "PROD-001", "100.00", "USD")
	global.SubmittedAt = t0.Add(-time.Hour) // newer, but less specific
	local := submission("vendor-1", "PROD-001", "97.00", "USD")
	local.Location = "BKK-HOTEL-1"

	got := FilterValid([]model.PriceSubmission{global, local}, CatalogFilter{At: t0, Location: "bkk-hotel-1"})
	require.Len(t, got, 1)
	assert.Equal(t, "BKK-HOTEL-1", got[0].Location)
}

func TestFilterValid_UnscopedRequestPrefersGlobalQuote(t *testing.T) {
	global := submission("vendor-1", "PROD-001", "100.00", "USD")
	bangkok := submission("vendor-1", "PROD-001", "80.00", "USD")
	bangkok.Location = "BANGKOK"
	bangkok.SubmittedAt = global.SubmittedAt.Add(time.Hour)
	phuket := submission("vendor-1", "PROD-001", "85.00", "USD")
	phuket.Location = "PHUKET"
	phuket.SubmittedAt = global.SubmittedAt.Add(2 * time.Hour)

	got := FilterValid([]model.PriceSubmission{bangkok, phuket, global}, CatalogFilter{At: t0})
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Location)
	assert.True(t, got[0].UnitPrice.Equal(decimal.RequireFromString("100.00")))
}

func TestFilterValid_UnscopedRequestFallsBackToLatestScopedQuote(t *testing.T) {
	bangkok := submission("vendor-1", "PROD-001", "80.00", "USD")
	bangkok.Location = "BANGKOK"
	phuket := submission("vendor-1", "PROD-001", "85.00", "USD")
	phuket.Location = "PHUKET"
	phuket.SubmittedAt = bangkok.SubmittedAt.Add(time.Hour)

	got := FilterValid([]model.PriceSubmission{bangkok, phuket}, CatalogFilter{At: t0})
	require.Len(t, got, 1)
	assert.Equal(t, "PHUKET", got[0].Location)
}

func TestFilterValid_OtherLocationsExcluded(t *testing.T) {
	elsewhere := submission("vendor-1", "PROD-001", "50.00", "USD")
	elsewhere.Location = "PHUKET"
	global := submission("vendor-2", "PROD-001", "60.00", "USD")

	got := FilterValid([]model.PriceSubmission{elsewhere, global}, CatalogFilter{At: t0, Location: "BANGKOK"})
	assert.Equal(t, []string{"vendor-2"}, vendorIDs(got))
}

func TestFilterValid_VendorFilterAndStableOrder(t *testing.T) {
	subs := []model.PriceSubmission{
		submission("vendor-c", "PROD-001", "3", "USD"),
		submission("vendor-a", "PROD-001", "1", "USD"),
		submission("vendor-b", "PROD-001", "2", "USD"),
	}

	assert.Equal(t, []string{"vendor-a", "vendor-b", "vendor-c"}, vendorIDs(FilterValid(subs, CatalogFilter{At: t0})))
	assert.Equal(t, []string{"vendor-b"}, vendorIDs(FilterValid(subs, CatalogFilter{At: t0, VendorID: "vendor-b"})))
}
