// Package pricing holds the price assignment engine: catalog filtering,
// currency normalisation, business rule evaluation, vendor selection and the
// override ledger rules. Everything here is pure; persistence lives behind the
// interfaces declared in this file and is provided by the service layer.
package pricing

import (
	"context"
	"sort"
	"strings"
	"time"

	"carmen/internal/model"

	"github.com/shopspring/decimal"
)

// Request is one purchase-request line to price.
type Request struct {
	PRItemID          string
	ProductID         string
	ProductName       string
	CategoryID        string
	Quantity          decimal.Decimal
	RequestedDate     time.Time
	Location          string
	Department        string
	PreferredCurrency string
}

// CatalogFilter narrows a catalog lookup. Empty fields do not filter.
type CatalogFilter struct {
	VendorID string
	Location string
	At       time.Time
}

// Catalog is the price catalog store.
type Catalog interface {
	// ValidSubmissions returns the currently-valid, non-superseded submissions
	// for productID, or a NotFoundError when there are none.
	ValidSubmissions(ctx context.Context, productID string, f CatalogFilter) ([]model.PriceSubmission, error)
}

// RateSource yields the exchange-rate snapshot in force at a timestamp.
type RateSource interface {
	SnapshotAt(ctx context.Context, at time.Time) (*RateTable, error)
}

// RuleSource yields the current versioned rule set.
type RuleSource interface {
	Snapshot(ctx context.Context) (RuleSet, error)
}

// FilterValid keeps the submissions valid at f.At that match the vendor and
// location filters, then keeps one submission per vendor. With a location,
// that location's quote beats the vendor's global one; without one, the
// global quote beats any location-scoped quote, which only serves when the
// vendor has nothing global. Then a later SubmittedAt wins and the lowest ID
// breaks exact ties. The result is ordered by vendor ID.
func FilterValid(subs []model.PriceSubmission, f CatalogFilter) []model.PriceSubmission {
	at := f.At
	if at.IsZero() {
		at = time.Now()
	}

	best := make(map[string]model.PriceSubmission, len(subs))
	for _, s := range subs {
		if !s.ValidAt(at) {
			continue
		}
		if f.VendorID != "" && s.VendorID != f.VendorID {
			continue
		}
		if f.Location != "" && s.Location != "" && !strings.EqualFold(s.Location, f.Location) {
			continue
		}
		cur, ok := best[s.VendorID]
		if !ok || supersedes(s, cur, f.Location != "") {
			best[s.VendorID] = s
		}
	}

	out := make([]model.PriceSubmission, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VendorID < out[j].VendorID })
	return out
}

func supersedes(a, b model.PriceSubmission, scoped bool) bool {
	if (a.Location != "") != (b.Location != "") {
		return (a.Location != "") == scoped
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.After(b.SubmittedAt)
	}
	return a.ID.String() < b.ID.String()
}
