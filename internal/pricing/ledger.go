package pricing

import (
	"sort"
	"strings"
	"sync"
	"time"

	"carmen/internal/model"

	"github.com/shopspring/decimal"
)

// OverrideInput is a manual correction of an assignment.
type OverrideInput struct {
	VendorID string
	Price    decimal.Decimal
	Currency string
	Reason   string
	Actor    string
}

// ValidateOverride returns a ValidationError with one message per bad field.
func ValidateOverride(in OverrideInput) error {
	verr := &ValidationError{}
	if strings.TrimSpace(in.Reason) == "" {
		verr.Add("reason", "reason is required")
	}
	if strings.TrimSpace(in.VendorID) == "" {
		verr.Add("newVendorId", "newVendorId is required")
	}
	if in.Price.IsNegative() {
		verr.Add("newPrice", "newPrice must be greater than or equal to 0")
	}
	if !IsCurrencyCode(in.Currency) {
		verr.Add("currency", "currency must be a recognized three-letter ISO code")
	}
	return verr.OrNil()
}

// ManualConfidence is recorded on override entries: a person chose the vendor.
var ManualConfidence = decimal.NewFromInt(1)

// InitialEntry is the "assigned" history row written with a new assignment.
func InitialEntry(a *model.PriceAssignment) model.AssignmentHistory {
	normalized := a.NormalizedPrice
	return model.AssignmentHistory{
		AssignmentID:    a.ID,
		Seq:             1,
		Action:          model.HistoryActionAssigned,
		VendorID:        a.VendorID,
		VendorName:      a.VendorName,
		Price:           a.AssignedPrice,
		Currency:        a.Currency,
		NormalizedPrice: &normalized,
		Confidence:      a.Confidence,
		Reason:          a.Reason,
		Actor:           "system",
		CreatedAt:       a.CreatedAt,
	}
}

// ApplyOverride moves the assignment's current view to the override and
// returns the history entry to append. The original decision columns are
// left untouched. The caller persists both against the version it read.
func ApplyOverride(a *model.PriceAssignment, in OverrideInput, vendorName string, normalized *decimal.Decimal, now time.Time) model.AssignmentHistory {
	a.CurrentVendorID = in.VendorID
	a.CurrentVendorName = vendorName
	a.CurrentPrice = in.Price
	a.CurrentCurrency = in.Currency
	a.CurrentNormalizedPrice = normalized
	a.Overridden = true
	a.OverrideCount++
	a.Version++
	a.UpdatedAt = now

	return model.AssignmentHistory{
		AssignmentID:    a.ID,
		Seq:             a.Version,
		Action:          model.HistoryActionOverride,
		VendorID:        in.VendorID,
		VendorName:      vendorName,
		Price:           in.Price,
		Currency:        in.Currency,
		NormalizedPrice: normalized,
		Confidence:      ManualConfidence,
		Reason:          strings.TrimSpace(in.Reason),
		Actor:           in.Actor,
		CreatedAt:       now,
	}
}

// SortNewestFirst orders history entries by sequence, newest first.
func SortNewestFirst(entries []model.AssignmentHistory) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq > entries[j].Seq })
}

// KeyedMutex serialises work per key. Entries are dropped once no goroutine
// holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len is the number of keys currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
