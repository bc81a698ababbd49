package pricing

import (
	"fmt"
	"sort"
	"strings"

	"carmen/internal/model"

	"github.com/shopspring/decimal"
)

// ReasonBestPrice is the assignment reason when price alone decided.
const ReasonBestPrice = "lowest normalized price"

// MinQuantityPolicy decides what happens to quotes whose minimum order
// (or stock) cannot satisfy the requested quantity.
type MinQuantityPolicy string

const (
	// MinQuantityFlag keeps the quote but marks it unavailable.
	MinQuantityFlag MinQuantityPolicy = "flag"
	// MinQuantityDisqualify drops the quote from the candidate set.
	MinQuantityDisqualify MinQuantityPolicy = "disqualify"
)

// ParseMinQuantityPolicy accepts "flag" (default when empty) or "disqualify".
func ParseMinQuantityPolicy(s string) (MinQuantityPolicy, error) {
	switch MinQuantityPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MinQuantityFlag:
		return MinQuantityFlag, nil
	case MinQuantityDisqualify:
		return MinQuantityDisqualify, nil
	default:
		return "", fmt.Errorf("unknown min quantity policy %q", s)
	}
}

// Candidate is a submission priced in the comparison currency.
type Candidate struct {
	Submission   model.PriceSubmission
	VendorName   string
	Categories   []string
	LeadTimeDays int
	Normalized   decimal.Decimal
	Rate         decimal.Decimal
	Available    bool
}

// VendorID of the quoting vendor.
func (c Candidate) VendorID() string { return c.Submission.VendorID }

func (c Candidate) serves(categoryID string) bool {
	for _, cat := range c.Categories {
		if strings.EqualFold(cat, categoryID) {
			return true
		}
	}
	return false
}

// Alternative converts the candidate into its stored alternative form.
func (c Candidate) Alternative() model.Alternative {
	return model.Alternative{
		VendorID:        c.VendorID(),
		VendorName:      c.VendorName,
		Price:           c.Submission.UnitPrice,
		Currency:        c.Submission.Currency,
		NormalizedPrice: c.Normalized,
		ExchangeRate:    c.Rate,
		Available:       c.Available,
		MinOrderQty:     c.Submission.MinOrderQty,
		LeadTimeDays:    c.LeadTimeDays,
	}
}

// BuildCandidates normalizes every submission into target. Any missing rate
// fails the whole build: comparing against a guessed rate would be wrong.
func BuildCandidates(req Request, subs []model.PriceSubmission, rates *RateTable, target string, policy MinQuantityPolicy) ([]Candidate, error) {
	out := make([]Candidate, 0, len(subs))
	for _, s := range subs {
		normalized, rate, err := rates.Normalize(s.UnitPrice, s.Currency, target)
		if err != nil {
			return nil, err
		}
		available := s.Satisfies(req.Quantity)
		if !available && policy == MinQuantityDisqualify {
			continue
		}

		c := Candidate{
			Submission: s,
			VendorName: s.VendorID,
			Normalized: normalized,
			Rate:       rate,
			Available:  available,
		}
		if s.Vendor != nil {
			c.VendorName = s.Vendor.Name
			c.Categories = s.Vendor.Categories
			c.LeadTimeDays = s.Vendor.LeadTimeDays
		}
		if s.LeadTimeDays != nil {
			c.LeadTimeDays = *s.LeadTimeDays
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, NoPricing(req.ProductID)
	}
	return out, nil
}

// Decision is the selector's output.
type Decision struct {
	Selected       Candidate
	Alternatives   []Candidate
	Reason         string
	Rule           *Rule
	RuleNotHonored bool
	RequiresReview bool
	ReviewMessage  string
	Notifications  []Action
	Confidence     decimal.Decimal
}

// Select picks the vendor for req among cands, honouring rule when it can.
// Ordering is total, so equal inputs always give the same decision.
func Select(req Request, cands []Candidate, rule *Rule) (*Decision, error) {
	if len(cands) == 0 {
		return nil, NoPricing(req.ProductID)
	}

	d := &Decision{Rule: rule}
	var forceVendor, preferCategory string
	if rule != nil {
		for _, a := range rule.Actions {
			switch a.Kind {
			case ActionAssignVendor:
				if forceVendor == "" {
					forceVendor = a.VendorID
				}
			case ActionPreferCategory:
				if preferCategory == "" {
					preferCategory = a.CategoryID
				}
			case ActionFlagReview:
				d.RequiresReview = true
				if d.ReviewMessage == "" {
					d.ReviewMessage = a.Message
				}
			case ActionNotify:
				d.Notifications = append(d.Notifications, a)
			default:
				return nil, fmt.Errorf("rule %q: unhandled action kind %d", rule.Name, a.Kind)
			}
		}
	}

	byPrice := rank(cands, "")
	ranked := byPrice
	if preferCategory != "" {
		ranked = rank(cands, preferCategory)
	}
	cheapest := byPrice[0]

	agreement := noRuleInfluence
	selected := ranked[0]
	switch {
	case forceVendor != "":
		if c, ok := find(ranked, forceVendor); ok {
			selected = c
			d.Reason = fmt.Sprintf("business rule '%s' assigned vendor %s", rule.Name, forceVendor)
			agreement = ruleOverridesPrice
			if c.VendorID() == cheapest.VendorID() {
				agreement = ruleAgreesWithPrice
			}
		} else {
			d.RuleNotHonored = true
			d.Reason = fmt.Sprintf("%s; business rule '%s' could not be honored: vendor %s has no valid price for product %s",
				ReasonBestPrice, rule.Name, forceVendor, req.ProductID)
			agreement = ruleNotHonored
		}
	case preferCategory != "":
		if selected.VendorID() == cheapest.VendorID() {
			d.Reason = fmt.Sprintf("%s; business rule '%s' preferred category %s", ReasonBestPrice, rule.Name, preferCategory)
			agreement = ruleAgreesWithPrice
		} else {
			d.Reason = fmt.Sprintf("business rule '%s' preferred vendors of category %s", rule.Name, preferCategory)
			agreement = ruleCategoryOverridesPrice
		}
	case rule != nil:
		d.Reason = fmt.Sprintf("%s; business rule '%s' applied", ReasonBestPrice, rule.Name)
	default:
		d.Reason = ReasonBestPrice
	}

	d.Selected = selected
	d.Alternatives = make([]Candidate, 0, len(ranked)-1)
	for _, c := range ranked {
		if c.VendorID() != selected.VendorID() {
			d.Alternatives = append(d.Alternatives, c)
		}
	}

	d.Confidence = confidenceInputs{
		winnerAvailable: selected.Available,
		alternatives:    len(d.Alternatives),
		agreement:       agreement,
		reviewFlagged:   d.RequiresReview,
	}.score()
	return d, nil
}

// rank orders a copy of cands: vendors serving preferCategory first (when
// set), then normalized price, lead time, submission time and vendor ID.
func rank(cands []Candidate, preferCategory string) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if preferCategory != "" {
			if as, bs := a.serves(preferCategory), b.serves(preferCategory); as != bs {
				return as
			}
		}
		if c := a.Normalized.Cmp(b.Normalized); c != 0 {
			return c < 0
		}
		if a.LeadTimeDays != b.LeadTimeDays {
			return a.LeadTimeDays < b.LeadTimeDays
		}
		if !a.Submission.SubmittedAt.Equal(b.Submission.SubmittedAt) {
			return a.Submission.SubmittedAt.Before(b.Submission.SubmittedAt)
		}
		return a.VendorID() < b.VendorID()
	})
	return out
}

func find(cands []Candidate, vendorID string) (Candidate, bool) {
	for _, c := range cands {
		if c.VendorID() == vendorID {
			return c, true
		}
	}
	return Candidate{}, false
}
