package pricing

import (
	"fmt"
	"strings"

	"carmen/internal/model"
)

// ActionKind is the closed set of things a business rule can do.
type ActionKind int

const (
	// ActionAssignVendor forces the rule's target vendor when it has a valid quote.
	ActionAssignVendor ActionKind = iota + 1
	// ActionPreferCategory ranks vendors serving a category ahead of the rest.
	ActionPreferCategory
	// ActionFlagReview marks the assignment for manual review.
	ActionFlagReview
	// ActionNotify mails a recipient when the rule fires.
	ActionNotify
)

func (k ActionKind) String() string {
	switch k {
	case ActionAssignVendor:
		return "assign_vendor"
	case ActionPreferCategory:
		return "prefer_category"
	case ActionFlagReview:
		return "flag_review"
	case ActionNotify:
		return "send_notification"
	default:
		return "unknown"
	}
}

var actionKinds = map[string]ActionKind{
	"assignvendor":     ActionAssignVendor,
	"forcevendor":      ActionAssignVendor,
	"prefercategory":   ActionPreferCategory,
	"flagreview":       ActionFlagReview,
	"sendnotification": ActionNotify,
	"notify":           ActionNotify,
}

// Action is a parsed rule action. Only the fields of its Kind are set.
type Action struct {
	Kind       ActionKind
	VendorID   string
	CategoryID string
	Message    string
	Email      string
}

// ParseAction validates a stored action and its required parameters.
func ParseAction(m model.RuleAction) (Action, error) {
	kind, ok := actionKinds[canonical(m.Type)]
	if !ok {
		return Action{}, fmt.Errorf("unknown action type %q", m.Type)
	}
	param := func(names ...string) string {
		for k, v := range m.Parameters {
			for _, n := range names {
				if canonical(k) == n {
					return strings.TrimSpace(v)
				}
			}
		}
		return ""
	}

	a := Action{Kind: kind}
	switch kind {
	case ActionAssignVendor:
		a.VendorID = param("vendorid", "vendor")
		if a.VendorID == "" {
			return Action{}, fmt.Errorf("%s requires parameter vendorId", kind)
		}
	case ActionPreferCategory:
		a.CategoryID = param("categoryid", "category")
		if a.CategoryID == "" {
			return Action{}, fmt.Errorf("%s requires parameter categoryId", kind)
		}
	case ActionFlagReview:
		a.Message = param("message", "reason")
	case ActionNotify:
		a.Email = param("email", "recipient", "to")
		a.Message = param("message")
		if a.Email == "" {
			return Action{}, fmt.Errorf("%s requires parameter email", kind)
		}
	}
	return a, nil
}

// Parameters renders the action back into its stored parameter map.
func (a Action) Parameters() map[string]string {
	p := map[string]string{}
	switch a.Kind {
	case ActionAssignVendor:
		p["vendorId"] = a.VendorID
	case ActionPreferCategory:
		p["categoryId"] = a.CategoryID
	case ActionFlagReview:
		if a.Message != "" {
			p["message"] = a.Message
		}
	case ActionNotify:
		p["email"] = a.Email
		if a.Message != "" {
			p["message"] = a.Message
		}
	}
	return p
}
