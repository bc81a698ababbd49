package pricing

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"carmen/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ── Operators ────────────────────────────────────────────────────────────────

// Operator is a condition comparison.
type Operator int

const (
	OpEquals Operator = iota + 1
	OpNotEquals
	OpContains
	OpNotContains
	OpGreaterThan
	OpLessThan
	OpGreaterEqual
	OpLessEqual
	OpIn
	OpNotIn
	OpBetween
)

var operatorNames = map[string]Operator{
	"equals":             OpEquals,
	"eq":                 OpEquals,
	"notequals":          OpNotEquals,
	"ne":                 OpNotEquals,
	"contains":           OpContains,
	"notcontains":        OpNotContains,
	"greaterthan":        OpGreaterThan,
	"gt":                 OpGreaterThan,
	"lessthan":           OpLessThan,
	"lt":                 OpLessThan,
	"greaterequal":       OpGreaterEqual,
	"greaterthanorequal": OpGreaterEqual,
	"gte":                OpGreaterEqual,
	"lessequal":          OpLessEqual,
	"lessthanorequal":    OpLessEqual,
	"lte":                OpLessEqual,
	"in":                 OpIn,
	"notin":              OpNotIn,
	"between":            OpBetween,
}

// ParseOperator accepts camelCase, snake_case and kebab-case spellings.
func ParseOperator(s string) (Operator, error) {
	if op, ok := operatorNames[canonical(s)]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

func (o Operator) String() string {
	switch o {
	case OpEquals:
		return "equals"
	case OpNotEquals:
		return "not_equals"
	case OpContains:
		return "contains"
	case OpNotContains:
		return "not_contains"
	case OpGreaterThan:
		return "greater_than"
	case OpLessThan:
		return "less_than"
	case OpGreaterEqual:
		return "greater_equal"
	case OpLessEqual:
		return "less_equal"
	case OpIn:
		return "in"
	case OpNotIn:
		return "not_in"
	case OpBetween:
		return "between"
	default:
		return "unknown"
	}
}

// ── Fields ───────────────────────────────────────────────────────────────────

// Canonical request field names used in conditions.
const (
	FieldPRItemID          = "pritemid"
	FieldProductID         = "productid"
	FieldProductName       = "productname"
	FieldCategoryID        = "categoryid"
	FieldQuantity          = "quantity"
	FieldLocation          = "location"
	FieldDepartment        = "department"
	FieldPreferredCurrency = "preferredcurrency"
	FieldRequestedDate     = "requesteddate"
)

var fieldAliases = map[string]string{
	"category": FieldCategoryID,
	"product":  FieldProductID,
	"currency": FieldPreferredCurrency,
	"date":     FieldRequestedDate,
	"qty":      FieldQuantity,
}

// canonical lower-cases s and drops separators, so "categoryId",
// "category_id" and "category-id" compare equal.
func canonical(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// CanonicalField resolves a condition field name, including short aliases.
func CanonicalField(s string) string {
	c := canonical(s)
	if alias, ok := fieldAliases[c]; ok {
		return alias
	}
	return c
}

var knownFields = map[string]bool{
	FieldPRItemID: true, FieldProductID: true, FieldProductName: true,
	FieldCategoryID: true, FieldQuantity: true, FieldLocation: true,
	FieldDepartment: true, FieldPreferredCurrency: true, FieldRequestedDate: true,
}

// Fields is the evaluator's view of a request: canonical field -> value.
// Values are string, decimal.Decimal (quantity) or time.Time (requested date).
func (r Request) Fields() map[string]any {
	return map[string]any{
		FieldPRItemID:          r.PRItemID,
		FieldProductID:         r.ProductID,
		FieldProductName:       r.ProductName,
		FieldCategoryID:        r.CategoryID,
		FieldQuantity:          r.Quantity,
		FieldLocation:          r.Location,
		FieldDepartment:        r.Department,
		FieldPreferredCurrency: r.PreferredCurrency,
		FieldRequestedDate:     r.RequestedDate,
	}
}

// ── Compiled rules ───────────────────────────────────────────────────────────

// Condition is a compiled rule condition.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// Rule is a compiled BusinessRule.
type Rule struct {
	ID            uuid.UUID
	Name          string
	Priority      int
	Conditions    []Condition
	Actions       []Action
	Active        bool
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
	CreatedAt     time.Time
}

// RuleSet is an immutable, versioned snapshot of the rules, sorted by
// evaluation order: priority descending, then oldest first, then lowest ID.
type RuleSet struct {
	Version int64
	Rules   []Rule
}

// CompileRule validates a stored rule and turns it into its evaluable form.
// All problems are reported together as a ValidationError.
func CompileRule(m model.BusinessRule) (Rule, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(m.Name) == "" {
		verr.Add("name", "name is required")
	}
	if m.EffectiveFrom != nil && m.EffectiveTo != nil && !m.EffectiveTo.After(*m.EffectiveFrom) {
		verr.Add("effectiveTo", "effectiveTo must be after effectiveFrom")
	}

	rule := Rule{
		ID:            m.ID,
		Name:          m.Name,
		Priority:      m.Priority,
		Active:        m.Active,
		EffectiveFrom: m.EffectiveFrom,
		EffectiveTo:   m.EffectiveTo,
		CreatedAt:     m.CreatedAt,
	}
	for i, c := range m.Conditions {
		field := CanonicalField(c.Field)
		if !knownFields[field] {
			verr.Add(fmt.Sprintf("conditions[%d].field", i), fmt.Sprintf("unknown field %q", c.Field))
		}
		op, err := ParseOperator(c.Operator)
		if err != nil {
			verr.Add(fmt.Sprintf("conditions[%d].operator", i), err.Error())
		}
		if op == OpBetween && len(asList(c.Value)) != 2 {
			verr.Add(fmt.Sprintf("conditions[%d].value", i), "between takes a [low, high] pair")
		}
		rule.Conditions = append(rule.Conditions, Condition{Field: field, Op: op, Value: c.Value})
	}
	if len(m.Actions) == 0 {
		verr.Add("actions", "at least one action is required")
	}
	for i, a := range m.Actions {
		act, err := ParseAction(a)
		if err != nil {
			verr.Add(fmt.Sprintf("actions[%d]", i), err.Error())
			continue
		}
		rule.Actions = append(rule.Actions, act)
	}
	if err := verr.OrNil(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// NewRuleSet compiles rows into an ordered snapshot. Rows that fail to
// compile are left out and returned with their error so callers can log them.
func NewRuleSet(version int64, rows []model.BusinessRule) (RuleSet, map[uuid.UUID]error) {
	set := RuleSet{Version: version, Rules: make([]Rule, 0, len(rows))}
	var bad map[uuid.UUID]error
	for _, row := range rows {
		r, err := CompileRule(row)
		if err != nil {
			if bad == nil {
				bad = make(map[uuid.UUID]error)
			}
			bad[row.ID] = err
			continue
		}
		set.Rules = append(set.Rules, r)
	}
	sort.SliceStable(set.Rules, func(i, j int) bool {
		a, b := set.Rules[i], set.Rules[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return set, bad
}

// InEffect reports whether the rule is active and inside its effective window at t.
func (r Rule) InEffect(t time.Time) bool {
	if !r.Active {
		return false
	}
	if r.EffectiveFrom != nil && t.Before(*r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || t.Before(*r.EffectiveTo)
}

// Matches reports whether every condition holds for fields. A rule without
// conditions matches every request.
func (r Rule) Matches(fields map[string]any) bool {
	for _, c := range r.Conditions {
		if !c.Matches(fields) {
			return false
		}
	}
	return true
}

// Evaluate returns the first rule of set, in evaluation order, that is in
// effect at now and whose conditions all match req; nil when none does.
func Evaluate(req Request, set RuleSet, now time.Time) *Rule {
	fields := req.Fields()
	for i := range set.Rules {
		r := &set.Rules[i]
		if r.InEffect(now) && r.Matches(fields) {
			return r
		}
	}
	return nil
}

// ── Condition matching ───────────────────────────────────────────────────────

// Matches evaluates the condition against fields. Unknown fields and values
// that cannot be compared with the field's type never match, negated
// operators included.
func (c Condition) Matches(fields map[string]any) bool {
	actual, ok := fields[c.Field]
	if !ok {
		return false
	}
	switch c.Op {
	case OpEquals:
		eq, ok := equalValues(actual, c.Value)
		return ok && eq
	case OpNotEquals:
		eq, ok := equalValues(actual, c.Value)
		return ok && !eq
	case OpContains:
		in, ok := containsValue(actual, c.Value)
		return ok && in
	case OpNotContains:
		in, ok := containsValue(actual, c.Value)
		return ok && !in
	case OpGreaterThan:
		cmp, ok := compareValues(actual, c.Value)
		return ok && cmp > 0
	case OpLessThan:
		cmp, ok := compareValues(actual, c.Value)
		return ok && cmp < 0
	case OpGreaterEqual:
		cmp, ok := compareValues(actual, c.Value)
		return ok && cmp >= 0
	case OpLessEqual:
		cmp, ok := compareValues(actual, c.Value)
		return ok && cmp <= 0
	case OpIn:
		in, ok := inList(actual, c.Value)
		return ok && in
	case OpNotIn:
		in, ok := inList(actual, c.Value)
		return ok && !in
	case OpBetween:
		return between(actual, c.Value)
	default:
		return false
	}
}

// equalValues reports equality and whether expected could be read as the
// type of actual at all.
func equalValues(actual, expected any) (equal, ok bool) {
	switch a := actual.(type) {
	case string:
		e, ok := asString(expected)
		if !ok {
			return false, false
		}
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(e)), true
	case decimal.Decimal:
		e, ok := asDecimal(expected)
		if !ok {
			return false, false
		}
		return a.Equal(e), true
	case time.Time:
		e, dateOnly, ok := asTime(expected)
		if !ok {
			return false, false
		}
		if dateOnly {
			return sameDay(a, e), true
		}
		return a.Equal(e), true
	default:
		return false, false
	}
}

// containsValue is a case-insensitive substring test on string fields only.
func containsValue(actual, expected any) (contains, ok bool) {
	a, isString := actual.(string)
	if !isString {
		return false, false
	}
	e, ok := asString(expected)
	if !ok || e == "" {
		return false, false
	}
	return strings.Contains(strings.ToLower(a), strings.ToLower(e)), true
}

func compareValues(actual, expected any) (int, bool) {
	switch a := actual.(type) {
	case decimal.Decimal:
		e, ok := asDecimal(expected)
		if !ok {
			return 0, false
		}
		return a.Cmp(e), true
	case time.Time:
		e, dateOnly, ok := asTime(expected)
		if !ok {
			return 0, false
		}
		if dateOnly {
			a = truncateDay(a)
		}
		return a.Compare(e), true
	case string:
		// numeric strings (e.g. a department code) still compare numerically
		ad, errA := decimal.NewFromString(strings.TrimSpace(a))
		e, ok := asDecimal(expected)
		if errA != nil || !ok {
			return 0, false
		}
		return ad.Cmp(e), true
	default:
		return 0, false
	}
}

// inList reports membership. An empty list, or one holding an element that
// cannot be compared with actual, is not ok.
func inList(actual, expected any) (found, ok bool) {
	list := asList(expected)
	if len(list) == 0 {
		return false, false
	}
	for _, v := range list {
		eq, comparable := equalValues(actual, v)
		if !comparable {
			return false, false
		}
		found = found || eq
	}
	return found, true
}

// between is an inclusive range test on a [low, high] pair.
func between(actual, expected any) bool {
	bounds := asList(expected)
	if len(bounds) != 2 {
		return false
	}
	lo, okLo := compareValues(actual, bounds[0])
	hi, okHi := compareValues(actual, bounds[1])
	return okLo && okHi && lo >= 0 && hi <= 0
}

// ── Value coercion ───────────────────────────────────────────────────────────

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case fmt.Stringer:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func asTime(v any) (time.Time, bool, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, false, true
	case string:
		s := strings.TrimSpace(x)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, false, true
		}
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			return t, true, true
		}
	}
	return time.Time{}, false, false
}

func asList(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	case string:
		parts := strings.Split(x, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case nil:
		return nil
	default:
		return []any{x}
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return truncateDay(a).Equal(truncateDay(b))
}
