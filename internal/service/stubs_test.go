package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"carmen/internal/model"
	"carmen/internal/pricing"
	"carmen/internal/repository"
	"carmen/internal/service"
	"carmen/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory repositories ───────────────────────────────────────────────────

type stubVendorRepo struct {
	mu      sync.Mutex
	vendors map[string]*model.Vendor
}

var _ repository.VendorRepository = (*stubVendorRepo)(nil)

func newStubVendorRepo(vendors ...model.Vendor) *stubVendorRepo {
	r := &stubVendorRepo{vendors: make(map[string]*model.Vendor)}
	for i := range vendors {
		v := vendors[i]
		r.vendors[v.ID] = &v
	}
	return r
}

func (r *stubVendorRepo) Create(_ context.Context, v *model.Vendor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vendors[v.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	cp := *v
	r.vendors[v.ID] = &cp
	return nil
}

func (r *stubVendorRepo) Upsert(_ context.Context, v *model.Vendor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.vendors[v.ID] = &cp
	return nil
}

func (r *stubVendorRepo) FindByID(_ context.Context, id string) (*model.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vendors[id]
	if !ok {
		return nil, &pricing.NotFoundError{Resource: "vendor", ID: id}
	}
	cp := *v
	return &cp, nil
}

func (r *stubVendorRepo) List(_ context.Context, includeInactive bool) ([]model.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Vendor, 0, len(r.vendors))
	for _, v := range r.vendors {
		if v.Active || includeInactive {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type stubSubmissionRepo struct {
	mu      sync.Mutex
	vendors *stubVendorRepo
	subs    []model.PriceSubmission
	err     error
	delay   time.Duration
}

var _ repository.PriceSubmissionRepository = (*stubSubmissionRepo)(nil)

func (r *stubSubmissionRepo) Create(_ context.Context, s *model.PriceSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, *s)
	return nil
}

func (r *stubSubmissionRepo) ListValidAt(ctx context.Context, productID string, at time.Time) ([]model.PriceSubmission, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PriceSubmission
	for _, s := range r.subs {
		if s.ProductID != productID || !s.ValidAt(at) {
			continue
		}
		if r.vendors != nil {
			if v, err := r.vendors.FindByID(ctx, s.VendorID); err == nil {
				s.Vendor = v
			}
		}
		out = append(out, s)
	}
	return out, nil
}

type stubRateRepo struct {
	mu    sync.Mutex
	rates []model.ExchangeRate
	reads int
}

var _ repository.ExchangeRateRepository = (*stubRateRepo)(nil)

func (r *stubRateRepo) Create(_ context.Context, rates ...model.ExchangeRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates = append(r.rates, rates...)
	return nil
}

func (r *stubRateRepo) InForceAt(_ context.Context, at time.Time) ([]model.ExchangeRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	latest := map[string]model.ExchangeRate{}
	for _, rt := range r.rates {
		if rt.EffectiveAt.After(at) {
			continue
		}
		key := rt.BaseCurrency + "/" + rt.QuoteCurrency
		if cur, ok := latest[key]; !ok || rt.EffectiveAt.After(cur.EffectiveAt) {
			latest[key] = rt
		}
	}
	out := make([]model.ExchangeRate, 0, len(latest))
	for _, rt := range latest {
		out = append(out, rt)
	}
	return out, nil
}

func (r *stubRateRepo) List(_ context.Context, f repository.ExchangeRateFilter) ([]model.ExchangeRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ExchangeRate
	for _, rt := range r.rates {
		if f.BaseCurrency != "" && rt.BaseCurrency != f.BaseCurrency {
			continue
		}
		if f.QuoteCurrency != "" && rt.QuoteCurrency != f.QuoteCurrency {
			continue
		}
		out = append(out, rt)
	}
	return out, nil
}

func (r *stubRateRepo) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

type stubRuleRepo struct {
	mu        sync.Mutex
	rules     map[uuid.UUID]*model.BusinessRule
	version   int64
	snapshots int
}

var _ repository.BusinessRuleRepository = (*stubRuleRepo)(nil)

func newStubRuleRepo(rules ...model.BusinessRule) *stubRuleRepo {
	r := &stubRuleRepo{rules: make(map[uuid.UUID]*model.BusinessRule), version: 1}
	for i := range rules {
		rule := rules[i]
		r.rules[rule.ID] = &rule
	}
	return r
}

func (r *stubRuleRepo) Create(_ context.Context, rule *model.BusinessRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rules {
		if strings.EqualFold(existing.Name, rule.Name) {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *rule
	r.rules[rule.ID] = &cp
	r.version++
	return nil
}

func (r *stubRuleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.BusinessRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, &pricing.NotFoundError{Resource: "business rule", ID: id.String()}
	}
	cp := *rule
	return &cp, nil
}

func (r *stubRuleRepo) List(_ context.Context, f repository.RuleFilter) ([]model.BusinessRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.BusinessRule
	for _, rule := range r.rules {
		if f.Active != nil && rule.Active != *f.Active {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(rule.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (r *stubRuleRepo) Update(_ context.Context, rule *model.BusinessRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.ID]; !ok {
		return &pricing.NotFoundError{Resource: "business rule", ID: rule.ID.String()}
	}
	cp := *rule
	r.rules[rule.ID] = &cp
	r.version++
	return nil
}

func (r *stubRuleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return &pricing.NotFoundError{Resource: "business rule", ID: id.String()}
	}
	delete(r.rules, id)
	r.version++
	return nil
}

func (r *stubRuleRepo) Snapshot(_ context.Context) (int64, []model.BusinessRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots++
	var out []model.BusinessRule
	for _, rule := range r.rules {
		if rule.Active {
			out = append(out, *rule)
		}
	}
	return r.version, out, nil
}

func (r *stubRuleRepo) Version(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version, nil
}

func (r *stubRuleRepo) snapshotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots
}

// stubAssignmentRepo hands out copies, like a database would, and enforces
// the optimistic version check. The first `conflicts` AppendOverride calls
// fail as if another writer got there first.
type stubAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[uuid.UUID]*model.PriceAssignment
	history     map[uuid.UUID][]model.AssignmentHistory
	conflicts   int
	appends     int
	stats       *repository.AssignmentStats
	statsFrom   *time.Time
	statsTo     *time.Time
}

var _ repository.AssignmentRepository = (*stubAssignmentRepo)(nil)

func newStubAssignmentRepo() *stubAssignmentRepo {
	return &stubAssignmentRepo{
		assignments: make(map[uuid.UUID]*model.PriceAssignment),
		history:     make(map[uuid.UUID][]model.AssignmentHistory),
	}
}

func (r *stubAssignmentRepo) Create(_ context.Context, a *model.PriceAssignment, first model.AssignmentHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.assignments[a.ID] = &cp
	first.AssignmentID = a.ID
	r.history[a.ID] = append(r.history[a.ID], first)
	return nil
}

func (r *stubAssignmentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.PriceAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return nil, &pricing.NotFoundError{Resource: "price assignment", ID: id.String()}
	}
	cp := *a
	return &cp, nil
}

func (r *stubAssignmentRepo) AppendOverride(_ context.Context, a *model.PriceAssignment, expectedVersion int, entry model.AssignmentHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appends++
	if r.conflicts > 0 {
		r.conflicts--
		return repository.ErrVersionConflict
	}
	stored, ok := r.assignments[a.ID]
	if !ok {
		return &pricing.NotFoundError{Resource: "price assignment", ID: a.ID.String()}
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	cp := *a
	r.assignments[a.ID] = &cp
	entry.AssignmentID = a.ID
	r.history[a.ID] = append(r.history[a.ID], entry)
	return nil
}

func (r *stubAssignmentRepo) ListHistory(_ context.Context, id uuid.UUID) ([]model.AssignmentHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[id]; !ok {
		return nil, &pricing.NotFoundError{Resource: "price assignment", ID: id.String()}
	}
	out := make([]model.AssignmentHistory, len(r.history[id]))
	copy(out, r.history[id])
	return out, nil
}

func (r *stubAssignmentRepo) Stats(_ context.Context, from, to *time.Time) (*repository.AssignmentStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsFrom, r.statsTo = from, to
	if r.stats != nil {
		return r.stats, nil
	}
	return &repository.AssignmentStats{AverageConfidence: decimal.Zero}, nil
}

func (r *stubAssignmentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assignments)
}

type stubJobQueue struct {
	mu     sync.Mutex
	emails []worker.EmailJobPayload
	bulk   []worker.BulkJobPayload
}

func (q *stubJobQueue) EnqueueEmail(_ context.Context, p worker.EmailJobPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emails = append(q.emails, p)
	return nil
}

func (q *stubJobQueue) EnqueueBulk(_ context.Context, p worker.BulkJobPayload, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bulk = append(q.bulk, p)
	return nil
}

// ── Fixtures ─────────────────────────────────────────────────────────────────

type engine struct {
	vendors     *stubVendorRepo
	subs        *stubSubmissionRepo
	rates       *stubRateRepo
	rules       *stubRuleRepo
	assignments *stubAssignmentRepo
	jobs        *stubJobQueue

	catalog   service.CatalogService
	rateSvc   service.ExchangeRateService
	ruleSvc   service.RuleService
	assignSvc service.AssignmentService
}

type engineOption func(*service.AssignmentConfig)

func newEngine(opts ...engineOption) *engine {
	e := &engine{
		vendors:     newStubVendorRepo(fixtureVendors()...),
		rates:       &stubRateRepo{rates: fixtureRates()},
		rules:       newStubRuleRepo(),
		assignments: newStubAssignmentRepo(),
		jobs:        &stubJobQueue{},
	}
	e.subs = &stubSubmissionRepo{vendors: e.vendors, subs: fixtureSubmissions()}

	cfg := service.AssignmentConfig{BaseCurrency: "USD", MinQuantityPolicy: pricing.MinQuantityFlag, OverrideMaxRetries: 3}
	for _, opt := range opts {
		opt(&cfg)
	}

	e.catalog = service.NewCatalogService(e.vendors, e.subs, time.Second)
	e.rateSvc = service.NewExchangeRateService(e.rates, nil, "USD", time.Minute)
	e.ruleSvc = service.NewRuleService(e.rules, nil, time.Minute)
	e.assignSvc = service.NewAssignmentService(e.assignments, e.vendors, e.catalog, e.rateSvc, e.ruleSvc, e.jobs, cfg)
	return e
}

func fixtureVendors() []model.Vendor {
	return []model.Vendor{
		{ID: "vendor-1", Name: "Tech Supplies", Categories: []string{"electronics"}, Rating: decimal.RequireFromString("4.2"), Active: true},
		{ID: "vendor-2", Name: "Global Electronics", Categories: []string{"electronics"}, Rating: decimal.RequireFromString("4.6"), Active: true},
		{ID: "vendor-premium", Name: "Premium Tech", Categories: []string{"electronics"}, Preferred: true, Active: true},
		{ID: "vendor-thai", Name: "Siam Trading", Categories: []string{"office"}, Active: true},
	}
}

func fixtureSubmissions() []model.PriceSubmission {
	from := time.Now().Add(-24 * time.Hour)
	to := time.Now().Add(30 * 24 * time.Hour)
	sub := func(vendor, product, price, currency string) model.PriceSubmission {
		return model.PriceSubmission{
			ID:          uuid.New(),
			VendorID:    vendor,
			ProductID:   product,
			UnitPrice:   decimal.RequireFromString(price),
			Currency:    currency,
			MinOrderQty: decimal.NewFromInt(1),
			SubmittedAt: from,
			ValidFrom:   from,
			ValidTo:     &to,
		}
	}
	return []model.PriceSubmission{
		sub("vendor-1", "PROD-001", "99.99", "USD"),
		sub("vendor-2", "PROD-001", "105.00", "USD"),
		sub("vendor-premium", "PROD-001", "120.00", "USD"),
		sub("vendor-thai", "PROD-002", "355.00", "THB"),
		sub("vendor-1", "PROD-002", "10.50", "USD"),
		sub("vendor-2", "PROD-003", "80.00", "CHF"),
	}
}

func fixtureRates() []model.ExchangeRate {
	at := time.Now().Add(-time.Hour)
	return []model.ExchangeRate{
		{ID: uuid.New(), BaseCurrency: "USD", QuoteCurrency: "THB", Rate: decimal.RequireFromString("35.50"), EffectiveAt: at, Source: "seed"},
		{ID: uuid.New(), BaseCurrency: "USD", QuoteCurrency: "EUR", Rate: decimal.RequireFromString("0.92"), EffectiveAt: at, Source: "seed"},
	}
}

func electronicsRule(priority int, vendor string) model.BusinessRule {
	return model.BusinessRule{
		ID:         uuid.New(),
		Name:       "Electronics to premium",
		Priority:   priority,
		Conditions: []model.RuleCondition{{Field: "categoryId", Operator: "equals", Value: "electronics"}},
		Actions:    []model.RuleAction{{Type: "assignVendor", Parameters: map[string]string{"vendorId": vendor}}},
		Active:     true,
		CreatedAt:  time.Now().Add(-48 * time.Hour),
	}
}
