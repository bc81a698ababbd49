package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carmen/internal/dto"
	"carmen/internal/infra"
	"carmen/internal/metrics"
	"carmen/internal/model"
	"carmen/internal/pricing"
	"carmen/internal/repository"
	"carmen/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// JobQueue is the async side of the engine; *worker.Dispatcher satisfies it.
type JobQueue interface {
	EnqueueEmail(ctx context.Context, payload worker.EmailJobPayload) error
	EnqueueBulk(ctx context.Context, payload worker.BulkJobPayload, ttl time.Duration) error
}

type AssignmentService interface {
	AssignPrice(ctx context.Context, req dto.AssignPriceRequest) (*dto.PriceAssignmentResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.PriceAssignmentResponse, error)
	GetAlternatives(ctx context.Context, id uuid.UUID) ([]model.Alternative, error)
	// Override records a manual correction. actor is the authenticated
	// username; when empty, req.OverriddenBy is used.
	Override(ctx context.Context, id uuid.UUID, actor string, req dto.OverrideRequest) (*dto.PriceAssignmentResponse, error)
	History(ctx context.Context, id uuid.UUID) ([]dto.HistoryEntryResponse, error)
	HistoryReport(ctx context.Context, id uuid.UUID) ([]byte, error)
}

// AssignmentConfig carries the engine settings the assignment pipeline reads.
type AssignmentConfig struct {
	BaseCurrency       string
	MinQuantityPolicy  pricing.MinQuantityPolicy
	OverrideMaxRetries int
	ReportStoragePath  string
}

type assignmentService struct {
	repo    repository.AssignmentRepository
	vendors repository.VendorRepository
	catalog pricing.Catalog
	rates   pricing.RateSource
	rules   pricing.RuleSource
	jobs    JobQueue // nil disables rule notifications
	cfg     AssignmentConfig
	locks   *pricing.KeyedMutex
	now     func() time.Time
}

func NewAssignmentService(
	repo repository.AssignmentRepository,
	vendors repository.VendorRepository,
	catalog pricing.Catalog,
	rates pricing.RateSource,
	rules pricing.RuleSource,
	jobs JobQueue,
	cfg AssignmentConfig,
) AssignmentService {
	if cfg.OverrideMaxRetries < 1 {
		cfg.OverrideMaxRetries = 1
	}
	if cfg.MinQuantityPolicy == "" {
		cfg.MinQuantityPolicy = pricing.MinQuantityFlag
	}
	cfg.BaseCurrency = strings.ToUpper(cfg.BaseCurrency)
	return &assignmentService{
		repo:    repo,
		vendors: vendors,
		catalog: catalog,
		rates:   rates,
		rules:   rules,
		jobs:    jobs,
		cfg:     cfg,
		locks:   pricing.NewKeyedMutex(),
		now:     time.Now,
	}
}

// ── AssignPrice ───────────────────────────────────────────────────────────────
// Pipeline:
//   1. Validate the request
//   2. Read the valid submissions for the product (catalog timeout + breaker)
//   3. Take the exchange-rate snapshot and the rule-set snapshot
//   4. Evaluate rules, normalize candidates, select
//   5. Persist assignment + "assigned" history entry in one transaction
//   6. (async) rule notifications

func (s *assignmentService) AssignPrice(ctx context.Context, req dto.AssignPriceRequest) (*dto.PriceAssignmentResponse, error) {
	start := time.Now()
	defer func() { metrics.AssignLatency.Observe(time.Since(start).Seconds()) }()

	a, d, err := s.assign(ctx, req)
	if err != nil {
		metrics.Assignments.WithLabelValues(strings.ToLower(pricing.ErrorCode(err))).Inc()
		return nil, err
	}

	outcome := "best_price"
	switch {
	case d.RuleNotHonored:
		outcome = "rule_not_honored"
	case d.Rule != nil:
		outcome = "rule"
	}
	metrics.Assignments.WithLabelValues(outcome).Inc()
	metrics.AssignConfidence.Observe(a.Confidence.InexactFloat64())

	log.Info().
		Str("assignment_id", a.ID.String()).
		Str("product_id", a.ProductID).
		Str("vendor_id", a.VendorID).
		Str("confidence", a.Confidence.String()).
		Str("outcome", outcome).
		Msg("price assigned")

	s.notify(ctx, a, d)
	resp := assignmentToResponse(a)
	return &resp, nil
}

func (s *assignmentService) assign(ctx context.Context, req dto.AssignPriceRequest) (*model.PriceAssignment, *pricing.Decision, error) {
	now := s.now()
	preq, err := toPricingRequest(req, now)
	if err != nil {
		return nil, nil, err
	}

	subs, err := s.catalog.ValidSubmissions(ctx, preq.ProductID, pricing.CatalogFilter{Location: preq.Location, At: now})
	if err != nil {
		return nil, nil, err
	}

	target := s.cfg.BaseCurrency
	if preq.PreferredCurrency != "" {
		target = preq.PreferredCurrency
	}
	rates, err := s.rates.SnapshotAt(ctx, now)
	if err != nil {
		return nil, nil, err
	}
	ruleSet, err := s.rules.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	rule := pricing.Evaluate(preq, ruleSet, now)
	cands, err := pricing.BuildCandidates(preq, subs, rates, target, s.cfg.MinQuantityPolicy)
	if err != nil {
		return nil, nil, err
	}
	d, err := pricing.Select(preq, cands, rule)
	if err != nil {
		return nil, nil, err
	}

	a := newAssignment(preq, d, target, rates.Epoch(), ruleSet.Version, now)
	if err := s.repo.Create(ctx, a, pricing.InitialEntry(a)); err != nil {
		return nil, nil, storeErr("store assignment", err)
	}
	return a, d, nil
}

// toPricingRequest validates req and lists every bad field at once.
func toPricingRequest(req dto.AssignPriceRequest, now time.Time) (pricing.Request, error) {
	verr := &pricing.ValidationError{}
	if strings.TrimSpace(req.ProductID) == "" {
		verr.Add("productId", "productId is required")
	}
	if strings.TrimSpace(req.CategoryID) == "" {
		verr.Add("categoryId", "categoryId is required")
	}
	if !req.Quantity.IsPositive() {
		verr.Add("quantity", "quantity must be greater than 0")
	}
	requested := now
	if req.RequestedDate != "" {
		t, ok := parseDate(req.RequestedDate)
		if !ok {
			verr.Add("requestedDate", "requestedDate must be an RFC 3339 timestamp or YYYY-MM-DD date")
		}
		requested = t
	}
	currency := strings.ToUpper(strings.TrimSpace(req.PreferredCurrency))
	if currency != "" && !pricing.IsCurrencyCode(currency) {
		verr.Add("preferredCurrency", "preferredCurrency must be a recognized three-letter ISO code")
	}
	if err := verr.OrNil(); err != nil {
		return pricing.Request{}, err
	}

	out := pricing.Request{
		ProductID:         strings.TrimSpace(req.ProductID),
		ProductName:       req.ProductName,
		CategoryID:        strings.TrimSpace(req.CategoryID),
		Quantity:          req.Quantity,
		RequestedDate:     requested,
		Location:          strings.TrimSpace(req.Location),
		Department:        strings.TrimSpace(req.Department),
		PreferredCurrency: currency,
	}
	if req.PRItemID != nil {
		out.PRItemID = *req.PRItemID
	}
	return out, nil
}

func newAssignment(req pricing.Request, d *pricing.Decision, target string, epoch time.Time, ruleSetVersion int64, now time.Time) *model.PriceAssignment {
	sel := d.Selected
	normalized := sel.Normalized
	a := &model.PriceAssignment{
		ID:                 uuid.New(),
		ProductID:          req.ProductID,
		ProductName:        req.ProductName,
		CategoryID:         req.CategoryID,
		Quantity:           req.Quantity,
		Location:           req.Location,
		Department:         req.Department,
		RequestedDate:      req.RequestedDate,
		RuleContext:        req.Fields(),
		VendorID:           sel.VendorID(),
		VendorName:         sel.VendorName,
		AssignedPrice:      sel.Submission.UnitPrice,
		Currency:           sel.Submission.Currency,
		NormalizedPrice:    normalized,
		ComparisonCurrency: target,
		ExchangeRate:       sel.Rate,
		RateEpoch:          epoch,
		Confidence:         d.Confidence,
		Reason:             d.Reason,
		RuleNotHonored:     d.RuleNotHonored,
		RequiresReview:     d.RequiresReview,
		Alternatives:       make([]model.Alternative, 0, len(d.Alternatives)),
		NoAlternatives:     len(d.Alternatives) == 0,
		RuleSetVersion:     ruleSetVersion,

		CurrentVendorID:        sel.VendorID(),
		CurrentVendorName:      sel.VendorName,
		CurrentPrice:           sel.Submission.UnitPrice,
		CurrentCurrency:        sel.Submission.Currency,
		CurrentNormalizedPrice: &normalized,
		Version:                1,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.PRItemID != "" {
		id := req.PRItemID
		a.PRItemID = &id
	}
	if d.Rule != nil {
		ruleID, ruleName := d.Rule.ID, d.Rule.Name
		a.RuleID, a.RuleName = &ruleID, &ruleName
	}
	if d.RequiresReview && d.ReviewMessage != "" {
		msg := d.ReviewMessage
		a.ReviewMessage = &msg
	}
	for _, c := range d.Alternatives {
		a.Alternatives = append(a.Alternatives, c.Alternative())
	}
	return a
}

// notify queues the emails of the matched rule's notify actions. Failures
// are logged only; the assignment is already stored.
func (s *assignmentService) notify(ctx context.Context, a *model.PriceAssignment, d *pricing.Decision) {
	if s.jobs == nil || len(d.Notifications) == 0 {
		return
	}
	for _, n := range d.Notifications {
		body := fmt.Sprintf("Product %s (%s) was assigned to %s at %s %s.\nReason: %s\nConfidence: %s\nAssignment: %s",
			a.ProductID, a.ProductName, a.VendorName, a.AssignedPrice.String(), a.Currency,
			a.Reason, a.Confidence.String(), a.ID)
		if n.Message != "" {
			body = n.Message + "\n\n" + body
		}
		if a.RequiresReview {
			body += "\nThis assignment requires manual review."
		}
		err := s.jobs.EnqueueEmail(ctx, worker.EmailJobPayload{
			ToEmail: n.Email,
			Subject: fmt.Sprintf("Price assignment for %s", a.ProductID),
			Body:    body,
		})
		if err != nil {
			log.Warn().Err(err).Str("assignment_id", a.ID.String()).Str("to", n.Email).Msg("failed to queue rule notification")
		}
	}
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *assignmentService) Get(ctx context.Context, id uuid.UUID) (*dto.PriceAssignmentResponse, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get assignment", err)
	}
	resp := assignmentToResponse(a)
	return &resp, nil
}

func (s *assignmentService) GetAlternatives(ctx context.Context, id uuid.UUID) ([]model.Alternative, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get assignment", err)
	}
	if a.Alternatives == nil {
		return []model.Alternative{}, nil
	}
	return a.Alternatives, nil
}

func (s *assignmentService) History(ctx context.Context, id uuid.UUID) ([]dto.HistoryEntryResponse, error) {
	entries, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, storeErr("assignment history", err)
	}
	pricing.SortNewestFirst(entries)
	resp := make([]dto.HistoryEntryResponse, len(entries))
	for i := range entries {
		resp[i] = historyToResponse(&entries[i])
	}
	return resp, nil
}

// HistoryReport renders the audit trail as a PDF and, when a storage path is
// configured, archives a copy.
func (s *assignmentService) HistoryReport(ctx context.Context, id uuid.UUID) ([]byte, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get assignment", err)
	}
	entries, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, storeErr("assignment history", err)
	}
	pricing.SortNewestFirst(entries)

	data, err := infra.GenerateAuditReportPDF(a, entries, s.now())
	if err != nil {
		return nil, fmt.Errorf("render audit report: %w", err)
	}
	if s.cfg.ReportStoragePath != "" {
		name := fmt.Sprintf("assignment-%s-v%d.pdf", a.ID, a.Version)
		if path, err := infra.ArchiveReport(s.cfg.ReportStoragePath, name, data); err != nil {
			log.Warn().Err(err).Str("assignment_id", a.ID.String()).Msg("failed to archive audit report")
		} else {
			log.Debug().Str("path", path).Msg("audit report archived")
		}
	}
	return data, nil
}

// ── Override ──────────────────────────────────────────────────────────────────
// Overrides on one assignment are serialised in-process by the keyed lock;
// across instances the version check in AppendOverride catches the race and
// the whole read-apply-write cycle is retried.

func (s *assignmentService) Override(ctx context.Context, id uuid.UUID, actor string, req dto.OverrideRequest) (*dto.PriceAssignmentResponse, error) {
	if actor == "" {
		actor = strings.TrimSpace(req.OverriddenBy)
	}
	in := pricing.OverrideInput{
		VendorID: strings.TrimSpace(req.NewVendorID),
		Price:    req.NewPrice,
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		Reason:   req.Reason,
		Actor:    actor,
	}

	verr := &pricing.ValidationError{}
	if err := pricing.ValidateOverride(in); err != nil {
		if !errors.As(err, &verr) {
			return nil, err
		}
	}
	if actor == "" {
		verr.Add("overriddenBy", "overriddenBy is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id.String())
	defer unlock()

	// a missing assignment is reported before anything about the new vendor
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get assignment", err)
	}

	vendor, err := s.vendors.FindByID(ctx, in.VendorID)
	if err != nil {
		var nf *pricing.NotFoundError
		if errors.As(err, &nf) {
			verr.Add("newVendorId", "vendor "+in.VendorID+" does not exist")
			return nil, verr
		}
		return nil, storeErr("vendor lookup", err)
	}

	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			if a, err = s.repo.FindByID(ctx, id); err != nil {
				return nil, storeErr("get assignment", err)
			}
		}

		expected := a.Version
		entry := pricing.ApplyOverride(a, in, vendor.Name, s.normalizeOverride(ctx, in, a.ComparisonCurrency), s.now())
		err = s.repo.AppendOverride(ctx, a, expected, entry)
		if err == nil {
			metrics.Overrides.Inc()
			log.Info().
				Str("assignment_id", a.ID.String()).
				Str("vendor_id", in.VendorID).
				Str("actor", actor).
				Int("version", a.Version).
				Msg("assignment overridden")
			resp := assignmentToResponse(a)
			return &resp, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, storeErr("store override", err)
		}

		metrics.OverrideConflicts.Inc()
		if attempt >= s.cfg.OverrideMaxRetries {
			log.Warn().Str("assignment_id", id.String()).Int("attempts", attempt).Msg("override gave up after version conflicts")
			return nil, &pricing.ConflictError{Resource: "price assignment", ID: id.String()}
		}
	}
}

// normalizeOverride prices the override in the assignment's comparison
// currency, or returns nil when no rate links the two.
func (s *assignmentService) normalizeOverride(ctx context.Context, in pricing.OverrideInput, target string) *decimal.Decimal {
	rates, err := s.rates.SnapshotAt(ctx, s.now())
	if err != nil {
		log.Debug().Err(err).Msg("override: rate snapshot unavailable")
		return nil
	}
	normalized, _, err := rates.Normalize(in.Price, in.Currency, target)
	if err != nil {
		return nil
	}
	return &normalized
}
