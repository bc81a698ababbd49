package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"carmen/internal/dto"
	"carmen/internal/infra"
	"carmen/internal/model"
	"carmen/internal/pricing"
	"carmen/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogService is the price catalog store: vendor price submissions and the
// vendors behind them.
type CatalogService interface {
	pricing.Catalog
	ListPrices(ctx context.Context, productID string, filter dto.PriceFilter) ([]dto.PriceSubmissionResponse, error)
	RecordSubmission(ctx context.Context, req dto.PriceSubmissionRequest) (*dto.PriceSubmissionResponse, error)
	CreateVendor(ctx context.Context, req dto.VendorRequest) (*dto.VendorResponse, error)
	ListVendors(ctx context.Context, includeInactive bool) ([]dto.VendorResponse, error)
	// Breaker guards catalog reads.
	Breaker() *infra.CircuitBreaker
}

type catalogService struct {
	vendors repository.VendorRepository
	subs    repository.PriceSubmissionRepository
	cb      *infra.CircuitBreaker
	timeout time.Duration
	now     func() time.Time
}

func NewCatalogService(vendors repository.VendorRepository, subs repository.PriceSubmissionRepository, timeout time.Duration) CatalogService {
	cbCfg := infra.DefaultCBConfig("catalog")
	cbCfg.IsFailure = isTransient
	return &catalogService{
		vendors: vendors,
		subs:    subs,
		cb:      infra.NewCircuitBreaker(cbCfg),
		timeout: timeout,
		now:     time.Now,
	}
}

// ValidSubmissions reads the product's submissions under the catalog timeout
// and breaker, then keeps the valid, non-superseded quote per vendor.
func (s *catalogService) ValidSubmissions(ctx context.Context, productID string, f pricing.CatalogFilter) ([]model.PriceSubmission, error) {
	if f.At.IsZero() {
		f.At = s.now()
	}

	var rows []model.PriceSubmission
	err := s.cb.Execute(func() error {
		qctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		var err error
		rows, err = s.subs.ListValidAt(qctx, productID, f.At)
		return err
	})
	if err != nil {
		// the caller gave up; that is not a store failure
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, storeErr("catalog lookup", err)
	}

	valid := pricing.FilterValid(rows, f)
	if len(valid) == 0 {
		return nil, pricing.NoPricing(productID)
	}
	return valid, nil
}

func (s *catalogService) ListPrices(ctx context.Context, productID string, filter dto.PriceFilter) ([]dto.PriceSubmissionResponse, error) {
	f := pricing.CatalogFilter{VendorID: filter.VendorID, Location: filter.Location}
	if filter.At != "" {
		at, ok := parseDate(filter.At)
		if !ok {
			verr := &pricing.ValidationError{}
			verr.Add("at", "at must be an RFC 3339 timestamp or YYYY-MM-DD date")
			return nil, verr
		}
		f.At = at
	}

	subs, err := s.ValidSubmissions(ctx, productID, f)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.PriceSubmissionResponse, len(subs))
	for i := range subs {
		resp[i] = submissionToResponse(&subs[i])
	}
	return resp, nil
}

func (s *catalogService) RecordSubmission(ctx context.Context, req dto.PriceSubmissionRequest) (*dto.PriceSubmissionResponse, error) {
	now := s.now()
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))

	verr := &pricing.ValidationError{}
	if !pricing.IsCurrencyCode(currency) {
		verr.Add("currency", "currency must be a recognized three-letter ISO code")
	}
	if req.UnitPrice.IsNegative() {
		verr.Add("unitPrice", "unitPrice must be greater than or equal to 0")
	}
	validFrom := now
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}
	if req.ValidTo != nil && !req.ValidTo.After(validFrom) {
		verr.Add("validTo", "validTo must be after validFrom")
	}
	minQty := decimal.NewFromInt(1)
	if req.MinOrderQty != nil {
		if !req.MinOrderQty.IsPositive() {
			verr.Add("minQuantity", "minQuantity must be greater than 0")
		}
		minQty = *req.MinOrderQty
	}
	if req.AvailableQty != nil && req.AvailableQty.IsNegative() {
		verr.Add("availableQuantity", "availableQuantity must be greater than or equal to 0")
	}

	vendor, err := s.vendors.FindByID(ctx, req.VendorID)
	if err != nil {
		var nf *pricing.NotFoundError
		if !errors.As(err, &nf) {
			return nil, storeErr("vendor lookup", err)
		}
		verr.Add("vendorId", "vendor "+req.VendorID+" does not exist")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	sub := &model.PriceSubmission{
		ID:           uuid.New(),
		VendorID:     vendor.ID,
		ProductID:    req.ProductID,
		Location:     strings.TrimSpace(req.Location),
		UnitPrice:    req.UnitPrice,
		Currency:     currency,
		MinOrderQty:  minQty,
		AvailableQty: req.AvailableQty,
		LeadTimeDays: req.LeadTimeDays,
		SubmittedAt:  now,
		ValidFrom:    validFrom,
		ValidTo:      req.ValidTo,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, storeErr("record submission", err)
	}
	sub.Vendor = vendor
	resp := submissionToResponse(sub)
	return &resp, nil
}

func (s *catalogService) CreateVendor(ctx context.Context, req dto.VendorRequest) (*dto.VendorResponse, error) {
	v := &model.Vendor{
		ID:           strings.TrimSpace(req.ID),
		Name:         strings.TrimSpace(req.Name),
		Categories:   req.Categories,
		Preferred:    req.Preferred,
		Rating:       req.Rating,
		LeadTimeDays: req.LeadTimeDays,
		Email:        req.Email,
		Active:       true,
	}
	if v.Categories == nil {
		v.Categories = []string{}
	}
	if err := s.vendors.Create(ctx, v); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			verr := &pricing.ValidationError{}
			verr.Add("id", "vendor "+v.ID+" already exists")
			return nil, verr
		}
		return nil, storeErr("create vendor", err)
	}
	resp := vendorToResponse(v)
	return &resp, nil
}

func (s *catalogService) ListVendors(ctx context.Context, includeInactive bool) ([]dto.VendorResponse, error) {
	vendors, err := s.vendors.List(ctx, includeInactive)
	if err != nil {
		return nil, storeErr("list vendors", err)
	}
	resp := make([]dto.VendorResponse, len(vendors))
	for i := range vendors {
		resp[i] = vendorToResponse(&vendors[i])
	}
	return resp, nil
}

func (s *catalogService) Breaker() *infra.CircuitBreaker { return s.cb }
