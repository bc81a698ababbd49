package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"carmen/internal/dto"
	"carmen/internal/infra"
	"carmen/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPrices_FiltersByVendor(t *testing.T) {
	e := newEngine()

	all, err := e.catalog.ListPrices(context.Background(), "PROD-001", dto.PriceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := e.catalog.ListPrices(context.Background(), "PROD-001", dto.PriceFilter{VendorID: "vendor-2"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "vendor-2", one[0].VendorID)

	_, err = e.catalog.ListPrices(context.Background(), "PROD-001", dto.PriceFilter{At: "yesterday-ish"})
	var ve *pricing.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestValidSubmissions_NewerQuoteSupersedes(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.catalog.RecordSubmission(ctx, dto.PriceSubmissionRequest{
		VendorID:  "vendor-2",
		ProductID: "PROD-001",
		UnitPrice: decimal.RequireFromString("95.00"),
		Currency:  "usd",
	})
	require.NoError(t, err)

	subs, err := e.catalog.ValidSubmissions(ctx, "PROD-001", pricing.CatalogFilter{})
	require.NoError(t, err)
	require.Len(t, subs, 3)
	for _, s := range subs {
		if s.VendorID == "vendor-2" {
			assert.Equal(t, "95", s.UnitPrice.String())
		}
	}

	resp, err := e.assignSvc.AssignPrice(ctx, laptopRequest())
	require.NoError(t, err)
	assert.Equal(t, "vendor-2", resp.VendorID)
}

func TestRecordSubmission_Validation(t *testing.T) {
	e := newEngine()
	from := time.Now()
	to := from.Add(-time.Hour)
	zero := decimal.Zero

	_, err := e.catalog.RecordSubmission(context.Background(), dto.PriceSubmissionRequest{
		VendorID:    "vendor-ghost",
		ProductID:   "PROD-001",
		UnitPrice:   decimal.NewFromInt(-1),
		Currency:    "ZZZ",
		MinOrderQty: &zero,
		ValidFrom:   &from,
		ValidTo:     &to,
	})

	var ve *pricing.ValidationError
	require.True(t, errors.As(err, &ve))
	fields := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"currency", "unitPrice", "validTo", "minQuantity", "vendorId"}, fields)
}

func TestCreateVendor_DuplicateIsValidationError(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	resp, err := e.catalog.CreateVendor(ctx, dto.VendorRequest{ID: "vendor-9", Name: "Nine"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, resp.Categories)

	_, err = e.catalog.CreateVendor(ctx, dto.VendorRequest{ID: "vendor-9", Name: "Nine again"})
	var ve *pricing.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "id", ve.Fields[0].Field)

	vendors, err := e.catalog.ListVendors(ctx, false)
	require.NoError(t, err)
	assert.Len(t, vendors, 5)
}

func TestValidSubmissions_BreakerOpensOnStoreFailures(t *testing.T) {
	e := newEngine()
	e.subs.err = errors.New("dial tcp 10.0.0.5:5432: connection refused")
	ctx := context.Background()

	for i := 0; i < infra.DefaultCBConfig("catalog").FailureThreshold; i++ {
		_, err := e.catalog.ValidSubmissions(ctx, "PROD-001", pricing.CatalogFilter{})
		var te *pricing.TransientError
		require.True(t, errors.As(err, &te))
	}
	assert.Equal(t, infra.CBOpen, e.catalog.Breaker().State())

	// an open breaker fails fast without touching the store
	e.subs.err = nil
	_, err := e.catalog.ValidSubmissions(ctx, "PROD-001", pricing.CatalogFilter{})
	assert.ErrorIs(t, err, infra.ErrCircuitOpen)
}

func TestValidSubmissions_NotFoundDoesNotTripBreaker(t *testing.T) {
	e := newEngine()
	for i := 0; i < 10; i++ {
		_, err := e.catalog.ValidSubmissions(context.Background(), "PROD-404", pricing.CatalogFilter{})
		var nf *pricing.NotFoundError
		require.True(t, errors.As(err, &nf))
	}
	assert.Equal(t, infra.CBClosed, e.catalog.Breaker().State())
}
