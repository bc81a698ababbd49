package handler

import (
	"net/http"
	"strconv"

	"carmen/internal/dto"
	"carmen/internal/service"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalog service.CatalogService
	rates   service.ExchangeRateService
}

func NewCatalogHandler(catalog service.CatalogService, rates service.ExchangeRateService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, rates: rates}
}

// Prices godoc
// @Summary Valid vendor prices for a product
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product ID"
// @Param vendorId query string false "Vendor filter"
// @Param location query string false "Location filter"
// @Param at query string false "Validity instant, default now"
// @Success 200 {array} dto.PriceSubmissionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/products/{productId}/prices [get]
func (h *CatalogHandler) Prices(c *gin.Context) {
	var filter dto.PriceFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.catalog.ListPrices(c.Request.Context(), c.Param("productId"), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Submit godoc
// @Summary Record a vendor price submission
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.PriceSubmissionRequest true "Submission"
// @Success 201 {object} dto.PriceSubmissionResponse
// @Failure 400 {object} apierror.ValidationError
// @Router /v1/price-submissions [post]
func (h *CatalogHandler) Submit(c *gin.Context) {
	var req dto.PriceSubmissionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.catalog.RecordSubmission(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CatalogHandler) ListVendors(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("includeInactive"))
	resp, err := h.catalog.ListVendors(c.Request.Context(), includeInactive)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogHandler) CreateVendor(c *gin.Context) {
	var req dto.VendorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.catalog.CreateVendor(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListRates godoc
// @Summary Recorded exchange rates, newest first
// @Tags exchange-rates
// @Produce json
// @Security BearerAuth
// @Param base query string false "Base currency"
// @Param quote query string false "Quote currency"
// @Param limit query int false "Max rows (1-500)"
// @Success 200 {array} dto.ExchangeRateResponse
// @Router /v1/exchange-rates [get]
func (h *CatalogHandler) ListRates(c *gin.Context) {
	var filter dto.ExchangeRateFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.rates.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordRate godoc
// @Summary Record an exchange rate
// @Tags exchange-rates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ExchangeRateRequest true "Rate"
// @Success 201 {object} dto.ExchangeRateResponse
// @Failure 400 {object} apierror.ValidationError
// @Router /v1/exchange-rates [post]
func (h *CatalogHandler) RecordRate(c *gin.Context) {
	var req dto.ExchangeRateRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.rates.Record(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
