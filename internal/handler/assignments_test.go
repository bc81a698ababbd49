package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"carmen/internal/apierror"
	"carmen/internal/dto"
	"carmen/internal/middleware"
	"carmen/internal/model"
	"carmen/internal/pricing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// ── Fakes ────────────────────────────────────────────────────────────────────

type fakeAssignments struct {
	assigned  []dto.AssignPriceRequest
	actor     string
	err       error
	overrideE error
}

func (f *fakeAssignments) AssignPrice(_ context.Context, req dto.AssignPriceRequest) (*dto.PriceAssignmentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.assigned = append(f.assigned, req)
	return &dto.PriceAssignmentResponse{ID: uuid.NewString(), ProductID: req.ProductID, VendorID: "vendor-1"}, nil
}

func (f *fakeAssignments) Get(_ context.Context, id uuid.UUID) (*dto.PriceAssignmentResponse, error) {
	return nil, &pricing.NotFoundError{Resource: "price assignment", ID: id.String()}
}

func (f *fakeAssignments) GetAlternatives(context.Context, uuid.UUID) ([]model.Alternative, error) {
	return []model.Alternative{}, nil
}

func (f *fakeAssignments) Override(_ context.Context, id uuid.UUID, actor string, req dto.OverrideRequest) (*dto.PriceAssignmentResponse, error) {
	f.actor = actor
	if f.overrideE != nil {
		return nil, f.overrideE
	}
	return &dto.PriceAssignmentResponse{ID: id.String(), VendorID: req.NewVendorID}, nil
}

func (f *fakeAssignments) History(context.Context, uuid.UUID) ([]dto.HistoryEntryResponse, error) {
	return []dto.HistoryEntryResponse{}, nil
}

func (f *fakeAssignments) HistoryReport(context.Context, uuid.UUID) ([]byte, error) {
	return []byte("%PDF-1.3"), nil
}

type fakeBulk struct {
	result       *dto.BulkAssignmentResult
	requeueLimit int
}

func (f *fakeBulk) BulkAssign(context.Context, dto.BulkAssignRequest) (*dto.BulkAssignmentResult, error) {
	return f.result, nil
}

func (f *fakeBulk) EnqueueBulk(context.Context, dto.BulkAssignRequest) (*dto.BulkJobResponse, error) {
	return &dto.BulkJobResponse{JobID: "job-1", Status: "queued"}, nil
}

func (f *fakeBulk) JobStatus(_ context.Context, jobID string) (*dto.BulkJobResponse, error) {
	return nil, &pricing.NotFoundError{Resource: "bulk job", ID: jobID}
}

func (f *fakeBulk) QueueStatus(context.Context) (*dto.QueueStatusResponse, error) {
	return &dto.QueueStatusResponse{}, nil
}

func (f *fakeBulk) RequeueFailed(_ context.Context, queue string, req dto.RequeueRequest) (*dto.RequeueResponse, error) {
	if queue != "bulk_assignment" {
		return nil, &pricing.NotFoundError{Resource: "queue", ID: queue}
	}
	f.requeueLimit = req.Limit
	return &dto.RequeueResponse{Queue: "jobs:" + queue, Requeued: 2}, nil
}

type fakeAnalytics struct{}

func (fakeAnalytics) Analytics(context.Context, dto.AnalyticsFilter) (*dto.AnalyticsResponse, error) {
	return &dto.AnalyticsResponse{TotalAssignments: 4}, nil
}

func testRouter(h *AssignmentsHandler, username string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	if username != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ClaimsKey, &middleware.JWTClaims{Username: username, Role: "purchasing_manager"})
			c.Next()
		})
	}
	g := r.Group("/v1/price-assignments")
	g.POST("", h.Assign)
	g.POST("/bulk", h.Bulk)
	g.POST("/bulk/async", h.BulkAsync)
	g.GET("/bulk/jobs/:id", h.BulkJob)
	g.GET("/analytics", h.Analytics)
	g.POST("/queues/:name/requeue", h.RequeueFailed)
	g.GET("/:id", h.Get)
	g.POST("/:id/override", h.Override)
	g.GET("/:id/history/pdf", h.HistoryPDF)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestAssign_Created(t *testing.T) {
	svc := &fakeAssignments{}
	r := testRouter(NewAssignmentsHandler(svc, &fakeBulk{}, fakeAnalytics{}), "")

	w := do(r, http.MethodPost, "/v1/price-assignments", map[string]any{
		"productId":  "PROD-001",
		"categoryId": "electronics",
		"quantity":   "10",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.assigned, 1)
	assert.True(t, svc.assigned[0].Quantity.Equal(decimal.NewFromInt(10)))
}

func TestAssign_ValidationNamesEachField(t *testing.T) {
	svc := &fakeAssignments{}
	r := testRouter(NewAssignmentsHandler(svc, &fakeBulk{}, fakeAnalytics{}), "")

	w := do(r, http.MethodPost, "/v1/price-assignments", map[string]any{"quantity": "-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.assigned)

	var body apierror.ValidationError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	fields := make([]string, 0, len(body.Errors))
	for _, f := range body.Errors {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"productId", "categoryId", "quantity"}, fields)
}

func TestAssign_MalformedJSON(t *testing.T) {
	r := testRouter(NewAssignmentsHandler(&fakeAssignments{}, &fakeBulk{}, fakeAnalytics{}), "")

	req := httptest.NewRequest(http.MethodPost, "/v1/price-assignments", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssign_DomainErrorsMapped(t *testing.T) {
	svc := &fakeAssignments{err: pricing.NoPricing("PROD-404")}
	r := testRouter(NewAssignmentsHandler(svc, &fakeBulk{}, fakeAnalytics{}), "")

	w := do(r, http.MethodPost, "/v1/price-assignments", map[string]any{
		"productId": "PROD-404", "categoryId": "x", "quantity": "1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No pricing available for product PROD-404")
}

func TestGet_BadUUID(t *testing.T) {
	r := testRouter(NewAssignmentsHandler(&fakeAssignments{}, &fakeBulk{}, fakeAnalytics{}), "")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/v1/price-assignments/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/v1/price-assignments/"+uuid.NewString(), nil).Code)
}

func TestOverride_PassesAuthenticatedUser(t *testing.T) {
	svc := &fakeAssignments{}
	r := testRouter(NewAssignmentsHandler(svc, &fakeBulk{}, fakeAnalytics{}), "manager-1")

	w := do(r, http.MethodPost, "/v1/price-assignments/"+uuid.NewString()+"/override", map[string]any{
		"newVendorId": "vendor-2",
		"newPrice":    "105.00",
		"currency":    "USD",
		"reason":      "Quality concerns with vendor-1",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "manager-1", svc.actor)
}

func TestOverride_ConflictIs409(t *testing.T) {
	svc := &fakeAssignments{overrideE: &pricing.ConflictError{Resource: "price assignment", ID: "x"}}
	r := testRouter(NewAssignmentsHandler(svc, &fakeBulk{}, fakeAnalytics{}), "manager-1")

	w := do(r, http.MethodPost, "/v1/price-assignments/"+uuid.NewString()+"/override", map[string]any{
		"newVendorId": "vendor-2", "newPrice": "1", "currency": "USD", "reason": "r",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBulkStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, BulkStatus(dto.BulkSummary{TotalItems: 2, SuccessfulAssignments: 2}))
	assert.Equal(t, http.StatusMultiStatus, BulkStatus(dto.BulkSummary{TotalItems: 3, SuccessfulAssignments: 2, FailedAssignments: 1}))
	assert.Equal(t, http.StatusUnprocessableEntity, BulkStatus(dto.BulkSummary{TotalItems: 2, FailedAssignments: 2}))
}

func TestBulk_PartialSuccessIs207(t *testing.T) {
	bulk := &fakeBulk{result: &dto.BulkAssignmentResult{
		Summary: dto.BulkSummary{TotalItems: 3, SuccessfulAssignments: 2, FailedAssignments: 1},
	}}
	r := testRouter(NewAssignmentsHandler(&fakeAssignments{}, bulk, fakeAnalytics{}), "")

	w := do(r, http.MethodPost, "/v1/price-assignments/bulk", map[string]any{
		"items": []map[string]any{{"productId": "PROD-001", "categoryId": "electronics", "quantity": "1"}},
	})
	assert.Equal(t, http.StatusMultiStatus, w.Code)

	w = do(r, http.MethodPost, "/v1/price-assignments/bulk", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkAsync_AcceptedWithLocation(t *testing.T) {
	r := testRouter(NewAssignmentsHandler(&fakeAssignments{}, &fakeBulk{}, fakeAnalytics{}), "")

	w := do(r, http.MethodPost, "/v1/price-assignments/bulk/async", map[string]any{
		"items": []map[string]any{{"productId": "PROD-001", "categoryId": "electronics", "quantity": "1"}},
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/v1/price-assignments/bulk/jobs/job-1", w.Header().Get("Location"))

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/v1/price-assignments/bulk/jobs/nope", nil).Code)
}

func TestHistoryPDF(t *testing.T) {
	r := testRouter(NewAssignmentsHandler(&fakeAssignments{}, &fakeBulk{}, fakeAnalytics{}), "")

	w := do(r, http.MethodGet, "/v1/price-assignments/"+uuid.NewString()+"/history/pdf", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
}

func TestAnalytics(t *testing.T) {
	r := testRouter(NewAssignmentsHandler(&fakeAssignments{}, &fakeBulk{}, fakeAnalytics{}), "")

	w := do(r, http.MethodGet, "/v1/price-assignments/analytics?from=2026-01-01", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalAssignments":4`)
}

func TestRequeueFailed(t *testing.T) {
	bulk := &fakeBulk{}
	r := testRouter(NewAssignmentsHandler(&fakeAssignments{}, bulk, fakeAnalytics{}), "")

	w := do(r, http.MethodPost, "/v1/price-assignments/queues/bulk_assignment/requeue", map[string]any{"limit": 5})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, bulk.requeueLimit)

	var resp dto.RequeueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Requeued)

	// no body uses the default limit
	w = do(r, http.MethodPost, "/v1/price-assignments/queues/bulk_assignment/requeue", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, bulk.requeueLimit)

	w = do(r, http.MethodPost, "/v1/price-assignments/queues/bulk_assignment/requeue", map[string]any{"limit": 5000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/v1/price-assignments/queues/nope/requeue", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
