package handler

import (
	"fmt"
	"net/http"

	"carmen/internal/dto"
	"carmen/internal/middleware"
	"carmen/internal/service"

	"github.com/gin-gonic/gin"
)

type AssignmentsHandler struct {
	svc       service.AssignmentService
	bulk      service.BulkService
	analytics service.AnalyticsService
}

func NewAssignmentsHandler(svc service.AssignmentService, bulk service.BulkService, analytics service.AnalyticsService) *AssignmentsHandler {
	return &AssignmentsHandler{svc: svc, bulk: bulk, analytics: analytics}
}

// Assign godoc
// @Summary Assign the best vendor price to a purchase-request line
// @Tags price-assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AssignPriceRequest true "Request line"
// @Success 201 {object} dto.PriceAssignmentResponse
// @Failure 400 {object} apierror.ValidationError
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Failure 503 {object} apierror.APIError
// @Router /v1/price-assignments [post]
func (h *AssignmentsHandler) Assign(c *gin.Context) {
	var req dto.AssignPriceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AssignPrice(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get godoc
// @Summary Get a price assignment
// @Tags price-assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} dto.PriceAssignmentResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/price-assignments/{id} [get]
func (h *AssignmentsHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Alternatives godoc
// @Summary Ranked alternative vendors considered for an assignment
// @Tags price-assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {array} model.Alternative
// @Failure 404 {object} apierror.APIError
// @Router /v1/price-assignments/{id}/alternatives [get]
func (h *AssignmentsHandler) Alternatives(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	alts, err := h.svc.GetAlternatives(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, alts)
}

// Override godoc
// @Summary Manually override an assignment
// @Tags price-assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param body body dto.OverrideRequest true "Override"
// @Success 200 {object} dto.PriceAssignmentResponse
// @Failure 400 {object} apierror.ValidationError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/price-assignments/{id}/override [post]
func (h *AssignmentsHandler) Override(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.OverrideRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Override(c.Request.Context(), id, middleware.Username(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary Audit trail of an assignment, newest first
// @Tags price-assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {array} dto.HistoryEntryResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/price-assignments/{id}/history [get]
func (h *AssignmentsHandler) History(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	entries, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// HistoryPDF godoc
// @Summary Audit trail as a PDF report
// @Tags price-assignments
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Router /v1/price-assignments/{id}/history/pdf [get]
func (h *AssignmentsHandler) HistoryPDF(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	data, err := h.svc.HistoryReport(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="assignment-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", data)
}

// Bulk godoc
// @Summary Assign prices for many lines in parallel
// @Description 200 when every item succeeded, 207 when some failed, 422 when all failed.
// @Tags price-assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.BulkAssignRequest true "Lines"
// @Success 200 {object} dto.BulkAssignmentResult
// @Success 207 {object} dto.BulkAssignmentResult
// @Failure 422 {object} dto.BulkAssignmentResult
// @Router /v1/price-assignments/bulk [post]
func (h *AssignmentsHandler) Bulk(c *gin.Context) {
	var req dto.BulkAssignRequest
	if !bindAndValidate(c, &req) {
		return
	}
	result, err := h.bulk.BulkAssign(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(BulkStatus(result.Summary), result)
}

// BulkStatus is 200 when every item succeeded, 207 on partial success and
// 422 when nothing succeeded.
func BulkStatus(s dto.BulkSummary) int {
	switch {
	case s.FailedAssignments == 0:
		return http.StatusOK
	case s.SuccessfulAssignments == 0:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusMultiStatus
	}
}

// BulkAsync godoc
// @Summary Queue a bulk assignment batch
// @Tags price-assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.BulkAssignRequest true "Lines"
// @Success 202 {object} dto.BulkJobResponse
// @Router /v1/price-assignments/bulk/async [post]
func (h *AssignmentsHandler) BulkAsync(c *gin.Context) {
	var req dto.BulkAssignRequest
	if !bindAndValidate(c, &req) {
		return
	}
	job, err := h.bulk.EnqueueBulk(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Location", "/v1/price-assignments/bulk/jobs/"+job.JobID)
	c.JSON(http.StatusAccepted, job)
}

// BulkJob godoc
// @Summary Status and result of a queued bulk batch
// @Tags price-assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} dto.BulkJobResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/price-assignments/bulk/jobs/{id} [get]
func (h *AssignmentsHandler) BulkJob(c *gin.Context) {
	job, err := h.bulk.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Analytics godoc
// @Summary Assignment automation analytics
// @Tags price-assignments
// @Produce json
// @Security BearerAuth
// @Param from query string false "Start (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "End, exclusive"
// @Success 200 {object} dto.AnalyticsResponse
// @Router /v1/price-assignments/analytics [get]
func (h *AssignmentsHandler) Analytics(c *gin.Context) {
	var filter dto.AnalyticsFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.analytics.Analytics(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Queues godoc
// @Summary Background queue depths
// @Tags price-assignments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.QueueStatusResponse
// @Router /v1/price-assignments/queues [get]
func (h *AssignmentsHandler) Queues(c *gin.Context) {
	resp, err := h.bulk.QueueStatus(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RequeueFailed godoc
// @Summary Move a queue's dead-lettered jobs back onto the queue
// @Tags price-assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "Queue (bulk_assignment | email)"
// @Param body body dto.RequeueRequest false "Limit"
// @Success 200 {object} dto.RequeueResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/price-assignments/queues/{name}/requeue [post]
func (h *AssignmentsHandler) RequeueFailed(c *gin.Context) {
	var req dto.RequeueRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.bulk.RequeueFailed(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
