package handler

import (
	"net/http"

	"carmen/internal/dto"
	"carmen/internal/middleware"
	"carmen/internal/service"

	"github.com/gin-gonic/gin"
)

type RulesHandler struct{ svc service.RuleService }

func NewRulesHandler(svc service.RuleService) *RulesHandler { return &RulesHandler{svc: svc} }

// List godoc
// @Summary List business rules
// @Tags business-rules
// @Produce json
// @Security BearerAuth
// @Param isActive query string false "true | false"
// @Param search query string false "Name or description contains"
// @Success 200 {object} dto.RuleListResponse
// @Router /v1/business-rules [get]
func (h *RulesHandler) List(c *gin.Context) {
	var filter dto.RuleFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Create godoc
// @Summary Create a business rule
// @Tags business-rules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.RuleRequest true "Rule"
// @Success 201 {object} dto.RuleResponse
// @Failure 400 {object} apierror.ValidationError
// @Router /v1/business-rules [post]
func (h *RulesHandler) Create(c *gin.Context) {
	var req dto.RuleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), middleware.Username(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *RulesHandler) Get(c *gin.Context) {
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

func (h *RulesHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RuleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RulesHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
