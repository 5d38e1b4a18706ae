package handler

import (
	"net/http"

	"clinic_engage_backend/internal/scheduling/service"
	"clinic_engage_backend/internal/scheduling/transport"
	"clinic_engage_backend/platform/httpkit"
	"clinic_engage_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for scheduling
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new scheduling handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the scheduling routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/availability/:date", h.GetAvailability)
	rg.GET("/availability", h.GetSelectableDates)
	rg.POST("/appointments", h.Book)
	rg.PATCH("/appointments/:id", h.Reschedule)
	rg.DELETE("/appointments/:id", h.Cancel)
	rg.GET("/template", h.GetTemplate)
	rg.PUT("/template", h.UpdateTemplate)
	rg.GET("/blocked-dates", h.ListBlockedDates)
	rg.POST("/blocked-dates", h.BlockDate)
	rg.DELETE("/blocked-dates/:date", h.UnblockDate)
}

// GetAvailability handles GET /api/v1/scheduling/availability/:date
func (h *Handler) GetAvailability(c *gin.Context) {
	result, err := h.svc.GetAvailability(c.Request.Context(), c.Param("date"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// GetSelectableDates handles GET /api/v1/scheduling/availability
func (h *Handler) GetSelectableDates(c *gin.Context) {
	result, err := h.svc.GetSelectableDates(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Book handles POST /api/v1/scheduling/appointments
func (h *Handler) Book(c *gin.Context) {
	var req transport.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Book(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// Reschedule handles PATCH /api/v1/scheduling/appointments/:id
func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid appointment id", nil)
		return
	}

	var req transport.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Reschedule(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Cancel handles DELETE /api/v1/scheduling/appointments/:id
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid appointment id", nil)
		return
	}

	if err := h.svc.CancelAppointment(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

// ListBlockedDates handles GET /api/v1/scheduling/blocked-dates
func (h *Handler) ListBlockedDates(c *gin.Context) {
	result, err := h.svc.ListBlockedDates(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// BlockDate handles POST /api/v1/scheduling/blocked-dates
func (h *Handler) BlockDate(c *gin.Context) {
	var req transport.BlockDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.BlockDate(c.Request.Context(), req); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

// UnblockDate handles DELETE /api/v1/scheduling/blocked-dates/:date
func (h *Handler) UnblockDate(c *gin.Context) {
	if err := h.svc.UnblockDate(c.Request.Context(), c.Param("date")); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

// GetTemplate handles GET /api/v1/scheduling/template
func (h *Handler) GetTemplate(c *gin.Context) {
	result, err := h.svc.GetWeeklyTemplate(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// UpdateTemplate handles PUT /api/v1/scheduling/template
func (h *Handler) UpdateTemplate(c *gin.Context) {
	var req transport.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.UpdateWeeklyTemplate(c.Request.Context(), req); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}
