package notification

import (
	"net/http"
	"strconv"

	"clinic_engage_backend/internal/notification/inapp"
	"clinic_engage_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the operator inbox API.
type Handler struct {
	inbox *inapp.Service
}

// NewHandler creates a notification handler.
func NewHandler(inbox *inapp.Service) *Handler {
	return &Handler{inbox: inbox}
}

// List handles GET /api/v1/notifications
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))

	items, total, unread, err := h.inbox.List(c.Request.Context(), page, pageSize)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"items":  items,
		"total":  total,
		"unread": unread,
	})
}

// MarkRead handles POST /api/v1/notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification id", nil)
		return
	}

	if httpkit.HandleError(c, h.inbox.MarkRead(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *Handler) MarkAllRead(c *gin.Context) {
	if httpkit.HandleError(c, h.inbox.MarkAllRead(c.Request.Context())) {
		return
	}
	c.Status(http.StatusNoContent)
}
