package handler

import (
	"net/http"

	"clinic_engage_backend/internal/messaging/service"
	"clinic_engage_backend/internal/messaging/transport"
	"clinic_engage_backend/platform/httpkit"
	"clinic_engage_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for conversations
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new messaging handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the conversation routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:contactId", h.GetConversation)
	rg.POST("/:contactId/messages", h.SendMessage)
	rg.GET("/:contactId/messages/:messageId/media", h.GetMessageMedia)
	rg.POST("/:contactId/scripts", h.SendScript)
	rg.POST("/:contactId/actions", h.DispatchAction)
}

func contactID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("contactId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contact id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// GetConversation handles GET /api/v1/conversations/:contactId
func (h *Handler) GetConversation(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	result, err := h.svc.GetConversation(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// SendMessage handles POST /api/v1/conversations/:contactId/messages
func (h *Handler) SendMessage(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	var req transport.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.SendMessage(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// GetMessageMedia handles GET /api/v1/conversations/:contactId/messages/:messageId/media
func (h *Handler) GetMessageMedia(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid message id", nil)
		return
	}

	links, err := h.svc.GetMessageMedia(c.Request.Context(), id, messageID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": links})
}

// SendScript handles POST /api/v1/conversations/:contactId/scripts
func (h *Handler) SendScript(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	var req transport.SendScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.SendScript(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// DispatchAction handles POST /api/v1/conversations/:contactId/actions
func (h *Handler) DispatchAction(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	var req transport.DispatchActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.DispatchAction(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
