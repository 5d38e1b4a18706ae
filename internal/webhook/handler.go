package webhook

import (
	"net/http"
	"strconv"
	"time"

	"clinic_engage_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles provider webhook callbacks and the fallback admin API.
type Handler struct {
	svc *Service
}

// NewHandler creates a webhook handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// smsWebhookForm is the provider's form-encoded callback shape.
type smsWebhookForm struct {
	MessageSid    string `form:"MessageSid"`
	From          string `form:"From"`
	To            string `form:"To"`
	Body          string `form:"Body"`
	MessageStatus string `form:"MessageStatus"`
	ErrorMessage  string `form:"ErrorMessage"`
	NumMedia      int    `form:"NumMedia"`
}

// maxMediaItems caps how many indexed MediaUrlN fields are read.
const maxMediaItems = 10

// collectMedia reads the provider's indexed MediaUrl0..N / MediaContentType0..N
// form fields.
func collectMedia(c *gin.Context, numMedia int) []MediaItem {
	if numMedia > maxMediaItems {
		numMedia = maxMediaItems
	}
	var items []MediaItem
	for i := 0; i < numMedia; i++ {
		mediaURL := c.PostForm("MediaUrl" + strconv.Itoa(i))
		if mediaURL == "" {
			continue
		}
		items = append(items, MediaItem{
			URL:         mediaURL,
			ContentType: c.PostForm("MediaContentType" + strconv.Itoa(i)),
		})
	}
	return items
}

func (f smsWebhookForm) toEvent() InboundEvent {
	ev := InboundEvent{
		ProviderID: f.MessageSid,
		From:       f.From,
		To:         f.To,
	}
	if f.Body != "" {
		body := f.Body
		ev.Body = &body
	}
	if f.MessageStatus != "" {
		status := f.MessageStatus
		ev.Status = &status
	}
	if f.ErrorMessage != "" {
		errMsg := f.ErrorMessage
		ev.ErrorMessage = &errMsg
	}
	return ev
}

// ReceiveMessage handles POST /api/webhook/sms — inbound messages.
// Failures respond 202: the event is captured in the fallback queue, and a
// non-2xx would only trigger provider redelivery of an event we already hold.
func (h *Handler) ReceiveMessage(c *gin.Context) {
	var form smsWebhookForm
	if err := c.ShouldBind(&form); err != nil || form.MessageSid == "" || form.From == "" {
		httpkit.Error(c, http.StatusBadRequest, "invalid webhook payload", nil)
		return
	}

	ev := form.toEvent()
	ev.MediaItems = collectMedia(c, form.NumMedia)

	result, err := h.svc.ProcessIncomingMessage(c.Request.Context(), ev)
	if err != nil {
		c.JSON(http.StatusAccepted, gin.H{"captured": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messageId":    result.MessageID,
		"contactId":    result.ContactID,
		"isNewContact": result.IsNewContact,
		"duplicate":    result.Duplicate,
	})
}

// ReceiveStatus handles POST /api/webhook/sms/status — delivery callbacks.
func (h *Handler) ReceiveStatus(c *gin.Context) {
	var form smsWebhookForm
	if err := c.ShouldBind(&form); err != nil || form.MessageSid == "" {
		httpkit.Error(c, http.StatusBadRequest, "invalid webhook payload", nil)
		return
	}

	if err := h.svc.ProcessStatusCallback(c.Request.Context(), form.toEvent()); err != nil {
		c.JSON(http.StatusAccepted, gin.H{"captured": true})
		return
	}

	c.Status(http.StatusNoContent)
}

// fallbackResponse is the admin API shape of a fallback record.
type fallbackResponse struct {
	ID         uuid.UUID `json:"id"`
	ProviderID string    `json:"providerId"`
	Payload    string    `json:"payload"`
	HadBody    bool      `json:"hadBody"`
	Error      string    `json:"error,omitempty"`
	RetryCount int       `json:"retryCount"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toFallbackResponse(r *FallbackRecord) fallbackResponse {
	return fallbackResponse{
		ID:         r.ID,
		ProviderID: r.ProviderID,
		Payload:    string(r.Payload),
		HadBody:    r.HadBody,
		Error:      r.Error,
		RetryCount: r.RetryCount,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// ListFallback handles GET /api/v1/webhook/fallback
func (h *Handler) ListFallback(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	records, err := h.svc.ListFallback(c.Request.Context(), c.Query("status"), limit)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]fallbackResponse, len(records))
	for i := range records {
		items[i] = toFallbackResponse(&records[i])
	}
	httpkit.OK(c, gin.H{"items": items})
}

// RetryFallback handles POST /api/v1/webhook/fallback/:id/retry
func (h *Handler) RetryFallback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid record id", nil)
		return
	}

	force := c.Query("force") == "true"
	resolved, err := h.svc.Retry(c.Request.Context(), id, force)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toFallbackResponse(resolved))
}

// ListMetrics handles GET /api/v1/webhook/metrics
func (h *Handler) ListMetrics(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	metrics, err := h.svc.ListMetrics(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": metrics})
}
