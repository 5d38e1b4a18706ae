package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	msgrepo "clinic_engage_backend/internal/messaging/repository"

	"github.com/gin-gonic/gin"
)

func TestCanRetry_CapAndForce(t *testing.T) {
	cases := []struct {
		retryCount int
		force      bool
		want       bool
	}{
		{0, false, true},
		{2, false, true},
		{3, false, false},
		{5, false, false},
		{3, true, true},
		{5, true, true},
	}
	for _, tc := range cases {
		record := &FallbackRecord{RetryCount: tc.retryCount}
		if got := canRetry(record, tc.force); got != tc.want {
			t.Fatalf("canRetry(count=%d, force=%v) = %v, want %v", tc.retryCount, tc.force, got, tc.want)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		provider string
		want     msgrepo.Status
		ok       bool
	}{
		{"delivered", msgrepo.StatusDelivered, true},
		{"DELIVERED", msgrepo.StatusDelivered, true},
		{" sent ", msgrepo.StatusSent, true},
		{"undelivered", msgrepo.StatusUndelivered, true},
		{"failed", msgrepo.StatusFailed, true},
		{"accepted", msgrepo.StatusQueued, true},
		{"read", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := normalizeStatus(tc.provider)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("normalizeStatus(%q) = (%q, %v), want (%q, %v)", tc.provider, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStatusCaptureWorthy(t *testing.T) {
	if statusCaptureWorthy(errInvalidEvent("unrecognized delivery status read")) {
		t.Fatal("a malformed status must not enter the fallback queue")
	}
	if !statusCaptureWorthy(errors.New("connection refused")) {
		t.Fatal("a transient failure must be captured for retry")
	}
	if !statusCaptureWorthy(fmt.Errorf("apply status: %w", errors.New("timeout"))) {
		t.Fatal("a wrapped transient failure must be captured for retry")
	}
}

func TestInboundEvent_HasBody(t *testing.T) {
	if (InboundEvent{}).HasBody() {
		t.Fatal("event without body must report HasBody=false")
	}
	empty := ""
	if (InboundEvent{Body: &empty}).HasBody() {
		t.Fatal("event with empty body must report HasBody=false")
	}
	body := "hi"
	if !(InboundEvent{Body: &body}).HasBody() {
		t.Fatal("event with body must report HasBody=true")
	}
}

func TestSMSWebhookForm_ToEvent(t *testing.T) {
	form := smsWebhookForm{
		MessageSid:    "SM123",
		From:          "+15551234567",
		To:            "+15557654321",
		MessageStatus: "delivered",
	}

	ev := form.toEvent()

	if ev.ProviderID != "SM123" || ev.From != "+15551234567" {
		t.Fatalf("unexpected event mapping: %+v", ev)
	}
	if ev.Body != nil {
		t.Fatal("status-only callback must not carry a body")
	}
	if ev.Status == nil || *ev.Status != "delivered" {
		t.Fatalf("expected delivered status, got %v", ev.Status)
	}
}

func TestCollectMedia(t *testing.T) {
	gin.SetMode(gin.TestMode)

	values := url.Values{}
	values.Set("NumMedia", "3")
	values.Set("MediaUrl0", "https://cdn.example.com/a.jpg")
	values.Set("MediaContentType0", "image/jpeg")
	// index 1 deliberately missing
	values.Set("MediaUrl2", "https://cdn.example.com/c.png")
	values.Set("MediaContentType2", "image/png")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	items := collectMedia(c, 3)
	if len(items) != 2 {
		t.Fatalf("expected 2 media items, got %d", len(items))
	}
	if items[0].URL != "https://cdn.example.com/a.jpg" || items[0].ContentType != "image/jpeg" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].URL != "https://cdn.example.com/c.png" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func postForm(token string, handler gin.HandlerFunc, values url.Values, headers map[string]string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhook/sms", TokenAuthMiddleware(token), handler)

	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTokenAuthMiddleware(t *testing.T) {
	passed := false
	next := func(c *gin.Context) {
		passed = true
		c.Status(http.StatusOK)
	}

	rec := postForm("secret", next, url.Values{}, nil)
	if rec.Code != http.StatusUnauthorized || passed {
		t.Fatalf("missing token: status=%d passed=%v", rec.Code, passed)
	}

	rec = postForm("secret", next, url.Values{}, map[string]string{"X-Webhook-Token": "wrong"})
	if rec.Code != http.StatusUnauthorized || passed {
		t.Fatalf("wrong token: status=%d passed=%v", rec.Code, passed)
	}

	rec = postForm("", next, url.Values{}, map[string]string{"X-Webhook-Token": "anything"})
	if rec.Code != http.StatusServiceUnavailable || passed {
		t.Fatalf("unconfigured token: status=%d passed=%v", rec.Code, passed)
	}

	rec = postForm("secret", next, url.Values{}, map[string]string{"X-Webhook-Token": "secret"})
	if rec.Code != http.StatusOK || !passed {
		t.Fatalf("valid token: status=%d passed=%v", rec.Code, passed)
	}
}
