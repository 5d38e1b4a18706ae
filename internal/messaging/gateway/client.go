// Package gateway wraps the SMS provider's REST API.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clinic_engage_backend/platform/config"
	"clinic_engage_backend/platform/logger"
	"clinic_engage_backend/platform/phone"
)

// Client talks to the Twilio-compatible messaging API. A nil client is a
// valid no-op sender for environments without gateway credentials.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	fromNumber string
	http       *http.Client
	log        *logger.Logger
}

type sendResponse struct {
	SID          string  `json:"sid"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message"`
}

// NewClient builds a gateway client from config. Returns nil when no gateway
// URL is configured so callers degrade to queue-only behavior.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if cfg.GetSMSGatewayURL() == "" {
		return nil
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		accountSID: cfg.GetSMSAccountSID(),
		authToken:  cfg.GetSMSAuthToken(),
		fromNumber: cfg.GetSMSFromNumber(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Send submits an outbound SMS and returns the provider's message id, which
// later status callbacks reference.
func (c *Client) Send(ctx context.Context, toNumber, body string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("sms gateway not configured")
	}

	form := url.Values{}
	form.Set("To", phone.NormalizeE164(toNumber))
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode sms gateway response: %w", err)
	}
	if parsed.SID == "" {
		return "", fmt.Errorf("sms gateway accepted the message but returned no sid")
	}

	c.log.Info("sms submitted to gateway", "providerMessageId", parsed.SID, "status", parsed.Status)
	return parsed.SID, nil
}
