// Package email delivers operator alert emails over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers operator alert emails.
type Sender interface {
	SendFallbackAlertEmail(ctx context.Context, toEmail, recordID, providerID, errText string) error
	SendBookingAlertEmail(ctx context.Context, toEmail, contactName, scheduledAt string) error
}

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates an SMTPSender with the given credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

var alertTemplate = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html><body style="font-family: sans-serif;">
<h2>{{.Heading}}</h2>
{{range .Lines}}<p>{{.}}</p>
{{end}}</body></html>`))

type alertData struct {
	Heading string
	Lines   []string
}

func renderAlert(data alertData) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render alert email: %w", err)
	}
	return buf.String(), nil
}

// SendFallbackAlertEmail alerts the operator that a message-bearing webhook
// event failed ingestion and needs review.
func (s *SMTPSender) SendFallbackAlertEmail(ctx context.Context, toEmail, recordID, providerID, errText string) error {
	content, err := renderAlert(alertData{
		Heading: "Inbound message needs review",
		Lines: []string{
			"An inbound SMS could not be processed and was captured for retry.",
			"Record: " + recordID,
			"Provider message id: " + providerID,
			"Error: " + errText,
		},
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Webhook ingestion failure needs review", content)
}

// SendBookingAlertEmail notifies the operator of a new booking.
func (s *SMTPSender) SendBookingAlertEmail(ctx context.Context, toEmail, contactName, scheduledAt string) error {
	content, err := renderAlert(alertData{
		Heading: "New appointment booked",
		Lines: []string{
			contactName + " booked a session for " + scheduledAt + ".",
		},
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "New appointment: "+contactName, content)
}
