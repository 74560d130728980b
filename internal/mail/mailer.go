// Package mail sends transactional mails through the Brevo (Sendinblue) HTTP API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/platform/httpclient"

	"go.uber.org/zap"
)

// ErrMailDisabled is returned when MAIL_API_KEY is not configured.
var ErrMailDisabled = errors.New("mail delivery is not configured")

// Recipient of a mail.
type Recipient struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Attachment is sent base64 encoded by the API; Content holds the raw bytes.
type Attachment struct {
	Name    string
	Content []byte
}

// Message is a single transactional mail.
type Message struct {
	Subject     string
	HTML        string
	To          []Recipient
	Attachments []Attachment
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type brevoMailer struct {
	apiURL string
	apiKey string
	sender Recipient
	client *http.Client
	logger *zap.Logger
}

// NewMailer returns a Brevo mailer, or a mailer that only logs when no API key is configured.
func NewMailer(cfg *config.Config, logger *zap.Logger) Mailer {
	if cfg.MailAPIKey == "" {
		logger.Warn("MAIL_API_KEY not set, mails will be logged and dropped")
		return &disabledMailer{logger: logger}
	}
	return &brevoMailer{
		apiURL: cfg.MailAPIURL,
		apiKey: cfg.MailAPIKey,
		sender: Recipient{Name: cfg.MailSenderName, Email: cfg.MailSenderEmail},
		client: httpclient.Default(),
		logger: logger,
	}
}

type brevoAttachment struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

type brevoRequest struct {
	Sender      Recipient         `json:"sender"`
	To          []Recipient       `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Attachment  []brevoAttachment `json:"attachment,omitempty"`
}

// Send posts the message. encoding/json base64 encodes the attachment bytes.
func (m *brevoMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail %q has no recipients", msg.Subject)
	}
	payload := brevoRequest{
		Sender:      m.sender,
		To:          msg.To,
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}
	for _, a := range msg.Attachments {
		payload.Attachment = append(payload.Attachment, brevoAttachment{Name: a.Name, Content: a.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", m.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Error("Mail delivery failed", zap.String("subject", msg.Subject), zap.Error(err))
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		m.logger.Error("Mail API rejected message",
			zap.String("subject", msg.Subject),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return fmt.Errorf("mail api returned status %d", resp.StatusCode)
	}
	m.logger.Info("Mail sent", zap.String("subject", msg.Subject), zap.Int("recipients", len(msg.To)))
	return nil
}

type disabledMailer struct {
	logger *zap.Logger
}

func (m *disabledMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("Mail dropped", zap.String("subject", msg.Subject), zap.Int("recipients", len(msg.To)))
	return ErrMailDisabled
}
