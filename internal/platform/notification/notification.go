// Package notification renders account mails (temporary passwords, doctor
// verification outcomes) and hands them to an EmailSender.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Template ids.
const (
	TemplateWelcomePatient   = "welcome-patient"
	TemplateDoctorRegistered = "doctor-registered"
	TemplateDoctorVerified   = "doctor-verified"
	TemplateDoctorRejected   = "doctor-rejected"
	TemplatePasswordReset    = "password-reset"
)

// Notification is one outbound mail and its delivery outcome.
type Notification struct {
	ID         string     `json:"id"`
	Recipient  string     `json:"recipient"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	TemplateID string     `json:"template_id,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// EmailSender delivers a rendered mail.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range []Template{
		{
			ID:      TemplateWelcomePatient,
			Subject: "Welcome to CuraMind",
			Body: "Hello {{name}}, your CuraMind account is ready. Sign in with {{email}} and the " +
				"temporary password {{password}}. You will be asked to choose a new password on first login.",
		},
		{
			ID:      TemplateDoctorRegistered,
			Subject: "CuraMind registration received",
			Body: "Hello Dr. {{name}}, we received your registration (license {{license_no}}). " +
				"An administrator will review your credentials; you will receive your login details once verified.",
		},
		{
			ID:      TemplateDoctorVerified,
			Subject: "Your CuraMind account has been verified",
			Body: "Hello Dr. {{name}}, your credentials have been verified. Sign in with {{email}} and the " +
				"temporary password {{password}}.",
		},
		{
			ID:      TemplateDoctorRejected,
			Subject: "Your CuraMind registration was not approved",
			Body:    "Hello {{name}}, your registration could not be approved. Reason: {{reason}}. {{note}}",
		},
		{
			ID:      TemplatePasswordReset,
			Subject: "Your CuraMind verification code",
			Body: "Hello {{name}}, your verification code is {{code}}. It expires in {{minutes}} minutes. " +
				"If you did not ask to reset your password you can ignore this mail.",
		},
	} {
		e.templates[t.ID] = t
	}
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render fills the template. Placeholders without data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, strings.TrimSpace(body), nil
}

// Manager renders and sends mails and keeps the outcome of each one so failed
// deliveries can be retried.
type Manager struct {
	sender    EmailSender
	templates *TemplateEngine
	logger    zerolog.Logger

	mu     sync.RWMutex
	outbox map[string]*Notification
}

func NewManager(sender EmailSender, tpl *TemplateEngine, logger zerolog.Logger) *Manager {
	return &Manager{
		sender:    sender,
		templates: tpl,
		logger:    logger.With().Str("component", "notification").Logger(),
		outbox:    make(map[string]*Notification),
	}
}

// Send renders templateID and mails it to recipient. A delivery failure is
// recorded and returned.
func (m *Manager) Send(ctx context.Context, templateID, recipient string, data map[string]string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	n := &Notification{
		ID:         uuid.NewString(),
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		CreatedAt:  time.Now().UTC(),
	}
	err = m.deliver(ctx, n)

	m.mu.Lock()
	m.outbox[n.ID] = n
	m.mu.Unlock()
	return n, err
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	if err := m.sender.SendEmail(ctx, n.Recipient, n.Subject, n.Body); err != nil {
		n.Status = "failed"
		n.Error = err.Error()
		m.logger.Warn().Err(err).Str("template", n.TemplateID).Str("notification_id", n.ID).Msg("mail delivery failed")
		return err
	}
	sentAt := time.Now().UTC()
	n.Status = "sent"
	n.Error = ""
	n.SentAt = &sentAt
	return nil
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.outbox[id]
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	if n.Status != "failed" {
		return fmt.Errorf("notification %q is %s, only failed notifications can be retried", id, n.Status)
	}
	return m.deliver(ctx, n)
}

// Failed lists notifications whose last delivery failed.
func (m *Manager) Failed() []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Notification
	for _, n := range m.outbox {
		if n.Status == "failed" {
			out = append(out, n)
		}
	}
	return out
}

// LogSender writes mails to the log instead of an SMTP relay. Bodies carry
// temporary passwords, so they are logged at debug level only.
type LogSender struct {
	From   string
	Logger zerolog.Logger
}

func (s LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().Str("from", s.From).Str("to", to).Str("subject", subject).Msg("mail sent")
	s.Logger.Debug().Str("to", to).Str("body", body).Msg("mail body")
	return nil
}
