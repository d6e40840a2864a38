package notification

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type outgoing struct{ to, subject, body string }

// inbox records mails; err, when set, fails every delivery.
type inbox struct {
	mu   sync.Mutex
	mail []outgoing
	err  error
}

func (b *inbox) SendEmail(_ context.Context, to, subject, body string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mail = append(b.mail, outgoing{to, subject, body})
	return b.err
}

func TestTemplateEngine_Render(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render(TemplateDoctorVerified, map[string]string{
		"name":     "Sharma",
		"email":    "sharma@example.com",
		"password": "Temp-Pass-123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Your CuraMind account has been verified" {
		t.Errorf("unexpected subject %q", subject)
	}
	for _, want := range []string{"Dr. Sharma", "sharma@example.com", "Temp-Pass-123"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
}

func TestTemplateEngine_MissingKeyLeftAsIs(t *testing.T) {
	_, body, err := NewTemplateEngine().Render(TemplateWelcomePatient, map[string]string{"name": "Asha"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "{{password}}") {
		t.Errorf("expected unreplaced placeholder, got %s", body)
	}
}

func TestTemplateEngine_UnknownTemplate(t *testing.T) {
	if _, _, err := NewTemplateEngine().Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestTemplateEngine_Register(t *testing.T) {
	e := NewTemplateEngine()
	e.Register(Template{ID: "custom", Subject: "Hi {{name}}", Body: "Body"})
	subject, _, err := e.Render("custom", map[string]string{"name": "Ram"})
	if err != nil || subject != "Hi Ram" {
		t.Errorf("got %q, %v", subject, err)
	}
}

func TestManager_Send(t *testing.T) {
	sender := &inbox{}
	m := NewManager(sender, NewTemplateEngine(), zerolog.Nop())

	n, err := m.Send(context.Background(), TemplateDoctorRejected, "dr@example.com", map[string]string{
		"name":   "Dr. K",
		"reason": "License mismatch",
		"note":   "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Status != "sent" || n.SentAt == nil {
		t.Errorf("expected sent notification, got %+v", n)
	}
	if len(sender.mail) != 1 || sender.mail[0].to != "dr@example.com" {
		t.Fatalf("unexpected mail %+v", sender.mail)
	}
	if !strings.Contains(sender.mail[0].body, "License mismatch") {
		t.Errorf("reason missing from body: %s", sender.mail[0].body)
	}
}

func TestManager_FailureAndRetry(t *testing.T) {
	sender := &inbox{err: errors.New("smtp down")}
	m := NewManager(sender, NewTemplateEngine(), zerolog.Nop())

	n, err := m.Send(context.Background(), TemplateWelcomePatient, "p@example.com", nil)
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if n.Status != "failed" || n.Error != "smtp down" {
		t.Errorf("unexpected notification %+v", n)
	}
	if len(m.Failed()) != 1 {
		t.Fatalf("expected one failed notification")
	}

	sender.err = nil
	if err := m.Retry(context.Background(), n.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(m.Failed()) != 0 {
		t.Error("retry should clear the failure")
	}
	if err := m.Retry(context.Background(), n.ID); err == nil {
		t.Error("retrying a sent notification should fail")
	}
	if err := m.Retry(context.Background(), "missing"); err == nil {
		t.Error("retrying an unknown notification should fail")
	}
}

func TestLogSender_HidesBodyAtInfo(t *testing.T) {
	var buf bytes.Buffer
	s := LogSender{From: "no-reply@curamind.local", Logger: zerolog.New(&buf).Level(zerolog.InfoLevel)}
	if err := s.SendEmail(context.Background(), "p@example.com", "Welcome", "password: secret"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "secret") {
		t.Errorf("body leaked at info level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "p@example.com") {
		t.Errorf("expected recipient in log: %s", buf.String())
	}
}
