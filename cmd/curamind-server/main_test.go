package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:           "development",
		SessionSecret: "0123456789abcdef0123456789abcdef",
		SessionTTL:    time.Hour,
		CORSOrigins:   []string{"http://localhost:3000"},
	}
}

func TestNewServer_Routes(t *testing.T) {
	e := newServer(testConfig(), nil, zerolog.Nop())

	want := []string{
		"POST /auth/sign_up",
		"POST /auth/login",
		"POST /auth/logout",
		"POST /auth/forgot_password",
		"POST /auth/verify_otp",
		"GET /auth/me",
		"POST /auth/change_password",
		"GET /user/profile",
		"POST /chat/message",
		"GET /user/triage_history",
		"GET /doctor/available",
		"GET /doctor/profile",
		"PUT /doctor/update",
		"POST /user/consultation/request",
		"GET /user/consultation/status/:id",
		"GET /doctor/consultations",
		"GET /doctor/consultations/:id",
		"POST /otochat/respond/:id",
		"POST /otochat/send",
		"GET /otochat/messages/:id",
		"POST /otochat/end",
		"GET /otochat/events/:id",
		"GET /admin/get_doctors/:status",
		"POST /admin/handle_request/:id",
		"GET /admin/dashboard_stats",
		"GET /health",
		"GET /health/db",
	}
	have := make(map[string]bool)
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, route := range want {
		if !have[route] {
			t.Errorf("missing route %s", route)
		}
	}
}

func TestNewServer_HealthIsPublic(t *testing.T) {
	e := newServer(testConfig(), nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestNewServer_ProtectedRoutesNeedSession(t *testing.T) {
	e := newServer(testConfig(), nil, zerolog.Nop())
	for _, path := range []string{"/doctor/available", "/doctor/consultations", "/otochat/messages/1", "/admin/dashboard_stats"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestNewServer_UnknownRouteIsNotFound(t *testing.T) {
	e := newServer(testConfig(), nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMigrationsDir(t *testing.T) {
	cfg := testConfig()
	cfg.MigrationsDir = "/srv/curamind/migrations"

	up := migrateCmd()
	cmd, _, err := up.Find([]string{"up"})
	if err != nil {
		t.Fatalf("find up: %v", err)
	}
	if got := migrationsDir(cmd, cfg); got != "/srv/curamind/migrations" {
		t.Errorf("without --dir expected configured dir, got %q", got)
	}

	if err := cmd.Flags().Set("dir", "./other"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if got := migrationsDir(cmd, cfg); got != "./other" {
		t.Errorf("expected --dir to win, got %q", got)
	}
}
