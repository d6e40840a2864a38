package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/curamind/curamind/internal/contract"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func listContext(e *echo.Echo, status, query string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/admin/get_doctors/"+status+query, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("status")
	c.SetParamValues(status)
	return c, rec
}

func TestHandler_ListPending(t *testing.T) {
	h, e := newTestHandler()
	c, rec := listContext(e, "pending", "?limit=3")
	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var page contract.PendingDoctorPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 5 || page.Limit != 3 || len(page.Data) != 3 || !page.HasMore {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestHandler_ListVerified(t *testing.T) {
	svc, _, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	if _, err := svc.Decide(context.Background(), 5, contract.DecisionRequest{Action: contract.ActionVerify}); err != nil {
		t.Fatalf("verify: %v", err)
	}

	c, rec := listContext(e, "verified", "")
	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var page contract.PendingDoctorPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || len(page.Data) != 1 || page.Data[0].ID != 5 || !page.Data[0].Verified {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestHandler_ListUnknownStatus(t *testing.T) {
	h, e := newTestHandler()
	c, _ := listContext(e, "archived", "")
	var he *echo.HTTPError
	if err := h.ListDoctors(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Decide(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"verify"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("4")

	if err := h.Decide(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body contract.MessageBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !strings.Contains(body.Message, "verified") {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestHandler_DecideRejectNeedsReason(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"reject"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("4")

	var he *echo.HTTPError
	if err := h.Decide(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Stats(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard_stats", nil)
	rec := httptest.NewRecorder()
	if err := h.Stats(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var stats contract.DashboardStats
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.PendingVerifications != 5 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
