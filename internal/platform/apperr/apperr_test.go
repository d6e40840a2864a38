package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHTTP(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"invalid", Invalid("content is required"), http.StatusBadRequest, "content is required"},
		{"unauthorized", Unauthorized("invalid email or password"), http.StatusUnauthorized, "invalid email or password"},
		{"forbidden", Forbidden("not a participant"), http.StatusForbidden, "not a participant"},
		{"not found", NotFound("consultation %d not found", 100), http.StatusNotFound, "consultation 100 not found"},
		{"conflict", Conflict("already decided"), http.StatusConflict, "already decided"},
		{"wrapped", fmt.Errorf("respond: %w", Conflict("already decided")), http.StatusConflict, "respond: already decided"},
		{"bare sentinel", ErrNotFound, http.StatusNotFound, "not found"},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal server error"},
		{"passthrough", echo.NewHTTPError(http.StatusTeapot, "teapot"), http.StatusTeapot, "teapot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := HTTP(tt.err)
			if he.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, he.Code)
			}
			if he.Message != tt.message {
				t.Errorf("expected message %q, got %v", tt.message, he.Message)
			}
		})
	}
}

func TestKindIs(t *testing.T) {
	err := Forbidden("only the assigned doctor may respond")
	if !errors.Is(err, ErrForbidden) {
		t.Error("expected ErrForbidden kind")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("unexpected ErrConflict kind")
	}
}
