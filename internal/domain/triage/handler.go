package triage

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
	"github.com/curamind/curamind/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	patient := auth.RequireRole(contract.RolePatient)
	g.POST("/chat/message", h.Turn, patient)
	g.GET("/user/triage_history", h.History, patient)
}

func (h *Handler) Turn(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var req contract.TriageTurnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	// accountId is optional; when sent it must name the caller.
	if req.AccountID != 0 && req.AccountID != ident.ID {
		return echo.NewHTTPError(http.StatusForbidden, "accountId does not match the session")
	}
	resp, err := h.svc.Turn(c.Request().Context(), ident.ID, req.Message)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) History(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	records, err := h.svc.History(c.Request().Context(), ident.ID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, records)
}
