package admin

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
	"github.com/curamind/curamind/internal/platform/auth"
	"github.com/curamind/curamind/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	admin := auth.RequireRole(contract.RoleAdmin)
	g.GET("/admin/get_doctors/:status", h.ListDoctors, admin)
	g.POST("/admin/handle_request/:id", h.Decide, admin)
	g.GET("/admin/dashboard_stats", h.Stats, admin)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	status := contract.DoctorStatus(c.Param("status"))
	page, err := h.svc.ListDoctors(c.Request().Context(), status, pagination.FromContext(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) Decide(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req contract.DecisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	msg, err := h.svc.Decide(c.Request().Context(), id, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, contract.MessageBody{Message: msg})
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, stats)
}
