package doctor

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
	doc := auth.RequireRole(contract.RoleDoctor)
	g.GET("/doctor/available", h.ListAvailable, auth.RequireRole(contract.RolePatient, contract.RoleAdmin))
	g.GET("/doctor/profile", h.Profile, doc)
	g.PUT("/doctor/update", h.Update, doc)
}

func (h *Handler) ListAvailable(c echo.Context) error {
	doctors, err := h.svc.ListAvailable(c.Request().Context(), c.QueryParam("specialty"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) Profile(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), ident.ID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p.ToContract())
}

func (h *Handler) Update(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var req contract.DoctorUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Update(c.Request().Context(), ident.ID, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p.ToContract())
}
