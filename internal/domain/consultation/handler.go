package consultation

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
	"github.com/curamind/curamind/internal/platform/auth"
	"github.com/curamind/curamind/internal/platform/websocket"
)

type Handler struct {
	svc *Service
	hub *websocket.Hub
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// WithHub enables the event stream endpoint.
func (h *Handler) WithHub(hub *websocket.Hub) *Handler {
	h.hub = hub
	return h
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	patient := auth.RequireRole(contract.RolePatient)
	doc := auth.RequireRole(contract.RoleDoctor)
	either := auth.RequireRole(contract.RolePatient, contract.RoleDoctor)

	g.POST("/user/consultation/request", h.Request, patient)
	g.GET("/user/consultation/status/:id", h.Status, either)

	g.GET("/doctor/consultations", h.ListForDoctor, doc)
	g.GET("/doctor/consultations/:id", h.Detail, doc)

	g.POST("/otochat/respond/:id", h.Respond, doc)
	g.POST("/otochat/send", h.Send, either)
	g.GET("/otochat/messages/:id", h.Messages, either)
	g.POST("/otochat/end", h.End, doc)
	if h.hub != nil {
		g.GET("/otochat/events/:id", h.Events, either)
	}
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Request(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var req contract.ConsultationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cons, err := h.svc.Request(c.Request().Context(), ident.ID, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, contract.ConsultationCreated{ConsultationID: cons.ID})
}

func (h *Handler) Status(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	status, err := h.svc.Status(c.Request().Context(), ident.ID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, contract.StatusResponse{Status: status})
}

func (h *Handler) ListForDoctor(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	cs, err := h.svc.ListForDoctor(c.Request().Context(), ident.ID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) Detail(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Detail(c.Request().Context(), ident.ID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Respond(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req contract.RespondRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	status, err := h.svc.Respond(c.Request().Context(), ident.ID, id, req.Action)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, contract.StatusResponse{Status: status})
}

func (h *Handler) Send(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var req contract.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.svc.Send(c.Request().Context(), ident.ID, req.ConsultationID, req.Content)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, m.ToContract())
}

func (h *Handler) Messages(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	resp, err := h.svc.Messages(c.Request().Context(), ident.ID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) End(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var req contract.EndConsultationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.End(c.Request().Context(), ident.ID, req.ConsultationID, req.Summary); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, contract.StatusResponse{Status: contract.StatusCompleted})
}

// Events streams the consultation's status changes and messages over a
// websocket. Only participants may subscribe.
func (h *Handler) Events(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if _, err := h.svc.Status(c.Request().Context(), ident.ID, id); err != nil {
		return apperr.HTTP(err)
	}
	if h.hub == nil {
		return echo.NewHTTPError(http.StatusNotFound, "event stream disabled")
	}
	return h.hub.Serve(c, ident.ID, id)
}
