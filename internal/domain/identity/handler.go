package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
	"github.com/curamind/curamind/internal/platform/auth"
)

type Handler struct {
	svc      *Service
	sessions *auth.Sessions
}

func NewHandler(svc *Service, sessions *auth.Sessions) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

// RegisterRoutes mounts the account endpoints. guard wraps the credential
// endpoints (sign up, log in), typically with a rate limiter.
func (h *Handler) RegisterRoutes(g *echo.Group, guard ...echo.MiddlewareFunc) {
	g.POST("/auth/sign_up", h.SignUp, guard...)
	g.POST("/auth/login", h.Login, guard...)
	g.POST("/auth/forgot_password", h.ForgotPassword, guard...)
	g.POST("/auth/verify_otp", h.VerifyOTP, guard...)
	g.POST("/auth/logout", h.Logout)
	g.GET("/auth/me", h.Me)
	g.POST("/auth/change_password", h.ChangePassword)
	g.GET("/user/profile", h.Profile)
}

func (h *Handler) SignUp(c echo.Context) error {
	var req contract.SignUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.SignUp(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	msg := "Account created. Check your email for a temporary password."
	if a.Role == contract.RoleDoctor {
		msg = "Application received. You will be emailed once an administrator verifies your license."
	}
	return c.JSON(http.StatusCreated, contract.MessageBody{Message: msg})
}

func (h *Handler) Login(c echo.Context) error {
	var req contract.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return apperr.HTTP(err)
	}
	if err := h.sessions.SetCookie(c, a.ID, a.Role); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a.Principal())
}

func (h *Handler) Logout(c echo.Context) error {
	h.sessions.ClearCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	a, err := h.caller(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a.Principal())
}

func (h *Handler) Profile(c echo.Context) error {
	a, err := h.caller(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a.Profile())
}

func (h *Handler) ChangePassword(c echo.Context) error {
	ident, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var req contract.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ChangePassword(c.Request().Context(), ident.ID, req.NewPassword); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, contract.MessageBody{Message: "Password updated."})
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req contract.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, contract.MessageBody{Message: "If the email is registered, a verification code is on its way."})
}

// VerifyOTP signs the account in with first_login set, so the client goes
// straight to change_password.
func (h *Handler) VerifyOTP(c echo.Context) error {
	var req contract.VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.VerifyOTP(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		return apperr.HTTP(err)
	}
	if err := h.sessions.SetCookie(c, a.ID, a.Role); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a.Principal())
}

// caller loads the account behind the session. A session for a deleted
// account is treated as logged out.
func (h *Handler) caller(c echo.Context) (*Account, error) {
	ident, err := auth.Caller(c)
	if err != nil {
		return nil, err
	}
	a, err := h.svc.Get(c.Request().Context(), ident.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
		}
		return nil, apperr.HTTP(err)
	}
	return a, nil
}
