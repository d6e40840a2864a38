package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/curamind/curamind/internal/contract"
)

type contextKey string

const principalKey contextKey = "principal"

// CookieName is the session cookie set on login.
const CookieName = "curamind_session"

const issuer = "curamind"

var ErrInvalidSession = errors.New("invalid session")

// Claims is the payload of the session token. Subject carries the account id.
type Claims struct {
	jwt.RegisteredClaims
	Role contract.Role `json:"role"`
}

// Identity is the authenticated caller resolved from the session cookie.
type Identity struct {
	ID   int64
	Role contract.Role
}

type SessionConfig struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
}

// Sessions issues and verifies session cookies.
type Sessions struct {
	cfg SessionConfig
	now func() time.Time
}

func NewSessions(cfg SessionConfig) *Sessions {
	return &Sessions{cfg: cfg, now: time.Now}
}

// Issue signs a token for the account and returns it with its expiry.
func (s *Sessions) Issue(id int64, role contract.Role) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.cfg.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(id, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: role,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return tok, exp, nil
}

// Parse verifies a token and returns the identity it names.
func (s *Sessions) Parse(tokenStr string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidSession
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 || !claims.Role.Valid() {
		return Identity{}, ErrInvalidSession
	}
	return Identity{ID: id, Role: claims.Role}, nil
}

// SetCookie issues a session for the account and attaches it to the response.
func (s *Sessions) SetCookie(c echo.Context, id int64, role contract.Role) error {
	tok, exp, err := s.Issue(id, role)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    tok,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Sessions) ClearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware rejects requests without a valid session cookie with 401, except
// for paths the skipper lets through.
func (s *Sessions) Middleware(skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}
			cookie, err := c.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
			}
			ident, err := s.Parse(cookie.Value)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "session expired or invalid")
			}
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), ident)))
			return next(c)
		}
	}
}

func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, principalKey, ident)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(principalKey).(Identity)
	return ident, ok
}

// Caller returns the identity behind the request, or a 401 when the session
// middleware did not run.
func Caller(c echo.Context) (Identity, error) {
	ident, ok := IdentityFromContext(c.Request().Context())
	if !ok {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	return ident, nil
}
