package auth

import (
	"sync"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass the session check.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/db":    true,
	"/auth/sign_up": true,
	"/auth/login":   true,
	"/auth/logout":  true,

	"/auth/forgot_password": true,
	"/auth/verify_otp":      true,
}

// AuthSkipper matches on the route pattern, so it must run after routing.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}

// RouteSkipper is AuthSkipper that also lets requests the router could not
// match through, so unknown paths get the router's 404 rather than a 401.
// The route table is read on first use, after every route is registered.
func RouteSkipper(e *echo.Echo) func(echo.Context) bool {
	var (
		once  sync.Once
		known map[string]bool
	)
	return func(c echo.Context) bool {
		once.Do(func() {
			known = make(map[string]bool)
			for _, r := range e.Routes() {
				known[r.Path] = true
			}
		})
		p := c.Path()
		return publicPaths[p] || !known[p]
	}
}
