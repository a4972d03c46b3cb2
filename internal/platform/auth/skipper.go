package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicRoutes are matched on method and route pattern. Doctor browsing is
// open; the payment callback carries its own webhook secret.
var publicRoutes = map[string]bool{
	http.MethodGet + " /health":                    true,
	http.MethodGet + " /health/db":                 true,
	http.MethodGet + " /api/v1/doctors":            true,
	http.MethodGet + " /api/v1/doctors/:id":        true,
	http.MethodPost + " /api/v1/payments/callback": true,
}

// PublicSkipper returns true for routes that need no caller identity.
func PublicSkipper(c echo.Context) bool {
	return IsPublicRoute(c.Request().Method, c.Path())
}

func IsPublicRoute(method, path string) bool {
	return publicRoutes[method+" "+path]
}
