package middleware

import (
	"github.com/labstack/echo/v4"
)

type header struct{ name, value string }

var apiHeaders = []header{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	// Appointment and payment data is per-patient.
	{"Cache-Control", "no-store"},
}

// SecurityHeaders sets the headers every JSON response carries. HSTS is
// only sent when hsts is set; development servers run on plain HTTP.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	headers := apiHeaders
	if hsts {
		headers = append(headers[:len(headers):len(headers)], header{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"})
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range headers {
				h.Set(kv.name, kv.value)
			}
			return next(c)
		}
	}
}
