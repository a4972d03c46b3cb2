package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestTimeout puts a deadline on the request context and runs the rest
// of the chain on the calling goroutine. Handlers stop at the deadline only
// where they block on the context (pgx, redis, outbound HTTP). A request
// that overran and has not written a response gets a 504.
func RequestTimeout(timeout time.Duration, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Response().Committed {
				return err
			}

			rid, _ := c.Get("request_id").(string)
			logger.Warn().
				Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Dur("timeout", timeout).
				Msg("request timed out")
			return c.JSON(http.StatusGatewayTimeout, errorBody{
				Status:  "error",
				Message: "request processing exceeded the allowed time limit",
			})
		}
	}
}
