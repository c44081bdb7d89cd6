package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/facility-reservation/internal/logger"
)

// RequestID assigns a UUID request ID, honouring one sent by the client.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// RequestLogger attaches a request-scoped zap logger to the request
// context and logs one line per request.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logger.WithKV(req.Context(), "request_id", rid)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			kvs := []any{
				"method", req.Method,
				"route", c.Path(),
				"status", c.Response().Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"remote_ip", c.RealIP(),
			}
			// The logger attached by JWTAuth carries the actor fields.
			l := c.Request().Context()
			switch {
			case c.Response().Status >= 500:
				logger.ErrorKV(l, "request", append(kvs, "error", err)...)
			case c.Response().Status >= 400:
				logger.WarnKV(l, "request", kvs...)
			default:
				logger.InfoKV(l, "request", kvs...)
			}
			return nil
		}
	}
}
