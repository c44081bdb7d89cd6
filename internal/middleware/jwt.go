// Package middleware holds the Echo middleware shared by all routes:
// bearer-token authentication, role gating, request logging, and the
// Redis-backed rate limiter and response cache.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/logger"
	"github.com/iliyamo/facility-reservation/internal/utils"
)

// JWTAuth validates the Bearer access token and stores the authenticated
// actor in the Echo context (see ActorFrom).  The request logger is
// tagged with the actor so every downstream log line carries it.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			actor, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
			if err != nil {
				logger.DebugKV(c.Request().Context(), "rejected access token", "error", err)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			setActor(c, actor)
			ctx := logger.WithKV(c.Request().Context(), "actor_id", actor.ID, "actor_role", string(actor.Role))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
