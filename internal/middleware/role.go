package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// RequireRole aborts with 403 unless the authenticated actor has one of
// roles.  It must run after JWTAuth.  The engine authorizes every action
// again; this gate only rejects early at the route level.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, ok := ActorFrom(c)
			if !ok || !allowed[a.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "role not permitted"})
			}
			return next(c)
		}
	}
}

// RequireAction is RequireRole for the roles permitted to perform a.
func RequireAction(a model.Action) echo.MiddlewareFunc {
	return RequireRole(model.RolesFor(a)...)
}
