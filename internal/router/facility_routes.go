package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/handler"
	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// RegisterFacilities registers the catalog under /v1/facilities.  Reads
// are open to any authenticated role and go through cache; writes need
// the admin role.
func RegisterFacilities(e *echo.Echo, h *handler.FacilityHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/facilities", middleware.JWTAuth(jwtSecret))

	g.GET("", h.List, cache)
	g.GET("/:id", h.Get, cache)
	g.GET("/:id/schedules", h.Schedules, cache)
	g.GET("/:id/availability", h.Availability, cache)

	admin := middleware.RequireAction(model.ActionManageCatalog)
	g.POST("", h.Create, admin)
	g.PUT("/:id", h.Update, admin)
	g.PATCH("/:id/status", h.SetStatus, admin)
	g.POST("/:id/inclusions", h.AddInclusion, admin)
	g.DELETE("/:id/inclusions/:inclusion_id", h.RemoveInclusion, admin)
}
