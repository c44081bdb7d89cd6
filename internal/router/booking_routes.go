package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/handler"
	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// RegisterBookings registers the booking workflow under /v1/bookings.
// Each transition route admits only the roles allowed to perform it;
// ownership and status are checked by the engine.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/bookings", middleware.JWTAuth(jwtSecret))
	can := middleware.RequireAction

	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/billing", h.Billing)
	g.GET("/:id/billings", h.BillingHistory)

	g.POST("", h.Create, can(model.ActionCreate))
	g.POST("/:id/approve", h.Approve, can(model.ActionApprove))
	g.POST("/:id/reject", h.Reject, can(model.ActionReject))
	g.POST("/:id/cancel", h.Cancel, can(model.ActionCancel))
	g.PUT("/:id/schedules", h.Edit, can(model.ActionEdit))
	g.POST("/:id/bill", h.Bill, can(model.ActionBill))
	g.POST("/:id/billing/send", h.SendBilling, can(model.ActionSendBilling))
	g.POST("/:id/billing/void", h.VoidBilling, can(model.ActionVoidBilling))
	g.POST("/:id/paid", h.MarkPaid, can(model.ActionMarkPaid))
}
