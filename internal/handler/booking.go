package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// BookingHandler exposes the booking workflow over HTTP.  Authorization
// and transition rules live in the engine; handlers only translate.
type BookingHandler struct {
	Engine *booking.Engine
}

func NewBookingHandler(eng *booking.Engine) *BookingHandler {
	if eng == nil {
		panic("nil engine passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: eng}
}

type reasonReq struct {
	Reason string `json:"reason"`
}

type billReq struct {
	// FacilityFee overrides the catalog price when set.
	FacilityFee *decimal.Decimal `json:"facility_fee"`
}

type billResp struct {
	Booking *model.Booking `json:"booking"`
	Billing *model.Billing `json:"billing"`
}

// Create submits a booking request.
func (h *BookingHandler) Create(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var in booking.CreateInput
	if err := c.Bind(&in); err != nil {
		return badBody(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	b, err := h.Engine.Create(ctx, a, in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Get returns one booking with its schedules.
func (h *BookingHandler) Get(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	b, err := h.Engine.Get(ctx, a, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// List returns bookings filtered by ?facility_id=&status=&requester_id=
// with ?limit=&offset= paging.
func (h *BookingHandler) List(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var (
		f      model.BookingFilter
		status string
	)
	if err := echo.QueryParamsBinder(c).
		Uint64("facility_id", &f.FacilityID).
		Uint64("requester_id", &f.RequesterID).
		String("status", &status).
		Int("limit", &f.Limit).
		Int("offset", &f.Offset).
		BindError(); err != nil {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid query parameters")
	}
	f.Status = model.BookingStatus(strings.ToUpper(strings.TrimSpace(status)))
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	bs, err := h.Engine.List(ctx, a, f)
	if err != nil {
		return respond(c, err)
	}
	limit, offset := f.Page()
	return c.JSON(http.StatusOK, echo.Map{"bookings": bs, "limit": limit, "offset": offset})
}

// Approve confirms a requested booking's schedules.
func (h *BookingHandler) Approve(c echo.Context) error {
	return h.simple(c, func(ctx context.Context, a model.Actor, id uint64) (*model.Booking, error) {
		return h.Engine.Approve(ctx, a, id)
	})
}

// Reject declines a requested booking with an optional reason.
func (h *BookingHandler) Reject(c echo.Context) error {
	return h.withReason(c, h.Engine.Reject)
}

// Cancel withdraws a requested or approved booking.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.withReason(c, h.Engine.Cancel)
}

// Edit replaces the schedules (and optionally the facility) of a booking.
func (h *BookingHandler) Edit(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking id")
	}
	var in booking.EditInput
	if err := c.Bind(&in); err != nil {
		return badBody(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	b, err := h.Engine.Edit(ctx, a, id, in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Bill issues the billing of an approved booking.
func (h *BookingHandler) Bill(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking id")
	}
	var req billReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badBody(c, err)
		}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	b, bill, err := h.Engine.Bill(ctx, a, id, req.FacilityFee)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, billResp{Booking: b, Billing: bill})
}

// SendBilling marks the draft billing as sent.
func (h *BookingHandler) SendBilling(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	bill, err := h.Engine.SendBilling(ctx, a, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, bill)
}

// VoidBilling voids the active billing; the booking returns to APPROVED.
func (h *BookingHandler) VoidBilling(c echo.Context) error {
	return h.simple(c, func(ctx context.Context, a model.Actor, id uint64) (*model.Booking, error) {
		return h.Engine.VoidBilling(ctx, a, id)
	})
}

// MarkPaid records payment of a billed booking.
func (h *BookingHandler) MarkPaid(c echo.Context) error {
	return h.simple(c, func(ctx context.Context, a model.Actor, id uint64) (*model.Booking, error) {
		return h.Engine.MarkPaid(ctx, a, id)
	})
}

// Billing returns the active billing of a booking.
func (h *BookingHandler) Billing(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	bill, err := h.Engine.Billing(ctx, a, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, bill)
}

// BillingHistory lists every billing of a booking, voided ones included.
func (h *BookingHandler) BillingHistory(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	bills, err := h.Engine.BillingHistory(ctx, a, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"billings": bills})
}

type bookingOp func(ctx context.Context, a model.Actor, id uint64) (*model.Booking, error)

func (h *BookingHandler) simple(c echo.Context, op bookingOp) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	b, err := op(ctx, a, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) withReason(c echo.Context, op func(ctx context.Context, a model.Actor, id uint64, reason string) (*model.Booking, error)) error {
	var req reasonReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badBody(c, err)
		}
	}
	return h.simple(c, func(ctx context.Context, a model.Actor, id uint64) (*model.Booking, error) {
		return op(ctx, a, id, strings.TrimSpace(req.Reason))
	})
}
