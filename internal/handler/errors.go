package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/logger"
	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	// ConflictsWith names the booking holding an overlapping schedule.
	ConflictsWith uint64 `json:"conflicts_with,omitempty"`
}

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, errorBody{Error: code, Message: msg})
}

// respond maps a workflow error onto its HTTP status.  Anything
// unrecognised is logged and reported as 500 without details.
func respond(c echo.Context, err error) error {
	var (
		verr *booking.ValidationError
		cerr *booking.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error(), Field: verr.Field})
	case errors.As(err, &cerr):
		return c.JSON(http.StatusConflict, errorBody{Error: "schedule_conflict", Message: err.Error(), ConflictsWith: cerr.ConflictsWith})
	case errors.Is(err, booking.ErrValidation):
		return fail(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, booking.ErrScheduleConflict):
		return fail(c, http.StatusConflict, "schedule_conflict", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		return fail(c, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, booking.ErrBillingExists):
		return fail(c, http.StatusConflict, "billing_exists", err.Error())
	case errors.Is(err, booking.ErrFacilityUnavailable):
		return fail(c, http.StatusUnprocessableEntity, "facility_unavailable", err.Error())
	case errors.Is(err, booking.ErrNotFound):
		return fail(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		return fail(c, http.StatusForbidden, "forbidden", err.Error())
	}
	logger.ErrorKV(c.Request().Context(), "request failed", "error", err)
	return fail(c, http.StatusInternalServerError, "internal_error", "internal error")
}

// actor returns the authenticated caller.  Routes using it sit behind
// JWTAuth, so a missing actor is a routing bug reported as 401.
func actor(c echo.Context) (model.Actor, bool) {
	return middleware.ActorFrom(c)
}

func unauthorized(c echo.Context) error {
	return fail(c, http.StatusUnauthorized, "unauthorized", "authentication required")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badID(c echo.Context, name string) error {
	return fail(c, http.StatusBadRequest, "validation_error", "invalid "+name)
}

func badBody(c echo.Context, err error) error {
	msg := "invalid body"
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Internal != nil {
		msg += ": " + he.Internal.Error()
	}
	return fail(c, http.StatusBadRequest, "validation_error", msg)
}
