package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// FacilityHandler serves the facility catalog and the per-facility
// schedule and availability reads.
type FacilityHandler struct {
	Catalog *booking.Catalog
	Engine  *booking.Engine
}

func NewFacilityHandler(cat *booking.Catalog, eng *booking.Engine) *FacilityHandler {
	if cat == nil || eng == nil {
		panic("nil dependency passed to NewFacilityHandler")
	}
	return &FacilityHandler{Catalog: cat, Engine: eng}
}

type statusReq struct {
	Status model.FacilityStatus `json:"status"`
}

type availabilityResp struct {
	Available bool            `json:"available"`
	Conflict  *model.Schedule `json:"conflict,omitempty"`
}

// List returns the catalog, optionally filtered by ?status=.
func (h *FacilityHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	fs, err := h.Catalog.List(ctx, model.FacilityStatus(c.QueryParam("status")))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"facilities": fs})
}

// Get returns one facility with its inclusions.
func (h *FacilityHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "facility id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	f, err := h.Catalog.Get(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// Create adds a facility to the catalog.
func (h *FacilityHandler) Create(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var in booking.FacilityInput
	if err := c.Bind(&in); err != nil {
		return badBody(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	f, err := h.Catalog.Create(ctx, a, in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, f)
}

// Update replaces the editable fields of a facility.
func (h *FacilityHandler) Update(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "facility id")
	}
	var in booking.FacilityInput
	if err := c.Bind(&in); err != nil {
		return badBody(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	f, err := h.Catalog.Update(ctx, a, id, in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// SetStatus enables or disables a facility.
func (h *FacilityHandler) SetStatus(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "facility id")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badBody(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	f, err := h.Catalog.SetStatus(ctx, a, id, req.Status)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// AddInclusion bundles a room or equipment item with a facility.
func (h *FacilityHandler) AddInclusion(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "facility id")
	}
	var in booking.InclusionInput
	if err := c.Bind(&in); err != nil {
		return badBody(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	inc, err := h.Catalog.AddInclusion(ctx, a, id, in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, inc)
}

// RemoveInclusion unbundles an item from a facility.
func (h *FacilityHandler) RemoveInclusion(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "facility id")
	}
	incID, ok := pathID(c, "inclusion_id")
	if !ok {
		return badID(c, "inclusion id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Catalog.RemoveInclusion(ctx, a, id, incID); err != nil {
		return respond(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Schedules lists pending and confirmed holds of a facility on ?date=.
func (h *FacilityHandler) Schedules(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "facility id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	ss, err := h.Engine.Schedules(ctx, id, c.QueryParam("date"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"schedules": ss})
}

// Availability answers whether ?date=&start_time=&end_time= is free.
// The answer is advisory; approval re-checks under lock.
func (h *FacilityHandler) Availability(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "facility id")
	}
	start, err := model.ParseClock(c.QueryParam("start_time"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid start_time")
	}
	end, err := model.ParseClock(c.QueryParam("end_time"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid end_time")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	free, s, err := h.Engine.Availability(ctx, booking.Window{
		FacilityID: id,
		Date:       c.QueryParam("date"),
		Start:      start,
		End:        end,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, availabilityResp{Available: free, Conflict: s})
}
