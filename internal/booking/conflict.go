package booking

import (
	"context"
	"fmt"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// ScheduleSource is anything that can list a facility's schedules for a
// date: the lock-free Reader or a Tx holding the facility lock.
type ScheduleSource interface {
	Schedules(ctx context.Context, f model.ScheduleFilter) ([]model.Schedule, error)
}

// Window is a half-open reservation interval [Start, End) on one facility
// and date.
type Window struct {
	FacilityID uint64      `json:"facility_id"`
	Date       string      `json:"date"`
	Start      model.Clock `json:"start_time"`
	End        model.Clock `json:"end_time"`
}

// Validate rejects unknown dates and empty or inverted intervals.  Callers
// validate before consulting the checker; an invalid window is never a
// conflict result.
func (w *Window) Validate() error {
	d, err := model.ParseDate(w.Date)
	if err != nil {
		return invalid("date", "%v", err)
	}
	w.Date = d
	if !w.Start.Valid() || !w.End.Valid() {
		return invalid("time", "outside of a single day")
	}
	if w.Start >= w.End {
		return invalid("time", "start %s must be before end %s", w.Start, w.End)
	}
	return nil
}

// FindConflict scans the facility's schedules for w.Date whose status is
// one of statuses (pending and confirmed when none are given), skipping
// excludeBookingID, and returns the first one overlapping w.  It returns
// nil when the window is free.  It has no side effects.
func FindConflict(ctx context.Context, src ScheduleSource, w Window, excludeBookingID uint64, statuses ...model.ScheduleStatus) (*model.Schedule, error) {
	if len(statuses) == 0 {
		statuses = model.ActiveScheduleStatuses
	}
	existing, err := src.Schedules(ctx, model.ScheduleFilter{
		FacilityID:       w.FacilityID,
		Date:             w.Date,
		Statuses:         statuses,
		ExcludeBookingID: excludeBookingID,
	})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	for i := range existing {
		s := existing[i]
		if s.Status == model.ScheduleCancelled {
			continue
		}
		if model.Overlaps(w.Start, w.End, s.Start, s.End) {
			return &s, nil
		}
	}
	return nil, nil
}

// HasConflict reports whether w overlaps an active schedule of another
// booking.
func HasConflict(ctx context.Context, src ScheduleSource, w Window, excludeBookingID uint64, statuses ...model.ScheduleStatus) (bool, error) {
	s, err := FindConflict(ctx, src, w, excludeBookingID, statuses...)
	return s != nil, err
}

// checkConfirmed verifies every window against confirmed schedules of
// other bookings.  It is the single conflict gate used by create, approve
// and edit.
func checkConfirmed(ctx context.Context, src ScheduleSource, windows []Window, excludeBookingID uint64) error {
	for _, w := range windows {
		s, err := FindConflict(ctx, src, w, excludeBookingID, model.ScheduleConfirmed)
		if err != nil {
			return err
		}
		if s != nil {
			return &ConflictError{
				FacilityID:    w.FacilityID,
				Date:          w.Date,
				Start:         w.Start,
				End:           w.End,
				ConflictsWith: s.BookingID,
			}
		}
	}
	return nil
}

// validateWindows validates each window and rejects windows of the same
// request that overlap each other.
func validateWindows(windows []Window) error {
	if len(windows) == 0 {
		return invalid("schedules", "at least one schedule is required")
	}
	for i := range windows {
		if err := windows[i].Validate(); err != nil {
			return err
		}
	}
	for i := range windows {
		for j := i + 1; j < len(windows); j++ {
			a, b := windows[i], windows[j]
			if a.Date == b.Date && model.Overlaps(a.Start, a.End, b.Start, b.End) {
				return invalid("schedules", "entries %d and %d overlap", i, j)
			}
		}
	}
	return nil
}
