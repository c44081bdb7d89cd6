package booking

import (
	"errors"
	"fmt"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// Sentinel errors.  Typed errors below match the corresponding sentinel
// through errors.Is so callers can branch on the category alone.
var (
	ErrValidation          = errors.New("validation error")
	ErrScheduleConflict    = errors.New("schedule conflict")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrFacilityUnavailable = errors.New("facility unavailable")
	ErrBillingExists       = errors.New("billing already exists")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
)

// ValidationError reports malformed input rejected before any state is read.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports that a requested window overlaps an existing hold.
type ConflictError struct {
	FacilityID    uint64
	Date          string
	Start, End    model.Clock
	ConflictsWith uint64 // booking holding the overlapping schedule
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("facility %d on %s [%s,%s) overlaps booking %d",
		e.FacilityID, e.Date, e.Start, e.End, e.ConflictsWith)
}

func (e *ConflictError) Is(target error) bool { return target == ErrScheduleConflict }

// TransitionError reports an action that is not legal from the booking's
// current status.  The booking is left unchanged.
type TransitionError struct {
	Status model.BookingStatus
	Action model.Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a booking in status %s", e.Action, e.Status)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     uint64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %d not found", e.Entity, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
