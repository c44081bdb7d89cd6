// Package booking is the reservation workflow engine: it owns the booking
// state machine, the schedule conflict checker and the billing
// calculator.  Every mutating operation runs inside one store
// transaction that re-reads and locks what it validates, so concurrent
// approvals of overlapping windows cannot both confirm.
package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/facility-reservation/internal/logger"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// transitions lists the statuses each action may start from.  Any pair
// absent from this table is an invalid transition.
var transitions = map[model.Action][]model.BookingStatus{
	model.ActionApprove:     {model.BookingRequested},
	model.ActionReject:      {model.BookingRequested},
	model.ActionCancel:      {model.BookingRequested, model.BookingApproved},
	model.ActionEdit:        {model.BookingRequested, model.BookingApproved},
	model.ActionBill:        {model.BookingApproved},
	model.ActionSendBilling: {model.BookingBilled},
	model.ActionVoidBilling: {model.BookingBilled},
	model.ActionMarkPaid:    {model.BookingBilled},
}

// CanTransition reports whether action may be applied to a booking in
// status s.
func CanTransition(s model.BookingStatus, action model.Action) bool {
	return slices.Contains(transitions[action], s)
}

// ScheduleInput is a requested date and half-open time range.
type ScheduleInput struct {
	Date  string      `json:"date"`
	Start model.Clock `json:"start_time"`
	End   model.Clock `json:"end_time"`
}

// CreateInput carries the fields of a new booking request.
type CreateInput struct {
	FacilityID   uint64          `json:"facility_id"`
	Organization string          `json:"organization"`
	Purpose      string          `json:"purpose"`
	Schedules    []ScheduleInput `json:"schedules"`
}

// EditInput replaces the facility and schedules of a booking.  A zero
// FacilityID keeps the current facility.
type EditInput struct {
	FacilityID uint64          `json:"facility_id"`
	Schedules  []ScheduleInput `json:"schedules"`
}

// Engine runs the booking state machine against a Store.
type Engine struct {
	store    Store
	notifier Notifier
	calc     Calculator
	now      func() time.Time
}

// NewEngine returns an engine over store.  A nil notifier discards events.
func NewEngine(store Store, notifier Notifier) *Engine {
	if store == nil {
		panic("nil store passed to NewEngine")
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Engine{store: store, notifier: notifier, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the time source.  Intended for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

func authorize(actor model.Actor, action model.Action) error {
	if actor.ID == 0 || !actor.Role.Can(action) {
		return fmt.Errorf("%s may not %s: %w", actor.Role, action, ErrForbidden)
	}
	return nil
}

func windowsFor(facilityID uint64, in []ScheduleInput) []Window {
	ws := make([]Window, len(in))
	for i, s := range in {
		ws[i] = Window{FacilityID: facilityID, Date: s.Date, Start: s.Start, End: s.End}
	}
	return ws
}

func schedulesFor(bookingID uint64, windows []Window, status model.ScheduleStatus) []model.Schedule {
	out := make([]model.Schedule, len(windows))
	for i, w := range windows {
		out[i] = model.Schedule{
			BookingID:  bookingID,
			FacilityID: w.FacilityID,
			Date:       w.Date,
			Start:      w.Start,
			End:        w.End,
			Status:     status,
		}
	}
	return out
}

// availableFacility loads a facility and requires it to be bookable.
func availableFacility(ctx context.Context, src Reader, id uint64) (*model.Facility, error) {
	f, err := src.Facility(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("facility %d: %w", id, ErrFacilityUnavailable)
		}
		return nil, err
	}
	if f.Status != model.FacilityAvailable {
		return nil, fmt.Errorf("facility %d is %s: %w", id, f.Status, ErrFacilityUnavailable)
	}
	return f, nil
}

// Create records a new booking request in REQUESTED with pending
// schedules.  The conflict check against confirmed schedules is a
// pre-check only; nothing is reserved until approval.
func (e *Engine) Create(ctx context.Context, actor model.Actor, in CreateInput) (*model.Booking, error) {
	if err := authorize(actor, model.ActionCreate); err != nil {
		return nil, err
	}
	org := strings.TrimSpace(in.Organization)
	if org == "" {
		return nil, invalid("organization", "is required")
	}
	if in.FacilityID == 0 {
		return nil, invalid("facility_id", "is required")
	}
	windows := windowsFor(in.FacilityID, in.Schedules)
	if err := validateWindows(windows); err != nil {
		return nil, err
	}

	var created *model.Booking
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := availableFacility(ctx, tx, in.FacilityID); err != nil {
			return err
		}
		if err := checkConfirmed(ctx, tx, windows, 0); err != nil {
			return err
		}
		now := e.now()
		b := &model.Booking{
			RequesterID:  actor.ID,
			FacilityID:   in.FacilityID,
			Organization: org,
			Purpose:      strings.TrimSpace(in.Purpose),
			Status:       model.BookingRequested,
			Schedules:    schedulesFor(0, windows, model.SchedulePending),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.committed(ctx, EventRequested, actor, "", created, nil)
	return created, nil
}

// mutation is the body of a transition, run with the booking row locked
// and the transition already validated.
type mutation func(ctx context.Context, tx Tx, b *model.Booking) (*model.Billing, error)

// transition loads and locks the booking, checks role, ownership and the
// transition table, applies fn and commits.  On any error the store rolls
// back and the booking is unchanged.
func (e *Engine) transition(ctx context.Context, actor model.Actor, id uint64, action model.Action, ev EventType, fn mutation) (*model.Booking, *model.Billing, error) {
	if err := authorize(actor, action); err != nil {
		return nil, nil, err
	}
	var (
		out  *model.Booking
		bill *model.Billing
		from model.BookingStatus
	)
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role == model.RoleRequester && b.RequesterID != actor.ID {
			return fmt.Errorf("booking %d belongs to another requester: %w", id, ErrForbidden)
		}
		if action == model.ActionBill {
			// A second bill reports the existing billing rather than the
			// BILLED status it left behind.
			if existing, err := tx.ActiveBilling(ctx, id); err == nil && existing != nil {
				return fmt.Errorf("booking %d: %w", id, ErrBillingExists)
			} else if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		if !CanTransition(b.Status, action) {
			return &TransitionError{Status: b.Status, Action: action}
		}
		from = b.Status
		if bill, err = fn(ctx, tx, b); err != nil {
			return err
		}
		b.UpdatedAt = e.now()
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	e.committed(ctx, ev, actor, from, out, bill)
	return out, bill, nil
}

// confirm re-checks every schedule of b against confirmed schedules of
// other bookings while holding the facility lock, then marks them
// confirmed.  It is shared by approve and by edits of approved bookings.
func confirm(ctx context.Context, tx Tx, b *model.Booking) error {
	if err := tx.LockFacility(ctx, b.FacilityID); err != nil {
		return fmt.Errorf("lock facility %d: %w", b.FacilityID, err)
	}
	windows := make([]Window, len(b.Schedules))
	for i, s := range b.Schedules {
		windows[i] = Window{FacilityID: b.FacilityID, Date: s.Date, Start: s.Start, End: s.End}
	}
	if err := checkConfirmed(ctx, tx, windows, b.ID); err != nil {
		return err
	}
	if err := tx.SetScheduleStatus(ctx, b.ID, model.ScheduleConfirmed); err != nil {
		return fmt.Errorf("confirm schedules: %w", err)
	}
	setScheduleStatus(b, model.ScheduleConfirmed)
	return nil
}

func setScheduleStatus(b *model.Booking, st model.ScheduleStatus) {
	for i := range b.Schedules {
		b.Schedules[i].Status = st
	}
}

func release(ctx context.Context, tx Tx, b *model.Booking) error {
	if err := tx.SetScheduleStatus(ctx, b.ID, model.ScheduleCancelled); err != nil {
		return fmt.Errorf("cancel schedules: %w", err)
	}
	setScheduleStatus(b, model.ScheduleCancelled)
	return nil
}

// Approve confirms a requested booking.  This is the moment its windows
// become authoritative holds; it fails with a ConflictError when another
// booking already holds an overlapping confirmed window.
func (e *Engine) Approve(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error) {
	b, _, err := e.transition(ctx, actor, id, model.ActionApprove, EventApproved,
		func(ctx context.Context, tx Tx, b *model.Booking) (*model.Billing, error) {
			if err := confirm(ctx, tx, b); err != nil {
				return nil, err
			}
			b.Status = model.BookingApproved
			return nil, nil
		})
	return b, err
}

// Reject declines a requested booking and cancels its schedules.
func (e *Engine) Reject(ctx context.Context, actor model.Actor, id uint64, reason string) (*model.Booking, error) {
	b, _, err := e.transition(ctx, actor, id, model.ActionReject, EventRejected,
		func(ctx context.Context, tx Tx, b *model.Booking) (*model.Billing, error) {
			if err := release(ctx, tx, b); err != nil {
				return nil, err
			}
			b.Status = model.BookingRejected
			b.Reason = strings.TrimSpace(reason)
			return nil, nil
		})
	return b, err
}

// Cancel withdraws a requested or approved booking, releasing its slots.
func (e *Engine) Cancel(ctx context.Context, actor model.Actor, id uint64, reason string) (*model.Booking, error) {
	b, _, err := e.transition(ctx, actor, id, model.ActionCancel, EventCancelled,
		func(ctx context.Context, tx Tx, b *model.Booking) (*model.Billing, error) {
			if err := release(ctx, tx, b); err != nil {
				return nil, err
			}
			b.Status = model.BookingCancelled
			b.Reason = strings.TrimSpace(reason)
			return nil, nil
		})
	return b, err
}

// Edit replaces the facility and schedules of a requested or approved
// booking.  Requested bookings get the same pre-check as Create; approved
// bookings go through confirm again, so the new windows are held only if
// they do not conflict.  The status is unchanged.
func (e *Engine) Edit(ctx context.Context, actor model.Actor, id uint64, in EditInput) (*model.Booking, error) {
	requested := windowsFor(in.FacilityID, in.Schedules)
	if err := validateWindows(requested); err != nil {
		return nil, err
	}
	b, _, err := e.transition(ctx, actor, id, model.ActionEdit, EventRescheduled,
		func(ctx context.Context, tx Tx, b *model.Booking) (*model.Billing, error) {
			facilityID := b.FacilityID
			if in.FacilityID != 0 && in.FacilityID != b.FacilityID {
				if _, err := availableFacility(ctx, tx, in.FacilityID); err != nil {
					return nil, err
				}
				facilityID = in.FacilityID
			}
			windows := make([]Window, len(requested))
			for i, w := range requested {
				w.FacilityID = facilityID
				windows[i] = w
			}
			b.FacilityID = facilityID
			b.Schedules = schedulesFor(b.ID, windows, model.SchedulePending)
			if b.Status == model.BookingApproved {
				// Stage the new rows as pending, then run the same
				// confirmation as approval.
				saved, err := tx.ReplaceSchedules(ctx, b.ID, b.Schedules)
				if err != nil {
					return nil, fmt.Errorf("replace schedules: %w", err)
				}
				b.Schedules = saved
				return nil, confirm(ctx, tx, b)
			}
			if err := checkConfirmed(ctx, tx, windows, b.ID); err != nil {
				return nil, err
			}
			saved, err := tx.ReplaceSchedules(ctx, b.ID, b.Schedules)
			if err != nil {
				return nil, fmt.Errorf("replace schedules: %w", err)
			}
			b.Schedules = saved
			return nil, nil
		})
	return b, err
}

// Bill issues the billing of an approved booking and moves it to BILLED.
// A non-nil facilityFee overrides the catalog price.
func (e *Engine) Bill(ctx context.Context, actor model.Actor, id uint64, facilityFee *decimal.Decimal) (*model.Booking, *model.Billing, error) {
	return e.transition(ctx, actor, id, model.ActionBill, EventBilled,
		func(ctx context.Context, tx Tx, b *model.Booking) (*model.Billing, error) {
			bill, err := e.calc.Issue(ctx, tx, b, actor.ID, facilityFee)
			if err != nil {
				return nil, err
			}
			b.Status = model.BookingBilled
			return bill, nil
		})
}

// SendBilling marks a draft billing as sent to the requester.  The
// booking stays BILLED.
func (e *Engine) SendBilling(ctx context.Context, actor model.Actor, id uint64) (*model.Billing, error) {
	_, bill, err := e.transition(ctx, actor, id, model.ActionSendBilling, EventBillingSent,
		func(ctx context.Context, tx Tx, b *model.Booking) (*model.Billing, error) {
			bill, err := tx.ActiveBilling(ctx, b.ID)
			if err != nil {
				return nil, err
			}
			if bill.Status != model.BillingDraft {
				return nil, fmt.Errorf("billing %d is %s: %w", bill.ID, bill.Status, ErrInvalidTransition)
			}
			bill.Status = model.BillingSent
			if err := tx.UpdateBilling(ctx, bill); err != nil {
				return nil, fmt.Errorf("update billing: %w", err)
			}
			return bill, nil
		})
	return bill, err
}

// VoidBilling voids the active billing and returns the booking to
// APPROVED so it can be billed again.
func (e *Engine) VoidBilling(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error) {
	b, _, err := e.transition(ctx, actor, id, model.ActionVoidBilling, EventBillingVoided,
		func(ctx context.Context, tx Tx, b *model.Booking) (*model.Billing, error) {
			bill, err := tx.ActiveBilling(ctx, b.ID)
			if err != nil {
				return nil, err
			}
			now := e.now()
			bill.VoidedAt = &now
			if err := tx.UpdateBilling(ctx, bill); err != nil {
				return nil, fmt.Errorf("update billing: %w", err)
			}
			b.Status = model.BookingApproved
			return bill, nil
		})
	return b, err
}

// MarkPaid records payment of a billed booking.  PAID is terminal.
func (e *Engine) MarkPaid(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error) {
	b, _, err := e.transition(ctx, actor, id, model.ActionMarkPaid, EventPaid,
		func(ctx context.Context, tx Tx, b *model.Booking) (*model.Billing, error) {
			bill, err := tx.ActiveBilling(ctx, b.ID)
			if err != nil {
				return nil, err
			}
			bill.Status = model.BillingPaid
			if err := tx.UpdateBilling(ctx, bill); err != nil {
				return nil, fmt.Errorf("update billing: %w", err)
			}
			b.Status = model.BookingPaid
			return bill, nil
		})
	return b, err
}

// Get returns a booking visible to actor.  Requesters see only their own.
func (e *Engine) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error) {
	b, err := e.store.Booking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Can(model.ActionViewAll) && b.RequesterID != actor.ID {
		// Hide existence from other requesters.
		return nil, &NotFoundError{Entity: "booking", ID: id}
	}
	return b, nil
}

// List returns bookings matching f.  Requesters are restricted to their
// own bookings whatever the filter says.
func (e *Engine) List(ctx context.Context, actor model.Actor, f model.BookingFilter) ([]model.Booking, error) {
	if !actor.Role.Can(model.ActionViewAll) {
		f.RequesterID = actor.ID
	}
	return e.store.Bookings(ctx, f)
}

// Billing returns the active billing of a booking visible to actor.
func (e *Engine) Billing(ctx context.Context, actor model.Actor, bookingID uint64) (*model.Billing, error) {
	if _, err := e.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return e.store.ActiveBilling(ctx, bookingID)
}

// BillingHistory returns every billing issued for a booking visible to
// actor, oldest first, voided ones included.
func (e *Engine) BillingHistory(ctx context.Context, actor model.Actor, bookingID uint64) ([]model.Billing, error) {
	if _, err := e.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return e.store.Billings(ctx, bookingID)
}

// Availability reports whether w is free of pending or confirmed holds.
// It reads without locks; the answer is advisory.
func (e *Engine) Availability(ctx context.Context, w Window) (bool, *model.Schedule, error) {
	if w.FacilityID == 0 {
		return false, nil, invalid("facility_id", "is required")
	}
	if err := w.Validate(); err != nil {
		return false, nil, err
	}
	s, err := FindConflict(ctx, e.store, w, 0)
	if err != nil {
		return false, nil, err
	}
	return s == nil, s, nil
}

// Schedules lists the active schedules of a facility on a date.
func (e *Engine) Schedules(ctx context.Context, facilityID uint64, date string) ([]model.Schedule, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, invalid("date", "%v", err)
	}
	if _, err := e.store.Facility(ctx, facilityID); err != nil {
		return nil, err
	}
	return e.store.Schedules(ctx, model.ScheduleFilter{
		FacilityID: facilityID,
		Date:       d,
		Statuses:   model.ActiveScheduleStatuses,
	})
}

func (e *Engine) committed(ctx context.Context, typ EventType, actor model.Actor, from model.BookingStatus, b *model.Booking, bill *model.Billing) {
	logger.InfoKV(ctx, "booking transition committed",
		"event", string(typ),
		"booking_id", b.ID,
		"facility_id", b.FacilityID,
		"actor_id", actor.ID,
		"actor_role", string(actor.Role),
		"from", string(from),
		"to", string(b.Status),
	)
	ev := Event{Type: typ, Booking: *b, Actor: actor, From: from, At: e.now()}
	if bill != nil {
		cp := *bill
		ev.Billing = &cp
	}
	e.notifier.Notify(ctx, ev)
}
