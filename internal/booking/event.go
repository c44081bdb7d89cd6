package booking

import (
	"context"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// EventType names a committed booking transition.
type EventType string

const (
	EventRequested     EventType = "booking.requested"
	EventApproved      EventType = "booking.approved"
	EventRejected      EventType = "booking.rejected"
	EventCancelled     EventType = "booking.cancelled"
	EventRescheduled   EventType = "booking.rescheduled"
	EventBilled        EventType = "booking.billed"
	EventBillingSent   EventType = "booking.billing_sent"
	EventBillingVoided EventType = "booking.billing_voided"
	EventPaid          EventType = "booking.paid"
)

// Event describes a transition after its transaction committed.
type Event struct {
	Type    EventType
	Booking model.Booking
	Billing *model.Billing
	Actor   model.Actor
	From    model.BookingStatus
	At      time.Time
}

// Notifier receives committed events.  Delivery is best effort: a
// notifier must not fail the operation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}
