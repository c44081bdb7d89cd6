// Package queue defines the booking event payload exchanged over the
// message broker and the audit consumer that records it.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// BookingEvent is published after every committed booking transition.
// It carries enough state for consumers to log, notify or bill without
// querying the primary database.  EventID is unique per message so
// consumers can drop redeliveries.
type BookingEvent struct {
	EventID      string              `json:"event_id"`
	Type         string              `json:"type"`
	BookingID    uint64              `json:"booking_id"`
	FacilityID   uint64              `json:"facility_id"`
	RequesterID  uint64              `json:"requester_id"`
	Organization string              `json:"organization"`
	From         model.BookingStatus `json:"from,omitempty"`
	To           model.BookingStatus `json:"to"`
	Reason       string              `json:"reason,omitempty"`
	ActorID      uint64              `json:"actor_id"`
	ActorRole    model.Role          `json:"actor_role"`
	Schedules    []model.Schedule    `json:"schedules"`
	Billing      *model.Billing      `json:"billing,omitempty"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

// NewBookingEvent flattens a committed engine event into its wire form.
func NewBookingEvent(ev booking.Event) BookingEvent {
	b := ev.Booking
	return BookingEvent{
		EventID:      uuid.NewString(),
		Type:         string(ev.Type),
		BookingID:    b.ID,
		FacilityID:   b.FacilityID,
		RequesterID:  b.RequesterID,
		Organization: b.Organization,
		From:         ev.From,
		To:           b.Status,
		Reason:       b.Reason,
		ActorID:      ev.Actor.ID,
		ActorRole:    ev.Actor.Role,
		Schedules:    b.Schedules,
		Billing:      ev.Billing,
		OccurredAt:   ev.At.UTC(),
	}
}
