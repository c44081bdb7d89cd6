package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingRequested BookingStatus = "REQUESTED"
	BookingApproved  BookingStatus = "APPROVED"
	BookingBilled    BookingStatus = "BILLED"
	BookingPaid      BookingStatus = "PAID"
	BookingRejected  BookingStatus = "REJECTED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Terminal reports whether no further transition can leave s.
func (s BookingStatus) Terminal() bool {
	return s == BookingPaid || s == BookingRejected || s == BookingCancelled
}

// ScheduleStatus is the hold state of one schedule row.
type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleConfirmed ScheduleStatus = "confirmed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// ActiveScheduleStatuses are the statuses that occupy a time slot for
// display and availability queries.
var ActiveScheduleStatuses = []ScheduleStatus{SchedulePending, ScheduleConfirmed}

// Booking mirrors the `bookings` table plus its owned schedules.
// Schedules are deleted with their booking (ON DELETE CASCADE).
//
// Fields:
//
//	ID           – primary key identifier.
//	RequesterID  – user who requested the booking.
//	FacilityID   – facility being reserved.
//	Organization – organization name on whose behalf the booking is made.
//	Purpose      – free-text purpose.
//	Status       – lifecycle status.
//	Reason       – reject or cancel reason, empty otherwise.
//	Schedules    – one or more date/time reservations.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Booking struct {
	ID           uint64        `json:"id"`
	RequesterID  uint64        `json:"requester_id"`
	FacilityID   uint64        `json:"facility_id"`
	Organization string        `json:"organization"`
	Purpose      string        `json:"purpose"`
	Status       BookingStatus `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	Schedules    []Schedule    `json:"schedules"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Schedule is one contiguous reservation window of a booking.  FacilityID
// is denormalised from the booking for conflict queries.  The window is
// half-open: [Start, End).
type Schedule struct {
	ID         uint64         `json:"id"`          // schedules.id
	BookingID  uint64         `json:"booking_id"`  // schedules.booking_id
	FacilityID uint64         `json:"facility_id"` // schedules.facility_id
	Date       string         `json:"date"`        // schedules.date (YYYY-MM-DD)
	Start      Clock          `json:"start_time"`  // schedules.start_time
	End        Clock          `json:"end_time"`    // schedules.end_time
	Status     ScheduleStatus `json:"status"`      // schedules.status
}

// Overlaps reports whether two half-open intervals [s1,e1) and [s2,e2)
// intersect.  Touching intervals (e1 == s2) do not overlap.
func Overlaps(s1, e1, s2, e2 Clock) bool {
	return s1 < e2 && s2 < e1
}
