package booking

import (
	"context"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// Reader is the lock-free read side of the store.  Results may be stale;
// every write path re-reads inside a transaction.
type Reader interface {
	Facility(ctx context.Context, id uint64) (*model.Facility, error)
	Booking(ctx context.Context, id uint64) (*model.Booking, error)
	Bookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	Schedules(ctx context.Context, f model.ScheduleFilter) ([]model.Schedule, error)
	ActiveBilling(ctx context.Context, bookingID uint64) (*model.Billing, error)
}

// Tx is one atomic read-modify-write unit.  Implementations must make
// LockFacility and BookingForUpdate exclusive until the transaction ends
// so that conflict checks and the writes that depend on them cannot
// interleave with another transaction on the same facility or booking.
type Tx interface {
	Reader

	LockFacility(ctx context.Context, id uint64) error
	BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error)

	InsertBooking(ctx context.Context, b *model.Booking) error
	UpdateBooking(ctx context.Context, b *model.Booking) error
	SetScheduleStatus(ctx context.Context, bookingID uint64, status model.ScheduleStatus) error
	ReplaceSchedules(ctx context.Context, bookingID uint64, schedules []model.Schedule) ([]model.Schedule, error)

	InsertBilling(ctx context.Context, b *model.Billing) error
	UpdateBilling(ctx context.Context, b *model.Billing) error
}

// Store hands out transactions.  WithinTx commits when fn returns nil and
// rolls back otherwise, so a failed operation leaves no partial writes.
type Store interface {
	Reader
	// Billings lists every billing of a booking, voided ones included.
	Billings(ctx context.Context, bookingID uint64) ([]model.Billing, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
