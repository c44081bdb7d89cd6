package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// BookingRepo persists bookings and the schedules they own.  Methods take
// a queryer so the store can run them on the pool for plain reads or on a
// transaction for locked read-modify-write sequences.
type BookingRepo struct{}

// NewBookingRepo returns a BookingRepo.
func NewBookingRepo() *BookingRepo { return &BookingRepo{} }

const bookingColumns = `id, requester_id, facility_id, organization, purpose, status, reason, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }, b *model.Booking) error {
	var reason sql.NullString
	err := row.Scan(&b.ID, &b.RequesterID, &b.FacilityID, &b.Organization, &b.Purpose,
		&b.Status, &reason, &b.CreatedAt, &b.UpdatedAt)
	b.Reason = reason.String
	return err
}

// Get loads one booking with its schedules.  When lock is set the booking
// row is selected FOR UPDATE and q must be a transaction.
func (r *BookingRepo) Get(ctx context.Context, q queryer, id uint64, lock bool) (*model.Booking, error) {
	sel := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	if lock {
		sel += ` FOR UPDATE`
	}
	var b model.Booking
	if err := scanBooking(q.QueryRowContext(ctx, sel, id), &b); err != nil {
		return nil, notFound(err, "booking", id)
	}
	ss, err := r.schedulesOf(ctx, q, []uint64{id}, lock)
	if err != nil {
		return nil, err
	}
	b.Schedules = ss[id]
	if b.Schedules == nil {
		b.Schedules = []model.Schedule{}
	}
	return &b, nil
}

// List returns bookings matching f, newest first, with their schedules.
func (r *BookingRepo) List(ctx context.Context, q queryer, f model.BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	if f.RequesterID != 0 {
		where = append(where, "requester_id = ?")
		args = append(args, f.RequesterID)
	}
	if f.FacilityID != 0 {
		where = append(where, "facility_id = ?")
		args = append(args, f.FacilityID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	sel := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		sel += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit, offset := f.Page()
	sel += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := q.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, err
	}
	out := []model.Booking{}
	for rows.Next() {
		var b model.Booking
		if err := scanBooking(rows, &b); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	ids := make([]uint64, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	ss, err := r.schedulesOf(ctx, q, ids, false)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Schedules = ss[out[i].ID]
		if out[i].Schedules == nil {
			out[i].Schedules = []model.Schedule{}
		}
	}
	return out, nil
}

// Insert creates the booking row and its schedules, filling in generated
// IDs and timestamps.
func (r *BookingRepo) Insert(ctx context.Context, q queryer, b *model.Booking) error {
	const ins = `INSERT INTO bookings (requester_id, facility_id, organization, purpose, status, reason, created_at, updated_at)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	res, err := q.ExecContext(ctx, ins, b.RequesterID, b.FacilityID, b.Organization, b.Purpose,
		b.Status, nullString(b.Reason), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return err
	}
	if b.ID, err = lastID(res); err != nil {
		return err
	}
	saved, err := r.insertSchedules(ctx, q, b.ID, b.Schedules)
	if err != nil {
		return err
	}
	b.Schedules = saved
	return nil
}

// Update writes the mutable booking columns.
func (r *BookingRepo) Update(ctx context.Context, q queryer, b *model.Booking) error {
	const upd = `UPDATE bookings SET facility_id = ?, organization = ?, purpose = ?, status = ?, reason = ?, updated_at = ? WHERE id = ?`
	_, err := q.ExecContext(ctx, upd, b.FacilityID, b.Organization, b.Purpose, b.Status, nullString(b.Reason), b.UpdatedAt, b.ID)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
