package repository

import (
	"context"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

const scheduleColumns = `id, booking_id, facility_id, date, start_time, end_time, status`

func scanSchedule(row interface{ Scan(...any) error }, s *model.Schedule) error {
	var date time.Time
	if err := row.Scan(&s.ID, &s.BookingID, &s.FacilityID, &date, &s.Start, &s.End, &s.Status); err != nil {
		return err
	}
	s.Date = date.Format(model.DateLayout)
	return nil
}

// schedulesOf loads the schedules of the given bookings keyed by booking.
func (r *BookingRepo) schedulesOf(ctx context.Context, q queryer, bookingIDs []uint64, lock bool) (map[uint64][]model.Schedule, error) {
	sel := `SELECT ` + scheduleColumns + ` FROM schedules WHERE booking_id IN (` + placeholders(len(bookingIDs)) + `)
	        ORDER BY date, start_time, id`
	if lock {
		sel += ` FOR UPDATE`
	}
	args := make([]any, len(bookingIDs))
	for i, id := range bookingIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]model.Schedule, len(bookingIDs))
	for rows.Next() {
		var s model.Schedule
		if err := scanSchedule(rows, &s); err != nil {
			return nil, err
		}
		out[s.BookingID] = append(out[s.BookingID], s)
	}
	return out, rows.Err()
}

// Schedules returns the schedules of one facility on one date.  Inside a
// transaction lock must be set so the conflict check reads the latest
// committed rows rather than the transaction's snapshot.
func (r *BookingRepo) Schedules(ctx context.Context, q queryer, f model.ScheduleFilter, lock bool) ([]model.Schedule, error) {
	sel := `SELECT ` + scheduleColumns + ` FROM schedules WHERE facility_id = ? AND date = ?`
	args := []any{f.FacilityID, f.Date}
	if f.ExcludeBookingID != 0 {
		sel += ` AND booking_id <> ?`
		args = append(args, f.ExcludeBookingID)
	}
	if len(f.Statuses) > 0 {
		sel += ` AND status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	sel += ` ORDER BY start_time, id`
	if lock {
		sel += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Schedule{}
	for rows.Next() {
		var s model.Schedule
		if err := scanSchedule(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// insertSchedules writes all schedules of a booking in one statement.
// IDs are assigned from the first insert id, which MySQL guarantees to be
// consecutive for a single multi-row INSERT with the default
// innodb_autoinc_lock_mode.
func (r *BookingRepo) insertSchedules(ctx context.Context, q queryer, bookingID uint64, schedules []model.Schedule) ([]model.Schedule, error) {
	if len(schedules) == 0 {
		return []model.Schedule{}, nil
	}
	query := `INSERT INTO schedules (booking_id, facility_id, date, start_time, end_time, status) VALUES `
	args := make([]any, 0, len(schedules)*6)
	for i, s := range schedules {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, bookingID, s.FacilityID, s.Date, s.Start, s.End, s.Status)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	first, err := lastID(res)
	if err != nil {
		return nil, err
	}
	saved := make([]model.Schedule, len(schedules))
	for i, s := range schedules {
		s.ID = first + uint64(i)
		s.BookingID = bookingID
		saved[i] = s
	}
	return saved, nil
}

// SetStatus updates every schedule of a booking.
func (r *BookingRepo) SetStatus(ctx context.Context, q queryer, bookingID uint64, status model.ScheduleStatus) error {
	_, err := q.ExecContext(ctx, `UPDATE schedules SET status = ? WHERE booking_id = ?`, status, bookingID)
	return err
}

// ReplaceSchedules deletes the booking's schedules and inserts the new set.
func (r *BookingRepo) ReplaceSchedules(ctx context.Context, q queryer, bookingID uint64, schedules []model.Schedule) ([]model.Schedule, error) {
	if _, err := q.ExecContext(ctx, `DELETE FROM schedules WHERE booking_id = ?`, bookingID); err != nil {
		return nil, err
	}
	return r.insertSchedules(ctx, q, bookingID, schedules)
}
