package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/model"
)

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLStore(db), mock
}

func TestWithinTxCommitsOnSuccess(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM facilities WHERE id = \? FOR UPDATE`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		return tx.LockFacility(ctx, 7)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM facilities WHERE id = \? FOR UPDATE`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		return tx.LockFacility(ctx, 9)
	})
	require.ErrorIs(t, err, booking.ErrNotFound)
	var nf *booking.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "facility", nf.Entity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRetriesDeadlockVictim(t *testing.T) {
	store, mock := newMockStore(t)
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE schedules SET status = \?`).WillReturnError(deadlock)
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE schedules SET status = \?`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	calls := 0
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		calls++
		return tx.SetScheduleStatus(ctx, 3, model.ScheduleConfirmed)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxSurfacesLockWaitTimeout(t *testing.T) {
	store, mock := newMockStore(t)
	timeout := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE schedules SET status = \?`).WillReturnError(timeout)
	mock.ExpectRollback()

	calls := 0
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		calls++
		return tx.SetScheduleStatus(ctx, 3, model.ScheduleConfirmed)
	})
	var me *mysql.MySQLError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, uint16(1205), me.Number)
	assert.Equal(t, 1, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

var (
	bookingCols  = []string{"id", "requester_id", "facility_id", "organization", "purpose", "status", "reason", "created_at", "updated_at"}
	scheduleCols = []string{"id", "booking_id", "facility_id", "date", "start_time", "end_time", "status"}
)

// expectApproveLocks queues the reads Approve issues before its conflict
// check: the booking row, its schedules, then the facility row, all
// locked in that order.
func expectApproveLocks(mock sqlmock.Sqlmock) {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE id = \? FOR UPDATE$`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(5, 11, 2, "Chess Club", "weekly meet", "REQUESTED", nil, created, created))
	mock.ExpectQuery(`SELECT .+ FROM schedules WHERE booking_id IN \(\?\) ORDER BY date, start_time, id FOR UPDATE$`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(scheduleCols).
			AddRow(40, 5, 2, day, []byte("09:00:00"), []byte("10:30:00"), "pending"))
	mock.ExpectQuery(`SELECT id FROM facilities WHERE id = \? FOR UPDATE$`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
}

const confirmedOnDay = `SELECT .+ FROM schedules WHERE facility_id = \? AND date = \? AND booking_id <> \? AND status IN \(\?\) ORDER BY start_time, id FOR UPDATE$`

func TestEngineApproveLockSequenceOnMySQL(t *testing.T) {
	store, mock := newMockStore(t)
	engine := booking.NewEngine(store, nil)

	expectApproveLocks(mock)
	mock.ExpectQuery(confirmedOnDay).
		WithArgs(2, "2026-03-10", 5, model.ScheduleConfirmed).
		WillReturnRows(sqlmock.NewRows(scheduleCols))
	mock.ExpectExec(`UPDATE schedules SET status = \? WHERE booking_id = \?`).
		WithArgs(model.ScheduleConfirmed, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE bookings SET .+ WHERE id = \?`).
		WithArgs(2, "Chess Club", "weekly meet", model.BookingApproved, nil, sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := engine.Approve(context.Background(), model.Actor{ID: 10, Role: model.RoleApprover}, 5)
	require.NoError(t, err)
	assert.Equal(t, model.BookingApproved, got.Status)
	require.Len(t, got.Schedules, 1)
	assert.Equal(t, model.ScheduleConfirmed, got.Schedules[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineApproveConflictRollsBackOnMySQL(t *testing.T) {
	store, mock := newMockStore(t)
	engine := booking.NewEngine(store, nil)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	expectApproveLocks(mock)
	mock.ExpectQuery(confirmedOnDay).
		WithArgs(2, "2026-03-10", 5, model.ScheduleConfirmed).
		WillReturnRows(sqlmock.NewRows(scheduleCols).
			AddRow(52, 9, 2, day, []byte("10:00:00"), []byte("11:00:00"), "confirmed"))
	mock.ExpectRollback()

	_, err := engine.Approve(context.Background(), model.Actor{ID: 10, Role: model.RoleApprover}, 5)
	require.ErrorIs(t, err, booking.ErrScheduleConflict)
	var ce *booking.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, uint64(9), ce.ConflictsWith)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingForUpdateLoadsSchedules(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE id = \? FOR UPDATE`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "requester_id", "facility_id", "organization", "purpose", "status", "reason", "created_at", "updated_at"}).
			AddRow(5, 11, 2, "Chess Club", "weekly meet", "APPROVED", nil, created, created))
	mock.ExpectQuery(`SELECT .+ FROM schedules WHERE booking_id IN \(\?\).+FOR UPDATE`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "facility_id", "date", "start_time", "end_time", "status"}).
			AddRow(40, 5, 2, day, []byte("09:00:00"), []byte("10:30:00"), "confirmed"))
	mock.ExpectCommit()

	var got *model.Booking
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		var err error
		got, err = tx.BookingForUpdate(ctx, 5)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.BookingApproved, got.Status)
	assert.Empty(t, got.Reason)
	require.Len(t, got.Schedules, 1)
	s := got.Schedules[0]
	assert.Equal(t, "2026-03-10", s.Date)
	assert.Equal(t, model.Clock(9*60), s.Start)
	assert.Equal(t, model.Clock(10*60+30), s.End)
	assert.Equal(t, model.ScheduleConfirmed, s.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBookingAssignsScheduleIDs(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectExec(`INSERT INTO schedules .+ VALUES \(\?, \?, \?, \?, \?, \?\),\(\?, \?, \?, \?, \?, \?\)`).
		WillReturnResult(sqlmock.NewResult(100, 2))
	mock.ExpectCommit()

	b := &model.Booking{
		RequesterID:  1,
		FacilityID:   2,
		Organization: "Robotics",
		Status:       model.BookingRequested,
		Schedules: []model.Schedule{
			{FacilityID: 2, Date: "2026-04-01", Start: 600, End: 660, Status: model.SchedulePending},
			{FacilityID: 2, Date: "2026-04-02", Start: 600, End: 660, Status: model.SchedulePending},
		},
	}
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		return tx.InsertBooking(ctx, b)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(21), b.ID)
	require.Len(t, b.Schedules, 2)
	assert.Equal(t, uint64(100), b.Schedules[0].ID)
	assert.Equal(t, uint64(101), b.Schedules[1].ID)
	assert.Equal(t, uint64(21), b.Schedules[1].BookingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchedulesFilterBuildsStatusClause(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM schedules WHERE facility_id = \? AND date = \? AND booking_id <> \? AND status IN \(\?,\?\) ORDER BY start_time, id$`).
		WithArgs(2, "2026-04-01", 8, model.SchedulePending, model.ScheduleConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "facility_id", "date", "start_time", "end_time", "status"}))

	got, err := store.Schedules(context.Background(), model.ScheduleFilter{
		FacilityID:       2,
		Date:             "2026-04-01",
		Statuses:         model.ActiveScheduleStatuses,
		ExcludeBookingID: 8,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveBillingMissingIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM billings WHERE booking_id = \? AND voided_at IS NULL`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.ActiveBilling(context.Background(), 4)
	require.ErrorIs(t, err, booking.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err = NewUserRepo(db).Create(context.Background(), "A@B.io", "secret123", model.RoleRequester, 4)
	require.True(t, errors.Is(err, ErrEmailExists))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}
