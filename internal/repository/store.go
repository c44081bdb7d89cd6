package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/logger"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// maxTxAttempts bounds how often a transaction aborted by an InnoDB
// deadlock is replayed.
const maxTxAttempts = 3

// MySQLStore implements booking.Store and booking.CatalogStore on MySQL.
//
// Transactions run at READ COMMITTED.  Writers lock the booking row and
// then the facility row with SELECT ... FOR UPDATE, and read schedules and
// billings with locking reads, so the conflict check and the write that
// depends on it observe the latest committed state and cannot interleave
// with another writer on the same facility.
type MySQLStore struct {
	*FacilityRepo
	db       *sql.DB
	bookings *BookingRepo
	billings *BillingRepo
}

// NewMySQLStore returns a store over db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		FacilityRepo: NewFacilityRepo(db),
		db:           db,
		bookings:     NewBookingRepo(),
		billings:     NewBillingRepo(),
	}
}

func (s *MySQLStore) Booking(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.bookings.Get(ctx, s.db, id, false)
}

func (s *MySQLStore) Bookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	return s.bookings.List(ctx, s.db, f)
}

func (s *MySQLStore) Schedules(ctx context.Context, f model.ScheduleFilter) ([]model.Schedule, error) {
	return s.bookings.Schedules(ctx, s.db, f, false)
}

func (s *MySQLStore) ActiveBilling(ctx context.Context, bookingID uint64) (*model.Billing, error) {
	return s.billings.Active(ctx, s.db, bookingID, false)
}

// Billings returns every billing of a booking, voided ones included.
func (s *MySQLStore) Billings(ctx context.Context, bookingID uint64) ([]model.Billing, error) {
	return s.billings.All(ctx, s.db, bookingID)
}

// WithinTx runs fn in a transaction, committing when it returns nil.  A
// transaction chosen as a deadlock victim is replayed from the start.
func (s *MySQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !isDeadlock(err) {
			return err
		}
		logger.WarnKV(ctx, "transaction deadlocked, retrying", "attempt", attempt)
	}
	return err
}

func (s *MySQLStore) runTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &mysqlTx{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// isDeadlock reports an InnoDB deadlock (1213).  A lock wait timeout
// (1205) has already waited innodb_lock_wait_timeout and is surfaced
// as is.
func isDeadlock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1213
}

// mysqlTx is the booking.Tx view of one *sql.Tx.
type mysqlTx struct {
	tx    *sql.Tx
	store *MySQLStore
}

func (t *mysqlTx) Facility(ctx context.Context, id uint64) (*model.Facility, error) {
	return t.store.FacilityRepo.get(ctx, t.tx, id)
}

func (t *mysqlTx) Booking(ctx context.Context, id uint64) (*model.Booking, error) {
	return t.store.bookings.Get(ctx, t.tx, id, false)
}

func (t *mysqlTx) Bookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	return t.store.bookings.List(ctx, t.tx, f)
}

func (t *mysqlTx) Schedules(ctx context.Context, f model.ScheduleFilter) ([]model.Schedule, error) {
	return t.store.bookings.Schedules(ctx, t.tx, f, true)
}

func (t *mysqlTx) ActiveBilling(ctx context.Context, bookingID uint64) (*model.Billing, error) {
	return t.store.billings.Active(ctx, t.tx, bookingID, true)
}

func (t *mysqlTx) LockFacility(ctx context.Context, id uint64) error {
	return t.store.FacilityRepo.lockTx(ctx, t.tx, id)
}

func (t *mysqlTx) BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	return t.store.bookings.Get(ctx, t.tx, id, true)
}

func (t *mysqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.store.bookings.Insert(ctx, t.tx, b)
}

func (t *mysqlTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	return t.store.bookings.Update(ctx, t.tx, b)
}

func (t *mysqlTx) SetScheduleStatus(ctx context.Context, bookingID uint64, status model.ScheduleStatus) error {
	return t.store.bookings.SetStatus(ctx, t.tx, bookingID, status)
}

func (t *mysqlTx) ReplaceSchedules(ctx context.Context, bookingID uint64, schedules []model.Schedule) ([]model.Schedule, error) {
	return t.store.bookings.ReplaceSchedules(ctx, t.tx, bookingID, schedules)
}

func (t *mysqlTx) InsertBilling(ctx context.Context, b *model.Billing) error {
	return t.store.billings.Insert(ctx, t.tx, b)
}

func (t *mysqlTx) UpdateBilling(ctx context.Context, b *model.Billing) error {
	return t.store.billings.Update(ctx, t.tx, b)
}

var (
	_ booking.Store        = (*MySQLStore)(nil)
	_ booking.CatalogStore = (*MySQLStore)(nil)
	_ booking.Tx           = (*mysqlTx)(nil)
	_ booking.Store        = (*MemoryStore)(nil)
	_ booking.CatalogStore = (*MemoryStore)(nil)
	_ booking.Tx           = (*memTx)(nil)
)
