package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// MemoryStore is an in-process booking.Store and booking.CatalogStore.
// Transactions are serialised by a single mutex and work on a snapshot
// that replaces the live data only on commit, which gives the same
// all-or-nothing and no-interleaving guarantees as the MySQL store.  It
// backs tests and single-instance development runs.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	nextID     uint64
	facilities map[uint64]model.Facility
	inclusions map[uint64]model.Inclusion
	bookings   map[uint64]model.Booking
	schedules  map[uint64]model.Schedule
	billings   map[uint64]model.Billing
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		facilities: map[uint64]model.Facility{},
		inclusions: map[uint64]model.Inclusion{},
		bookings:   map[uint64]model.Booking{},
		schedules:  map[uint64]model.Schedule{},
		billings:   map[uint64]model.Billing{},
	}}
}

func (d *memData) clone() *memData {
	return &memData{
		nextID:     d.nextID,
		facilities: maps.Clone(d.facilities),
		inclusions: maps.Clone(d.inclusions),
		bookings:   maps.Clone(d.bookings),
		schedules:  maps.Clone(d.schedules),
		billings:   maps.Clone(d.billings),
	}
}

func (d *memData) id() uint64 {
	d.nextID++
	return d.nextID
}

// WithinTx runs fn against a snapshot and commits it when fn succeeds.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn(ctx, &memTx{d: snapshot}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = snapshot
	return nil
}

func (s *MemoryStore) read() (*memData, func()) {
	s.mu.Lock()
	return s.data, s.mu.Unlock
}

func (s *MemoryStore) Facility(_ context.Context, id uint64) (*model.Facility, error) {
	d, unlock := s.read()
	defer unlock()
	return d.facility(id)
}

func (s *MemoryStore) Facilities(_ context.Context, status model.FacilityStatus) ([]model.Facility, error) {
	d, unlock := s.read()
	defer unlock()
	out := make([]model.Facility, 0, len(d.facilities))
	for id := range d.facilities {
		f, _ := d.facility(id)
		if status == "" || f.Status == status {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Booking(_ context.Context, id uint64) (*model.Booking, error) {
	d, unlock := s.read()
	defer unlock()
	return d.booking(id)
}

func (s *MemoryStore) Bookings(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	d, unlock := s.read()
	defer unlock()
	return d.listBookings(f), nil
}

func (s *MemoryStore) Schedules(_ context.Context, f model.ScheduleFilter) ([]model.Schedule, error) {
	d, unlock := s.read()
	defer unlock()
	return d.listSchedules(f), nil
}

func (s *MemoryStore) ActiveBilling(_ context.Context, bookingID uint64) (*model.Billing, error) {
	d, unlock := s.read()
	defer unlock()
	return d.activeBilling(bookingID)
}

// Billings returns every billing of a booking, voided ones included.
func (s *MemoryStore) Billings(_ context.Context, bookingID uint64) ([]model.Billing, error) {
	d, unlock := s.read()
	defer unlock()
	out := []model.Billing{}
	for _, b := range d.billings {
		if b.BookingID == bookingID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) InsertFacility(_ context.Context, f *model.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	f.ID = s.data.id()
	f.CreatedAt, f.UpdatedAt = now, now
	row := *f
	row.Inclusions = nil
	s.data.facilities[f.ID] = row
	return nil
}

func (s *MemoryStore) UpdateFacility(_ context.Context, f *model.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.facilities[f.ID]; !ok {
		return &booking.NotFoundError{Entity: "facility", ID: f.ID}
	}
	f.UpdatedAt = time.Now().UTC()
	row := *f
	row.Inclusions = nil
	s.data.facilities[f.ID] = row
	return nil
}

func (s *MemoryStore) InsertInclusion(_ context.Context, in *model.Inclusion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.facilities[in.FacilityID]; !ok {
		return &booking.NotFoundError{Entity: "facility", ID: in.FacilityID}
	}
	in.ID = s.data.id()
	s.data.inclusions[in.ID] = *in
	return nil
}

func (s *MemoryStore) DeleteInclusion(_ context.Context, facilityID, inclusionID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.data.inclusions[inclusionID]
	if !ok || in.FacilityID != facilityID {
		return &booking.NotFoundError{Entity: "inclusion", ID: inclusionID}
	}
	delete(s.data.inclusions, inclusionID)
	return nil
}

func (d *memData) facility(id uint64) (*model.Facility, error) {
	f, ok := d.facilities[id]
	if !ok {
		return nil, &booking.NotFoundError{Entity: "facility", ID: id}
	}
	f.Inclusions = []model.Inclusion{}
	for _, in := range d.inclusions {
		if in.FacilityID == id {
			f.Inclusions = append(f.Inclusions, in)
		}
	}
	sort.Slice(f.Inclusions, func(i, j int) bool {
		a, b := f.Inclusions[i], f.Inclusions[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
	return &f, nil
}

func sortSchedules(ss []model.Schedule) {
	sort.Slice(ss, func(i, j int) bool {
		a, b := ss[i], ss[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})
}

func (d *memData) booking(id uint64) (*model.Booking, error) {
	b, ok := d.bookings[id]
	if !ok {
		return nil, &booking.NotFoundError{Entity: "booking", ID: id}
	}
	b.Schedules = []model.Schedule{}
	for _, s := range d.schedules {
		if s.BookingID == id {
			b.Schedules = append(b.Schedules, s)
		}
	}
	sortSchedules(b.Schedules)
	return &b, nil
}

func (d *memData) listBookings(f model.BookingFilter) []model.Booking {
	ids := make([]uint64, 0, len(d.bookings))
	for id, b := range d.bookings {
		if f.RequesterID != 0 && b.RequesterID != f.RequesterID {
			continue
		}
		if f.FacilityID != 0 && b.FacilityID != f.FacilityID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	limit, offset := f.Page()
	out := []model.Booking{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		b, _ := d.booking(ids[i])
		out = append(out, *b)
	}
	return out
}

func (d *memData) listSchedules(f model.ScheduleFilter) []model.Schedule {
	out := []model.Schedule{}
	for _, s := range d.schedules {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	sortSchedules(out)
	return out
}

func (d *memData) activeBilling(bookingID uint64) (*model.Billing, error) {
	for _, b := range d.billings {
		if b.BookingID == bookingID && b.Active() {
			return &b, nil
		}
	}
	return nil, &booking.NotFoundError{Entity: "billing for booking", ID: bookingID}
}

// memTx is a transaction over a private snapshot.  The store mutex is
// held for its whole lifetime, so the lock methods only check existence.
type memTx struct {
	d *memData
}

func (t *memTx) Facility(_ context.Context, id uint64) (*model.Facility, error) {
	return t.d.facility(id)
}

func (t *memTx) Booking(_ context.Context, id uint64) (*model.Booking, error) {
	return t.d.booking(id)
}

func (t *memTx) Bookings(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	return t.d.listBookings(f), nil
}

func (t *memTx) Schedules(_ context.Context, f model.ScheduleFilter) ([]model.Schedule, error) {
	return t.d.listSchedules(f), nil
}

func (t *memTx) ActiveBilling(_ context.Context, bookingID uint64) (*model.Billing, error) {
	return t.d.activeBilling(bookingID)
}

func (t *memTx) LockFacility(_ context.Context, id uint64) error {
	if _, ok := t.d.facilities[id]; !ok {
		return &booking.NotFoundError{Entity: "facility", ID: id}
	}
	return nil
}

func (t *memTx) BookingForUpdate(_ context.Context, id uint64) (*model.Booking, error) {
	return t.d.booking(id)
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	b.ID = t.d.id()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	for i := range b.Schedules {
		s := &b.Schedules[i]
		s.ID = t.d.id()
		s.BookingID = b.ID
		t.d.schedules[s.ID] = *s
	}
	row := *b
	row.Schedules = nil
	t.d.bookings[b.ID] = row
	return nil
}

func (t *memTx) UpdateBooking(_ context.Context, b *model.Booking) error {
	if _, ok := t.d.bookings[b.ID]; !ok {
		return &booking.NotFoundError{Entity: "booking", ID: b.ID}
	}
	row := *b
	row.Schedules = nil
	t.d.bookings[b.ID] = row
	return nil
}

func (t *memTx) SetScheduleStatus(_ context.Context, bookingID uint64, status model.ScheduleStatus) error {
	for id, s := range t.d.schedules {
		if s.BookingID == bookingID {
			s.Status = status
			t.d.schedules[id] = s
		}
	}
	return nil
}

func (t *memTx) ReplaceSchedules(_ context.Context, bookingID uint64, schedules []model.Schedule) ([]model.Schedule, error) {
	for id, s := range t.d.schedules {
		if s.BookingID == bookingID {
			delete(t.d.schedules, id)
		}
	}
	saved := make([]model.Schedule, len(schedules))
	for i, s := range schedules {
		s.ID = t.d.id()
		s.BookingID = bookingID
		t.d.schedules[s.ID] = s
		saved[i] = s
	}
	return saved, nil
}

func (t *memTx) InsertBilling(_ context.Context, b *model.Billing) error {
	b.ID = t.d.id()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.Recompute()
	t.d.billings[b.ID] = *b
	return nil
}

func (t *memTx) UpdateBilling(_ context.Context, b *model.Billing) error {
	if _, ok := t.d.billings[b.ID]; !ok {
		return &booking.NotFoundError{Entity: "billing", ID: b.ID}
	}
	b.Recompute()
	t.d.billings[b.ID] = *b
	return nil
}
