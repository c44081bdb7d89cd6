package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// FacilityRepo persists the facility catalog: the facilities table and
// the facility_inclusions rows bundled with each facility.
type FacilityRepo struct {
	db *sql.DB
}

// NewFacilityRepo returns a FacilityRepo bound to db.
func NewFacilityRepo(db *sql.DB) *FacilityRepo { return &FacilityRepo{db: db} }

const facilityColumns = `id, name, location, capacity, price, status, created_at, updated_at`

func scanFacility(row interface{ Scan(...any) error }, f *model.Facility) error {
	return row.Scan(&f.ID, &f.Name, &f.Location, &f.Capacity, &f.Price, &f.Status, &f.CreatedAt, &f.UpdatedAt)
}

// get loads a facility and its inclusions ordered by position.
func (r *FacilityRepo) get(ctx context.Context, q queryer, id uint64) (*model.Facility, error) {
	var f model.Facility
	err := scanFacility(q.QueryRowContext(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id), &f)
	if err != nil {
		return nil, notFound(err, "facility", id)
	}
	incs, err := r.inclusions(ctx, q, id)
	if err != nil {
		return nil, err
	}
	f.Inclusions = incs
	return &f, nil
}

func (r *FacilityRepo) inclusions(ctx context.Context, q queryer, facilityID uint64) ([]model.Inclusion, error) {
	const sel = `SELECT id, facility_id, kind, name, price, position
	             FROM facility_inclusions WHERE facility_id = ?
	             ORDER BY position, id`
	rows, err := q.QueryContext(ctx, sel, facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Inclusion{}
	for rows.Next() {
		var in model.Inclusion
		if err := rows.Scan(&in.ID, &in.FacilityID, &in.Kind, &in.Name, &in.Price, &in.Position); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// lockTx takes an exclusive lock on the facility row.  Every transaction
// that confirms schedules on the facility takes this lock first, which
// serialises confirmations per facility.
func (r *FacilityRepo) lockTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	err := tx.QueryRowContext(ctx, `SELECT id FROM facilities WHERE id = ? FOR UPDATE`, id).Scan(&got)
	return notFound(err, "facility", id)
}

// Facility returns one facility with its inclusions.
func (r *FacilityRepo) Facility(ctx context.Context, id uint64) (*model.Facility, error) {
	return r.get(ctx, r.db, id)
}

// Facilities lists facilities, optionally filtered by status.
func (r *FacilityRepo) Facilities(ctx context.Context, status model.FacilityStatus) ([]model.Facility, error) {
	q := `SELECT ` + facilityColumns + ` FROM facilities`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out := []model.Facility{}
	for rows.Next() {
		var f model.Facility
		if err := scanFacility(rows, &f); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range out {
		incs, err := r.inclusions(ctx, r.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Inclusions = incs
	}
	return out, nil
}

// InsertFacility creates a facility and reads back its defaults.
func (r *FacilityRepo) InsertFacility(ctx context.Context, f *model.Facility) error {
	const ins = `INSERT INTO facilities (name, location, capacity, price, status) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, ins, f.Name, f.Location, f.Capacity, f.Price, f.Status)
	if err != nil {
		return err
	}
	if f.ID, err = lastID(res); err != nil {
		return err
	}
	err = scanFacility(r.db.QueryRowContext(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, f.ID), f)
	f.Inclusions = []model.Inclusion{}
	return err
}

// UpdateFacility writes the editable columns.
func (r *FacilityRepo) UpdateFacility(ctx context.Context, f *model.Facility) error {
	const upd = `UPDATE facilities SET name = ?, location = ?, capacity = ?, price = ?, status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, upd, f.Name, f.Location, f.Capacity, f.Price, f.Status, f.ID)
	if err != nil {
		return err
	}
	// MySQL reports zero affected rows for a no-op update, so existence is
	// checked separately.
	if n, _ := res.RowsAffected(); n == 0 {
		var got uint64
		if err := r.db.QueryRowContext(ctx, `SELECT id FROM facilities WHERE id = ?`, f.ID).Scan(&got); err != nil {
			return notFound(err, "facility", f.ID)
		}
	}
	return nil
}

// InsertInclusion bundles a room or equipment item.
func (r *FacilityRepo) InsertInclusion(ctx context.Context, in *model.Inclusion) error {
	const ins = `INSERT INTO facility_inclusions (facility_id, kind, name, price, position) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, ins, in.FacilityID, in.Kind, in.Name, in.Price, in.Position)
	if err != nil {
		return err
	}
	in.ID, err = lastID(res)
	return err
}

// DeleteInclusion removes an inclusion of the given facility.
func (r *FacilityRepo) DeleteInclusion(ctx context.Context, facilityID, inclusionID uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM facility_inclusions WHERE id = ? AND facility_id = ?`, inclusionID, facilityID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &booking.NotFoundError{Entity: "inclusion", ID: inclusionID}
	}
	return nil
}
