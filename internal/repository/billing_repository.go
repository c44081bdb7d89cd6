package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// BillingRepo persists billings.  total_amount is a generated column, so
// it is only ever read.
type BillingRepo struct{}

// NewBillingRepo returns a BillingRepo.
func NewBillingRepo() *BillingRepo { return &BillingRepo{} }

const billingColumns = `id, booking_id, issuer_id, facility_fee, equipment_fee, total_amount, status, voided_at, created_at`

func scanBilling(row interface{ Scan(...any) error }, b *model.Billing) error {
	var voided sql.NullTime
	if err := row.Scan(&b.ID, &b.BookingID, &b.IssuerID, &b.FacilityFee, &b.EquipmentFee,
		&b.Total, &b.Status, &voided, &b.CreatedAt); err != nil {
		return err
	}
	if voided.Valid {
		t := voided.Time
		b.VoidedAt = &t
	}
	return nil
}

// Active returns the booking's billing that has not been voided.
func (r *BillingRepo) Active(ctx context.Context, q queryer, bookingID uint64, lock bool) (*model.Billing, error) {
	sel := `SELECT ` + billingColumns + ` FROM billings WHERE booking_id = ? AND voided_at IS NULL`
	if lock {
		sel += ` FOR UPDATE`
	}
	var b model.Billing
	if err := scanBilling(q.QueryRowContext(ctx, sel, bookingID), &b); err != nil {
		return nil, notFound(err, "billing for booking", bookingID)
	}
	return &b, nil
}

// All returns every billing of a booking, voided ones included.
func (r *BillingRepo) All(ctx context.Context, q queryer, bookingID uint64) ([]model.Billing, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+billingColumns+` FROM billings WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Billing{}
	for rows.Next() {
		var b model.Billing
		if err := scanBilling(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Insert stores a new billing.  The total is recomputed locally to match
// what the generated column will hold.
func (r *BillingRepo) Insert(ctx context.Context, q queryer, b *model.Billing) error {
	const ins = `INSERT INTO billings (booking_id, issuer_id, facility_fee, equipment_fee, status, created_at)
	             VALUES (?, ?, ?, ?, ?, ?)`
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx, ins, b.BookingID, b.IssuerID, b.FacilityFee, b.EquipmentFee, b.Status, b.CreatedAt)
	if err != nil {
		return err
	}
	if b.ID, err = lastID(res); err != nil {
		return err
	}
	b.Recompute()
	return nil
}

// Update writes status, fees and the void marker.
func (r *BillingRepo) Update(ctx context.Context, q queryer, b *model.Billing) error {
	const upd = `UPDATE billings SET facility_fee = ?, equipment_fee = ?, status = ?, voided_at = ? WHERE id = ?`
	var voided sql.NullTime
	if b.VoidedAt != nil {
		voided = sql.NullTime{Time: *b.VoidedAt, Valid: true}
	}
	if _, err := q.ExecContext(ctx, upd, b.FacilityFee, b.EquipmentFee, b.Status, voided, b.ID); err != nil {
		return err
	}
	b.Recompute()
	return nil
}
