package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// Calculator derives and persists the bill of a booking.  The facility
// fee is the facility's price at call time; the equipment fee is the sum
// of the prices of every inclusion bundled with the facility.
type Calculator struct{}

// Compute returns the fees for booking b without persisting anything.
// A non-nil override replaces the catalog facility fee.
func (Calculator) Compute(ctx context.Context, src Reader, b *model.Booking, override *decimal.Decimal) (facilityFee, equipmentFee decimal.Decimal, err error) {
	f, err := src.Facility(ctx, b.FacilityID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	facilityFee = f.Price
	if override != nil {
		if override.IsNegative() {
			return decimal.Zero, decimal.Zero, invalid("facility_fee", "must not be negative")
		}
		if !override.Equal(override.Round(model.MoneyPlaces)) {
			return decimal.Zero, decimal.Zero, invalid("facility_fee", "at most %d fraction digits", model.MoneyPlaces)
		}
		facilityFee = *override
	}
	equipmentFee = decimal.Zero
	for _, in := range f.Inclusions {
		equipmentFee = equipmentFee.Add(in.Price)
	}
	return facilityFee, equipmentFee, nil
}

// Issue persists a draft billing for b.  It fails with ErrBillingExists
// when b already has a billing that has not been voided.  Issue does not
// change the booking status; the bill transition does that in the same
// transaction.
func (c Calculator) Issue(ctx context.Context, tx Tx, b *model.Booking, issuerID uint64, override *decimal.Decimal) (*model.Billing, error) {
	if existing, err := tx.ActiveBilling(ctx, b.ID); err == nil && existing != nil {
		return nil, fmt.Errorf("booking %d: %w", b.ID, ErrBillingExists)
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	facilityFee, equipmentFee, err := c.Compute(ctx, tx, b, override)
	if err != nil {
		return nil, err
	}
	bill := model.NewBilling(b.ID, issuerID, facilityFee, equipmentFee)
	if err := tx.InsertBilling(ctx, &bill); err != nil {
		return nil, fmt.Errorf("insert billing: %w", err)
	}
	return &bill, nil
}
