package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingStatus is the state of an issued bill.
type BillingStatus string

const (
	BillingDraft BillingStatus = "draft"
	BillingSent  BillingStatus = "sent"
	BillingPaid  BillingStatus = "paid"
)

// Billing mirrors the `billings` table.  A booking has at most one
// billing whose VoidedAt is nil.  Total is derived from the two fee
// components and is never accepted from input; use NewBilling or
// Recompute rather than assigning it.
type Billing struct {
	ID           uint64          `json:"id"`
	BookingID    uint64          `json:"booking_id"`
	IssuerID     uint64          `json:"issuer_id"`
	FacilityFee  decimal.Decimal `json:"facility_fee"`
	EquipmentFee decimal.Decimal `json:"equipment_fee"`
	Total        decimal.Decimal `json:"total_amount"`
	Status       BillingStatus   `json:"status"`
	VoidedAt     *time.Time      `json:"voided_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// MoneyPlaces is the number of fraction digits kept for currency amounts.
const MoneyPlaces = 2

// NewBilling builds a draft billing with the total derived from the fees.
func NewBilling(bookingID, issuerID uint64, facilityFee, equipmentFee decimal.Decimal) Billing {
	b := Billing{
		BookingID:    bookingID,
		IssuerID:     issuerID,
		FacilityFee:  facilityFee.Round(MoneyPlaces),
		EquipmentFee: equipmentFee.Round(MoneyPlaces),
		Status:       BillingDraft,
	}
	b.Recompute()
	return b
}

// Recompute sets Total to FacilityFee + EquipmentFee.
func (b *Billing) Recompute() {
	b.Total = b.FacilityFee.Add(b.EquipmentFee)
}

// Active reports whether the billing has not been voided.
func (b *Billing) Active() bool { return b.VoidedAt == nil }
