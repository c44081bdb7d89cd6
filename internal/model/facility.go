package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FacilityStatus is the catalog availability flag of a facility.
type FacilityStatus string

const (
	FacilityAvailable   FacilityStatus = "available"
	FacilityUnavailable FacilityStatus = "unavailable"
)

// Valid reports whether s is a known facility status.
func (s FacilityStatus) Valid() bool {
	return s == FacilityAvailable || s == FacilityUnavailable
}

// InclusionKind distinguishes rooms from equipment bundled with a facility.
type InclusionKind string

const (
	InclusionRoom      InclusionKind = "room"
	InclusionEquipment InclusionKind = "equipment"
)

// Valid reports whether k is a known inclusion kind.
func (k InclusionKind) Valid() bool {
	return k == InclusionRoom || k == InclusionEquipment
}

// Facility represents a bookable hall, lab or venue as stored in the
// `facilities` table.  Facilities are never deleted while referenced by
// a booking; administrators set Status to unavailable instead.
//
// Fields:
//
//	ID         – primary key identifier.
//	Name       – display name.
//	Location   – free-text location.
//	Capacity   – maximum number of attendees.
//	Price      – facility fee charged at billing time (two fraction digits).
//	Status     – available or unavailable.
//	Inclusions – rooms and equipment bundled with the facility, ordered by position.
//	CreatedAt  – creation timestamp.
//	UpdatedAt  – last update timestamp.
type Facility struct {
	ID         uint64          `json:"id"`         // facilities.id
	Name       string          `json:"name"`       // facilities.name
	Location   string          `json:"location"`   // facilities.location
	Capacity   uint32          `json:"capacity"`   // facilities.capacity
	Price      decimal.Decimal `json:"price"`      // facilities.price DECIMAL(12,2)
	Status     FacilityStatus  `json:"status"`     // facilities.status
	Inclusions []Inclusion     `json:"inclusions"` // facility_inclusions rows
	CreatedAt  time.Time       `json:"created_at"` // facilities.created_at
	UpdatedAt  time.Time       `json:"updated_at"` // facilities.updated_at
}

// Inclusion is a room or equipment item bundled with a facility.  Each
// inclusion carries its own fee which is summed into the equipment fee
// when a booking on the facility is billed.
type Inclusion struct {
	ID         uint64          `json:"id"`          // facility_inclusions.id
	FacilityID uint64          `json:"facility_id"` // facility_inclusions.facility_id
	Kind       InclusionKind   `json:"kind"`        // facility_inclusions.kind
	Name       string          `json:"name"`        // facility_inclusions.name
	Price      decimal.Decimal `json:"price"`       // facility_inclusions.price DECIMAL(12,2)
	Position   uint32          `json:"position"`    // facility_inclusions.position
}

// RoomIDs returns the identifiers of included rooms in order.
func (f *Facility) RoomIDs() []uint64 { return f.inclusionIDs(InclusionRoom) }

// EquipmentIDs returns the identifiers of included equipment in order.
func (f *Facility) EquipmentIDs() []uint64 { return f.inclusionIDs(InclusionEquipment) }

func (f *Facility) inclusionIDs(kind InclusionKind) []uint64 {
	ids := make([]uint64, 0, len(f.Inclusions))
	for _, in := range f.Inclusions {
		if in.Kind == kind {
			ids = append(ids, in.ID)
		}
	}
	return ids
}
