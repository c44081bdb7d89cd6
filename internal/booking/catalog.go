package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/facility-reservation/internal/logger"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// CatalogStore persists facilities and their inclusions.  There is no
// delete: facilities referenced by bookings are disabled instead.
type CatalogStore interface {
	Facility(ctx context.Context, id uint64) (*model.Facility, error)
	Facilities(ctx context.Context, status model.FacilityStatus) ([]model.Facility, error)
	InsertFacility(ctx context.Context, f *model.Facility) error
	UpdateFacility(ctx context.Context, f *model.Facility) error
	InsertInclusion(ctx context.Context, in *model.Inclusion) error
	DeleteInclusion(ctx context.Context, facilityID, inclusionID uint64) error
}

// FacilityInput is the editable part of a facility.
type FacilityInput struct {
	Name     string               `json:"name"`
	Location string               `json:"location"`
	Capacity uint32               `json:"capacity"`
	Price    decimal.Decimal      `json:"price"`
	Status   model.FacilityStatus `json:"status"`
}

func (in *FacilityInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	if in.Name == "" {
		return invalid("name", "is required")
	}
	if in.Capacity == 0 {
		return invalid("capacity", "must be positive")
	}
	if err := validMoney("price", in.Price); err != nil {
		return err
	}
	if in.Status == "" {
		in.Status = model.FacilityAvailable
	}
	if !in.Status.Valid() {
		return invalid("status", "unknown status %q", in.Status)
	}
	return nil
}

// InclusionInput describes a room or equipment item to bundle.
type InclusionInput struct {
	Kind  model.InclusionKind `json:"kind"`
	Name  string              `json:"name"`
	Price decimal.Decimal     `json:"price"`
}

func validMoney(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return invalid(field, "must not be negative")
	}
	if !d.Equal(d.Round(model.MoneyPlaces)) {
		return invalid(field, "at most %d fraction digits", model.MoneyPlaces)
	}
	return nil
}

// Catalog manages facility records.  Writes require the admin role;
// reads are open to any authenticated caller.
type Catalog struct {
	store CatalogStore
}

// NewCatalog returns a catalog over store.
func NewCatalog(store CatalogStore) *Catalog {
	if store == nil {
		panic("nil store passed to NewCatalog")
	}
	return &Catalog{store: store}
}

// Get returns one facility with its inclusions.
func (c *Catalog) Get(ctx context.Context, id uint64) (*model.Facility, error) {
	return c.store.Facility(ctx, id)
}

// List returns facilities, optionally filtered by status.
func (c *Catalog) List(ctx context.Context, status model.FacilityStatus) ([]model.Facility, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("status", "unknown status %q", status)
	}
	return c.store.Facilities(ctx, status)
}

// Create adds a facility.
func (c *Catalog) Create(ctx context.Context, actor model.Actor, in FacilityInput) (*model.Facility, error) {
	if err := authorize(actor, model.ActionManageCatalog); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	f := &model.Facility{
		Name:     in.Name,
		Location: in.Location,
		Capacity: in.Capacity,
		Price:    in.Price,
		Status:   in.Status,
	}
	if err := c.store.InsertFacility(ctx, f); err != nil {
		return nil, fmt.Errorf("insert facility: %w", err)
	}
	logger.InfoKV(ctx, "facility created", "facility_id", f.ID, "actor_id", actor.ID)
	return f, nil
}

// Update replaces the editable fields of a facility.  Price changes apply
// to bookings billed afterwards.
func (c *Catalog) Update(ctx context.Context, actor model.Actor, id uint64, in FacilityInput) (*model.Facility, error) {
	if err := authorize(actor, model.ActionManageCatalog); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	f, err := c.store.Facility(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Name, f.Location, f.Capacity, f.Price, f.Status = in.Name, in.Location, in.Capacity, in.Price, in.Status
	if err := c.store.UpdateFacility(ctx, f); err != nil {
		return nil, fmt.Errorf("update facility: %w", err)
	}
	logger.InfoKV(ctx, "facility updated", "facility_id", f.ID, "actor_id", actor.ID, "status", string(f.Status))
	return f, nil
}

// SetStatus enables or disables a facility.
func (c *Catalog) SetStatus(ctx context.Context, actor model.Actor, id uint64, status model.FacilityStatus) (*model.Facility, error) {
	if err := authorize(actor, model.ActionManageCatalog); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("status", "unknown status %q", status)
	}
	f, err := c.store.Facility(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Status = status
	if err := c.store.UpdateFacility(ctx, f); err != nil {
		return nil, fmt.Errorf("update facility: %w", err)
	}
	logger.InfoKV(ctx, "facility status changed", "facility_id", f.ID, "actor_id", actor.ID, "status", string(status))
	return f, nil
}

// AddInclusion bundles a room or equipment item with a facility.  New
// inclusions are appended after the existing ones.
func (c *Catalog) AddInclusion(ctx context.Context, actor model.Actor, facilityID uint64, in InclusionInput) (*model.Inclusion, error) {
	if err := authorize(actor, model.ActionManageCatalog); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if !in.Kind.Valid() {
		return nil, invalid("kind", "must be room or equipment")
	}
	if in.Name == "" {
		return nil, invalid("name", "is required")
	}
	if err := validMoney("price", in.Price); err != nil {
		return nil, err
	}
	f, err := c.store.Facility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	inc := &model.Inclusion{
		FacilityID: facilityID,
		Kind:       in.Kind,
		Name:       in.Name,
		Price:      in.Price,
		Position:   uint32(len(f.Inclusions)),
	}
	if err := c.store.InsertInclusion(ctx, inc); err != nil {
		return nil, fmt.Errorf("insert inclusion: %w", err)
	}
	return inc, nil
}

// RemoveInclusion unbundles an item from a facility.
func (c *Catalog) RemoveInclusion(ctx context.Context, actor model.Actor, facilityID, inclusionID uint64) error {
	if err := authorize(actor, model.ActionManageCatalog); err != nil {
		return err
	}
	return c.store.DeleteInclusion(ctx, facilityID, inclusionID)
}
