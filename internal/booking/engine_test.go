package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/repository"
)

var (
	alice    = model.Actor{ID: 1, Role: model.RoleRequester}
	bob      = model.Actor{ID: 2, Role: model.RoleRequester}
	approver = model.Actor{ID: 10, Role: model.RoleApprover}
	biller   = model.Actor{ID: 20, Role: model.RoleBiller}
	finance  = model.Actor{ID: 30, Role: model.RoleFinance}
	admin    = model.Actor{ID: 40, Role: model.RoleAdmin}
)

const day = "2026-05-04"

type recorder struct {
	mu     sync.Mutex
	events []booking.Event
}

func (r *recorder) Notify(_ context.Context, ev booking.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []booking.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]booking.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store    *repository.MemoryStore
	engine   *booking.Engine
	catalog  *booking.Catalog
	events   *recorder
	facility *model.Facility
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	rec := &recorder{}
	fx := &fixture{
		store:   store,
		engine:  booking.NewEngine(store, rec),
		catalog: booking.NewCatalog(store),
		events:  rec,
	}
	fx.facility = fx.addFacility(t, "Main Hall", "150.00")
	return fx
}

func (fx *fixture) addFacility(t *testing.T, name, price string) *model.Facility {
	t.Helper()
	f, err := fx.catalog.Create(context.Background(), admin, booking.FacilityInput{
		Name:     name,
		Location: "Building A",
		Capacity: 120,
		Price:    decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return f
}

func hm(h, m int) model.Clock { return model.Clock(h*60 + m) }

func (fx *fixture) request(t *testing.T, actor model.Actor, facilityID uint64, start, end model.Clock) *model.Booking {
	t.Helper()
	b, err := fx.engine.Create(context.Background(), actor, booking.CreateInput{
		FacilityID:   facilityID,
		Organization: "Drama Society",
		Purpose:      "rehearsal",
		Schedules:    []booking.ScheduleInput{{Date: day, Start: start, End: end}},
	})
	require.NoError(t, err)
	return b
}

func (fx *fixture) approved(t *testing.T, start, end model.Clock) *model.Booking {
	t.Helper()
	b := fx.request(t, alice, fx.facility.ID, start, end)
	b, err := fx.engine.Approve(context.Background(), approver, b.ID)
	require.NoError(t, err)
	return b
}

func (fx *fixture) confirmed(t *testing.T) []model.Schedule {
	t.Helper()
	ss, err := fx.store.Schedules(context.Background(), model.ScheduleFilter{
		FacilityID: fx.facility.ID,
		Date:       day,
		Statuses:   []model.ScheduleStatus{model.ScheduleConfirmed},
	})
	require.NoError(t, err)
	return ss
}

func TestCreateStartsRequestedWithPendingSchedules(t *testing.T) {
	fx := newFixture(t)
	b := fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(10, 0))

	assert.Equal(t, model.BookingRequested, b.Status)
	assert.Equal(t, alice.ID, b.RequesterID)
	require.Len(t, b.Schedules, 1)
	assert.NotZero(t, b.Schedules[0].ID)
	assert.Equal(t, model.SchedulePending, b.Schedules[0].Status)
	assert.Equal(t, fx.facility.ID, b.Schedules[0].FacilityID)
	assert.Equal(t, []booking.EventType{booking.EventRequested}, fx.events.types())
}

func TestCreateValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		name string
		in   booking.CreateInput
	}{
		{"missing organization", booking.CreateInput{FacilityID: fx.facility.ID, Schedules: []booking.ScheduleInput{{Date: day, Start: hm(9, 0), End: hm(10, 0)}}}},
		{"missing facility", booking.CreateInput{Organization: "x", Schedules: []booking.ScheduleInput{{Date: day, Start: hm(9, 0), End: hm(10, 0)}}}},
		{"no schedules", booking.CreateInput{FacilityID: fx.facility.ID, Organization: "x"}},
		{"zero length", booking.CreateInput{FacilityID: fx.facility.ID, Organization: "x", Schedules: []booking.ScheduleInput{{Date: day, Start: hm(9, 0), End: hm(9, 0)}}}},
		{"inverted", booking.CreateInput{FacilityID: fx.facility.ID, Organization: "x", Schedules: []booking.ScheduleInput{{Date: day, Start: hm(11, 0), End: hm(9, 0)}}}},
		{"bad date", booking.CreateInput{FacilityID: fx.facility.ID, Organization: "x", Schedules: []booking.ScheduleInput{{Date: "2026-02-30", Start: hm(9, 0), End: hm(10, 0)}}}},
		{"self overlap", booking.CreateInput{FacilityID: fx.facility.ID, Organization: "x", Schedules: []booking.ScheduleInput{
			{Date: day, Start: hm(9, 0), End: hm(11, 0)},
			{Date: day, Start: hm(10, 0), End: hm(12, 0)},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.engine.Create(ctx, alice, tc.in)
			require.ErrorIs(t, err, booking.ErrValidation)
		})
	}
	list, err := fx.store.Bookings(ctx, model.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateRequiresAvailableFacility(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.catalog.SetStatus(ctx, admin, fx.facility.ID, model.FacilityUnavailable)
	require.NoError(t, err)

	_, err = fx.engine.Create(ctx, alice, booking.CreateInput{
		FacilityID:   fx.facility.ID,
		Organization: "x",
		Schedules:    []booking.ScheduleInput{{Date: day, Start: hm(9, 0), End: hm(10, 0)}},
	})
	require.ErrorIs(t, err, booking.ErrFacilityUnavailable)

	_, err = fx.engine.Create(ctx, alice, booking.CreateInput{
		FacilityID:   999,
		Organization: "x",
		Schedules:    []booking.ScheduleInput{{Date: day, Start: hm(9, 0), End: hm(10, 0)}},
	})
	require.ErrorIs(t, err, booking.ErrFacilityUnavailable)
}

func TestCreatePrecheckRejectsConfirmedOverlap(t *testing.T) {
	fx := newFixture(t)
	fx.approved(t, hm(9, 0), hm(11, 0))

	_, err := fx.engine.Create(context.Background(), bob, booking.CreateInput{
		FacilityID:   fx.facility.ID,
		Organization: "Chess Club",
		Schedules:    []booking.ScheduleInput{{Date: day, Start: hm(10, 0), End: hm(12, 0)}},
	})
	require.ErrorIs(t, err, booking.ErrScheduleConflict)
}

func TestPendingRequestsDoNotBlockEachOther(t *testing.T) {
	fx := newFixture(t)
	fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(11, 0))
	fx.request(t, bob, fx.facility.ID, hm(10, 0), hm(12, 0))
}

func TestAdjacentWindowsBothApprove(t *testing.T) {
	fx := newFixture(t)
	a := fx.approved(t, hm(9, 0), hm(10, 0))
	b := fx.approved(t, hm(10, 0), hm(11, 0))

	assert.Equal(t, model.BookingApproved, a.Status)
	assert.Equal(t, model.BookingApproved, b.Status)
	assert.Len(t, fx.confirmed(t), 2)
}

func TestOverlappingApproveFailsWithConflict(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(11, 0))
	b := fx.request(t, bob, fx.facility.ID, hm(10, 0), hm(12, 0))

	_, err := fx.engine.Approve(ctx, approver, a.ID)
	require.NoError(t, err)
	_, err = fx.engine.Approve(ctx, approver, b.ID)
	require.ErrorIs(t, err, booking.ErrScheduleConflict)
	var ce *booking.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, a.ID, ce.ConflictsWith)

	got, err := fx.store.Booking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRequested, got.Status)
	assert.Equal(t, model.SchedulePending, got.Schedules[0].Status)
}

func TestCancelApprovedReleasesSlot(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(11, 0))
	b := fx.request(t, bob, fx.facility.ID, hm(10, 0), hm(12, 0))
	_, err := fx.engine.Approve(ctx, approver, a.ID)
	require.NoError(t, err)
	_, err = fx.engine.Approve(ctx, approver, b.ID)
	require.ErrorIs(t, err, booking.ErrScheduleConflict)

	cancelled, err := fx.engine.Cancel(ctx, alice, a.ID, "  venue changed ")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.Equal(t, "venue changed", cancelled.Reason)
	assert.Equal(t, model.ScheduleCancelled, cancelled.Schedules[0].Status)

	_, err = fx.engine.Approve(ctx, approver, b.ID)
	require.NoError(t, err)
	ss := fx.confirmed(t)
	require.Len(t, ss, 1)
	assert.Equal(t, b.ID, ss[0].BookingID)
}

func TestConcurrentApprovesOnlyOneConfirms(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	const n = 8
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(10, 30)).ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			<-start
			_, err := fx.engine.Approve(ctx, approver, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, booking.ErrScheduleConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, fx.confirmed(t), 1)
}

func TestConfirmedSchedulesNeverOverlap(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	windows := [][2]model.Clock{
		{hm(8, 0), hm(9, 0)}, {hm(8, 30), hm(9, 30)}, {hm(9, 0), hm(10, 0)},
		{hm(9, 45), hm(11, 0)}, {hm(10, 0), hm(12, 0)}, {hm(11, 0), hm(11, 30)},
		{hm(7, 0), hm(13, 0)}, {hm(12, 0), hm(13, 0)},
	}
	var ids []uint64
	for _, w := range windows {
		ids = append(ids, fx.request(t, alice, fx.facility.ID, w[0], w[1]).ID)
	}
	// Approve everything, cancel every third approved booking, then retry
	// the rest.
	for round := 0; round < 2; round++ {
		for i, id := range ids {
			b, err := fx.engine.Approve(ctx, approver, id)
			if err == nil && i%3 == 0 {
				_, err = fx.engine.Cancel(ctx, approver, b.ID, "")
				require.NoError(t, err)
			}
		}
	}

	ss := fx.confirmed(t)
	require.NotEmpty(t, ss)
	for i := range ss {
		for j := i + 1; j < len(ss); j++ {
			assert.False(t, model.Overlaps(ss[i].Start, ss[i].End, ss[j].Start, ss[j].End),
				"schedules %d and %d overlap", ss[i].ID, ss[j].ID)
		}
	}
}

func TestRejectCancelsSchedules(t *testing.T) {
	fx := newFixture(t)
	b := fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(10, 0))

	got, err := fx.engine.Reject(context.Background(), approver, b.ID, "double booked")
	require.NoError(t, err)
	assert.Equal(t, model.BookingRejected, got.Status)
	assert.Equal(t, "double booked", got.Reason)
	assert.Equal(t, model.ScheduleCancelled, got.Schedules[0].Status)
}

func TestRoleGating(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	b := fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(10, 0))

	_, err := fx.engine.Approve(ctx, alice, b.ID)
	require.ErrorIs(t, err, booking.ErrForbidden)
	_, err = fx.engine.Create(ctx, approver, booking.CreateInput{})
	require.ErrorIs(t, err, booking.ErrForbidden)
	_, _, err = fx.engine.Bill(ctx, finance, b.ID, nil)
	require.ErrorIs(t, err, booking.ErrForbidden)
	_, err = fx.engine.Approve(ctx, model.Actor{Role: model.RoleApprover}, b.ID)
	require.ErrorIs(t, err, booking.ErrForbidden)

	// Requesters may only touch their own bookings.
	_, err = fx.engine.Cancel(ctx, bob, b.ID, "")
	require.ErrorIs(t, err, booking.ErrForbidden)
	_, err = fx.engine.Get(ctx, bob, b.ID)
	require.ErrorIs(t, err, booking.ErrNotFound)

	got, err := fx.engine.Get(ctx, approver, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRequested, got.Status)
}

func TestBillTwiceYieldsOneBilling(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.approved(t, hm(9, 0), hm(10, 0))

	b, bill, err := fx.engine.Bill(ctx, biller, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingBilled, b.Status)
	assert.Equal(t, model.BillingDraft, bill.Status)

	_, _, err = fx.engine.Bill(ctx, biller, a.ID, nil)
	require.ErrorIs(t, err, booking.ErrBillingExists)

	all, err := fx.store.Billings(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBillingTotalUsesLivePriceAndInclusions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.catalog.AddInclusion(ctx, admin, fx.facility.ID, booking.InclusionInput{Kind: model.InclusionEquipment, Name: "Projector", Price: decimal.RequireFromString("25.50")})
	require.NoError(t, err)
	_, err = fx.catalog.AddInclusion(ctx, admin, fx.facility.ID, booking.InclusionInput{Kind: model.InclusionRoom, Name: "Green room", Price: decimal.RequireFromString("10.10")})
	require.NoError(t, err)
	a := fx.approved(t, hm(9, 0), hm(10, 0))

	// Price changes between approval and billing apply.
	_, err = fx.catalog.Update(ctx, admin, fx.facility.ID, booking.FacilityInput{
		Name: "Main Hall", Location: "Building A", Capacity: 120, Price: decimal.RequireFromString("199.99"),
	})
	require.NoError(t, err)

	_, bill, err := fx.engine.Bill(ctx, biller, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "199.99", bill.FacilityFee.StringFixed(2))
	assert.Equal(t, "35.60", bill.EquipmentFee.StringFixed(2))
	assert.Equal(t, "235.59", bill.Total.StringFixed(2))

	stored, err := fx.store.ActiveBilling(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(stored.FacilityFee.Add(stored.EquipmentFee)))
}

func TestBillOverrideValidated(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.approved(t, hm(9, 0), hm(10, 0))

	neg := decimal.RequireFromString("-1")
	_, _, err := fx.engine.Bill(ctx, biller, a.ID, &neg)
	require.ErrorIs(t, err, booking.ErrValidation)
	got, err := fx.store.Booking(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingApproved, got.Status)

	fee := decimal.RequireFromString("80")
	_, bill, err := fx.engine.Bill(ctx, biller, a.ID, &fee)
	require.NoError(t, err)
	assert.Equal(t, "80.00", bill.Total.StringFixed(2))
}

func TestBillingLifecycle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.approved(t, hm(9, 0), hm(10, 0))
	_, _, err := fx.engine.Bill(ctx, biller, a.ID, nil)
	require.NoError(t, err)

	// Void returns the booking to APPROVED and allows a new bill.
	voided, err := fx.engine.VoidBilling(ctx, biller, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingApproved, voided.Status)
	_, err = fx.store.ActiveBilling(ctx, a.ID)
	require.ErrorIs(t, err, booking.ErrNotFound)

	_, _, err = fx.engine.Bill(ctx, biller, a.ID, nil)
	require.NoError(t, err)
	sent, err := fx.engine.SendBilling(ctx, biller, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BillingSent, sent.Status)
	_, err = fx.engine.SendBilling(ctx, biller, a.ID)
	require.ErrorIs(t, err, booking.ErrInvalidTransition)

	paid, err := fx.engine.MarkPaid(ctx, finance, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPaid, paid.Status)
	bill, err := fx.engine.Billing(ctx, finance, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BillingPaid, bill.Status)

	all, err := fx.store.Billings(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Equal(t, []booking.EventType{
		booking.EventRequested, booking.EventApproved, booking.EventBilled,
		booking.EventBillingVoided, booking.EventBilled, booking.EventBillingSent,
		booking.EventPaid,
	}, fx.events.types())
}

func TestTransitionTableIsExhaustive(t *testing.T) {
	actions := map[model.Action]model.Actor{
		model.ActionApprove:     approver,
		model.ActionReject:      approver,
		model.ActionCancel:      approver,
		model.ActionEdit:        approver,
		model.ActionBill:        biller,
		model.ActionSendBilling: biller,
		model.ActionVoidBilling: biller,
		model.ActionMarkPaid:    finance,
	}
	allowed := map[model.Action][]model.BookingStatus{
		model.ActionApprove:     {model.BookingRequested},
		model.ActionReject:      {model.BookingRequested},
		model.ActionCancel:      {model.BookingRequested, model.BookingApproved},
		model.ActionEdit:        {model.BookingRequested, model.BookingApproved},
		model.ActionBill:        {model.BookingApproved},
		model.ActionSendBilling: {model.BookingBilled},
		model.ActionVoidBilling: {model.BookingBilled},
		model.ActionMarkPaid:    {model.BookingBilled},
	}
	statuses := []model.BookingStatus{
		model.BookingRequested, model.BookingApproved, model.BookingBilled,
		model.BookingPaid, model.BookingRejected, model.BookingCancelled,
	}

	for action, actor := range actions {
		for _, status := range statuses {
			want := false
			for _, s := range allowed[action] {
				if s == status {
					want = true
				}
			}
			assert.Equal(t, want, booking.CanTransition(status, action), "%s from %s", action, status)
			if want {
				continue
			}
			t.Run(string(action)+"_from_"+string(status), func(t *testing.T) {
				fx := newFixture(t)
				id := fx.bookingIn(t, status)
				before, err := fx.store.Booking(context.Background(), id)
				require.NoError(t, err)

				err = fx.apply(action, actor, id)
				if action == model.ActionBill && (status == model.BookingBilled || status == model.BookingPaid) {
					// The billing left behind by the first bill is reported
					// instead of the status.
					require.ErrorIs(t, err, booking.ErrBillingExists)
					return
				}
				require.ErrorIs(t, err, booking.ErrInvalidTransition)
				var te *booking.TransitionError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, status, te.Status)
				assert.Equal(t, action, te.Action)

				after, err := fx.store.Booking(context.Background(), id)
				require.NoError(t, err)
				assert.Equal(t, before, after)
			})
		}
	}
}

// bookingIn drives a fresh booking into status.
func (fx *fixture) bookingIn(t *testing.T, status model.BookingStatus) uint64 {
	t.Helper()
	ctx := context.Background()
	b := fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(10, 0))
	var err error
	switch status {
	case model.BookingRequested:
	case model.BookingRejected:
		_, err = fx.engine.Reject(ctx, approver, b.ID, "")
	case model.BookingCancelled:
		_, err = fx.engine.Cancel(ctx, alice, b.ID, "")
	default:
		_, err = fx.engine.Approve(ctx, approver, b.ID)
		if err == nil && (status == model.BookingBilled || status == model.BookingPaid) {
			_, _, err = fx.engine.Bill(ctx, biller, b.ID, nil)
		}
		if err == nil && status == model.BookingPaid {
			_, err = fx.engine.MarkPaid(ctx, finance, b.ID)
		}
	}
	require.NoError(t, err)
	return b.ID
}

func (fx *fixture) apply(action model.Action, actor model.Actor, id uint64) error {
	ctx := context.Background()
	var err error
	switch action {
	case model.ActionApprove:
		_, err = fx.engine.Approve(ctx, actor, id)
	case model.ActionReject:
		_, err = fx.engine.Reject(ctx, actor, id, "")
	case model.ActionCancel:
		_, err = fx.engine.Cancel(ctx, actor, id, "")
	case model.ActionEdit:
		_, err = fx.engine.Edit(ctx, actor, id, booking.EditInput{
			Schedules: []booking.ScheduleInput{{Date: day, Start: hm(14, 0), End: hm(15, 0)}},
		})
	case model.ActionBill:
		_, _, err = fx.engine.Bill(ctx, actor, id, nil)
	case model.ActionSendBilling:
		_, err = fx.engine.SendBilling(ctx, actor, id)
	case model.ActionVoidBilling:
		_, err = fx.engine.VoidBilling(ctx, actor, id)
	case model.ActionMarkPaid:
		_, err = fx.engine.MarkPaid(ctx, actor, id)
	}
	return err
}

func TestEditApprovedRechecksAndConfirms(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.approved(t, hm(13, 0), hm(14, 0))
	b := fx.approved(t, hm(9, 0), hm(10, 0))

	// Moving onto the other approved slot is refused and nothing changes.
	_, err := fx.engine.Edit(ctx, alice, b.ID, booking.EditInput{
		Schedules: []booking.ScheduleInput{{Date: day, Start: hm(13, 30), End: hm(14, 30)}},
	})
	require.ErrorIs(t, err, booking.ErrScheduleConflict)
	got, err := fx.store.Booking(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, got.Schedules, 1)
	assert.Equal(t, hm(9, 0), got.Schedules[0].Start)

	// Overlapping only its own old slot is fine.
	edited, err := fx.engine.Edit(ctx, alice, b.ID, booking.EditInput{
		Schedules: []booking.ScheduleInput{
			{Date: day, Start: hm(9, 30), End: hm(11, 0)},
			{Date: "2026-05-05", Start: hm(9, 0), End: hm(10, 0)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingApproved, edited.Status)
	require.Len(t, edited.Schedules, 2)
	for _, s := range edited.Schedules {
		assert.Equal(t, model.ScheduleConfirmed, s.Status)
	}
	assert.Len(t, fx.confirmed(t), 2)
	assert.Contains(t, fx.events.types(), booking.EventRescheduled)
}

func TestEditRequestedMovesFacility(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	other := fx.addFacility(t, "Lab 2", "40.00")
	b := fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(10, 0))

	edited, err := fx.engine.Edit(ctx, alice, b.ID, booking.EditInput{
		FacilityID: other.ID,
		Schedules:  []booking.ScheduleInput{{Date: day, Start: hm(15, 0), End: hm(16, 0)}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingRequested, edited.Status)
	assert.Equal(t, other.ID, edited.FacilityID)
	require.Len(t, edited.Schedules, 1)
	assert.Equal(t, other.ID, edited.Schedules[0].FacilityID)
	assert.Equal(t, model.SchedulePending, edited.Schedules[0].Status)

	_, err = fx.catalog.SetStatus(ctx, admin, fx.facility.ID, model.FacilityUnavailable)
	require.NoError(t, err)
	_, err = fx.engine.Edit(ctx, alice, b.ID, booking.EditInput{
		FacilityID: fx.facility.ID,
		Schedules:  []booking.ScheduleInput{{Date: day, Start: hm(15, 0), End: hm(16, 0)}},
	})
	require.ErrorIs(t, err, booking.ErrFacilityUnavailable)
}

func TestListScopesRequesters(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(10, 0))
	fx.request(t, bob, fx.facility.ID, hm(10, 0), hm(11, 0))
	fx.request(t, bob, fx.facility.ID, hm(11, 0), hm(12, 0))

	mine, err := fx.engine.List(ctx, alice, model.BookingFilter{RequesterID: bob.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, alice.ID, mine[0].RequesterID)

	all, err := fx.engine.List(ctx, approver, model.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[1].ID)

	page, err := fx.engine.List(ctx, approver, model.BookingFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)
}

func TestAvailabilityAndSchedules(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	pending := fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(10, 0))

	free, hit, err := fx.engine.Availability(ctx, booking.Window{FacilityID: fx.facility.ID, Date: day, Start: hm(9, 30), End: hm(10, 30)})
	require.NoError(t, err)
	assert.False(t, free)
	require.NotNil(t, hit)
	assert.Equal(t, pending.ID, hit.BookingID)

	free, _, err = fx.engine.Availability(ctx, booking.Window{FacilityID: fx.facility.ID, Date: day, Start: hm(10, 0), End: hm(11, 0)})
	require.NoError(t, err)
	assert.True(t, free)

	_, _, err = fx.engine.Availability(ctx, booking.Window{Date: day, Start: hm(10, 0), End: hm(11, 0)})
	require.ErrorIs(t, err, booking.ErrValidation)

	ss, err := fx.engine.Schedules(ctx, fx.facility.ID, day)
	require.NoError(t, err)
	require.Len(t, ss, 1)

	_, err = fx.engine.Schedules(ctx, 999, day)
	require.ErrorIs(t, err, booking.ErrNotFound)
	_, err = fx.engine.Schedules(ctx, fx.facility.ID, "05/04/2026")
	require.ErrorIs(t, err, booking.ErrValidation)
}

func TestEventsCarryTransitionDetails(t *testing.T) {
	fx := newFixture(t)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	fx.engine.SetClock(func() time.Time { return at })
	b := fx.request(t, alice, fx.facility.ID, hm(9, 0), hm(10, 0))
	_, err := fx.engine.Approve(context.Background(), approver, b.ID)
	require.NoError(t, err)

	fx.events.mu.Lock()
	defer fx.events.mu.Unlock()
	require.Len(t, fx.events.events, 2)
	ev := fx.events.events[1]
	assert.Equal(t, booking.EventApproved, ev.Type)
	assert.Equal(t, model.BookingRequested, ev.From)
	assert.Equal(t, model.BookingApproved, ev.Booking.Status)
	assert.Equal(t, approver, ev.Actor)
	assert.Equal(t, at, ev.At)
	assert.Equal(t, at, ev.Booking.UpdatedAt)
}
