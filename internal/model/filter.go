package model

// ScheduleFilter selects the schedules of one facility on one date.
// An empty Statuses slice matches every status.  A zero ExcludeBookingID
// excludes nothing.
type ScheduleFilter struct {
	FacilityID       uint64
	Date             string
	Statuses         []ScheduleStatus
	ExcludeBookingID uint64
}

// Matches reports whether s satisfies the filter.
func (f ScheduleFilter) Matches(s Schedule) bool {
	if s.FacilityID != f.FacilityID || s.Date != f.Date {
		return false
	}
	if f.ExcludeBookingID != 0 && s.BookingID == f.ExcludeBookingID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if s.Status == st {
			return true
		}
	}
	return false
}

// BookingFilter narrows booking listings.  Zero values match everything.
type BookingFilter struct {
	RequesterID uint64
	FacilityID  uint64
	Status      BookingStatus
	Limit       int
	Offset      int
}

// DefaultPageSize is applied when a listing does not set Limit.
const DefaultPageSize = 50

// Page returns the effective limit and offset.
func (f BookingFilter) Page() (limit, offset int) {
	limit, offset = f.Limit, f.Offset
	if limit <= 0 || limit > 500 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
