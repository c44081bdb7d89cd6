package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day expressed as minutes since midnight.  Schedules
// use it for their start and end times so interval comparisons are plain
// integer comparisons.  The valid range is [0, 1440]; 1440 ("24:00") is
// accepted as an end-of-day bound.
type Clock int

// MinutesPerDay is the upper bound of a Clock value.
const MinutesPerDay = 24 * 60

// ParseClock accepts "HH:MM" or "HH:MM:SS" (seconds must be zero).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || len(p) > 2 {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		nums[i] = n
	}
	if nums[1] > 59 || (len(nums) == 3 && nums[2] != 0) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	c := Clock(nums[0]*60 + nums[1])
	if !c.Valid() {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return c, nil
}

// Valid reports whether c lies within a single day.
func (c Clock) Valid() bool { return c >= 0 && c <= MinutesPerDay }

// String formats the clock as "HH:MM".
func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60) }

// MarshalJSON renders the clock as "HH:MM".
func (c Clock) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

// UnmarshalJSON parses "HH:MM".
func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Value stores the clock in a MySQL TIME column.
func (c Clock) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", int(c)/60, int(c)%60), nil
}

// Scan reads a MySQL TIME column.  The driver returns TIME values as
// bytes regardless of parseTime.
func (c *Clock) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	case time.Time:
		*c = Clock(v.Hour()*60 + v.Minute())
		return nil
	case int64:
		*c = Clock(v)
		return nil
	}
	return fmt.Errorf("cannot scan %T into Clock", src)
}

func (c *Clock) scanString(s string) error {
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// DateLayout is the calendar date format used for schedule dates.
const DateLayout = "2006-01-02"

// ParseDate validates a calendar date and returns it normalised.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid date %q", s)
	}
	return t.Format(DateLayout), nil
}
