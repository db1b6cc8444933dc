// Package calendar models the clinic's static working hours: per-weekday
// open/close times, a lunch break, and blocked calendar dates. The model is
// immutable after load and read by the slot calculator only.
package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates throughout the system.
const DateLayout = "2006-01-02"

// Clock is a time of day expressed as minutes since midnight.
type Clock int

// ParseClock parses a "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("calendar: invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("calendar: time %q out of range", s)
	}
	return Clock(h*60 + m), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns the clock shifted forward by the given number of minutes.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// Interval is a half-open [Start, End) window within one day.
type Interval struct {
	Start Clock
	End   Clock
}

// Contains reports whether the clock value falls inside the interval.
func (iv Interval) Contains(c Clock) bool {
	return c >= iv.Start && c < iv.End
}

// Overlaps reports whether two half-open intervals share any minute.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start < o.End && o.Start < iv.End
}

// DayHours are the opening hours for a single weekday.
type DayHours struct {
	Open  Clock
	Close Clock
}

// Calendar is the immutable working-hours model.
type Calendar struct {
	hours   map[time.Weekday]DayHours
	lunch   *Interval
	blocked map[string]struct{}
}

type scheduleFile struct {
	WorkingHours map[string]*dayHoursJSON `json:"working_hours"`
	Lunch        *intervalJSON            `json:"lunch"`
	BlockedDates []string                 `json:"blocked_dates"`
}

type dayHoursJSON struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

type intervalJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Load reads and validates a schedule file.
func Load(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to read schedule: %w", err)
	}
	return Parse(data)
}

// Parse validates raw schedule JSON and builds the calendar.
func Parse(data []byte) (*Calendar, error) {
	var raw scheduleFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("calendar: failed to decode schedule: %w", err)
	}
	if len(raw.WorkingHours) == 0 {
		return nil, fmt.Errorf("calendar: schedule has no working hours")
	}

	cal := &Calendar{
		hours:   make(map[time.Weekday]DayHours, len(raw.WorkingHours)),
		blocked: make(map[string]struct{}, len(raw.BlockedDates)),
	}

	for name, dh := range raw.WorkingHours {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("calendar: unknown weekday %q", name)
		}
		if dh == nil {
			// Weekday listed without hours means closed.
			continue
		}
		open, err := ParseClock(dh.Open)
		if err != nil {
			return nil, err
		}
		closeAt, err := ParseClock(dh.Close)
		if err != nil {
			return nil, err
		}
		if closeAt <= open {
			return nil, fmt.Errorf("calendar: %s closes at %s before it opens at %s", name, closeAt, open)
		}
		cal.hours[wd] = DayHours{Open: open, Close: closeAt}
	}

	if raw.Lunch != nil {
		start, err := ParseClock(raw.Lunch.Start)
		if err != nil {
			return nil, err
		}
		end, err := ParseClock(raw.Lunch.End)
		if err != nil {
			return nil, err
		}
		if end <= start {
			return nil, fmt.Errorf("calendar: lunch ends at %s before it starts at %s", end, start)
		}
		cal.lunch = &Interval{Start: start, End: end}
	}

	for _, d := range raw.BlockedDates {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return nil, fmt.Errorf("calendar: invalid blocked date %q: %w", d, err)
		}
		cal.blocked[d] = struct{}{}
	}

	return cal, nil
}

// New builds a calendar from already-parsed values. Tests use this to avoid
// fixture files.
func New(hours map[time.Weekday]DayHours, lunch *Interval, blockedDates []string) *Calendar {
	cal := &Calendar{
		hours:   make(map[time.Weekday]DayHours, len(hours)),
		blocked: make(map[string]struct{}, len(blockedDates)),
	}
	for wd, dh := range hours {
		cal.hours[wd] = dh
	}
	if lunch != nil {
		iv := *lunch
		cal.lunch = &iv
	}
	for _, d := range blockedDates {
		cal.blocked[d] = struct{}{}
	}
	return cal
}

// HoursFor returns the opening hours for a date, or ok=false when the clinic
// is closed that day (blocked date or no configured hours).
func (c *Calendar) HoursFor(date time.Time) (DayHours, bool) {
	if c.IsBlocked(date) {
		return DayHours{}, false
	}
	dh, ok := c.hours[date.Weekday()]
	return dh, ok
}

// Lunch returns the lunch interval, ok=false when none is configured.
func (c *Calendar) Lunch() (Interval, bool) {
	if c.lunch == nil {
		return Interval{}, false
	}
	return *c.lunch, true
}

// IsBlocked reports whether the date is in the blocked set.
func (c *Calendar) IsBlocked(date time.Time) bool {
	_, blocked := c.blocked[date.Format(DateLayout)]
	return blocked
}

// IsBusinessOpen reports whether the clinic is open for business at the
// given date and time of day: false on blocked dates, on weekdays with no
// configured hours, outside open/close, and during lunch.
func (c *Calendar) IsBusinessOpen(date time.Time, at Clock) bool {
	dh, ok := c.HoursFor(date)
	if !ok {
		return false
	}
	if at < dh.Open || at >= dh.Close {
		return false
	}
	if c.lunch != nil && c.lunch.Contains(at) {
		return false
	}
	return true
}
