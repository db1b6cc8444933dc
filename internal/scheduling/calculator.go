package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/harborclinic/scheduling-agent/internal/calendar"
)

// ReservationSource supplies the confirmed reservation windows for a date.
// The booking ledger implements it; cancelled reservations must not appear.
type ReservationSource interface {
	ConfirmedWindows(ctx context.Context, date string) ([]BookedWindow, error)
}

// Calculator turns the working calendar plus existing reservations into
// conflict-free slot offers.
type Calculator struct {
	cal         *calendar.Calendar
	source      ReservationSource
	horizonDays int
	now         func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithHorizon caps how far into the future slots are offered.
func WithHorizon(days int) Option {
	return func(c *Calculator) {
		if days > 0 {
			c.horizonDays = days
		}
	}
}

// WithNow overrides the clock. Tests use this to pin "today".
func WithNow(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

const defaultHorizonDays = 90

// NewCalculator builds a slot calculator over the given calendar and
// reservation source.
func NewCalculator(cal *calendar.Calendar, source ReservationSource, opts ...Option) *Calculator {
	if cal == nil {
		panic("scheduling: calendar cannot be nil")
	}
	if source == nil {
		panic("scheduling: reservation source cannot be nil")
	}
	c := &Calculator{
		cal:         cal,
		source:      source,
		horizonDays: defaultHorizonDays,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AvailableSlots returns every open slot for the date and appointment type,
// in ascending start-time order. Past dates, blocked dates, closed weekdays
// and dates beyond the booking horizon yield an empty slice, not an error.
func (c *Calculator) AvailableSlots(ctx context.Context, date string, apptType AppointmentType) ([]Slot, error) {
	return c.AvailableSlotsExcluding(ctx, date, apptType, "")
}

// AvailableSlotsExcluding is AvailableSlots with one booking id removed from
// the conflict set, so a reservation being rescheduled never conflicts with
// its own current window.
func (c *Calculator) AvailableSlotsExcluding(ctx context.Context, date string, apptType AppointmentType, excludeBookingID string) ([]Slot, error) {
	if !apptType.Valid() {
		return nil, fmt.Errorf("scheduling: invalid appointment type %q", apptType)
	}
	day, err := time.Parse(calendar.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("scheduling: invalid date %q: %w", date, err)
	}

	if !c.withinHorizon(day) {
		return []Slot{}, nil
	}

	hours, open := c.cal.HoursFor(day)
	if !open {
		return []Slot{}, nil
	}

	windows, err := c.source.ConfirmedWindows(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("scheduling: failed to load reservations for %s: %w", date, err)
	}

	free := c.freeCells(day, hours, windows, excludeBookingID)

	cells := apptType.Cells()
	slots := []Slot{}
	for start := hours.Open; start.Add(apptType.Minutes()) <= hours.Close; start = start.Add(CellMinutes) {
		end := start.Add(apptType.Minutes())
		if c.windowFits(free, start, cells) && !c.touchesLunch(start, end) {
			slots = append(slots, Slot{
				Date:  date,
				Start: start,
				End:   end,
			})
		}
	}
	return slots, nil
}

// touchesLunch reports whether a [start, end) window reaches the lunch
// break. A window ending exactly at lunch start counts as spanning it, so
// the last morning slot leaves the break untouched.
func (c *Calculator) touchesLunch(start, end calendar.Clock) bool {
	lunch, ok := c.cal.Lunch()
	if !ok {
		return false
	}
	return start < lunch.End && end >= lunch.Start
}

// NextAvailableDates scans daysToScan consecutive days starting today and
// returns the days with at least one open slot, each with up to maxPerDay
// sample slots. The scan budget counts days scanned, not days found.
func (c *Calculator) NextAvailableDates(ctx context.Context, apptType AppointmentType, daysToScan, maxPerDay int) ([]DayAvailability, error) {
	if !apptType.Valid() {
		return nil, fmt.Errorf("scheduling: invalid appointment type %q", apptType)
	}
	if daysToScan <= 0 {
		daysToScan = 7
	}
	if maxPerDay <= 0 {
		maxPerDay = 3
	}

	today := dateOnly(c.now())
	var out []DayAvailability
	for i := 0; i < daysToScan; i++ {
		day := today.AddDate(0, 0, i)
		dateStr := day.Format(calendar.DateLayout)

		slots, err := c.AvailableSlots(ctx, dateStr, apptType)
		if err != nil {
			return nil, err
		}
		if len(slots) == 0 {
			continue
		}

		sample := slots
		if len(sample) > maxPerDay {
			sample = sample[:maxPerDay]
		}
		out = append(out, DayAvailability{
			Date:       dateStr,
			DayName:    day.Weekday().String(),
			TotalSlots: len(slots),
			Sample:     sample,
		})
	}
	return out, nil
}

// freeCells marks each 15-minute cell between open and close that is inside
// business hours and not covered by a confirmed reservation.
func (c *Calculator) freeCells(day time.Time, hours calendar.DayHours, windows []BookedWindow, excludeBookingID string) map[calendar.Clock]bool {
	free := make(map[calendar.Clock]bool)
	for cell := hours.Open; cell.Add(CellMinutes) <= hours.Close; cell = cell.Add(CellMinutes) {
		if !c.cal.IsBusinessOpen(day, cell) {
			continue
		}
		free[cell] = true
	}
	for _, w := range windows {
		if excludeBookingID != "" && w.BookingID == excludeBookingID {
			continue
		}
		for cell := range free {
			if cell >= w.Start && cell < w.End {
				free[cell] = false
			}
		}
	}
	return free
}

// windowFits reports whether `cells` consecutive cells starting at `start`
// are all free. A cell missing from the map (lunch, outside hours) fails the
// window, so slots never span the lunch break.
func (c *Calculator) windowFits(free map[calendar.Clock]bool, start calendar.Clock, cells int) bool {
	for i := 0; i < cells; i++ {
		cell := start.Add(i * CellMinutes)
		if !free[cell] {
			return false
		}
	}
	return true
}

func (c *Calculator) withinHorizon(day time.Time) bool {
	today := dateOnly(c.now())
	if day.Before(today) {
		return false
	}
	return !day.After(today.AddDate(0, 0, c.horizonDays))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
