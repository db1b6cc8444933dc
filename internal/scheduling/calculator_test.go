package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harborclinic/scheduling-agent/internal/calendar"
)

// 2025-09-01 is a Monday.
var testToday = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

type stubSource struct {
	windows map[string][]BookedWindow
	err     error
}

func (s *stubSource) ConfirmedWindows(_ context.Context, date string) ([]BookedWindow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.windows[date], nil
}

func testCalendar() *calendar.Calendar {
	hours := map[time.Weekday]calendar.DayHours{}
	for _, wd := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		hours[wd] = calendar.DayHours{Open: 9 * 60, Close: 17 * 60}
	}
	hours[time.Saturday] = calendar.DayHours{Open: 9 * 60, Close: 13 * 60}
	lunch := &calendar.Interval{Start: 12 * 60, End: 13 * 60}
	return calendar.New(hours, lunch, []string{"2025-09-03"})
}

func newTestCalculator(src ReservationSource) *Calculator {
	return NewCalculator(testCalendar(), src, WithNow(func() time.Time { return testToday }))
}

func startTimes(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.StartTime()
	}
	return out
}

func containsStart(slots []Slot, start string) bool {
	for _, s := range slots {
		if s.StartTime() == start {
			return true
		}
	}
	return false
}

func TestAvailableSlotsEmptyDay(t *testing.T) {
	calc := newTestCalculator(&stubSource{})

	slots, err := calc.AvailableSlots(context.Background(), "2025-09-01", Consultation)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}

	// Monday 09:00-17:00 with lunch 12:00-13:00. A 30-minute consultation
	// fits at 09:00 but cannot span the lunch break or run past closing.
	if !containsStart(slots, "09:00") {
		t.Errorf("expected slot at 09:00, got %v", startTimes(slots))
	}
	if containsStart(slots, "11:45") || containsStart(slots, "11:30") {
		t.Errorf("slots spanning lunch offered: %v", startTimes(slots))
	}
	if !containsStart(slots, "11:15") {
		t.Errorf("expected last pre-lunch slot at 11:15, got %v", startTimes(slots))
	}
	if !containsStart(slots, "16:30") {
		t.Errorf("expected last slot of the day at 16:30, got %v", startTimes(slots))
	}
	if containsStart(slots, "16:45") {
		t.Errorf("slot running past closing offered: %v", startTimes(slots))
	}

	// Ascending order with no duplicates.
	for i := 1; i < len(slots); i++ {
		if slots[i].Start <= slots[i-1].Start {
			t.Fatalf("slots out of order at %d: %v", i, startTimes(slots))
		}
	}
}

func TestAvailableSlotsNeverOverlapLunchOrClosing(t *testing.T) {
	calc := newTestCalculator(&stubSource{})
	lunch := calendar.Interval{Start: 12 * 60, End: 13 * 60}

	for _, apptType := range AppointmentTypes() {
		slots, err := calc.AvailableSlots(context.Background(), "2025-09-02", apptType)
		if err != nil {
			t.Fatalf("AvailableSlots(%s): %v", apptType, err)
		}
		for _, s := range slots {
			if (calendar.Interval{Start: s.Start, End: s.End}).Overlaps(lunch) {
				t.Errorf("%s slot %s overlaps lunch", apptType, s)
			}
			// Running right up to the break counts as spanning it.
			if s.End == lunch.Start {
				t.Errorf("%s slot %s abuts the lunch break", apptType, s)
			}
			if s.End > 17*60 {
				t.Errorf("%s slot %s extends past closing", apptType, s)
			}
			if s.End != s.Start.Add(apptType.Minutes()) {
				t.Errorf("%s slot %s has wrong duration", apptType, s)
			}
		}
	}
}

func TestAvailableSlotsExcludesBookedCells(t *testing.T) {
	// Consultation booked Monday 10:00-10:30.
	src := &stubSource{windows: map[string][]BookedWindow{
		"2025-09-01": {{BookingID: "APPT-202509-0001", Start: 600, End: 630}},
	}}
	calc := newTestCalculator(src)

	slots, err := calc.AvailableSlots(context.Background(), "2025-09-01", FollowUp)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if containsStart(slots, "10:00") || containsStart(slots, "10:15") {
		t.Errorf("booked cells re-offered: %v", startTimes(slots))
	}
	if !containsStart(slots, "09:45") || !containsStart(slots, "10:30") {
		t.Errorf("adjacent cells should stay available: %v", startTimes(slots))
	}
}

func TestAvailableSlotsExcludingOwnBooking(t *testing.T) {
	src := &stubSource{windows: map[string][]BookedWindow{
		"2025-09-01": {{BookingID: "APPT-202509-0001", Start: 600, End: 630}},
	}}
	calc := newTestCalculator(src)

	slots, err := calc.AvailableSlotsExcluding(context.Background(), "2025-09-01", Consultation, "APPT-202509-0001")
	if err != nil {
		t.Fatalf("AvailableSlotsExcluding: %v", err)
	}
	if !containsStart(slots, "10:00") {
		t.Errorf("a booking should not conflict with itself while being moved: %v", startTimes(slots))
	}
}

func TestAvailableSlotsEdgeDates(t *testing.T) {
	calc := newTestCalculator(&stubSource{})
	ctx := context.Background()

	tests := []struct {
		name string
		date string
	}{
		{"past date", "2025-08-29"},
		{"blocked date", "2025-09-03"},
		{"closed sunday", "2025-09-07"},
		{"beyond horizon", "2026-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := calc.AvailableSlots(ctx, tt.date, Consultation)
			if err != nil {
				t.Fatalf("AvailableSlots: %v", err)
			}
			if len(slots) != 0 {
				t.Errorf("expected empty sequence, got %d slots", len(slots))
			}
		})
	}

	if _, err := calc.AvailableSlots(ctx, "not-a-date", Consultation); err == nil {
		t.Error("expected error for malformed date")
	}
	if _, err := calc.AvailableSlots(ctx, "2025-09-01", AppointmentType("massage")); err == nil {
		t.Error("expected error for unknown appointment type")
	}
}

func TestSaturdayShortDay(t *testing.T) {
	calc := newTestCalculator(&stubSource{})

	// Saturday 09:00-13:00; a specialist visit (60 min) must end by close and
	// cannot reach the 12:00 lunch overlap with closing.
	slots, err := calc.AvailableSlots(context.Background(), "2025-09-06", Specialist)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if !containsStart(slots, "09:00") {
		t.Errorf("expected 09:00 specialist slot, got %v", startTimes(slots))
	}
	if !containsStart(slots, "10:45") {
		t.Errorf("expected 10:45 specialist slot, got %v", startTimes(slots))
	}
	if containsStart(slots, "11:00") {
		t.Errorf("11:00 specialist slot would abut lunch: %v", startTimes(slots))
	}
	if containsStart(slots, "11:15") {
		t.Errorf("11:15 specialist slot would cross lunch: %v", startTimes(slots))
	}
	if containsStart(slots, "12:15") {
		t.Errorf("12:15 specialist slot would run past closing: %v", startTimes(slots))
	}
}

func TestNextAvailableDates(t *testing.T) {
	// Fill Tuesday completely so it drops out of the scan.
	full := []BookedWindow{}
	for start := calendar.Clock(9 * 60); start < 17*60; start = start.Add(15) {
		full = append(full, BookedWindow{BookingID: "x", Start: start, End: start.Add(15)})
	}
	src := &stubSource{windows: map[string][]BookedWindow{"2025-09-02": full}}
	calc := newTestCalculator(src)

	days, err := calc.NextAvailableDates(context.Background(), Consultation, 7, 3)
	if err != nil {
		t.Fatalf("NextAvailableDates: %v", err)
	}

	// Scan window 2025-09-01..2025-09-07: Tuesday is full, Wednesday blocked,
	// Sunday closed. Monday, Thursday, Friday, Saturday remain.
	want := []string{"2025-09-01", "2025-09-04", "2025-09-05", "2025-09-06"}
	if len(days) != len(want) {
		t.Fatalf("got %d days, want %d: %+v", len(days), len(want), days)
	}
	for i, d := range days {
		if d.Date != want[i] {
			t.Errorf("day[%d] = %s, want %s", i, d.Date, want[i])
		}
		if len(d.Sample) == 0 || len(d.Sample) > 3 {
			t.Errorf("day[%d] sample size %d out of range", i, len(d.Sample))
		}
		if d.TotalSlots < len(d.Sample) {
			t.Errorf("day[%d] total %d < sample %d", i, d.TotalSlots, len(d.Sample))
		}
	}
	if days[0].DayName != "Monday" {
		t.Errorf("day name = %s, want Monday", days[0].DayName)
	}
}

func TestNextAvailableDatesScanBudgetIsDaysScanned(t *testing.T) {
	calc := newTestCalculator(&stubSource{})

	// Scanning just 2 days (Mon, Tue) must not look further even though more
	// open days exist past the window.
	days, err := calc.NextAvailableDates(context.Background(), FollowUp, 2, 3)
	if err != nil {
		t.Fatalf("NextAvailableDates: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2", len(days))
	}
	if days[1].Date != "2025-09-02" {
		t.Errorf("last scanned day = %s, want 2025-09-02", days[1].Date)
	}
}

func TestSourceErrorPropagates(t *testing.T) {
	calc := newTestCalculator(&stubSource{err: errors.New("store offline")})
	if _, err := calc.AvailableSlots(context.Background(), "2025-09-01", Consultation); err == nil {
		t.Fatal("expected error from reservation source")
	}
}

func TestParseAppointmentType(t *testing.T) {
	tests := []struct {
		in      string
		want    AppointmentType
		wantErr bool
	}{
		{"consultation", Consultation, false},
		{"Follow-up", FollowUp, false},
		{"follow up", FollowUp, false},
		{"PHYSICAL EXAM", PhysicalExam, false},
		{"annual physical", PhysicalExam, false},
		{"specialist visit", Specialist, false},
		{"massage", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAppointmentType(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAppointmentType(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAppointmentType(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAppointmentType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSlotJSONRoundTrip(t *testing.T) {
	start, _ := calendar.ParseClock("10:00")
	in := Slot{Date: "2025-09-02", Start: start, End: start.Add(30)}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"start_time":"10:00"`, `"end_time":"10:30"`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("wire form %s missing %s", raw, want)
		}
	}

	var out Slot
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.StartTime() != "10:00" || out.EndTime() != "10:30" {
		t.Errorf("round trip gave %s to %s, want 10:00 to 10:30", out.StartTime(), out.EndTime())
	}
	if out.Date != in.Date {
		t.Errorf("round trip date = %s, want %s", out.Date, in.Date)
	}

	if err := json.Unmarshal([]byte(`{"date":"2025-09-02","start_time":"noonish","end_time":"10:30"}`), &out); err == nil {
		t.Error("expected error for malformed start_time")
	}
}

func TestAppointmentDurations(t *testing.T) {
	tests := []struct {
		t       AppointmentType
		cells   int
		minutes int
	}{
		{Consultation, 2, 30},
		{FollowUp, 1, 15},
		{PhysicalExam, 3, 45},
		{Specialist, 4, 60},
	}
	for _, tt := range tests {
		if tt.t.Cells() != tt.cells {
			t.Errorf("%s cells = %d, want %d", tt.t, tt.t.Cells(), tt.cells)
		}
		if tt.t.Minutes() != tt.minutes {
			t.Errorf("%s minutes = %d, want %d", tt.t, tt.t.Minutes(), tt.minutes)
		}
	}
}
