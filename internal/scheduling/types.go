// Package scheduling derives bookable time slots from the working calendar
// and the set of confirmed reservations. Slots are transient: computed on
// demand, never persisted.
package scheduling

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harborclinic/scheduling-agent/internal/calendar"
)

// CellMinutes is the atomic scheduling unit. Every appointment duration is a
// whole number of cells.
const CellMinutes = 15

// AppointmentType enumerates the bookable visit types.
type AppointmentType string

const (
	Consultation AppointmentType = "consultation"
	FollowUp     AppointmentType = "followup"
	PhysicalExam AppointmentType = "physical"
	Specialist   AppointmentType = "specialist"
)

var appointmentCells = map[AppointmentType]int{
	Consultation: 2,
	FollowUp:     1,
	PhysicalExam: 3,
	Specialist:   4,
}

var appointmentNames = map[AppointmentType]string{
	Consultation: "Consultation",
	FollowUp:     "Follow-up",
	PhysicalExam: "Physical Exam",
	Specialist:   "Specialist Visit",
}

// ParseAppointmentType normalizes user- and oracle-supplied type names.
func ParseAppointmentType(s string) (AppointmentType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(norm)
	switch norm {
	case "consultation", "consult", "newpatient":
		return Consultation, nil
	case "followup", "checkin":
		return FollowUp, nil
	case "physical", "physicalexam", "checkup", "annualphysical":
		return PhysicalExam, nil
	case "specialist", "specialistvisit", "referral":
		return Specialist, nil
	}
	return "", fmt.Errorf("scheduling: unknown appointment type %q", s)
}

// Cells returns the appointment duration in atomic cells.
func (t AppointmentType) Cells() int {
	return appointmentCells[t]
}

// Duration returns the appointment length as a time.Duration.
func (t AppointmentType) Duration() time.Duration {
	return time.Duration(t.Cells()*CellMinutes) * time.Minute
}

// Minutes returns the appointment length in minutes.
func (t AppointmentType) Minutes() int {
	return t.Cells() * CellMinutes
}

// DisplayName returns the patient-facing name.
func (t AppointmentType) DisplayName() string {
	if name, ok := appointmentNames[t]; ok {
		return name
	}
	return string(t)
}

// Valid reports whether the type is one of the known variants.
func (t AppointmentType) Valid() bool {
	_, ok := appointmentCells[t]
	return ok
}

// AppointmentTypes lists every bookable type in menu order.
func AppointmentTypes() []AppointmentType {
	return []AppointmentType{Consultation, FollowUp, PhysicalExam, Specialist}
}

// Slot is a candidate booking window for one appointment type on one date.
type Slot struct {
	Date  string
	Start calendar.Clock
	End   calendar.Clock
}

// slotJSON is the wire form. Conversation contexts persist offered slots
// between turns and tool payloads quote them to the model, so the times go
// out as "HH:MM" strings rather than raw minute counts.
type slotJSON struct {
	Date  string `json:"date"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(slotJSON{Date: s.Date, Start: s.Start.String(), End: s.End.String()})
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	var w slotJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	start, err := calendar.ParseClock(w.Start)
	if err != nil {
		return fmt.Errorf("scheduling: bad slot start: %w", err)
	}
	end, err := calendar.ParseClock(w.End)
	if err != nil {
		return fmt.Errorf("scheduling: bad slot end: %w", err)
	}
	*s = Slot{Date: w.Date, Start: start, End: end}
	return nil
}

// StartTime returns the slot start as "HH:MM".
func (s Slot) StartTime() string { return s.Start.String() }

// EndTime returns the slot end as "HH:MM".
func (s Slot) EndTime() string { return s.End.String() }

func (s Slot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Date, s.Start, s.End)
}

// BookedWindow is the slice of a reservation the calculator needs for
// conflict checks.
type BookedWindow struct {
	BookingID string
	Start     calendar.Clock
	End       calendar.Clock
}

// DayAvailability summarizes one scan day with a sample of open slots.
type DayAvailability struct {
	Date       string `json:"date"`
	DayName    string `json:"day_name"`
	TotalSlots int    `json:"total_slots"`
	Sample     []Slot `json:"sample_slots"`
}
