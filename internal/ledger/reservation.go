// Package ledger is the durable, single-writer store of reservation records.
// Mutations follow a load-validate-overwrite discipline: the full record set
// is read, changed in memory, and persisted in one atomic step, so a crash
// mid-operation never exposes a partial record.
package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/harborclinic/scheduling-agent/internal/calendar"
	"github.com/harborclinic/scheduling-agent/internal/scheduling"
)

// Status is the reservation lifecycle state. Reservations are never
// physically deleted.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Patient holds the contact details captured at booking time.
type Patient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// RescheduleEntry records one prior placement of a rescheduled reservation.
type RescheduleEntry struct {
	PreviousDate  string    `json:"previous_date"`
	PreviousStart string    `json:"previous_start_time"`
	PreviousEnd   string    `json:"previous_end_time"`
	MovedAt       time.Time `json:"moved_at"`
}

// Reservation is a persisted booking record. BookingID and ConfirmationCode
// are stable for the life of the record, across reschedules.
type Reservation struct {
	BookingID         string                     `json:"booking_id"`
	ConfirmationCode  string                     `json:"confirmation_code"`
	AppointmentType   scheduling.AppointmentType `json:"appointment_type"`
	Date              string                     `json:"date"`
	StartTime         string                     `json:"start_time"`
	EndTime           string                     `json:"end_time"`
	Patient           Patient                    `json:"patient"`
	Reason            string                     `json:"reason"`
	Status            Status                     `json:"status"`
	RescheduleHistory []RescheduleEntry          `json:"reschedule_history,omitempty"`
	CreatedAt         time.Time                  `json:"created_at"`
	CancelledAt       *time.Time                 `json:"cancelled_at,omitempty"`
	CancelReason      string                     `json:"cancel_reason,omitempty"`
}

// Window returns the reservation's [start, end) clock interval.
func (r *Reservation) Window() (calendar.Interval, error) {
	start, err := calendar.ParseClock(r.StartTime)
	if err != nil {
		return calendar.Interval{}, fmt.Errorf("ledger: reservation %s has bad start time: %w", r.BookingID, err)
	}
	end, err := calendar.ParseClock(r.EndTime)
	if err != nil {
		return calendar.Interval{}, fmt.Errorf("ledger: reservation %s has bad end time: %w", r.BookingID, err)
	}
	return calendar.Interval{Start: start, End: end}, nil
}

var (
	emailRE = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRE = regexp.MustCompile(`^[+\d][\d\s().-]{6,}$`)
)

// Names the oracle tends to fill in when the patient never gave one.
var placeholderNames = map[string]struct{}{
	"patient":       {},
	"unknown":       {},
	"n/a":           {},
	"na":            {},
	"test":          {},
	"test patient":  {},
	"john doe":      {},
	"jane doe":      {},
	"full name":     {},
	"patient name":  {},
	"your name":     {},
	"first name":    {},
	"last name":     {},
	"anonymous":     {},
	"no name":       {},
	"none provided": {},
}

// Validate applies the basic shape checks required before a patient record
// is accepted into a booking.
func (p Patient) Validate() error {
	name := strings.TrimSpace(p.Name)
	if len(name) < 2 {
		return &ValidationError{Field: "patient name", Reason: "a full name is required"}
	}
	if _, ok := placeholderNames[strings.ToLower(name)]; ok {
		return &ValidationError{Field: "patient name", Reason: fmt.Sprintf("%q looks like a placeholder", name)}
	}
	if !emailRE.MatchString(strings.TrimSpace(p.Email)) {
		return &ValidationError{Field: "patient email", Reason: fmt.Sprintf("%q is not a valid email address", p.Email)}
	}
	if !phoneRE.MatchString(strings.TrimSpace(p.Phone)) {
		return &ValidationError{Field: "patient phone", Reason: fmt.Sprintf("%q is not a valid phone number", p.Phone)}
	}
	return nil
}
