package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harborclinic/scheduling-agent/internal/ledger"
	"github.com/harborclinic/scheduling-agent/internal/scheduling"
	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func sampleReservation() *ledger.Reservation {
	return &ledger.Reservation{
		BookingID:        "APPT-202509-0001",
		ConfirmationCode: "K7M2P9",
		AppointmentType:  scheduling.Consultation,
		Date:             "2025-09-02",
		StartTime:        "10:00",
		EndTime:          "10:30",
		Patient: ledger.Patient{
			Name:  "Maria Hernandez",
			Email: "maria.hernandez@example.com",
			Phone: "555-867-5309",
		},
		Status: ledger.StatusConfirmed,
	}
}

func TestSendBookingConfirmation(t *testing.T) {
	sender := &recordingSender{}
	m := NewMailer(sender, "Harbor Medical Clinic", "555-0100", logging.New("error"))

	if err := m.SendBookingConfirmation(context.Background(), sampleReservation()); err != nil {
		t.Fatalf("SendBookingConfirmation: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sender.sent))
	}

	msg := sender.sent[0]
	if msg.To != "maria.hernandez@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	for _, want := range []string{"Maria Hernandez", "Consultation", "2025-09-02", "10:00", "K7M2P9", "555-0100"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
}

func TestSendRescheduleNoticeQuotesPreviousTime(t *testing.T) {
	sender := &recordingSender{}
	m := NewMailer(sender, "Harbor Medical Clinic", "555-0100", logging.New("error"))

	res := sampleReservation()
	res.Date = "2025-09-05"
	res.StartTime = "14:00"
	res.RescheduleHistory = []ledger.RescheduleEntry{{
		PreviousDate:  "2025-09-02",
		PreviousStart: "10:00",
		PreviousEnd:   "10:30",
		MovedAt:       time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
	}}

	if err := m.SendRescheduleNotice(context.Background(), res); err != nil {
		t.Fatalf("SendRescheduleNotice: %v", err)
	}
	body := sender.sent[0].Body
	for _, want := range []string{"2025-09-05", "14:00", "previously scheduled for 2025-09-02 at 10:00", "stays K7M2P9"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestSendSkipsMissingEmail(t *testing.T) {
	sender := &recordingSender{}
	m := NewMailer(sender, "", "", logging.New("error"))

	res := sampleReservation()
	res.Patient.Email = ""
	if err := m.SendCancellationNotice(context.Background(), res); err != nil {
		t.Fatalf("SendCancellationNotice: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d emails, want none without a recipient", len(sender.sent))
	}
}

func TestSendWrapsSenderError(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	m := NewMailer(sender, "", "", logging.New("error"))

	err := m.SendBookingConfirmation(context.Background(), sampleReservation())
	if err == nil {
		t.Fatal("want error from failing sender")
	}
	if !strings.Contains(err.Error(), "APPT-202509-0001") {
		t.Errorf("error should name the booking, got %v", err)
	}
}

func TestNilSenderFallsBackToStub(t *testing.T) {
	m := NewMailer(nil, "", "", logging.New("error"))
	if err := m.SendBookingConfirmation(context.Background(), sampleReservation()); err != nil {
		t.Fatalf("stub send: %v", err)
	}
}
