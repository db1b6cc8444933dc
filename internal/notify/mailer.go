// Package notify sends appointment emails to patients. The Mailer composes
// message bodies; delivery goes through a pluggable EmailSender.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/harborclinic/scheduling-agent/internal/ledger"
	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

// Mailer turns reservation records into patient-facing emails.
type Mailer struct {
	sender      EmailSender
	clinicName  string
	clinicPhone string
	logger      *logging.Logger
}

// NewMailer creates a mailer. A nil sender falls back to the logging stub so
// callers never have to branch on whether email is configured.
func NewMailer(sender EmailSender, clinicName, clinicPhone string, logger *logging.Logger) *Mailer {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	if clinicName == "" {
		clinicName = "Harbor Medical Clinic"
	}
	return &Mailer{
		sender:      sender,
		clinicName:  clinicName,
		clinicPhone: clinicPhone,
		logger:      logger,
	}
}

// SendBookingConfirmation emails the patient their booking details and
// confirmation code.
func (m *Mailer) SendBookingConfirmation(ctx context.Context, res *ledger.Reservation) error {
	subject := fmt.Sprintf("Your %s appointment is confirmed", m.clinicName)
	body := m.compose(res,
		fmt.Sprintf("Your %s is confirmed for %s at %s.", res.AppointmentType.DisplayName(), res.Date, res.StartTime),
		fmt.Sprintf("Your confirmation code is %s. Keep it handy in case you need to reschedule or cancel.", res.ConfirmationCode),
		"Please let us know at least 24 hours ahead if you can't make it.",
	)
	return m.send(ctx, res, subject, body)
}

// SendCancellationNotice emails the patient that their appointment was
// cancelled.
func (m *Mailer) SendCancellationNotice(ctx context.Context, res *ledger.Reservation) error {
	subject := fmt.Sprintf("Your %s appointment has been cancelled", m.clinicName)
	body := m.compose(res,
		fmt.Sprintf("Your %s on %s at %s has been cancelled.", res.AppointmentType.DisplayName(), res.Date, res.StartTime),
		"If this wasn't you, or you'd like to rebook, just reply to this email or give us a call.",
	)
	return m.send(ctx, res, subject, body)
}

// SendRescheduleNotice emails the patient their appointment's new time. The
// confirmation code does not change across reschedules.
func (m *Mailer) SendRescheduleNotice(ctx context.Context, res *ledger.Reservation) error {
	subject := fmt.Sprintf("Your %s appointment has moved", m.clinicName)
	lines := []string{
		fmt.Sprintf("Your %s has been moved to %s at %s.", res.AppointmentType.DisplayName(), res.Date, res.StartTime),
	}
	if n := len(res.RescheduleHistory); n > 0 {
		prev := res.RescheduleHistory[n-1]
		lines = append(lines, fmt.Sprintf("It was previously scheduled for %s at %s.", prev.PreviousDate, prev.PreviousStart))
	}
	lines = append(lines, fmt.Sprintf("Your confirmation code stays %s.", res.ConfirmationCode))
	return m.send(ctx, res, subject, m.compose(res, lines...))
}

func (m *Mailer) compose(res *ledger.Reservation, lines ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", res.Patient.Name)
	fmt.Fprintf(&b, "%s\n\n", strings.Join(lines, "\n\n"))
	fmt.Fprintf(&b, "Questions? Call us at %s.\n\n%s\n", m.clinicPhone, m.clinicName)
	return b.String()
}

func (m *Mailer) send(ctx context.Context, res *ledger.Reservation, subject, body string) error {
	if res.Patient.Email == "" {
		m.logger.Warn("reservation has no patient email, skipping notification", "booking_id", res.BookingID)
		return nil
	}
	msg := EmailMessage{
		To:      res.Patient.Email,
		ToName:  res.Patient.Name,
		Subject: subject,
		Body:    body,
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: booking %s: %w", res.BookingID, err)
	}
	return nil
}
