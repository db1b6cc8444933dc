package ledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harborclinic/scheduling-agent/internal/calendar"
	"github.com/harborclinic/scheduling-agent/internal/scheduling"
	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

var ledgerTracer = otel.Tracer("clinic.internal.ledger")

// availability is the slice of the slot calculator the ledger needs for
// commit-time re-validation.
type availability interface {
	AvailableSlotsExcluding(ctx context.Context, date string, apptType scheduling.AppointmentType, excludeBookingID string) ([]scheduling.Slot, error)
}

// Ledger owns the reservation record set. All mutations are serialized by a
// mutex so the single-writer assumption holds inside one process even with
// concurrent HTTP handlers.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	avail  availability
	logger *logging.Logger
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger's clock. Tests use this to pin timestamps
// and booking-id months.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New builds a booking ledger over the given store, re-validating against
// the given availability source at commit time.
func New(store Store, avail availability, logger *logging.Logger, opts ...Option) *Ledger {
	if store == nil {
		panic("ledger: store cannot be nil")
	}
	if avail == nil {
		panic("ledger: availability source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &Ledger{
		store:  store,
		avail:  avail,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BookRequest carries everything needed to create a reservation.
type BookRequest struct {
	AppointmentType scheduling.AppointmentType
	Date            string
	StartTime       string
	Patient         Patient
	Reason          string
}

// Book creates a confirmed reservation. The requested window is re-checked
// against a fresh availability computation at commit time, not against
// whatever slot list the caller saw earlier; a lost race fails with
// ErrSlotConflict.
func (l *Ledger) Book(ctx context.Context, req BookRequest) (*Reservation, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_type", string(req.AppointmentType)),
		attribute.String("clinic.date", req.Date),
	)

	if !req.AppointmentType.Valid() {
		return nil, &ValidationError{Field: "appointment type", Reason: fmt.Sprintf("%q is not a bookable appointment type", req.AppointmentType)}
	}
	if _, err := time.Parse(calendar.DateLayout, req.Date); err != nil {
		return nil, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", req.Date)}
	}
	start, err := calendar.ParseClock(req.StartTime)
	if err != nil {
		return nil, &ValidationError{Field: "start time", Reason: fmt.Sprintf("%q is not a HH:MM time", req.StartTime)}
	}
	if err := req.Patient.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureWindowFree(ctx, req.Date, req.StartTime, req.AppointmentType, ""); err != nil {
		span.RecordError(err)
		return nil, err
	}

	all, err := l.store.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := l.now().UTC()
	code, err := l.newConfirmationCode(all)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res := Reservation{
		BookingID:        nextBookingID(all, now),
		ConfirmationCode: code,
		AppointmentType:  req.AppointmentType,
		Date:             req.Date,
		StartTime:        start.String(),
		EndTime:          start.Add(req.AppointmentType.Minutes()).String(),
		Patient:          req.Patient,
		Reason:           strings.TrimSpace(req.Reason),
		Status:           StatusConfirmed,
		CreatedAt:        now,
	}

	all = append(all, res)
	if err := l.store.Save(ctx, all); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("clinic.booking_id", res.BookingID))
	l.logger.Info("reservation booked",
		"booking_id", res.BookingID,
		"appointment_type", res.AppointmentType,
		"date", res.Date,
		"start_time", res.StartTime,
	)
	return &res, nil
}

// Cancel marks a reservation cancelled. Cancelling twice is an error so the
// patient can be told the booking was already cancelled.
func (l *Ledger) Cancel(ctx context.Context, bookingID, reason string) (*Reservation, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.booking_id", bookingID))

	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.store.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	idx := findByID(all, bookingID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	if all[idx].Status == StatusCancelled {
		return nil, fmt.Errorf("%w: booking %s", ErrAlreadyCancelled, bookingID)
	}

	now := l.now().UTC()
	all[idx].Status = StatusCancelled
	all[idx].CancelledAt = &now
	all[idx].CancelReason = strings.TrimSpace(reason)

	if err := l.store.Save(ctx, all); err != nil {
		span.RecordError(err)
		return nil, err
	}

	res := all[idx]
	l.logger.Info("reservation cancelled", "booking_id", res.BookingID, "date", res.Date)
	return &res, nil
}

// Reschedule moves a confirmed reservation to a new window. The new window
// is validated with the booking's own current window excluded from the
// conflict set, so a reservation never conflicts with itself while moving.
// BookingID and ConfirmationCode are preserved; the prior placement is
// appended to the reschedule history.
func (l *Ledger) Reschedule(ctx context.Context, bookingID, newDate, newStartTime string) (*Reservation, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.booking_id", bookingID),
		attribute.String("clinic.date", newDate),
	)

	if _, err := time.Parse(calendar.DateLayout, newDate); err != nil {
		return nil, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", newDate)}
	}
	start, err := calendar.ParseClock(newStartTime)
	if err != nil {
		return nil, &ValidationError{Field: "start time", Reason: fmt.Sprintf("%q is not a HH:MM time", newStartTime)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.store.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	idx := findByID(all, bookingID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	if all[idx].Status == StatusCancelled {
		return nil, fmt.Errorf("%w: booking %s", ErrAlreadyCancelled, bookingID)
	}

	if err := l.ensureWindowFree(ctx, newDate, start.String(), all[idx].AppointmentType, bookingID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	prev := all[idx]
	all[idx].RescheduleHistory = append(all[idx].RescheduleHistory, RescheduleEntry{
		PreviousDate:  prev.Date,
		PreviousStart: prev.StartTime,
		PreviousEnd:   prev.EndTime,
		MovedAt:       l.now().UTC(),
	})
	all[idx].Date = newDate
	all[idx].StartTime = start.String()
	all[idx].EndTime = start.Add(prev.AppointmentType.Minutes()).String()

	if err := l.store.Save(ctx, all); err != nil {
		span.RecordError(err)
		return nil, err
	}

	res := all[idx]
	l.logger.Info("reservation rescheduled",
		"booking_id", res.BookingID,
		"from", prev.Date+" "+prev.StartTime,
		"to", res.Date+" "+res.StartTime,
	)
	return &res, nil
}

// FindByBookingID returns the reservation with the given id.
func (l *Ledger) FindByBookingID(ctx context.Context, bookingID string) (*Reservation, error) {
	all, err := l.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx := findByID(all, bookingID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	res := all[idx]
	return &res, nil
}

// FindByConfirmationCode returns the reservation with the given
// patient-facing code. Matching is case-insensitive.
func (l *Ledger) FindByConfirmationCode(ctx context.Context, code string) (*Reservation, error) {
	all, err := l.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	norm := strings.ToUpper(strings.TrimSpace(code))
	for i := range all {
		if all[i].ConfirmationCode == norm {
			res := all[i]
			return &res, nil
		}
	}
	return nil, fmt.Errorf("%w: confirmation code %s", ErrNotFound, norm)
}

// ensureWindowFree re-runs the availability computation and requires the
// requested start to be offered. This is the commit-time guard; callers
// already hold the mutex.
func (l *Ledger) ensureWindowFree(ctx context.Context, date, startTime string, apptType scheduling.AppointmentType, excludeBookingID string) error {
	slots, err := l.avail.AvailableSlotsExcluding(ctx, date, apptType, excludeBookingID)
	if err != nil {
		return err
	}
	for _, s := range slots {
		if s.StartTime() == startTime {
			return nil
		}
	}
	return fmt.Errorf("%w: %s at %s for %s", ErrSlotConflict, date, startTime, apptType)
}

const bookingIDPrefix = "APPT"

// nextBookingID produces ids like APPT-202509-0007 with a per-month running
// counter, so ids sort chronologically within a month.
func nextBookingID(all []Reservation, now time.Time) string {
	month := now.Format("200601")
	prefix := fmt.Sprintf("%s-%s-", bookingIDPrefix, month)
	maxSeq := 0
	for i := range all {
		rest, ok := strings.CutPrefix(all[i].BookingID, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > maxSeq {
			maxSeq = n
		}
	}
	return fmt.Sprintf("%s%04d", prefix, maxSeq+1)
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

// newConfirmationCode draws a 6-character alphanumeric code, retrying on
// the (unlikely) collision with an existing reservation.
func (l *Ledger) newConfirmationCode(all []Reservation) (string, error) {
	existing := make(map[string]struct{}, len(all))
	for i := range all {
		existing[all[i].ConfirmationCode] = struct{}{}
	}
	for attempt := 0; attempt < 100; attempt++ {
		buf := make([]byte, codeLength)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("ledger: failed to generate confirmation code: %w", err)
		}
		for i := range buf {
			buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(buf)
		if _, taken := existing[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("ledger: exhausted confirmation code attempts")
}

func findByID(all []Reservation, bookingID string) int {
	for i := range all {
		if all[i].BookingID == bookingID {
			return i
		}
	}
	return -1
}
