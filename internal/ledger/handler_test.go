package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/harborclinic/scheduling-agent/internal/scheduling"
	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

func newHandlerHarness(t *testing.T) (*Ledger, http.Handler) {
	t.Helper()
	led, _ := newTestLedger(t)
	h := NewHandler(led, led.avail, logging.New("error"))

	r := chi.NewRouter()
	r.Route("/api/appointments", func(r chi.Router) {
		r.Get("/availability", h.Availability)
		r.Route("/{confirmationCode}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/cancel", h.Cancel)
			r.Post("/reschedule", h.Reschedule)
		})
	})
	return led, r
}

func seedReservation(t *testing.T, led *Ledger) *Reservation {
	t.Helper()
	res, err := led.Book(context.Background(), BookRequest{
		AppointmentType: scheduling.Consultation,
		Date:            "2025-09-02",
		StartTime:       "10:00",
		Patient:         validPatient(),
		Reason:          "persistent headaches",
	})
	if err != nil {
		t.Fatalf("seed Book: %v", err)
	}
	return res
}

func TestHandlerAvailability(t *testing.T) {
	led, router := newHandlerHarness(t)
	seedReservation(t, led)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/availability?date=2025-09-02&type=consultation", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp struct {
		Date  string            `json:"date"`
		Slots []scheduling.Slot `json:"slots"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Date != "2025-09-02" || len(resp.Slots) == 0 {
		t.Fatalf("response = %+v, want slots for 2025-09-02", resp)
	}
	for _, s := range resp.Slots {
		if s.StartTime() == "10:00" {
			t.Errorf("booked 10:00 window still offered")
		}
	}
	if resp.Slots[0].StartTime() != "09:00" {
		t.Errorf("first slot = %s, want 09:00", resp.Slots[0].StartTime())
	}
}

func TestHandlerAvailabilityValidation(t *testing.T) {
	_, router := newHandlerHarness(t)

	tests := []struct {
		name  string
		query string
	}{
		{"missing date", "?type=consultation"},
		{"bad date", "?date=tomorrow&type=consultation"},
		{"unknown type", "?date=2025-09-02&type=surgery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/appointments/availability"+tt.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandlerGetByConfirmation(t *testing.T) {
	led, router := newHandlerHarness(t)
	seeded := seedReservation(t, led)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/"+seeded.ConfirmationCode+"/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got Reservation
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BookingID != seeded.BookingID {
		t.Errorf("booking id = %q, want %q", got.BookingID, seeded.BookingID)
	}
}

func TestHandlerGetUnknownCode(t *testing.T) {
	_, router := newHandlerHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/ZZZZ99/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandlerCancel(t *testing.T) {
	led, router := newHandlerHarness(t)
	seeded := seedReservation(t, led)

	body := bytes.NewBufferString(`{"reason": "patient request"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments/"+seeded.ConfirmationCode+"/cancel", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	// Cancelling again conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/appointments/"+seeded.ConfirmationCode+"/cancel", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestHandlerReschedule(t *testing.T) {
	led, router := newHandlerHarness(t)
	seeded := seedReservation(t, led)

	body := bytes.NewBufferString(`{"new_date": "2025-09-04", "new_start_time": "14:00"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments/"+seeded.ConfirmationCode+"/reschedule", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var got Reservation
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Date != "2025-09-04" || got.StartTime != "14:00" {
		t.Errorf("moved to %s %s, want 2025-09-04 14:00", got.Date, got.StartTime)
	}
	if got.ConfirmationCode != seeded.ConfirmationCode {
		t.Errorf("confirmation code changed across reschedule")
	}
}

func TestHandlerRescheduleValidation(t *testing.T) {
	led, router := newHandlerHarness(t)
	seeded := seedReservation(t, led)

	body := bytes.NewBufferString(`{"new_date": "2025-09-04"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments/"+seeded.ConfirmationCode+"/reschedule", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
