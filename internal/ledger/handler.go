package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborclinic/scheduling-agent/internal/calendar"
	"github.com/harborclinic/scheduling-agent/internal/scheduling"
	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

// Handler exposes the booking ledger over HTTP for clinic staff tooling.
// Patients normally go through the conversation endpoints instead.
type Handler struct {
	ledger *Ledger
	avail  availability
	logger *logging.Logger
}

// NewHandler creates an appointments handler. The availability source backs
// the open-slot query; the same calculator the ledger validates against.
func NewHandler(ledger *Ledger, avail availability, logger *logging.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		avail:  avail,
		logger: logger,
	}
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type rescheduleRequest struct {
	NewDate      string `json:"new_date"`
	NewStartTime string `json:"new_start_time"`
}

// Availability handles GET /api/appointments/availability?date=&type=.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := time.Parse(calendar.DateLayout, date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	apptType, err := scheduling.ParseAppointmentType(r.URL.Query().Get("type"))
	if err != nil {
		http.Error(w, "unknown appointment type", http.StatusBadRequest)
		return
	}

	slots, err := h.avail.AvailableSlotsExcluding(r.Context(), date, apptType, "")
	if err != nil {
		h.logger.Error("availability query failed", "date", date, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"date":             date,
		"appointment_type": apptType,
		"slots":            slots,
	})
}

// Get handles GET /api/appointments/{confirmationCode}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "confirmationCode")
	res, err := h.ledger.FindByConfirmationCode(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Cancel handles POST /api/appointments/{confirmationCode}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "confirmationCode")
	var req cancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	res, err := h.ledger.FindByConfirmationCode(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	cancelled, err := h.ledger.Cancel(r.Context(), res.BookingID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cancelled)
}

// Reschedule handles POST /api/appointments/{confirmationCode}/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "confirmationCode")
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewDate == "" || req.NewStartTime == "" {
		http.Error(w, "new_date and new_start_time are required", http.StatusBadRequest)
		return
	}

	res, err := h.ledger.FindByConfirmationCode(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	moved, err := h.ledger.Reschedule(r.Context(), res.BookingID, req.NewDate, req.NewStartTime)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, moved)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Appointment not found", http.StatusNotFound)
	case errors.Is(err, ErrAlreadyCancelled):
		http.Error(w, "Appointment is already cancelled", http.StatusConflict)
	case errors.Is(err, ErrSlotConflict):
		http.Error(w, "Requested window is no longer available", http.StatusConflict)
	case IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("appointment request failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
