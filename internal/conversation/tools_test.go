package conversation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/harborclinic/scheduling-agent/internal/ledger"
	"github.com/harborclinic/scheduling-agent/internal/scheduling"
)

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantTool string
		wantOK   bool
	}{
		{
			name:     "bare object",
			text:     `{"tool": "checkAvailability", "args": {"date": "2025-09-02", "appointmentType": "consultation"}}`,
			wantTool: toolCheckAvailability,
			wantOK:   true,
		},
		{
			name:     "object wrapped in prose",
			text:     "Let me check that for you.\n{\"tool\": \"getNextAvailableSlots\", \"args\": {\"appointmentType\": \"followup\"}}",
			wantTool: toolNextAvailableSlots,
			wantOK:   true,
		},
		{
			name:   "unknown tool is a plain utterance",
			text:   `{"tool": "deleteAllAppointments", "args": {}}`,
			wantOK: false,
		},
		{
			name:   "plain text",
			text:   "Your appointment is confirmed for tomorrow at 10.",
			wantOK: false,
		},
		{
			name:   "malformed json",
			text:   `{"tool": "bookAppointment", "args": `,
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := parseToolCall(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && call.Name != tt.wantTool {
				t.Errorf("tool = %q, want %q", call.Name, tt.wantTool)
			}
		})
	}
}

func runTool(t *testing.T, h *harness, tool, args string) toolResult {
	t.Helper()
	return h.engine.executeTool(context.Background(), toolCall{
		Name: tool,
		Args: json.RawMessage(args),
	})
}

func TestExecuteToolCheckAvailability(t *testing.T) {
	h := newHarness(t)
	res := runTool(t, h, toolCheckAvailability, `{"date": "2025-09-02", "appointmentType": "consultation"}`)
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	slots, ok := res.Payload.([]string)
	if !ok || len(slots) == 0 {
		t.Fatalf("payload = %v, want slot strings", res.Payload)
	}
}

func TestExecuteToolRejectsBadArgs(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		tool string
		args string
	}{
		{"unknown field", toolCheckAvailability, `{"date": "2025-09-02", "appointmentType": "consultation", "surprise": 1}`},
		{"missing required fields", toolCheckAvailability, `{}`},
		{"bad appointment type", toolCheckAvailability, `{"date": "2025-09-02", "appointmentType": "surgery"}`},
		{"missing booking id", toolCancelAppointment, `{"reason": "conflict"}`},
		{"missing reschedule target", toolReschedule, `{"bookingId": "APPT-202509-0001"}`},
		{"empty code", toolGetByConfirmation, `{"code": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runTool(t, h, tt.tool, tt.args)
			if res.Success {
				t.Fatalf("result = %+v, want failure", res)
			}
			if res.ErrorCode != codeValidationError {
				t.Errorf("error code = %q, want %q", res.ErrorCode, codeValidationError)
			}
		})
	}
}

func TestExecuteToolBookAndConflict(t *testing.T) {
	h := newHarness(t)
	args := `{"appointmentType": "consultation", "date": "2025-09-02", "startTime": "10:00",
		"patientName": "Maria Hernandez", "patientEmail": "maria.hernandez@example.com",
		"patientPhone": "555-867-5309", "reason": "persistent headaches"}`

	res := runTool(t, h, toolBookAppointment, args)
	if !res.Success {
		t.Fatalf("book failed: %+v", res)
	}
	booked, ok := res.Payload.(*ledger.Reservation)
	if !ok {
		t.Fatalf("payload = %T, want *ledger.Reservation", res.Payload)
	}
	if booked.BookingID == "" || booked.ConfirmationCode == "" {
		t.Errorf("reservation missing identifiers: %+v", booked)
	}

	// The same window again must come back as a conflict, not a Go error.
	res = runTool(t, h, toolBookAppointment, args)
	if res.Success || res.ErrorCode != codeSlotConflict {
		t.Errorf("result = %+v, want %s", res, codeSlotConflict)
	}
}

func TestExecuteToolCancelLifecycle(t *testing.T) {
	h := newHarness(t)
	seed, err := h.ledger.Book(context.Background(), ledger.BookRequest{
		AppointmentType: scheduling.FollowUp,
		Date:            "2025-09-02",
		StartTime:       "11:00",
		Patient:         ledger.Patient{Name: "Maria Hernandez", Email: "maria.hernandez@example.com", Phone: "555-867-5309"},
		Reason:          "lab results",
	})
	if err != nil {
		t.Fatalf("seed Book: %v", err)
	}

	res := runTool(t, h, toolCancelAppointment, `{"bookingId": "`+seed.BookingID+`", "reason": "patient request"}`)
	if !res.Success {
		t.Fatalf("cancel failed: %+v", res)
	}

	res = runTool(t, h, toolCancelAppointment, `{"bookingId": "`+seed.BookingID+`"}`)
	if res.Success || res.ErrorCode != codeAlreadyCancelled {
		t.Errorf("second cancel = %+v, want %s", res, codeAlreadyCancelled)
	}

	res = runTool(t, h, toolCancelAppointment, `{"bookingId": "APPT-209912-9999"}`)
	if res.Success || res.ErrorCode != codeNotFound {
		t.Errorf("unknown id = %+v, want %s", res, codeNotFound)
	}
}

func TestExecuteToolLookupByConfirmation(t *testing.T) {
	h := newHarness(t)
	seed, err := h.ledger.Book(context.Background(), ledger.BookRequest{
		AppointmentType: scheduling.Consultation,
		Date:            "2025-09-02",
		StartTime:       "14:00",
		Patient:         ledger.Patient{Name: "Maria Hernandez", Email: "maria.hernandez@example.com", Phone: "555-867-5309"},
		Reason:          "persistent headaches",
	})
	if err != nil {
		t.Fatalf("seed Book: %v", err)
	}

	res := runTool(t, h, toolGetByConfirmation, `{"code": "`+seed.ConfirmationCode+`"}`)
	if !res.Success {
		t.Fatalf("lookup failed: %+v", res)
	}

	res = runTool(t, h, toolGetByConfirmation, `{"code": "ZZZZZ9"}`)
	if res.Success || res.ErrorCode != codeNotFound {
		t.Errorf("unknown code = %+v, want %s", res, codeNotFound)
	}
}
