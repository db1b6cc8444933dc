package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harborclinic/scheduling-agent/internal/ledger"
	"github.com/harborclinic/scheduling-agent/internal/scheduling"
)

// The closed set of tools the model may invoke. Anything outside this union
// is treated as a plain utterance, never executed.
const (
	toolCheckAvailability    = "checkAvailability"
	toolNextAvailableSlots   = "getNextAvailableSlots"
	toolBookAppointment      = "bookAppointment"
	toolCancelAppointment    = "cancelAppointment"
	toolReschedule           = "rescheduleAppointment"
	toolGetByConfirmation    = "getAppointmentByConfirmation"
	maxToolIterationsPerTurn = 5
)

// Stable error codes quoted in tool results so the model can explain
// failures without seeing Go error text.
const (
	codeValidationError  = "validation_error"
	codeSlotConflict     = "slot_conflict"
	codeNotFound         = "not_found"
	codeAlreadyCancelled = "already_cancelled"
	codeInternalError    = "internal_error"
)

// toolCall is a structured invocation request parsed out of model output.
type toolCall struct {
	Name string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// toolResult is the structured payload fed back to the model after
// executing a tool.
type toolResult struct {
	Tool      string `json:"tool"`
	Success   bool   `json:"success"`
	Payload   any    `json:"payload,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

var toolNames = map[string]struct{}{
	toolCheckAvailability:  {},
	toolNextAvailableSlots: {},
	toolBookAppointment:    {},
	toolCancelAppointment:  {},
	toolReschedule:         {},
	toolGetByConfirmation:  {},
}

// parseToolCall extracts a tool invocation from model output. Output that is
// not a JSON object naming a known tool is a plain utterance.
func parseToolCall(text string) (toolCall, bool) {
	content := strings.TrimSpace(text)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return toolCall{}, false
	}

	var call toolCall
	if err := json.Unmarshal([]byte(content[start:end+1]), &call); err != nil {
		return toolCall{}, false
	}
	if _, known := toolNames[call.Name]; !known {
		return toolCall{}, false
	}
	return call, true
}

type checkAvailabilityArgs struct {
	Date            string `json:"date"`
	AppointmentType string `json:"appointmentType"`
}

type nextAvailableArgs struct {
	AppointmentType string `json:"appointmentType"`
	NumDays         int    `json:"numDays"`
}

type bookArgs struct {
	AppointmentType string `json:"appointmentType"`
	Date            string `json:"date"`
	StartTime       string `json:"startTime"`
	PatientName     string `json:"patientName"`
	PatientEmail    string `json:"patientEmail"`
	PatientPhone    string `json:"patientPhone"`
	Reason          string `json:"reason"`
}

type cancelArgs struct {
	BookingID string `json:"bookingId"`
	Reason    string `json:"reason"`
}

type rescheduleArgs struct {
	BookingID    string `json:"bookingId"`
	NewDate      string `json:"newDate"`
	NewStartTime string `json:"newStartTime"`
}

type confirmationArgs struct {
	Code string `json:"code"`
}

// executeTool validates the call's arguments against its schema and runs it
// against the calculator or the ledger. Engine errors come back as typed
// result codes, never as Go errors; only a broken argument payload or a
// persistence failure is unusual enough to log at error level.
func (e *Engine) executeTool(ctx context.Context, call toolCall) toolResult {
	switch call.Name {
	case toolCheckAvailability:
		var args checkAvailabilityArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return argError(call.Name, err)
		}
		if args.Date == "" || args.AppointmentType == "" {
			return argError(call.Name, errors.New("date and appointmentType are required"))
		}
		apptType, err := scheduling.ParseAppointmentType(args.AppointmentType)
		if err != nil {
			return toolResult{Tool: call.Name, ErrorCode: codeValidationError, Error: err.Error()}
		}
		slots, err := e.calc.AvailableSlots(ctx, args.Date, apptType)
		if err != nil {
			return e.engineError(call.Name, err)
		}
		return toolResult{Tool: call.Name, Success: true, Payload: slotStrings(slots)}

	case toolNextAvailableSlots:
		var args nextAvailableArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return argError(call.Name, err)
		}
		apptType, err := scheduling.ParseAppointmentType(args.AppointmentType)
		if err != nil {
			return toolResult{Tool: call.Name, ErrorCode: codeValidationError, Error: err.Error()}
		}
		numDays := args.NumDays
		if numDays <= 0 {
			numDays = initialDayScan
		}
		days, err := e.calc.NextAvailableDates(ctx, apptType, numDays, e.maxSampleSlots)
		if err != nil {
			return e.engineError(call.Name, err)
		}
		return toolResult{Tool: call.Name, Success: true, Payload: days}

	case toolBookAppointment:
		var args bookArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return argError(call.Name, err)
		}
		apptType, err := scheduling.ParseAppointmentType(args.AppointmentType)
		if err != nil {
			return toolResult{Tool: call.Name, ErrorCode: codeValidationError, Error: err.Error()}
		}
		res, err := e.ledger.Book(ctx, ledger.BookRequest{
			AppointmentType: apptType,
			Date:            args.Date,
			StartTime:       args.StartTime,
			Patient: ledger.Patient{
				Name:  args.PatientName,
				Email: args.PatientEmail,
				Phone: args.PatientPhone,
			},
			Reason: args.Reason,
		})
		if err != nil {
			return e.engineError(call.Name, err)
		}
		return toolResult{Tool: call.Name, Success: true, Payload: res}

	case toolCancelAppointment:
		var args cancelArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return argError(call.Name, err)
		}
		if args.BookingID == "" {
			return argError(call.Name, errors.New("bookingId is required"))
		}
		res, err := e.ledger.Cancel(ctx, args.BookingID, args.Reason)
		if err != nil {
			return e.engineError(call.Name, err)
		}
		return toolResult{Tool: call.Name, Success: true, Payload: res}

	case toolReschedule:
		var args rescheduleArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return argError(call.Name, err)
		}
		if args.BookingID == "" || args.NewDate == "" || args.NewStartTime == "" {
			return argError(call.Name, errors.New("bookingId, newDate, and newStartTime are required"))
		}
		res, err := e.ledger.Reschedule(ctx, args.BookingID, args.NewDate, args.NewStartTime)
		if err != nil {
			return e.engineError(call.Name, err)
		}
		return toolResult{Tool: call.Name, Success: true, Payload: res}

	case toolGetByConfirmation:
		var args confirmationArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return argError(call.Name, err)
		}
		if args.Code == "" {
			return argError(call.Name, errors.New("code is required"))
		}
		res, err := e.ledger.FindByConfirmationCode(ctx, args.Code)
		if err != nil {
			return e.engineError(call.Name, err)
		}
		return toolResult{Tool: call.Name, Success: true, Payload: res}

	default:
		return toolResult{Tool: call.Name, ErrorCode: codeValidationError, Error: "unknown tool"}
	}
}

func decodeArgs(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return errors.New("missing arguments")
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("bad arguments: %w", err)
	}
	return nil
}

func argError(tool string, err error) toolResult {
	return toolResult{Tool: tool, ErrorCode: codeValidationError, Error: err.Error()}
}

// engineError converts a typed engine error into a tool result code.
func (e *Engine) engineError(tool string, err error) toolResult {
	res := toolResult{Tool: tool, Error: err.Error()}
	switch {
	case ledger.IsValidation(err):
		res.ErrorCode = codeValidationError
	case errors.Is(err, ledger.ErrSlotConflict):
		res.ErrorCode = codeSlotConflict
	case errors.Is(err, ledger.ErrNotFound):
		res.ErrorCode = codeNotFound
	case errors.Is(err, ledger.ErrAlreadyCancelled):
		res.ErrorCode = codeAlreadyCancelled
	default:
		e.logger.Error("tool execution failed", "tool", tool, "error", err)
		res.ErrorCode = codeInternalError
		res.Error = "internal error"
	}
	return res
}

func slotStrings(slots []scheduling.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}
