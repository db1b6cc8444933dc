package conversation

import (
	"github.com/harborclinic/scheduling-agent/internal/ledger"
	"github.com/harborclinic/scheduling-agent/internal/llm"
	"github.com/harborclinic/scheduling-agent/internal/scheduling"
)

// TaskIntent distinguishes what the active scheduling task is trying to do.
type TaskIntent string

const (
	IntentNone       TaskIntent = ""
	IntentBook       TaskIntent = "book"
	IntentCancel     TaskIntent = "cancel"
	IntentReschedule TaskIntent = "reschedule"
	IntentLookup     TaskIntent = "lookup"
)

// BookingDraft accumulates the fields of the active scheduling task across
// turns. Fields fill in as the patient supplies them; the phase machine
// advances when the fields a phase needs are all present.
type BookingDraft struct {
	Intent          TaskIntent                 `json:"intent,omitempty"`
	AppointmentType scheduling.AppointmentType `json:"appointment_type,omitempty"`
	Date            string                     `json:"date,omitempty"`
	StartTime       string                     `json:"start_time,omitempty"`
	Patient         ledger.Patient             `json:"patient,omitempty"`
	Reason          string                     `json:"reason,omitempty"`

	// TargetBookingID scopes the cancel/reschedule mini-flows to an
	// existing reservation.
	TargetBookingID string `json:"target_booking_id,omitempty"`

	// OfferedSlots is what the patient saw last turn, so a reply like
	// "the second one" can be resolved.
	OfferedSlots []scheduling.Slot `json:"offered_slots,omitempty"`
	// RejectedStarts maps date -> start times the patient has already
	// turned down; those slots are not re-offered for that date.
	RejectedStarts map[string][]string `json:"rejected_starts,omitempty"`
	// DayScan is the current day-scan window. Each full rejection widens
	// it so the next offer looks further out.
	DayScan int `json:"day_scan,omitempty"`
}

// Reject records every currently offered slot as rejected and clears the
// offer, so a re-entrant slot search skips them.
func (d *BookingDraft) Reject() {
	if d.RejectedStarts == nil {
		d.RejectedStarts = make(map[string][]string)
	}
	for _, s := range d.OfferedSlots {
		d.RejectedStarts[s.Date] = append(d.RejectedStarts[s.Date], s.StartTime())
	}
	d.OfferedSlots = nil
}

// Rejected reports whether the patient already declined this slot.
func (d *BookingDraft) Rejected(slot scheduling.Slot) bool {
	for _, start := range d.RejectedStarts[slot.Date] {
		if start == slot.StartTime() {
			return true
		}
	}
	return false
}

// Snapshot is one suspended task frame on the interruption stack.
type Snapshot struct {
	Phase Phase        `json:"phase"`
	Draft BookingDraft `json:"draft"`
}

// Context is the full per-conversation working state. It is a value carried
// through each turn, never module-level state; the session store maps
// conversation ids to contexts between turns.
type Context struct {
	Phase   Phase             `json:"phase"`
	Draft   BookingDraft      `json:"draft"`
	Stack   []Snapshot        `json:"stack,omitempty"`
	History []llm.ChatMessage `json:"history,omitempty"`
}

// NewContext returns a fresh idle context.
func NewContext() *Context {
	return &Context{Phase: PhaseIdle}
}

// PushInterrupt suspends the active task so an unrelated question can be
// answered. Interruptions nest to arbitrary depth.
func (c *Context) PushInterrupt() {
	c.Stack = append(c.Stack, Snapshot{Phase: c.Phase, Draft: c.Draft})
}

// PopInterrupt restores the most recently suspended task. Returns false if
// nothing was suspended.
func (c *Context) PopInterrupt() bool {
	if len(c.Stack) == 0 {
		return false
	}
	top := c.Stack[len(c.Stack)-1]
	c.Stack = c.Stack[:len(c.Stack)-1]
	c.Phase = top.Phase
	c.Draft = top.Draft
	return true
}

// ClearTask resets the active task and empties the interruption stack. Used
// when a task completes, is abandoned, or the session ends.
func (c *Context) ClearTask() {
	c.Phase = PhaseIdle
	c.Draft = BookingDraft{}
	c.Stack = nil
}

// AppendTurn records one user/assistant exchange in the transcript.
func (c *Context) AppendTurn(userMsg, assistantMsg string) {
	c.History = append(c.History,
		llm.ChatMessage{Role: llm.ChatRoleUser, Content: userMsg},
		llm.ChatMessage{Role: llm.ChatRoleAssistant, Content: assistantMsg},
	)
}

const (
	initialDayScan = 7
	maxDayScan     = 28
)

// WidenScan doubles the day-scan window up to the cap and returns the new
// window. A zero window starts at the initial width.
func (d *BookingDraft) WidenScan() int {
	switch {
	case d.DayScan == 0:
		d.DayScan = initialDayScan
	case d.DayScan < maxDayScan:
		d.DayScan *= 2
		if d.DayScan > maxDayScan {
			d.DayScan = maxDayScan
		}
	}
	return d.DayScan
}

// ScanWindow returns the current day-scan window, initializing it on first
// use.
func (d *BookingDraft) ScanWindow() int {
	if d.DayScan == 0 {
		d.DayScan = initialDayScan
	}
	return d.DayScan
}
