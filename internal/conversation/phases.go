package conversation

// Phase is one state of the scheduling task state machine. A conversation is
// always in exactly one phase; FAQ interruptions suspend the phase on the
// context stack rather than introducing a phase of their own.
type Phase string

const (
	// PhaseIdle means no scheduling task is active.
	PhaseIdle Phase = "idle"
	// PhaseUnderstandingNeed collects the appointment type and a date
	// preference.
	PhaseUnderstandingNeed Phase = "understanding_need"
	// PhaseOfferingSlots has presented concrete slot options and awaits a
	// selection or a rejection.
	PhaseOfferingSlots Phase = "offering_slots"
	// PhaseCollectingPatientInfo gathers name, email, and phone.
	PhaseCollectingPatientInfo Phase = "collecting_patient_info"
	// PhaseConfirmingBooking awaits an explicit yes before committing.
	PhaseConfirmingBooking Phase = "confirming_booking"
	// PhaseBooked is the terminal success state for a booking task.
	PhaseBooked Phase = "booked"

	// PhaseLookupBooking collects a confirmation code for the cancel and
	// reschedule mini-flows.
	PhaseLookupBooking Phase = "lookup_booking"
	// PhaseConfirmingCancel awaits an explicit yes before cancelling.
	PhaseConfirmingCancel Phase = "confirming_cancel"
)

func (p Phase) String() string { return string(p) }

// terminal reports whether the phase ends the active scheduling task.
func (p Phase) terminal() bool {
	return p == PhaseIdle || p == PhaseBooked
}
