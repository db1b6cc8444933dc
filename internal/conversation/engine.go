package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harborclinic/scheduling-agent/internal/faq"
	"github.com/harborclinic/scheduling-agent/internal/ledger"
	"github.com/harborclinic/scheduling-agent/internal/llm"
	"github.com/harborclinic/scheduling-agent/internal/observability/metrics"
	"github.com/harborclinic/scheduling-agent/internal/scheduling"
	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

var engineTracer = otel.Tracer("clinic.internal.conversation")

// BookingMailer sends the confirmation email after a successful booking.
type BookingMailer interface {
	SendBookingConfirmation(ctx context.Context, res *ledger.Reservation) error
}

// Engine is the scheduling orchestrator: a per-turn state machine that
// decides what to ask next, when to call the availability calculator or the
// booking ledger, and how to suspend and resume the active task around FAQ
// interruptions. The phase machine is authoritative; the language model
// rephrases its output and may request tool calls, but never drives the
// phase transitions itself.
type Engine struct {
	calc     *scheduling.Calculator
	ledger   *ledger.Ledger
	sessions SessionStore
	answerer faq.Answerer
	client   llm.Client
	mailer   BookingMailer
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger

	clinicName     string
	clinicPhone    string
	modelID        string
	maxSampleSlots int
	dayScanWindow  int
	now            func() time.Time
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLLM attaches the language model used to phrase responses.
func WithLLM(client llm.Client, modelID string) EngineOption {
	return func(e *Engine) {
		e.client = client
		e.modelID = modelID
	}
}

// WithAnswerer attaches the FAQ collaborator used for interruptions.
func WithAnswerer(a faq.Answerer) EngineOption {
	return func(e *Engine) { e.answerer = a }
}

// WithMailer attaches the booking confirmation mailer.
func WithMailer(m BookingMailer) EngineOption {
	return func(e *Engine) { e.mailer = m }
}

// WithMetrics attaches conversation metrics.
func WithMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithClinicIdentity sets the clinic name and contact phone quoted in
// responses.
func WithClinicIdentity(name, phone string) EngineOption {
	return func(e *Engine) {
		e.clinicName = name
		e.clinicPhone = phone
	}
}

// WithMaxSampleSlots caps how many slots one offer presents.
func WithMaxSampleSlots(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSampleSlots = n
		}
	}
}

// WithDayScanWindow sets how many days the first forward scan covers.
// Rejections widen from there.
func WithDayScanWindow(days int) EngineOption {
	return func(e *Engine) {
		if days > 0 {
			e.dayScanWindow = days
		}
	}
}

// WithEngineClock pins the engine's clock for tests.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds the scheduling orchestrator.
func NewEngine(calc *scheduling.Calculator, led *ledger.Ledger, sessions SessionStore, logger *logging.Logger, opts ...EngineOption) *Engine {
	if calc == nil {
		panic("conversation: calculator cannot be nil")
	}
	if led == nil {
		panic("conversation: ledger cannot be nil")
	}
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		calc:           calc,
		ledger:         led,
		sessions:       sessions,
		logger:         logger,
		clinicName:     "Harbor Medical Clinic",
		maxSampleSlots: 3,
		dayScanWindow:  initialDayScan,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Service = (*Engine)(nil)

// StartConversation opens a fresh session and returns the greeting.
func (e *Engine) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	ctx, span := engineTracer.Start(ctx, "conversation.start")
	defer span.End()

	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		id = uuid.New().String()
	}
	span.SetAttributes(attribute.String("clinic.conversation_id", id))

	cctx := NewContext()
	greeting := fmt.Sprintf("Hi, welcome to %s! I can book, reschedule, or cancel appointments, and answer questions about the clinic. How can I help you today?", e.clinicName)
	cctx.History = append(cctx.History, llm.ChatMessage{Role: llm.ChatRoleAssistant, Content: greeting})

	if err := e.sessions.Save(ctx, id, cctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &Response{
		ConversationID: id,
		Message:        greeting,
		Phase:          cctx.Phase,
		Timestamp:      e.now().UTC(),
	}, nil
}

// ProcessMessage runs one conversation turn to completion: classify, advance
// the phase machine, run any tool call, persist the updated context, and
// return the reply. Turns within a session are sequential; nothing here
// outlives the turn.
func (e *Engine) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	ctx, span := engineTracer.Start(ctx, "conversation.process_message")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.conversation_id", req.ConversationID))

	if strings.TrimSpace(req.ConversationID) == "" {
		return nil, errors.New("conversation: conversation id is required")
	}

	cctx, err := e.sessions.Load(ctx, req.ConversationID)
	if err != nil {
		if !errors.Is(err, ErrUnknownSession) {
			span.RecordError(err)
			return nil, err
		}
		cctx = NewContext()
	}

	reply := e.processTurn(ctx, cctx, strings.TrimSpace(req.Message))
	reply = e.polish(ctx, cctx, req.Message, reply)

	cctx.AppendTurn(req.Message, reply)
	if err := e.sessions.Save(ctx, req.ConversationID, cctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("clinic.phase", cctx.Phase.String()))
	if e.metrics != nil {
		e.metrics.ObserveTurn(cctx.Phase.String())
	}

	return &Response{
		ConversationID: req.ConversationID,
		Message:        reply,
		Phase:          cctx.Phase,
		Timestamp:      e.now().UTC(),
	}, nil
}

// GetHistory returns the transcript for a session.
func (e *Engine) GetHistory(ctx context.Context, conversationID string) ([]Message, error) {
	cctx, err := e.sessions.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(cctx.History))
	for _, m := range cctx.History {
		out = append(out, Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

// processTurn is the deterministic heart of the orchestrator.
func (e *Engine) processTurn(ctx context.Context, cctx *Context, message string) string {
	if message == "" {
		return "I didn't catch that. How can I help you with an appointment?"
	}

	// FAQ interruption: a policy question mid-task suspends the task,
	// answers, and resumes exactly where it left off.
	if e.answerer != nil && faq.IsFAQ(message) {
		if cctx.Phase.terminal() {
			if answer := e.answerFAQ(ctx, message); answer != "" {
				return answer
			}
		} else {
			cctx.PushInterrupt()
			answer := e.answerFAQ(ctx, message)
			cctx.PopInterrupt()
			if answer != "" {
				return answer + "\n\n" + e.pendingPrompt(cctx)
			}
		}
	}

	switch cctx.Phase {
	case PhaseIdle, PhaseBooked:
		return e.handleIdle(ctx, cctx, message)
	case PhaseUnderstandingNeed:
		return e.handleUnderstanding(ctx, cctx, message)
	case PhaseOfferingSlots:
		return e.handleOffering(ctx, cctx, message)
	case PhaseCollectingPatientInfo:
		return e.handleCollecting(ctx, cctx, message)
	case PhaseConfirmingBooking:
		return e.handleConfirming(ctx, cctx, message)
	case PhaseLookupBooking:
		return e.handleLookup(ctx, cctx, message)
	case PhaseConfirmingCancel:
		return e.handleConfirmingCancel(ctx, cctx, message)
	default:
		e.logger.Error("unknown conversation phase", "phase", cctx.Phase)
		cctx.ClearTask()
		return "Let's start over. How can I help you with an appointment?"
	}
}

func (e *Engine) answerFAQ(ctx context.Context, question string) string {
	ans, err := e.answerer.Answer(ctx, question)
	if err != nil {
		e.logger.Warn("faq collaborator failed", "error", err.Error())
		return e.apology()
	}
	return ans.Text
}

func (e *Engine) handleIdle(ctx context.Context, cctx *Context, message string) string {
	intent := TaskIntentOf(message)
	switch intent {
	case IntentBook:
		cctx.Phase = PhaseUnderstandingNeed
		cctx.Draft = BookingDraft{Intent: IntentBook, Reason: message}
		return e.handleUnderstanding(ctx, cctx, message)
	case IntentCancel, IntentReschedule, IntentLookup:
		cctx.Phase = PhaseLookupBooking
		cctx.Draft = BookingDraft{Intent: intent}
		return e.handleLookup(ctx, cctx, message)
	default:
		if e.answerer != nil {
			if answer := e.answerFAQ(ctx, message); answer != "" {
				return answer
			}
		}
		return fmt.Sprintf("I can help you book, reschedule, or cancel an appointment at %s, or answer questions about the clinic. What would you like to do?", e.clinicName)
	}
}

func (e *Engine) handleUnderstanding(ctx context.Context, cctx *Context, message string) string {
	e.absorb(cctx, message)
	d := &cctx.Draft

	if d.AppointmentType == "" {
		d.AppointmentType = InferTypeFromReason(d.Reason)
	}

	switch {
	case d.AppointmentType == "":
		return "What kind of visit do you need? We offer consultations (30 min), follow-ups (15 min), physical exams (45 min), and specialist visits (60 min)."
	case d.Date == "" && d.StartTime == "" && !WantsEarliest(message):
		return fmt.Sprintf("A %s it is. Do you have a day or time in mind, or should I find the next available openings?", d.AppointmentType.DisplayName())
	default:
		cctx.Phase = PhaseOfferingSlots
		return e.offerSlots(ctx, cctx)
	}
}

// offerSlots runs the calculator and presents options. A specific requested
// date is checked first; otherwise (or when that date has nothing) the scan
// walks forward from today.
func (e *Engine) offerSlots(ctx context.Context, cctx *Context) string {
	d := &cctx.Draft

	if d.Date != "" {
		slots, err := e.calc.AvailableSlotsExcluding(ctx, d.Date, d.AppointmentType, d.TargetBookingID)
		if err != nil {
			e.logger.Error("slot calculation failed", "date", d.Date, "error", err)
			cctx.Phase = PhaseUnderstandingNeed
			return e.apology()
		}
		slots = e.filterRejected(d, slots)
		if d.StartTime != "" {
			for _, s := range slots {
				if s.StartTime() != d.StartTime {
					continue
				}
				// The exact window the patient asked for is open, so
				// skip the menu and treat it as chosen.
				if d.Intent == IntentReschedule {
					return e.commitReschedule(ctx, cctx)
				}
				cctx.Phase = PhaseCollectingPatientInfo
				return fmt.Sprintf("Good news, %s at %s is open for a %s. %s",
					s.Date, s.StartTime(), d.AppointmentType.DisplayName(), e.missingInfoPrompt(d))
			}
			if len(slots) > 0 {
				requested := d.StartTime
				d.StartTime = ""
				return e.presentSlots(cctx, slots, fmt.Sprintf("I'm sorry, %s isn't open on %s. Here's what is:", requested, d.Date))
			}
		}
		if len(slots) > 0 {
			return e.presentSlots(cctx, slots, fmt.Sprintf("Here's what's open on %s for a %s:", d.Date, d.AppointmentType.DisplayName()))
		}
		// Nothing on the requested date; fall through to a forward scan.
		requested := d.Date
		d.Date = ""
		return fmt.Sprintf("I'm sorry, there's nothing open on %s for a %s. ", requested, d.AppointmentType.DisplayName()) + e.scanForward(ctx, cctx)
	}

	return e.scanForward(ctx, cctx)
}

// filterRejected drops slots the patient already declined during this task.
func (e *Engine) filterRejected(d *BookingDraft, slots []scheduling.Slot) []scheduling.Slot {
	if len(d.RejectedStarts) == 0 {
		return slots
	}
	kept := make([]scheduling.Slot, 0, len(slots))
	for _, s := range slots {
		if !d.Rejected(s) {
			kept = append(kept, s)
		}
	}
	return kept
}

func (e *Engine) scanForward(ctx context.Context, cctx *Context) string {
	d := &cctx.Draft
	if d.DayScan == 0 {
		d.DayScan = e.dayScanWindow
	}
	days, err := e.calc.NextAvailableDates(ctx, d.AppointmentType, d.ScanWindow(), e.maxSampleSlots)
	if err != nil {
		e.logger.Error("availability scan failed", "error", err)
		cctx.Phase = PhaseUnderstandingNeed
		return e.apology()
	}

	var slots []scheduling.Slot
	for _, day := range days {
		for _, s := range day.Sample {
			if !d.Rejected(s) {
				slots = append(slots, s)
			}
		}
		if len(slots) >= e.maxSampleSlots {
			slots = slots[:e.maxSampleSlots]
			break
		}
	}

	if len(slots) == 0 {
		d.WidenScan()
		return fmt.Sprintf("I couldn't find any openings in the next %d days for a %s. I've widened the search; say \"keep looking\" to try again, or call us at %s.", d.ScanWindow(), d.AppointmentType.DisplayName(), e.contactPhone())
	}

	return e.presentSlots(cctx, slots, fmt.Sprintf("Here are the next available openings for a %s:", d.AppointmentType.DisplayName()))
}

func (e *Engine) presentSlots(cctx *Context, slots []scheduling.Slot, lead string) string {
	if len(slots) > e.maxSampleSlots {
		slots = slots[:e.maxSampleSlots]
	}
	cctx.Draft.OfferedSlots = slots
	cctx.Phase = PhaseOfferingSlots

	var b strings.Builder
	b.WriteString(lead)
	for i, s := range slots {
		fmt.Fprintf(&b, "\n%d. %s at %s", i+1, s.Date, s.StartTime())
	}
	b.WriteString("\nWould any of these work for you?")
	return b.String()
}

func (e *Engine) handleOffering(ctx context.Context, cctx *Context, message string) string {
	d := &cctx.Draft

	if slot, ok := SelectedSlot(message, d.OfferedSlots, e.now()); ok {
		d.Date = slot.Date
		d.StartTime = slot.StartTime()

		if d.Intent == IntentReschedule {
			return e.commitReschedule(ctx, cctx)
		}

		cctx.Phase = PhaseCollectingPatientInfo
		return fmt.Sprintf("Great, I'll pencil in %s at %s. %s", d.Date, d.StartTime, e.missingInfoPrompt(d))
	}

	if IsNegation(message) {
		d.Reject()
		d.Date = ""
		d.StartTime = ""
		d.WidenScan()
		return "No problem, let me look further out. " + e.scanForward(ctx, cctx)
	}

	// A new date or time preference restarts the offer for that day.
	ext := Extract(message, e.now())
	if ext.Date != "" || ext.StartTime != "" {
		if ext.Date != "" {
			d.Date = ext.Date
		}
		if ext.StartTime != "" {
			d.StartTime = ext.StartTime
		}
		if d.Date != "" {
			return e.offerSlots(ctx, cctx)
		}
	}

	return "Just let me know which option works (for example \"the first one\"), or say none of these work and I'll look further out."
}

func (e *Engine) handleCollecting(ctx context.Context, cctx *Context, message string) string {
	e.absorb(cctx, message)
	d := &cctx.Draft

	if d.Patient.Name == "" || d.Patient.Email == "" || d.Patient.Phone == "" {
		return e.missingInfoPrompt(d)
	}

	cctx.Phase = PhaseConfirmingBooking
	return fmt.Sprintf("Here's what I have: a %s on %s at %s for %s (%s, %s). Shall I confirm this booking?",
		d.AppointmentType.DisplayName(), d.Date, d.StartTime, d.Patient.Name, d.Patient.Email, d.Patient.Phone)
}

func (e *Engine) handleConfirming(ctx context.Context, cctx *Context, message string) string {
	d := &cctx.Draft

	if IsAffirmation(message) {
		return e.commitBooking(ctx, cctx)
	}

	// Any correction request, or corrected details supplied directly, drops
	// back to collecting.
	ext := Extract(message, e.now())
	if IsNegation(message) || ext.Name != "" || ext.Email != "" || ext.Phone != "" {
		cctx.Phase = PhaseCollectingPatientInfo
		e.absorb(cctx, message)
		if d.Patient.Name != "" && d.Patient.Email != "" && d.Patient.Phone != "" {
			return e.handleCollecting(ctx, cctx, "")
		}
		return "Of course. What should I correct? " + e.missingInfoPrompt(d)
	}

	return "Just to be safe, I need an explicit yes before booking. Shall I confirm this appointment?"
}

func (e *Engine) commitBooking(ctx context.Context, cctx *Context) string {
	d := &cctx.Draft
	res, err := e.ledger.Book(ctx, ledger.BookRequest{
		AppointmentType: d.AppointmentType,
		Date:            d.Date,
		StartTime:       d.StartTime,
		Patient:         d.Patient,
		Reason:          d.Reason,
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.ObserveBooking("error")
		}
		return e.bookingError(ctx, cctx, err)
	}

	if e.metrics != nil {
		e.metrics.ObserveBooking("booked")
	}
	if e.mailer != nil {
		if mailErr := e.mailer.SendBookingConfirmation(ctx, res); mailErr != nil {
			e.logger.Warn("confirmation email failed", "booking_id", res.BookingID, "error", mailErr.Error())
		}
	}

	cctx.ClearTask()
	cctx.Phase = PhaseBooked
	return fmt.Sprintf("You're all set! Your %s is booked for %s at %s. Your confirmation code is %s; keep it handy in case you need to reschedule or cancel. A confirmation email is on its way to %s.",
		res.AppointmentType.DisplayName(), res.Date, res.StartTime, res.ConfirmationCode, res.Patient.Email)
}

// bookingError converts a ledger error into a conversational turn. The
// session never dies on an engine error; it returns to the phase that can
// repair the problem.
func (e *Engine) bookingError(ctx context.Context, cctx *Context, err error) string {
	d := &cctx.Draft
	switch {
	case errors.Is(err, ledger.ErrSlotConflict):
		// The window vanished between offer and commit. Re-offer.
		taken := fmt.Sprintf("I'm sorry, %s at %s was just taken.", d.Date, d.StartTime)
		// The taken window falls out of the calculator on its own, so the
		// remaining offers stay valid.
		d.OfferedSlots = nil
		d.StartTime = ""
		cctx.Phase = PhaseOfferingSlots
		return taken + " " + e.offerSlots(ctx, cctx)
	case ledger.IsValidation(err):
		cctx.Phase = PhaseCollectingPatientInfo
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			return fmt.Sprintf("It looks like the %s isn't quite right (%s). Could you give it to me again?", verr.Field, verr.Reason)
		}
		return "Some of the details don't look right. " + e.missingInfoPrompt(d)
	default:
		e.logger.Error("booking failed", "error", err)
		return e.apology()
	}
}

func (e *Engine) commitReschedule(ctx context.Context, cctx *Context) string {
	d := &cctx.Draft
	res, err := e.ledger.Reschedule(ctx, d.TargetBookingID, d.Date, d.StartTime)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrSlotConflict):
			taken := fmt.Sprintf("I'm sorry, %s at %s was just taken.", d.Date, d.StartTime)
			d.Reject()
			d.Date = ""
			d.StartTime = ""
			cctx.Phase = PhaseOfferingSlots
			return taken + " " + e.scanForward(ctx, cctx)
		case errors.Is(err, ledger.ErrAlreadyCancelled):
			cctx.ClearTask()
			return "That booking has already been cancelled, so there's nothing to move. Would you like to book a new appointment instead?"
		case errors.Is(err, ledger.ErrNotFound):
			cctx.ClearTask()
			return "I couldn't find that booking anymore. Please double-check your confirmation code."
		default:
			e.logger.Error("reschedule failed", "booking_id", d.TargetBookingID, "error", err)
			return e.apology()
		}
	}

	cctx.ClearTask()
	return fmt.Sprintf("Done! Your %s has been moved to %s at %s. Your confirmation code stays %s.",
		res.AppointmentType.DisplayName(), res.Date, res.StartTime, res.ConfirmationCode)
}

func (e *Engine) handleLookup(ctx context.Context, cctx *Context, message string) string {
	d := &cctx.Draft

	code := extractConfirmationCode(message)
	if code == "" {
		verb := "look up"
		switch d.Intent {
		case IntentCancel:
			verb = "cancel"
		case IntentReschedule:
			verb = "reschedule"
		}
		return fmt.Sprintf("Sure, I can %s that for you. What's the 6-character confirmation code from your booking?", verb)
	}

	res, err := e.ledger.FindByConfirmationCode(ctx, code)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fmt.Sprintf("I couldn't find a booking with code %s. Please double-check the code and try again.", code)
		}
		e.logger.Error("booking lookup failed", "error", err)
		return e.apology()
	}

	details := fmt.Sprintf("%s on %s at %s for %s", res.AppointmentType.DisplayName(), res.Date, res.StartTime, res.Patient.Name)

	switch d.Intent {
	case IntentCancel:
		if res.Status == ledger.StatusCancelled {
			cctx.ClearTask()
			return fmt.Sprintf("That booking (%s) was already cancelled. Is there anything else I can help with?", details)
		}
		d.TargetBookingID = res.BookingID
		cctx.Phase = PhaseConfirmingCancel
		return fmt.Sprintf("I found your %s. Are you sure you want to cancel it?", details)
	case IntentReschedule:
		if res.Status == ledger.StatusCancelled {
			cctx.ClearTask()
			return fmt.Sprintf("That booking (%s) was cancelled, so it can't be moved. Would you like to book a new appointment?", details)
		}
		d.TargetBookingID = res.BookingID
		d.AppointmentType = res.AppointmentType
		cctx.Phase = PhaseOfferingSlots
		return fmt.Sprintf("I found your %s. Let's find a new time. ", details) + e.scanForward(ctx, cctx)
	default:
		cctx.ClearTask()
		status := "confirmed"
		if res.Status == ledger.StatusCancelled {
			status = "cancelled"
		}
		return fmt.Sprintf("Here it is: %s, currently %s. Anything else I can do?", details, status)
	}
}

func (e *Engine) handleConfirmingCancel(ctx context.Context, cctx *Context, message string) string {
	d := &cctx.Draft

	if IsNegation(message) {
		cctx.ClearTask()
		return "No problem, your appointment is unchanged. Anything else I can help with?"
	}
	if !IsAffirmation(message) {
		return "Should I go ahead and cancel this appointment? A simple yes or no works."
	}

	res, err := e.ledger.Cancel(ctx, d.TargetBookingID, "patient request")
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrAlreadyCancelled):
			cctx.ClearTask()
			return "That appointment was already cancelled, so you're all set."
		case errors.Is(err, ledger.ErrNotFound):
			cctx.ClearTask()
			return "I couldn't find that booking anymore. Please double-check your confirmation code."
		default:
			e.logger.Error("cancel failed", "booking_id", d.TargetBookingID, "error", err)
			return e.apology()
		}
	}

	if e.metrics != nil {
		e.metrics.ObserveBooking("cancelled")
	}
	cctx.ClearTask()
	return fmt.Sprintf("Your %s on %s at %s has been cancelled. We hope to see you again soon!",
		res.AppointmentType.DisplayName(), res.Date, res.StartTime)
}

// absorb folds whatever details an utterance contained into the draft.
// Existing fields are only overwritten by newly stated values.
func (e *Engine) absorb(cctx *Context, message string) {
	if message == "" {
		return
	}
	d := &cctx.Draft
	ext := Extract(message, e.now())

	if ext.AppointmentType != "" {
		d.AppointmentType = ext.AppointmentType
	}
	if ext.Date != "" {
		d.Date = ext.Date
	}
	if ext.StartTime != "" {
		d.StartTime = ext.StartTime
	}
	if ext.Name != "" {
		d.Patient.Name = ext.Name
	}
	if ext.Email != "" {
		d.Patient.Email = ext.Email
	}
	if ext.Phone != "" {
		d.Patient.Phone = ext.Phone
	}
}

func (e *Engine) missingInfoPrompt(d *BookingDraft) string {
	var missing []string
	if d.Patient.Name == "" {
		missing = append(missing, "your full name")
	}
	if d.Patient.Email == "" {
		missing = append(missing, "an email address")
	}
	if d.Patient.Phone == "" {
		missing = append(missing, "a phone number")
	}
	if len(missing) == 0 {
		return "I have everything I need."
	}
	return fmt.Sprintf("To finish booking I still need %s.", strings.Join(missing, " and "))
}

// pendingPrompt re-asks the question the active phase is waiting on. Used
// after an FAQ interruption so the task resumes where it left off.
func (e *Engine) pendingPrompt(cctx *Context) string {
	d := &cctx.Draft
	switch cctx.Phase {
	case PhaseUnderstandingNeed:
		if d.AppointmentType == "" {
			return "Now, back to your appointment: what kind of visit do you need?"
		}
		return fmt.Sprintf("Now, back to your %s: do you have a day or time in mind?", d.AppointmentType.DisplayName())
	case PhaseOfferingSlots:
		return "Now, back to your appointment: did any of the times I offered work for you?"
	case PhaseCollectingPatientInfo:
		return "Now, back to your booking. " + e.missingInfoPrompt(d)
	case PhaseConfirmingBooking:
		return "Now, back to your booking: shall I confirm it?"
	case PhaseLookupBooking:
		return "Now, back to your request: what's your 6-character confirmation code?"
	case PhaseConfirmingCancel:
		return "Now, back to your cancellation: should I go ahead?"
	default:
		return "Is there anything else I can help you with?"
	}
}

func (e *Engine) contactPhone() string {
	if e.clinicPhone != "" {
		return e.clinicPhone
	}
	return "the front desk"
}

func (e *Engine) apology() string {
	return fmt.Sprintf("I'm sorry, something went wrong on my end. Please try again in a moment, or call us at %s and we'll sort it out.", e.contactPhone())
}
