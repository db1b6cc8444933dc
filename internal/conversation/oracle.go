package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harborclinic/scheduling-agent/internal/llm"
)

// How much transcript the model sees per turn.
const historyWindow = 20

const systemPromptTemplate = `You are the friendly scheduling assistant for %s.

You receive the patient's message and a draft reply produced by the clinic's
scheduling system. The draft is authoritative: every date, time, code, and
policy detail in it is correct. Rephrase it naturally and warmly, keeping
ALL facts exactly as stated. Never invent availability, prices, or policies.

If you genuinely need more data to phrase the reply, you may call a tool by
responding with JSON only, in the form
{"tool": "<name>", "args": {...}}
Available tools:
- checkAvailability(date, appointmentType)
- getNextAvailableSlots(appointmentType, numDays)
- bookAppointment(appointmentType, date, startTime, patientName, patientEmail, patientPhone, reason)
- cancelAppointment(bookingId, reason)
- rescheduleAppointment(bookingId, newDate, newStartTime)
- getAppointmentByConfirmation(code)
Otherwise respond with plain text for the patient. Keep replies concise.`

// polish has the language model rephrase the deterministic draft reply,
// running any tool calls it requests. The draft already carries the correct
// facts, so any oracle failure simply returns the draft unchanged; a model
// outage never breaks a turn.
func (e *Engine) polish(ctx context.Context, cctx *Context, userMsg, draft string) string {
	if e.client == nil {
		return draft
	}

	system := fmt.Sprintf(systemPromptTemplate, e.clinicName)

	messages := historyTail(cctx.History, historyWindow)
	messages = append(messages,
		llm.ChatMessage{Role: llm.ChatRoleUser, Content: userMsg},
		llm.ChatMessage{Role: llm.ChatRoleSystem, Content: "Draft reply to rephrase:\n" + draft},
	)

	for i := 0; i < maxToolIterationsPerTurn; i++ {
		resp, err := e.client.Complete(ctx, llm.Request{
			Model:       e.modelID,
			System:      []string{system},
			Messages:    messages,
			MaxTokens:   600,
			Temperature: 0.4,
		})
		if err != nil {
			e.logger.Warn("oracle unavailable, using draft reply", "error", err.Error())
			return draft
		}

		call, ok := parseToolCall(resp.Text)
		if !ok {
			if text := strings.TrimSpace(resp.Text); text != "" {
				return text
			}
			return draft
		}

		result := e.executeTool(ctx, call)
		payload, err := json.Marshal(result)
		if err != nil {
			e.logger.Error("failed to encode tool result", "tool", call.Name, "error", err)
			return draft
		}
		messages = append(messages,
			llm.ChatMessage{Role: llm.ChatRoleAssistant, Content: resp.Text},
			llm.ChatMessage{Role: llm.ChatRoleUser, Content: "Tool result: " + string(payload)},
		)
	}

	e.logger.Warn("oracle exceeded tool iteration budget, using draft reply")
	return draft
}

func historyTail(history []llm.ChatMessage, n int) []llm.ChatMessage {
	if len(history) <= n {
		return append([]llm.ChatMessage(nil), history...)
	}
	return append([]llm.ChatMessage(nil), history[len(history)-n:]...)
}
