package faq

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/harborclinic/scheduling-agent/internal/llm"
)

const classifierPrompt = `Classify this medical clinic question into ONE category. Respond with JSON only.

Categories:
- hours: Questions about opening hours or days the clinic is open
- location: Questions about the clinic address, directions, or parking
- insurance: Questions about insurance plans and coverage
- payment: Questions about visit costs, prices, or payment methods
- cancellation_policy: Questions about cancellation or no-show policies and fees
- first_visit: Questions about what to bring or what happens on a first visit
- covid_policy: Questions about masks, COVID, or visiting while sick
- other: Anything else (booking, rescheduling, symptoms, general questions)

IMPORTANT:
- Requests to actually book, cancel, or reschedule an appointment = other
- Only classify questions ABOUT policies, not requests to act on them

Question: %s

Respond with JSON: {"category": "<category>"}`

// Classifier asks an LLM to map a question onto a knowledge base topic.
// It handles phrasings the regex patterns miss.
type Classifier struct {
	client llm.Client
}

func NewClassifier(client llm.Client) *Classifier {
	if client == nil {
		panic("faq: llm client cannot be nil")
	}
	return &Classifier{client: client}
}

// ClassifyTopic returns the topic for a question, or TopicOther when the
// question is not a policy question or the model's answer is unusable.
func (c *Classifier) ClassifyTopic(ctx context.Context, question string) (Topic, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return TopicOther, nil
	}

	prompt := strings.Replace(classifierPrompt, "%s", question, 1)

	resp, err := c.client.Complete(ctx, llm.Request{
		Messages:  []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: prompt}},
		MaxTokens: 50,
	})
	if err != nil {
		return TopicOther, err
	}

	var result struct {
		Category string `json:"category"`
	}

	// The model may wrap the JSON in extra prose.
	content := strings.TrimSpace(resp.Text)
	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx >= 0 && endIdx > startIdx {
		content = content[startIdx : endIdx+1]
	}

	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return TopicOther, nil
	}

	topic := Topic(result.Category)
	if validTopic(topic) {
		return topic, nil
	}
	return TopicOther, nil
}
