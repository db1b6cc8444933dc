// Package faq answers clinic policy questions so routine lookups never
// round-trip through the full conversation model. Questions it cannot answer
// fall through to the caller.
package faq

import (
	"context"
	"strings"

	"github.com/harborclinic/scheduling-agent/internal/llm"
	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

// Answer is a canned clinic-policy answer. A zero-value Answer (empty Text)
// means the question should go to the full model instead.
type Answer struct {
	Text       string
	Topic      Topic
	Confidence float64
}

// Answerer resolves a clinic policy question.
type Answerer interface {
	Answer(ctx context.Context, question string) (Answer, error)
}

// faqKeywords mark messages that are probably about clinic logistics rather
// than scheduling.
var faqKeywords = []string{
	"insurance", "cost", "price", "payment", "parking", "location",
	"address", "hours", "open", "closed", "what to bring", "bring",
	"policy", "covid", "mask", "documents",
	"id", "required", "first visit", "directions", "how to get",
}

var questionMarkers = []string{
	"?", "what", "where", "when", "how", "do you", "can i", "is there",
}

// IsFAQ reports whether a message looks like a clinic policy question. It is
// deliberately cheap; a false negative just means the model handles the
// question itself.
func IsFAQ(message string) bool {
	lower := strings.ToLower(message)

	isQuestion := false
	for _, q := range questionMarkers {
		if strings.Contains(lower, q) {
			isQuestion = true
			break
		}
	}
	if !isQuestion {
		return false
	}

	for _, kw := range faqKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Service answers policy questions from the knowledge base, falling back to
// an LLM topic classifier for phrasings the patterns miss. The classifier is
// optional; without one, unmatched questions simply fall through.
type Service struct {
	classifier *Classifier
	logger     *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClassifier adds an LLM topic classifier for questions the knowledge
// base patterns do not match.
func WithClassifier(client llm.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.classifier = NewClassifier(client)
		}
	}
}

// NewService builds the FAQ answering service.
func NewService(logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer resolves a policy question. The knowledge base is consulted first;
// if its patterns and keywords miss and a classifier is configured, the
// classifier picks a topic. Classifier errors are logged and swallowed so an
// LLM outage degrades to a fall-through, never a failed turn.
func (s *Service) Answer(ctx context.Context, question string) (Answer, error) {
	if ans, ok := lookupKnowledge(question); ok {
		return ans, nil
	}

	if s.classifier == nil {
		return Answer{}, nil
	}

	topic, err := s.classifier.ClassifyTopic(ctx, question)
	if err != nil {
		s.logger.Warn("faq classifier unavailable", "error", err.Error())
		return Answer{}, nil
	}
	if topic == TopicOther {
		return Answer{}, nil
	}
	return Answer{
		Text:       responseForTopic(topic),
		Topic:      topic,
		Confidence: classifierConfidence,
	}, nil
}

var _ Answerer = (*Service)(nil)
