package conversation

import (
	"context"
	"time"
)

// Service describes how the conversation engine should behave.
type Service interface {
	StartConversation(ctx context.Context, req StartRequest) (*Response, error)
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
	GetHistory(ctx context.Context, conversationID string) ([]Message, error)
}

// Message represents a single message in a conversation transcript.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// StartRequest represents the minimal data we need to open a conversation.
type StartRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
}

// MessageRequest represents a single turn in the conversation.
type MessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// Response is a simple DTO returned to the API layer.
type Response struct {
	ConversationID string    `json:"conversation_id"`
	Message        string    `json:"message"`
	Phase          Phase     `json:"phase"`
	Timestamp      time.Time `json:"timestamp"`
}
