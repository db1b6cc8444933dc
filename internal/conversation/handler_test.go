package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

type stubService struct {
	startResp   *Response
	messageResp *Response
	history     []Message
	err         error

	gotMessage MessageRequest
}

func (s *stubService) StartConversation(_ context.Context, _ StartRequest) (*Response, error) {
	return s.startResp, s.err
}

func (s *stubService) ProcessMessage(_ context.Context, req MessageRequest) (*Response, error) {
	s.gotMessage = req
	return s.messageResp, s.err
}

func (s *stubService) GetHistory(_ context.Context, _ string) ([]Message, error) {
	return s.history, s.err
}

func newTestRouter(svc Service) http.Handler {
	h := NewHandler(svc, logging.New("error"))
	r := chi.NewRouter()
	r.Post("/api/chat/start", h.Start)
	r.Post("/api/chat/message", h.Message)
	r.Get("/api/chat/{conversationID}/history", h.History)
	return r
}

func TestHandlerStart(t *testing.T) {
	svc := &stubService{
		startResp: &Response{
			ConversationID: "conv-1",
			Message:        "Hello! How can I help?",
			Phase:          PhaseIdle,
			Timestamp:      time.Now(),
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/start", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ConversationID != "conv-1" {
		t.Errorf("conversation id = %q, want conv-1", resp.ConversationID)
	}
}

func TestHandlerMessage(t *testing.T) {
	svc := &stubService{
		messageResp: &Response{
			ConversationID: "conv-1",
			Message:        "Here's what's open tomorrow.",
			Phase:          PhaseOfferingSlots,
			Timestamp:      time.Now(),
		},
	}
	router := newTestRouter(svc)

	body, _ := json.Marshal(MessageRequest{ConversationID: "conv-1", Message: "tomorrow morning"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.gotMessage.Message != "tomorrow morning" {
		t.Errorf("service got %q, want the posted message", svc.gotMessage.Message)
	}
}

func TestHandlerMessageValidation(t *testing.T) {
	router := newTestRouter(&stubService{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"conversation_id": `},
		{"missing fields", `{"conversation_id": "", "message": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat/message", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandlerHistory(t *testing.T) {
	svc := &stubService{
		history: []Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conv-1/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		ConversationID string    `json:"conversation_id"`
		Messages       []Message `json:"messages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(resp.Messages))
	}
}

func TestHandlerHistoryUnknownConversation(t *testing.T) {
	svc := &stubService{err: ErrUnknownSession}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/nope/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandlerHistoryWrapsUnknownSession(t *testing.T) {
	svc := &stubService{err: errors.New("redis: connection refused")}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conv-1/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
