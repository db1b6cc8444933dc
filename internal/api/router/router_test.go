package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harborclinic/scheduling-agent/internal/conversation"
	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

type stubConversationService struct{}

func (stubConversationService) StartConversation(_ context.Context, _ conversation.StartRequest) (*conversation.Response, error) {
	return &conversation.Response{
		ConversationID: "conv-1",
		Message:        "Hello!",
		Phase:          conversation.PhaseIdle,
		Timestamp:      time.Now(),
	}, nil
}

func (stubConversationService) ProcessMessage(_ context.Context, req conversation.MessageRequest) (*conversation.Response, error) {
	return &conversation.Response{
		ConversationID: req.ConversationID,
		Message:        "Noted.",
		Phase:          conversation.PhaseUnderstandingNeed,
		Timestamp:      time.Now(),
	}, nil
}

func (stubConversationService) GetHistory(_ context.Context, _ string) ([]conversation.Message, error) {
	return nil, conversation.ErrUnknownSession
}

func newTestConfig() *Config {
	logger := logging.New("error")
	return &Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(stubConversationService{}, logger),
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := New(newTestConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q, want ok payload", rec.Body.String())
	}
}

func TestChatRoutesAreWired(t *testing.T) {
	handler := New(newTestConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/chat/start", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	handler := New(newTestConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestChatRateLimitApplies(t *testing.T) {
	cfg := newTestConfig()
	cfg.ChatRatePerSecond = 0.001
	cfg.ChatBurst = 1
	handler := New(cfg)

	call := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/chat/start", nil)
		req.Header.Set("X-Real-Ip", "10.1.2.3")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := call(); code != http.StatusCreated {
		t.Fatalf("first request = %d, want %d", code, http.StatusCreated)
	}
	if code := call(); code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want %d", code, http.StatusTooManyRequests)
	}
}
