package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

type stubClient struct {
	resp  Response
	err   error
	calls int
}

func (s *stubClient) Complete(_ context.Context, _ Request) (Response, error) {
	s.calls++
	return s.resp, s.err
}

func TestFallbackClientPrimarySucceeds(t *testing.T) {
	primary := &stubClient{resp: Response{Text: "primary"}}
	fallback := &stubClient{resp: Response{Text: "fallback"}}
	client := NewFallbackClient(primary, fallback, logging.New("error"))

	resp, err := client.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "primary" {
		t.Errorf("text = %q, want primary", resp.Text)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestFallbackClientRetriesOnPrimaryFailure(t *testing.T) {
	primary := &stubClient{err: errors.New("quota exceeded")}
	fallback := &stubClient{resp: Response{Text: "fallback"}}
	client := NewFallbackClient(primary, fallback, logging.New("error"))

	resp, err := client.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "fallback" {
		t.Errorf("text = %q, want fallback", resp.Text)
	}
}

func TestFallbackClientNoFallbackConfigured(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	client := NewFallbackClient(&stubClient{err: wantErr}, nil, logging.New("error"))

	if _, err := client.Complete(context.Background(), Request{}); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want the primary error", err)
	}
}
