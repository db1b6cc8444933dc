package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsHandler(origins ...string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return CORS(origins)(ok)
}

func TestCORSAllowlistedOrigin(t *testing.T) {
	h := corsHandler("https://chat.harborclinic.example")

	req := httptest.NewRequest(http.MethodGet, "/api/chat/start", nil)
	req.Header.Set("Origin", "https://chat.harborclinic.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.harborclinic.example" {
		t.Errorf("allow-origin = %q, want the request origin echoed", got)
	}
	if got := rec.Header().Get("Vary"); got != "Origin" {
		t.Errorf("vary = %q, want Origin", got)
	}
}

func TestCORSUnlistedOriginGetsNoHeaders(t *testing.T) {
	h := corsHandler("https://chat.harborclinic.example")

	req := httptest.NewRequest(http.MethodGet, "/api/chat/start", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q, want empty for unlisted origin", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, the request itself still proceeds", rec.Code)
	}
}

func TestCORSWildcardEchoesAnyOrigin(t *testing.T) {
	h := corsHandler("*")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example" {
		t.Errorf("allow-origin = %q, want the origin echoed under wildcard", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	reached := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})
	h := CORS([]string{"https://chat.harborclinic.example"})(inner)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/message", nil)
	req.Header.Set("Origin", "https://chat.harborclinic.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if reached {
		t.Error("preflight reached the inner handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("preflight response has no allow-methods header")
	}
}

func TestCORSNoOriginHeader(t *testing.T) {
	h := corsHandler("https://chat.harborclinic.example")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q, want none for a non-browser request", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
