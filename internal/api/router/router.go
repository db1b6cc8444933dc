// Package router assembles the HTTP surface of the scheduling agent.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harborclinic/scheduling-agent/internal/conversation"
	httpmiddleware "github.com/harborclinic/scheduling-agent/internal/http/middleware"
	"github.com/harborclinic/scheduling-agent/internal/ledger"
	"github.com/harborclinic/scheduling-agent/internal/observability/metrics"
	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	WSHandler           *conversation.WSHandler
	AppointmentsHandler *ledger.Handler
	MetricsHandler      http.Handler
	HTTPMetrics         *metrics.HTTPMetrics
	CORSAllowedOrigins  []string

	// Chat endpoints sit behind a per-IP rate limit so one client can't
	// monopolize the model. Zero disables limiting.
	ChatRatePerSecond float64
	ChatBurst         int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger, cfg.HTTPMetrics))
	}

	// Public endpoints.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ConversationHandler != nil {
		r.Route("/api/chat", func(chat chi.Router) {
			if cfg.ChatRatePerSecond > 0 {
				chat.Use(httpmiddleware.RateLimit(cfg.ChatRatePerSecond, cfg.ChatBurst))
			}
			chat.Post("/start", cfg.ConversationHandler.Start)
			chat.Post("/message", cfg.ConversationHandler.Message)
			chat.Get("/{conversationID}/history", cfg.ConversationHandler.History)
		})
	}

	if cfg.WSHandler != nil {
		r.Get("/ws/chat", cfg.WSHandler.Chat)
	}

	if cfg.AppointmentsHandler != nil {
		r.Route("/api/appointments", func(appt chi.Router) {
			appt.Get("/availability", cfg.AppointmentsHandler.Availability)
			appt.Route("/{confirmationCode}", func(code chi.Router) {
				code.Get("/", cfg.AppointmentsHandler.Get)
				code.Post("/cancel", cfg.AppointmentsHandler.Cancel)
				code.Post("/reschedule", cfg.AppointmentsHandler.Reschedule)
			})
		})
	}

	return r
}
