// Package router assembles the HTTP surface of the API binary.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/citaflow/citaflow/internal/http/handlers"
	httpmiddleware "github.com/citaflow/citaflow/internal/http/middleware"
	"github.com/citaflow/citaflow/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	WhatsAppWebhook    *handlers.WhatsAppWebhookHandler
	FunctionCalls      *handlers.FunctionCallHandler
	Ops                *handlers.OpsHandler
	WidgetSocket       http.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Webhook rate limit, requests/sec per IP. Zero disables limiting.
	WebhookRate  float64
	WebhookBurst int
}

// New creates the chi router with all routes configured.
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
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", handlers.HealthCheck)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/webhooks", func(wh chi.Router) {
		if cfg.WebhookRate > 0 {
			wh.Use(httpmiddleware.RateLimit(cfg.WebhookRate, cfg.WebhookBurst))
		}
		if cfg.WhatsAppWebhook != nil {
			wh.Post("/whatsapp", cfg.WhatsAppWebhook.HandleInbound)
		}
		if cfg.FunctionCalls != nil {
			wh.Post("/functions", cfg.FunctionCalls.HandleCall)
		}
	})

	if cfg.Ops != nil {
		r.Get("/ops/conversations/{conversationID}/function-failures", cfg.Ops.HandleFunctionFailures)
	}

	if cfg.WidgetSocket != nil {
		r.Handle("/widget/ws", cfg.WidgetSocket)
	}

	return r
}
