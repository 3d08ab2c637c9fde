package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/citaflow/citaflow/internal/conversation"
	"github.com/citaflow/citaflow/internal/leads"
	"github.com/citaflow/citaflow/internal/messaging"
	observemetrics "github.com/citaflow/citaflow/internal/observability/metrics"
	"github.com/citaflow/citaflow/pkg/logging"
)

type turnPublisher interface {
	EnqueueTurn(ctx context.Context, in conversation.InboundTurn) error
}

type conversationResolver interface {
	GetConversationByAddress(ctx context.Context, channel messaging.Channel, recipient string) (*leads.Conversation, error)
}

type processedTracker interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// whatsappEvent is the provider's inbound webhook payload.
type whatsappEvent struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	MediaURL  string `json:"media_url"`
	Timestamp string `json:"timestamp"`
}

// WhatsAppWebhookHandler accepts inbound WhatsApp messages and enqueues
// them as conversation turns. It always answers quickly; the turn itself
// runs on the worker pool.
type WhatsAppWebhookHandler struct {
	publisher turnPublisher
	resolver  conversationResolver
	processed processedTracker
	logger    *logging.Logger
	metrics   *observemetrics.TurnMetrics
	token     string
}

type WhatsAppWebhookConfig struct {
	Publisher turnPublisher
	Resolver  conversationResolver
	Processed processedTracker
	Logger    *logging.Logger
	Metrics   *observemetrics.TurnMetrics
	Token     string
}

func NewWhatsAppWebhookHandler(cfg WhatsAppWebhookConfig) *WhatsAppWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{
		publisher: cfg.Publisher,
		resolver:  cfg.Resolver,
		processed: cfg.Processed,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		token:     cfg.Token,
	}
}

// HandleInbound processes one provider webhook delivery.
func (h *WhatsAppWebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if h.token != "" {
		got := r.Header.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			h.logger.Warn("webhook token mismatch", "remote_ip", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var evt whatsappEvent
	if err := json.Unmarshal(body, &evt); err != nil || evt.MessageID == "" || evt.From == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	first, err := h.processed.MarkProcessed(r.Context(), "whatsapp", evt.MessageID)
	if err != nil {
		h.logger.Error("dedupe lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if !first {
		// Provider retry of an already-processed delivery.
		w.WriteHeader(http.StatusOK)
		return
	}

	conv, err := h.resolver.GetConversationByAddress(r.Context(), messaging.ChannelWhatsApp, evt.From)
	if err != nil {
		if errors.Is(err, leads.ErrConversationNotFound) {
			h.logger.Warn("inbound from unknown number", "from", evt.From)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("resolving conversation", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	turn := conversation.InboundTurn{
		ConversationID: conv.ID,
		Kind:           parseKind(evt.Type),
		Text:           evt.Text,
		ReceivedAt:     parseTimestamp(evt.Timestamp),
	}
	if err := h.publisher.EnqueueTurn(r.Context(), turn); err != nil {
		h.logger.Error("enqueueing turn", "error", err, "conversation_id", conv.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveTurn(string(messaging.ChannelWhatsApp), "accepted")
	w.WriteHeader(http.StatusAccepted)
}

func parseKind(s string) messaging.Kind {
	switch messaging.Kind(strings.ToLower(strings.TrimSpace(s))) {
	case messaging.KindImage:
		return messaging.KindImage
	case messaging.KindVideo:
		return messaging.KindVideo
	case messaging.KindDocument:
		return messaging.KindDocument
	case messaging.KindAudio:
		return messaging.KindAudio
	default:
		return messaging.KindText
	}
}

func parseTimestamp(s string) time.Time {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Now().UTC()
}

// HealthCheck reports liveness for load balancers.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "citaflow-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
