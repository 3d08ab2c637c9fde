package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/dispatch"
	"github.com/citaflow/citaflow/internal/leads"
	"github.com/citaflow/citaflow/internal/messaging"
	observemetrics "github.com/citaflow/citaflow/internal/observability/metrics"
	"github.com/citaflow/citaflow/internal/webchat"
	"github.com/citaflow/citaflow/pkg/logging"
)

type callDispatcher interface {
	Dispatch(ctx context.Context, cc dispatch.CommonContext, call dispatch.Call) ([]messaging.Outbound, error)
}

type conversationLoader interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*leads.Conversation, error)
}

type widgetPusher interface {
	SendToSession(convID uuid.UUID, msg webchat.OutboundMessage) bool
}

// functionCallRequest is the execution-record contract the AI orchestration
// layer posts when the model emits a structured call.
type functionCallRequest struct {
	ConversationID uuid.UUID      `json:"conversation_id"`
	FunctionName   string         `json:"function_name"`
	Arguments      map[string]any `json:"arguments"`
}

type functionCallReply struct {
	Kind     messaging.Kind `json:"kind"`
	Body     string         `json:"body,omitempty"`
	MediaURL string         `json:"media_url,omitempty"`
}

type functionCallResponse struct {
	Delivered bool                `json:"delivered"`
	Replies   []functionCallReply `json:"replies"`
}

// FunctionCallHandler executes model-emitted function calls against the
// routine registry and returns the resulting messages. Push channels are
// delivered to before the response is written; widget replies come back
// in the response body for the caller to relay.
type FunctionCallHandler struct {
	dispatcher callDispatcher
	loader     conversationLoader
	widget     widgetPusher
	logger     *logging.Logger
	metrics    *observemetrics.TurnMetrics
	token      string
}

type FunctionCallConfig struct {
	Dispatcher callDispatcher
	Loader     conversationLoader
	Widget     widgetPusher
	Logger     *logging.Logger
	Metrics    *observemetrics.TurnMetrics
	Token      string
}

func NewFunctionCallHandler(cfg FunctionCallConfig) *FunctionCallHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &FunctionCallHandler{
		dispatcher: cfg.Dispatcher,
		loader:     cfg.Loader,
		widget:     cfg.Widget,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		token:      cfg.Token,
	}
}

// HandleCall runs one function call end to end.
func (h *FunctionCallHandler) HandleCall(w http.ResponseWriter, r *http.Request) {
	if h.token != "" {
		got := r.Header.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			h.logger.Warn("function call token mismatch", "remote_ip", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var req functionCallRequest
	if err := json.Unmarshal(body, &req); err != nil || req.FunctionName == "" || req.ConversationID == uuid.Nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	conv, err := h.loader.GetConversation(r.Context(), req.ConversationID)
	if err != nil {
		if errors.Is(err, leads.ErrConversationNotFound) {
			http.Error(w, "unknown conversation", http.StatusNotFound)
			return
		}
		h.logger.Error("loading conversation", "error", err, "conversation_id", req.ConversationID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	cc := dispatch.CommonContext{
		ConversationID: conv.ID,
		BusinessID:     conv.BusinessID,
		LeadID:         conv.LeadID,
		AssistantID:    conv.AssistantID,
		Channel:        conv.Channel,
		Recipient:      conv.Recipient,
		Sender:         conv.Sender,
	}
	out, err := h.dispatcher.Dispatch(r.Context(), cc, dispatch.Call{
		Name: req.FunctionName,
		Args: req.Arguments,
	})
	if err != nil {
		h.logger.Error("dispatching function call", "error", err, "function", req.FunctionName)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	delivered := conv.Channel.NeedsPush()
	if !delivered && h.widget != nil {
		// A connected widget session gets the replies over its socket; the
		// response body still carries them for the orchestration layer.
		ts := time.Now().UTC().Format(time.RFC3339)
		for _, item := range out {
			if item.Kind != messaging.KindText {
				continue
			}
			if h.widget.SendToSession(conv.ID, webchat.OutboundMessage{
				Type:      "message",
				Role:      "assistant",
				Text:      item.Body,
				Timestamp: ts,
			}) {
				delivered = true
			}
		}
	}

	resp := functionCallResponse{Delivered: delivered}
	for _, item := range out {
		resp.Replies = append(resp.Replies, functionCallReply{
			Kind:     item.Kind,
			Body:     item.Body,
			MediaURL: item.MediaURL,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("writing function call response", "error", err)
	}
}
