// Package webchat serves the embedded chat widget over WebSocket. Replies
// are delivered in-band on the open connection, never pushed through an
// external provider.
package webchat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/citaflow/citaflow/internal/conversation"
	"github.com/citaflow/citaflow/internal/messaging"
	"github.com/citaflow/citaflow/pkg/logging"
)

// TurnSubmitter runs one turn and returns its replies.
type TurnSubmitter interface {
	ProcessTurn(ctx context.Context, in conversation.InboundTurn) ([]messaging.Outbound, error)
}

// HistoryReader replays the transcript when a session reconnects.
type HistoryReader interface {
	History(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Interaction, error)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type           string `json:"type"` // "message", "ping"
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "history", "pong", "error"
	Role      string           `json:"role,omitempty"`
	Text      string           `json:"text,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is one transcript entry replayed to a reconnecting widget.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg OutboundMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = websocket.JSON.Send(c.conn, msg)
}

// Handler manages widget connections and routes their messages as turns.
type Handler struct {
	submitter TurnSubmitter
	history   HistoryReader
	logger    *logging.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*wsConn // conversation id -> active connection
}

func NewHandler(submitter TurnSubmitter, history HistoryReader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		submitter: submitter,
		history:   history,
		logger:    logger,
		sessions:  map[uuid.UUID]*wsConn{},
	}
}

// WebSocket returns the http.Handler for the widget endpoint. The
// conversation id arrives as a query parameter set by the widget loader.
func (h *Handler) WebSocket() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, conn.Request())
	})
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	convID, err := uuid.Parse(r.URL.Query().Get("conversation"))
	if err != nil {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "missing or invalid conversation parameter"})
		_ = conn.Close()
		return
	}

	wsc := &wsConn{conn: conn}
	h.register(convID, wsc)
	defer h.unregister(convID, wsc)

	h.replayHistory(r.Context(), convID, wsc)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return
		}

		switch msg.Type {
		case "ping":
			wsc.send(OutboundMessage{Type: "pong"})
		case "message":
			h.handleMessage(r.Context(), convID, wsc, msg.Text)
		default:
			h.logger.Warn("unknown widget message type", "type", msg.Type, "conversation_id", convID)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, convID uuid.UUID, wsc *wsConn, text string) {
	replies, err := h.submitter.ProcessTurn(ctx, conversation.InboundTurn{
		ConversationID: convID,
		Kind:           messaging.KindText,
		Text:           text,
		ReceivedAt:     time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("widget turn failed", "error", err, "conversation_id", convID)
		wsc.send(OutboundMessage{Type: "error", Text: "No pude procesar tu mensaje, intenta de nuevo."})
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, reply := range replies {
		wsc.send(OutboundMessage{
			Type:      "message",
			Role:      "assistant",
			Text:      reply.Body,
			Timestamp: now,
		})
	}
}

func (h *Handler) replayHistory(ctx context.Context, convID uuid.UUID, wsc *wsConn) {
	if h.history == nil {
		return
	}
	entries, err := h.history.History(ctx, convID, 20)
	if err != nil {
		h.logger.Error("loading widget history", "error", err, "conversation_id", convID)
		return
	}
	if len(entries) == 0 {
		return
	}

	msgs := make([]HistoryMessage, len(entries))
	for i, e := range entries {
		msgs[i] = HistoryMessage{
			Role:      string(e.Role),
			Text:      e.Body,
			Timestamp: e.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	wsc.send(OutboundMessage{Type: "history", Messages: msgs})
}

func (h *Handler) register(convID uuid.UUID, wsc *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.sessions[convID]; ok {
		_ = prev.conn.Close()
	}
	h.sessions[convID] = wsc
}

func (h *Handler) unregister(convID uuid.UUID, wsc *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[convID] == wsc {
		delete(h.sessions, convID)
	}
	_ = wsc.conn.Close()
}

// SendToSession pushes a message to the conversation's open widget, if any.
// Used for out-of-turn notifications such as reminders.
func (h *Handler) SendToSession(convID uuid.UUID, msg OutboundMessage) bool {
	h.mu.RLock()
	wsc, ok := h.sessions[convID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	wsc.send(msg)
	return true
}
