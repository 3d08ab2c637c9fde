package webchat

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/citaflow/citaflow/internal/conversation"
	"github.com/citaflow/citaflow/internal/messaging"
)

type stubSubmitter struct {
	replies []messaging.Outbound
	seen    []conversation.InboundTurn
}

func (s *stubSubmitter) ProcessTurn(_ context.Context, in conversation.InboundTurn) ([]messaging.Outbound, error) {
	s.seen = append(s.seen, in)
	return s.replies, nil
}

type stubHistory struct {
	entries []conversation.Interaction
}

func (s *stubHistory) History(context.Context, uuid.UUID, int) ([]conversation.Interaction, error) {
	return s.entries, nil
}

func dialWidget(t *testing.T, h *Handler, convID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h.WebSocket())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?conversation=" + convID
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	var msg OutboundMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func TestWidgetRoundTrip(t *testing.T) {
	sub := &stubSubmitter{replies: []messaging.Outbound{
		{Kind: messaging.KindText, Body: "¿Para qué día y a qué hora te gustaría tu cita?"},
	}}
	h := NewHandler(sub, &stubHistory{}, nil)

	convID := uuid.New()
	conn := dialWidget(t, h, convID.String())

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "quiero agendar"}))

	msg := receive(t, conn)
	assert.Equal(t, "message", msg.Type)
	assert.Equal(t, "assistant", msg.Role)
	assert.Contains(t, msg.Text, "qué hora")

	require.Len(t, sub.seen, 1)
	assert.Equal(t, convID, sub.seen[0].ConversationID)
	assert.Equal(t, "quiero agendar", sub.seen[0].Text)
}

func TestWidgetReplaysHistory(t *testing.T) {
	hist := &stubHistory{entries: []conversation.Interaction{
		{Role: conversation.RoleUser, Body: "hola", CreatedAt: time.Now().UTC()},
		{Role: conversation.RoleAssistant, Body: "¡Hola! ¿En qué puedo ayudarte?", CreatedAt: time.Now().UTC()},
	}}
	h := NewHandler(&stubSubmitter{}, hist, nil)

	conn := dialWidget(t, h, uuid.NewString())

	msg := receive(t, conn)
	assert.Equal(t, "history", msg.Type)
	require.Len(t, msg.Messages, 2)
	assert.Equal(t, "user", msg.Messages[0].Role)
	assert.Equal(t, "assistant", msg.Messages[1].Role)
}

func TestWidgetPing(t *testing.T) {
	h := NewHandler(&stubSubmitter{}, &stubHistory{}, nil)
	conn := dialWidget(t, h, uuid.NewString())

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	msg := receive(t, conn)
	assert.Equal(t, "pong", msg.Type)
}

func TestWidgetRejectsMissingConversation(t *testing.T) {
	h := NewHandler(&stubSubmitter{}, &stubHistory{}, nil)
	srv := httptest.NewServer(h.WebSocket())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	msg := receive(t, conn)
	assert.Equal(t, "error", msg.Type)
}

func TestSendToSession(t *testing.T) {
	h := NewHandler(&stubSubmitter{}, &stubHistory{}, nil)
	convID := uuid.New()
	conn := dialWidget(t, h, convID.String())

	// Session registration races the dial; wait for it.
	require.Eventually(t, func() bool {
		return h.SendToSession(convID, OutboundMessage{Type: "message", Role: "assistant", Text: "recordatorio"})
	}, 2*time.Second, 10*time.Millisecond)

	msg := receive(t, conn)
	assert.Equal(t, "recordatorio", msg.Text)

	assert.False(t, h.SendToSession(uuid.New(), OutboundMessage{Type: "message"}), "unknown session must report false")
}
