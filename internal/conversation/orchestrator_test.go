package conversation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citaflow/citaflow/internal/messaging"
)

type stubProcessor struct {
	mu      sync.Mutex
	calls   int32
	busyFor int32 // first N calls answer ErrTurnInProgress
	replies []messaging.Outbound
	seen    []InboundTurn
}

func (s *stubProcessor) Process(_ context.Context, in InboundTurn) ([]messaging.Outbound, error) {
	n := atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	s.seen = append(s.seen, in)
	s.mu.Unlock()
	if n <= s.busyFor {
		return nil, ErrTurnInProgress
	}
	return s.replies, nil
}

func newTestOrchestrator(t *testing.T, p *stubProcessor) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(p, NewMemoryQueue(16), nil,
		WithWorkerCount(1),
		WithReceiveWaitSeconds(1),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

func TestProcessTurnRoundTrip(t *testing.T) {
	p := &stubProcessor{replies: []messaging.Outbound{{Kind: messaging.KindText, Body: "hola"}}}
	o := newTestOrchestrator(t, p)

	convID := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	replies, err := o.ProcessTurn(ctx, InboundTurn{
		ConversationID: convID,
		Kind:           messaging.KindText,
		Text:           "quiero agendar",
	})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "hola", replies[0].Body)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.seen, 1)
	assert.Equal(t, convID, p.seen[0].ConversationID)
	assert.Equal(t, "quiero agendar", p.seen[0].Text)
}

func TestEnqueueTurnFireAndForget(t *testing.T) {
	p := &stubProcessor{}
	o := newTestOrchestrator(t, p)

	require.NoError(t, o.EnqueueTurn(context.Background(), InboundTurn{
		ConversationID: uuid.New(),
		Kind:           messaging.KindText,
		Text:           "hola",
	}))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&p.calls) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestBusyTurnIsRequeued(t *testing.T) {
	p := &stubProcessor{busyFor: 1, replies: []messaging.Outbound{{Kind: messaging.KindText, Body: "lista"}}}
	o := newTestOrchestrator(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	replies, err := o.ProcessTurn(ctx, InboundTurn{
		ConversationID: uuid.New(),
		Kind:           messaging.KindText,
		Text:           "qué citas tengo",
	})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "lista", replies[0].Body)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&p.calls), int32(2), "busy turn must be retried")
}

func TestShutdownUnblocksPendingCallers(t *testing.T) {
	// A processor that never answers in time: simulate by holding the
	// busy path forever so the caller stays pending.
	p := &stubProcessor{busyFor: 1 << 30}
	o := NewOrchestrator(p, NewMemoryQueue(16), nil, WithWorkerCount(1), WithReceiveWaitSeconds(1))

	errCh := make(chan error, 1)
	go func() {
		_, err := o.ProcessTurn(context.Background(), InboundTurn{ConversationID: uuid.New(), Kind: messaging.KindText, Text: "hola"})
		errCh <- err
	}()

	time.Sleep(100 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, o.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrOrchestratorClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending caller was not released on shutdown")
	}
}
