package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/dispatch"
	"github.com/citaflow/citaflow/internal/intent"
	"github.com/citaflow/citaflow/internal/leads"
	"github.com/citaflow/citaflow/internal/messaging"
	observemetrics "github.com/citaflow/citaflow/internal/observability/metrics"
	"github.com/citaflow/citaflow/internal/tasks"
	"github.com/citaflow/citaflow/pkg/logging"
)

// ErrTurnInProgress means another worker holds the conversation's turn
// lock. The queue layer leaves the message in place so it is redelivered
// once the running turn finishes.
var ErrTurnInProgress = errors.New("conversation: turn already in progress")

// InboundTurn is one user message entering the pipeline.
type InboundTurn struct {
	ConversationID uuid.UUID
	Kind           messaging.Kind
	Text           string
	ReceivedAt     time.Time
}

type turnLocker interface {
	Acquire(ctx context.Context, conversationID uuid.UUID) (token string, ok bool, err error)
	Release(ctx context.Context, conversationID uuid.UUID, token string) error
}

type directory interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*leads.Conversation, error)
	GetLead(ctx context.Context, id uuid.UUID) (*leads.Lead, error)
}

type taskHandler interface {
	HandleTurn(ctx context.Context, task *tasks.Task, turn tasks.Turn) ([]string, error)
}

type intentDetector interface {
	Detect(ctx context.Context, text string) (tasks.Name, bool)
}

type transcript interface {
	Append(ctx context.Context, conversationID uuid.UUID, role InteractionRole, body string) error
}

// Deliverer pushes replies out through the channel-aware delivery path.
type Deliverer interface {
	DeliverText(ctx context.Context, cc dispatch.CommonContext, texts []string) ([]messaging.Outbound, error)
}

// Engine runs one conversation turn end to end: lock, route to the active
// task or the intent detector, persist the transcript, deliver replies.
type Engine struct {
	lock       turnLocker
	dir        directory
	taskStore  tasks.TaskStore
	handler    taskHandler
	detector   intentDetector
	transcript transcript
	deliverer  Deliverer
	logger     *logging.Logger
	metrics    *observemetrics.TurnMetrics
	now        func() time.Time
}

func NewEngine(lock turnLocker, dir directory, taskStore tasks.TaskStore, handler taskHandler, detector intentDetector, transcript transcript, deliverer Deliverer, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		lock:       lock,
		dir:        dir,
		taskStore:  taskStore,
		handler:    handler,
		detector:   detector,
		transcript: transcript,
		deliverer:  deliverer,
		logger:     logger,
		now:        time.Now,
	}
}

// WithMetrics attaches turn metrics. Safe to skip; a nil collector is a
// no-op.
func (e *Engine) WithMetrics(m *observemetrics.TurnMetrics) *Engine {
	e.metrics = m
	return e
}

// Process handles one inbound turn and returns the outbound items. Widget
// callers relay the return value to the connected session; push channels
// have already been delivered to by the time Process returns.
func (e *Engine) Process(ctx context.Context, in InboundTurn) ([]messaging.Outbound, error) {
	started := e.now()
	out, channel, err := e.process(ctx, in)
	if channel == "" {
		channel = "unknown"
	}
	status := "completed"
	switch {
	case errors.Is(err, ErrTurnInProgress):
		status = "busy"
	case err != nil:
		status = "failed"
	}
	e.metrics.ObserveTurn(channel, status)
	e.metrics.ObserveTurnLatency(channel, e.now().Sub(started).Seconds())
	return out, err
}

func (e *Engine) process(ctx context.Context, in InboundTurn) ([]messaging.Outbound, string, error) {
	token, ok, err := e.lock.Acquire(ctx, in.ConversationID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrTurnInProgress
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.lock.Release(releaseCtx, in.ConversationID, token); err != nil {
			e.logger.Error("releasing turn lock", "error", err, "conversation_id", in.ConversationID)
		}
	}()

	conv, err := e.dir.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, "", fmt.Errorf("conversation: loading conversation: %w", err)
	}
	channel := string(conv.Channel)
	lead, err := e.dir.GetLead(ctx, conv.LeadID)
	if err != nil {
		return nil, channel, fmt.Errorf("conversation: loading lead: %w", err)
	}

	if in.Kind == messaging.KindText {
		if err := e.transcript.Append(ctx, conv.ID, RoleUser, in.Text); err != nil {
			e.logger.Error("storing inbound interaction", "error", err, "conversation_id", conv.ID)
		}
	}

	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = e.now()
	}
	turn := tasks.Turn{
		Conversation: *conv,
		Lead:         *lead,
		Message:      tasks.Message{Kind: in.Kind, Text: in.Text},
		Now:          in.ReceivedAt,
	}

	replies, err := e.route(ctx, conv, turn)
	if err != nil {
		return nil, channel, err
	}
	if len(replies) == 0 {
		return nil, channel, nil
	}

	for _, r := range replies {
		if err := e.transcript.Append(ctx, conv.ID, RoleAssistant, r); err != nil {
			e.logger.Error("storing outbound interaction", "error", err, "conversation_id", conv.ID)
		}
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
	out, err := e.deliverer.DeliverText(ctx, cc, replies)
	return out, channel, err
}

// route hands the turn to the active task, or classifies intent and starts
// one. A freshly created task consumes the same message that triggered it.
func (e *Engine) route(ctx context.Context, conv *leads.Conversation, turn tasks.Turn) ([]string, error) {
	task, err := e.taskStore.Get(ctx, conv.ID)
	switch {
	case err == nil:
		return e.handler.HandleTurn(ctx, task, turn)
	case errors.Is(err, tasks.ErrNoActiveTask):
		// fall through to intent detection
	default:
		return nil, fmt.Errorf("conversation: loading task: %w", err)
	}

	if turn.Message.Kind != messaging.KindText {
		return nil, nil
	}

	name, ok := e.detector.Detect(ctx, turn.Message.Text)
	if !ok {
		return []string{intent.FallbackMenu}, nil
	}

	task, err = e.taskStore.Create(ctx, conv.ID, name)
	if err != nil {
		return nil, fmt.Errorf("conversation: creating task: %w", err)
	}
	e.metrics.ObserveTaskStarted(string(name))
	return e.handler.HandleTurn(ctx, task, turn)
}
