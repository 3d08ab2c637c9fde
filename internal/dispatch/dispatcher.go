package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/messaging"
	observemetrics "github.com/citaflow/citaflow/internal/observability/metrics"
	"github.com/citaflow/citaflow/pkg/logging"
)

const (
	replyStillProcessing = "Sigo procesando tu solicitud, dame un momento por favor. 🙏"
	replyInvalidRequest  = "No pude procesar esa solicitud. ¿Me lo puedes decir de otra forma?"
)

// Call is one model-emitted function invocation.
type Call struct {
	Name string
	Args map[string]any
}

// Recorder persists one execution record per dispatched call.
type Recorder interface {
	Record(ctx context.Context, rec ExecutionRecord) error
}

// Transcript stores the user-facing replies a dispatched call produces, so
// function-call turns land in the same conversation history as task turns.
type Transcript interface {
	AppendAssistant(ctx context.Context, conversationID uuid.UUID, body string) error
}

// Dispatcher validates calls against their schema, runs the routine, writes
// the audit record, and delivers the resulting messages.
type Dispatcher struct {
	registry   *Registry
	recorder   Recorder
	gateway    messaging.Gateway
	transcript Transcript
	delay      time.Duration
	logger     *logging.Logger
	metrics    *observemetrics.TurnMetrics
	now        func() time.Time
}

func NewDispatcher(registry *Registry, recorder Recorder, gateway messaging.Gateway, mediaDelay time.Duration, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		registry: registry,
		recorder: recorder,
		gateway:  gateway,
		delay:    mediaDelay,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMetrics attaches execution counters. A nil collector is a no-op.
func (d *Dispatcher) WithMetrics(m *observemetrics.TurnMetrics) *Dispatcher {
	d.metrics = m
	return d
}

// WithTranscript attaches the conversation history store.
func (d *Dispatcher) WithTranscript(t Transcript) *Dispatcher {
	d.transcript = t
	return d
}

// Dispatch runs one call end to end and returns the outbound items. When
// the conversation channel needs push delivery the items are also sent
// through the gateway before returning; widget sessions consume the return
// value in-band.
func (d *Dispatcher) Dispatch(ctx context.Context, cc CommonContext, call Call) ([]messaging.Outbound, error) {
	started := d.now()
	rec := ExecutionRecord{
		ConversationID: cc.ConversationID,
		FunctionName:   call.Name,
		Args:           call.Args,
	}

	reg, ok := d.registry.lookup(call.Name)
	if !ok {
		d.logger.Warn("unknown function requested", "function", call.Name, "conversation_id", cc.ConversationID)
		rec.Status = ExecutionUnknown
		d.record(ctx, rec, started)
		return d.finish(ctx, cc, []messaging.Outbound{textReply(cc, replyStillProcessing)})
	}

	args, err := reg.schema.Validate(call.Args)
	if err != nil {
		d.logger.Warn("function arguments rejected", "function", call.Name, "error", err)
		rec.Status = ExecutionRejected
		rec.Error = err.Error()
		d.record(ctx, rec, started)
		return d.finish(ctx, cc, []messaging.Outbound{textReply(cc, replyInvalidRequest)})
	}

	items, err := reg.fn(ctx, cc, args)
	if err != nil {
		d.logger.Error("function execution failed", "function", call.Name, "error", err)
		rec.Status = ExecutionFailed
		rec.Error = err.Error()
		d.record(ctx, rec, started)
		return d.finish(ctx, cc, []messaging.Outbound{textReply(cc, replyInvalidRequest)})
	}

	rec.Status = ExecutionCompleted
	d.record(ctx, rec, started)
	return d.finish(ctx, cc, items)
}

// DeliverText is a convenience for callers that produce plain replies
// outside the function-call path but still need channel-aware delivery.
func (d *Dispatcher) DeliverText(ctx context.Context, cc CommonContext, texts []string) ([]messaging.Outbound, error) {
	items := make([]messaging.Outbound, len(texts))
	for i, t := range texts {
		items[i] = textReply(cc, t)
	}
	return d.deliver(ctx, cc, items)
}

// finish persists the replies on the transcript and hands them to delivery.
// The turn engine stores task replies itself, so DeliverText stays out.
func (d *Dispatcher) finish(ctx context.Context, cc CommonContext, items []messaging.Outbound) ([]messaging.Outbound, error) {
	if d.transcript != nil {
		for _, item := range items {
			if item.Kind != messaging.KindText {
				continue
			}
			if err := d.transcript.AppendAssistant(ctx, cc.ConversationID, item.Body); err != nil {
				d.logger.Error("storing function reply", "error", err, "conversation_id", cc.ConversationID)
			}
		}
	}
	return d.deliver(ctx, cc, items)
}

// deliver pushes items over the gateway when the channel requires it.
// Items are sent strictly in order; media sends are spaced out so provider
// apps render them in sequence.
func (d *Dispatcher) deliver(ctx context.Context, cc CommonContext, items []messaging.Outbound) ([]messaging.Outbound, error) {
	if !cc.Channel.NeedsPush() {
		return items, nil
	}
	for i, item := range items {
		var err error
		if item.Kind == messaging.KindText {
			_, err = d.gateway.SendText(ctx, item.Recipient, item.Sender, item.Body)
		} else {
			if i > 0 {
				select {
				case <-time.After(d.delay):
				case <-ctx.Done():
					return items[:i], ctx.Err()
				}
			}
			_, err = d.gateway.SendMedia(ctx, item)
		}
		if err != nil {
			return items[:i], err
		}
	}
	return items, nil
}

func (d *Dispatcher) record(ctx context.Context, rec ExecutionRecord, started time.Time) {
	d.metrics.ObserveFunctionExecution(rec.FunctionName, string(rec.Status))
	if d.recorder == nil {
		return
	}
	rec.DurationMS = d.now().Sub(started).Milliseconds()
	if err := d.recorder.Record(ctx, rec); err != nil {
		// Audit failures must not break the conversation.
		d.logger.Error("recording function execution", "error", err, "function", rec.FunctionName)
	}
}

func textReply(cc CommonContext, body string) messaging.Outbound {
	return messaging.Outbound{
		Recipient: cc.Recipient,
		Sender:    cc.Sender,
		Kind:      messaging.KindText,
		Body:      body,
	}
}
