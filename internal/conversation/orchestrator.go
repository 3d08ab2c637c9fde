package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/citaflow/citaflow/internal/messaging"
	"github.com/citaflow/citaflow/pkg/logging"
)

// ErrOrchestratorClosed indicates the orchestrator is no longer accepting work.
var ErrOrchestratorClosed = errors.New("conversation: orchestrator closed")

type turnProcessor interface {
	Process(ctx context.Context, in InboundTurn) ([]messaging.Outbound, error)
}

// Orchestrator routes turns through a queue before invoking the turn
// engine. Development runs against the in-memory queue; production points
// at SQS without the webhook handlers changing.
type Orchestrator struct {
	processor turnProcessor
	queue     Queue
	logger    *logging.Logger

	cfg orchestratorConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // payload ID -> chan dispatchResult
}

type dispatchResult struct {
	replies []messaging.Outbound
	err     error
}

const (
	defaultWorkers          = 2
	defaultReceiveWait      = 2  // seconds
	defaultReceiveMax       = 5  // messages
	maxReceiveWaitSeconds   = 20 // SQS limit
	maxReceiveBatchMessages = 10
)

type orchestratorConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	requeueDelay     time.Duration
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*orchestratorConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for receive calls.
func WithReceiveWaitSeconds(seconds int) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

// NewOrchestrator wires a queue-backed turn pipeline around the processor.
func NewOrchestrator(processor turnProcessor, queue Queue, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := orchestratorConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
		requeueDelay:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		processor: processor,
		queue:     queue,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.workers; i++ {
		o.wg.Add(1)
		go o.runWorker(i + 1)
	}

	return o
}

// ProcessTurn enqueues the turn and blocks until a worker finishes it.
// Widget webhooks use this path so the replies flow back in-band.
func (o *Orchestrator) ProcessTurn(ctx context.Context, in InboundTurn) ([]messaging.Outbound, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(queuePayload{Turn: in})
	if err != nil {
		return nil, err
	}

	resultCh := make(chan dispatchResult, 1)
	o.pending.Store(payload.ID, resultCh)
	defer o.pending.Delete(payload.ID)

	if err := o.queue.Send(ctx, body); err != nil {
		return nil, fmt.Errorf("conversation: failed to enqueue turn: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.replies, res.err
	}
}

// EnqueueTurn is the fire-and-forget path for push channels: the worker
// delivers replies itself, the caller only needs the turn accepted.
func (o *Orchestrator) EnqueueTurn(ctx context.Context, in InboundTurn) error {
	_, body, err := encodePayload(queuePayload{Turn: in})
	if err != nil {
		return err
	}
	if err := o.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue turn: %w", err)
	}
	return nil
}

// Shutdown stops worker goroutines and notifies any pending callers.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	o.pending.Range(func(key, value any) bool {
		if ch, ok := value.(chan dispatchResult); ok {
			select {
			case ch <- dispatchResult{err: ErrOrchestratorClosed}:
			default:
			}
		}
		o.pending.Delete(key)
		return true
	})

	return nil
}

func (o *Orchestrator) runWorker(workerID int) {
	defer o.wg.Done()
	o.logger.Debug("turn worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-o.ctx.Done():
			o.logger.Debug("turn worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := o.queue.Receive(o.ctx, o.cfg.receiveBatchSize, o.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			o.logger.Error("failed to receive turns", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			o.handleQueueMessage(msg)
		}
	}
}

func (o *Orchestrator) handleQueueMessage(msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		o.logger.Error("failed to decode turn payload", "error", err)
		o.deleteMessage(msg)
		return
	}

	replies, err := o.processor.Process(o.ctx, payload.Turn)

	if errors.Is(err, ErrTurnInProgress) {
		// Another worker owns this conversation right now. Put the turn
		// back so it runs after the current one releases the lock.
		o.requeue(msg)
		return
	}
	if err != nil {
		o.logger.Error("turn processing failed",
			"error", err,
			"conversation_id", payload.Turn.ConversationID,
		)
	}

	if ch, ok := o.pending.LoadAndDelete(payload.ID); ok {
		if resultCh, isChan := ch.(chan dispatchResult); isChan {
			resultCh <- dispatchResult{replies: replies, err: err}
		}
	}
	o.deleteMessage(msg)
}

func (o *Orchestrator) requeue(msg queueMessage) {
	select {
	case <-time.After(o.cfg.requeueDelay):
	case <-o.ctx.Done():
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.queue.Send(ctx, msg.Body); err != nil {
		o.logger.Error("failed to requeue turn", "error", err)
		return
	}
	o.deleteMessage(msg)
}

func (o *Orchestrator) deleteMessage(msg queueMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		o.logger.Error("failed to delete queue message", "error", err)
	}
}
