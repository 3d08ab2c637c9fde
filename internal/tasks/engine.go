package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/appointments"
	"github.com/citaflow/citaflow/internal/leads"
	"github.com/citaflow/citaflow/internal/messaging"
	"github.com/citaflow/citaflow/internal/schedule"
	"github.com/citaflow/citaflow/internal/timeparse"
	"github.com/citaflow/citaflow/pkg/logging"
)

// Message is the inbound item a turn consumes. Only text is processed;
// anything else makes the turn a no-op.
type Message struct {
	Kind messaging.Kind
	Text string
}

// Turn bundles the per-turn context handed to a state handler.
type Turn struct {
	Conversation leads.Conversation
	Lead         leads.Lead
	Message      Message
	Now          time.Time
}

// AppointmentStore is the slice of the appointments repository the task
// machines consume.
type AppointmentStore interface {
	ListFutureByLead(ctx context.Context, businessID, leadID uuid.UUID, after time.Time) ([]appointments.Appointment, error)
	Create(ctx context.Context, appt *appointments.Appointment) (*appointments.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next appointments.Status) error
	Reschedule(ctx context.Context, originalID uuid.UUID, newStart time.Time) (*appointments.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	GetType(ctx context.Context, id uuid.UUID) (*appointments.AppointmentType, error)
	ListActiveTypes(ctx context.Context, businessID uuid.UUID) ([]appointments.AppointmentType, error)
}

// Availability answers whether a candidate slot is bookable.
type Availability interface {
	Check(ctx context.Context, req schedule.Request) schedule.Verdict
}

// KeywordExtractor runs the AI phase of date/time resolution.
type KeywordExtractor interface {
	Extract(ctx context.Context, text string) timeparse.Extraction
}

// TaskStore checkpoints tasks between turns.
type TaskStore interface {
	Get(ctx context.Context, conversationID uuid.UUID) (*Task, error)
	Create(ctx context.Context, conversationID uuid.UUID, name Name) (*Task, error)
	Save(ctx context.Context, t *Task) error
	Delete(ctx context.Context, conversationID uuid.UUID) error
}

// Engine routes a turn to the active task's state handler and persists the
// outcome.
type Engine struct {
	store     TaskStore
	appts     AppointmentStore
	avail     Availability
	extractor KeywordExtractor
	loc       *time.Location
	now       func() time.Time
	logger    *logging.Logger
}

func NewEngine(store TaskStore, appts AppointmentStore, avail Availability, extractor KeywordExtractor, loc *time.Location, logger *logging.Logger) *Engine {
	if store == nil || appts == nil || avail == nil || extractor == nil {
		panic("tasks: all collaborators required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:     store,
		appts:     appts,
		avail:     avail,
		extractor: extractor,
		loc:       loc,
		now:       func() time.Time { return time.Now().In(loc) },
		logger:    logger,
	}
}

// WithClock overrides the engine clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// outcome is what a state handler decides for the turn.
type outcome struct {
	deleteTask bool
	state      State
	ctxBlob    any
	replies    []string
}

// stay keeps the task in its current state with an updated context.
func stay(state State, ctxBlob any, replies ...string) outcome {
	return outcome{state: state, ctxBlob: ctxBlob, replies: replies}
}

// finish deletes the task after this turn.
func finish(replies ...string) outcome {
	return outcome{deleteTask: true, replies: replies}
}

// noop leaves the task untouched and sends nothing.
func noop() outcome {
	return outcome{}
}

// escapeKeywords unconditionally abort the active task. Checked before any
// task-specific logic in every state.
var escapeKeywords = []string{
	"cancelar", "cancela", "ya no", "olvídalo", "olvidalo",
	"déjalo", "dejalo", "mejor no", "no quiero",
}

func isEscape(text string, task *Task) bool {
	lowered := strings.ToLower(text)
	for _, kw := range escapeKeywords {
		if !strings.Contains(lowered, kw) {
			continue
		}
		// "cancelar"/"cancela" is the cancel task's own subject while it is
		// still figuring out which appointment to cancel; only the other
		// negations abort it there.
		if task.Name == NameCancel && task.State == StateCollectingData &&
			(kw == "cancelar" || kw == "cancela") {
			continue
		}
		return true
	}
	return false
}

var affirmativeWords = map[string]struct{}{
	"sí": {}, "si": {}, "claro": {}, "ok": {}, "dale": {}, "va": {},
	"confirmo": {}, "correcto": {}, "supuesto": {},
}

var negativeWords = map[string]struct{}{
	"no": {}, "nel": {}, "negativo": {},
}

// parseConfirmation classifies a reply to a yes/no question. The zero
// answer means "neither", so the handler re-asks.
type confirmation int

const (
	confirmUnknown confirmation = iota
	confirmYes
	confirmNo
)

func parseConfirmation(text string) confirmation {
	for _, tok := range strings.Fields(strings.ToLower(strings.TrimSpace(text))) {
		tok = strings.Trim(tok, ".,!¡¿?")
		if _, ok := negativeWords[tok]; ok {
			return confirmNo
		}
		if _, ok := affirmativeWords[tok]; ok {
			return confirmYes
		}
	}
	return confirmUnknown
}

// HandleTurn consumes one inbound message for the conversation's active
// task and returns the outbound replies. The task row is persisted or
// deleted according to the handler's outcome before returning.
func (e *Engine) HandleTurn(ctx context.Context, task *Task, turn Turn) ([]string, error) {
	if turn.Message.Kind != messaging.KindText {
		// Structurally unexpected message kind: no-op turn, task persists.
		return nil, nil
	}
	if turn.Now.IsZero() {
		turn.Now = e.now()
	}

	if isEscape(turn.Message.Text, task) {
		if err := e.store.Delete(ctx, task.ConversationID); err != nil {
			return nil, err
		}
		return []string{replyEscapeAck}, nil
	}

	var out outcome
	switch task.Name {
	case NameBook:
		out = e.handleBook(ctx, task, turn)
	case NameReschedule:
		out = e.handleReschedule(ctx, task, turn)
	case NameCancel:
		out = e.handleCancel(ctx, task, turn)
	case NameList:
		out = e.handleList(ctx, task, turn)
	default:
		// Defect: unknown task name. Self-heal by deleting the row.
		e.logger.Warn("unknown task name, deleting task",
			"task_name", string(task.Name),
			"conversation_id", task.ConversationID,
		)
		out = finish(replyTaskBroken)
	}

	return out.replies, e.persist(ctx, task, out)
}

// brokenState is the shared self-heal path for unrecognized state values.
func (e *Engine) brokenState(task *Task) outcome {
	e.logger.Warn("unknown task state, deleting task",
		"task_name", string(task.Name),
		"state", string(task.State),
		"conversation_id", task.ConversationID,
	)
	return finish(replyTaskBroken)
}

func (e *Engine) persist(ctx context.Context, task *Task, out outcome) error {
	if out.deleteTask {
		return e.store.Delete(ctx, task.ConversationID)
	}
	if out.state == "" {
		// No-op turn: leave the checkpoint untouched.
		return nil
	}
	blob, err := encodeContext(out.ctxBlob)
	if err != nil {
		return err
	}
	task.State = out.state
	task.Context = blob
	return e.store.Save(ctx, task)
}

// resolveSlot runs both resolver phases against the given text.
func (e *Engine) resolveSlot(ctx context.Context, text string, now time.Time, original *time.Time) timeparse.Result {
	ext := e.extractor.Extract(ctx, text)
	if ext.Empty() {
		return timeparse.Result{}
	}
	return timeparse.Resolve(ext, now.In(e.loc), original)
}
