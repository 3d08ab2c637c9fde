package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citaflow/citaflow/internal/dispatch"
	"github.com/citaflow/citaflow/internal/intent"
	"github.com/citaflow/citaflow/internal/leads"
	"github.com/citaflow/citaflow/internal/messaging"
	"github.com/citaflow/citaflow/internal/tasks"
)

type stubLocker struct {
	busy     bool
	failWith error
	released int
}

func (s *stubLocker) Acquire(context.Context, uuid.UUID) (string, bool, error) {
	if s.failWith != nil {
		return "", false, s.failWith
	}
	if s.busy {
		return "", false, nil
	}
	return "token", true, nil
}

func (s *stubLocker) Release(context.Context, uuid.UUID, string) error {
	s.released++
	return nil
}

type stubDirectory struct {
	conv leads.Conversation
	lead leads.Lead
}

func (s *stubDirectory) GetConversation(context.Context, uuid.UUID) (*leads.Conversation, error) {
	c := s.conv
	return &c, nil
}

func (s *stubDirectory) GetLead(context.Context, uuid.UUID) (*leads.Lead, error) {
	l := s.lead
	return &l, nil
}

type stubTaskStore struct {
	active  *tasks.Task
	created []tasks.Name
}

func (s *stubTaskStore) Get(context.Context, uuid.UUID) (*tasks.Task, error) {
	if s.active == nil {
		return nil, tasks.ErrNoActiveTask
	}
	return s.active, nil
}

func (s *stubTaskStore) Create(_ context.Context, id uuid.UUID, name tasks.Name) (*tasks.Task, error) {
	s.created = append(s.created, name)
	t := &tasks.Task{ConversationID: id, Name: name, State: tasks.StateCollectingData, Context: []byte(`{}`)}
	s.active = t
	return t, nil
}

func (s *stubTaskStore) Save(_ context.Context, t *tasks.Task) error { return nil }

func (s *stubTaskStore) Delete(context.Context, uuid.UUID) error {
	s.active = nil
	return nil
}

type stubHandler struct {
	replies []string
	turns   []tasks.Turn
}

func (s *stubHandler) HandleTurn(_ context.Context, _ *tasks.Task, turn tasks.Turn) ([]string, error) {
	s.turns = append(s.turns, turn)
	return s.replies, nil
}

type stubDetector struct {
	name tasks.Name
	ok   bool
}

func (s *stubDetector) Detect(context.Context, string) (tasks.Name, bool) {
	return s.name, s.ok
}

type stubTranscript struct {
	entries []struct {
		role InteractionRole
		body string
	}
	err error
}

func (s *stubTranscript) Append(_ context.Context, _ uuid.UUID, role InteractionRole, body string) error {
	s.entries = append(s.entries, struct {
		role InteractionRole
		body string
	}{role, body})
	return s.err
}

type stubDeliverer struct {
	delivered [][]string
	cc        dispatch.CommonContext
}

func (s *stubDeliverer) DeliverText(_ context.Context, cc dispatch.CommonContext, texts []string) ([]messaging.Outbound, error) {
	s.cc = cc
	s.delivered = append(s.delivered, texts)
	items := make([]messaging.Outbound, len(texts))
	for i, t := range texts {
		items[i] = messaging.Outbound{Kind: messaging.KindText, Body: t, Recipient: cc.Recipient}
	}
	return items, nil
}

type turnFixture struct {
	engine     *Engine
	lock       *stubLocker
	dir        *stubDirectory
	store      *stubTaskStore
	handler    *stubHandler
	detector   *stubDetector
	transcript *stubTranscript
	deliverer  *stubDeliverer
}

func newTurnFixture() *turnFixture {
	f := &turnFixture{
		lock:       &stubLocker{},
		store:      &stubTaskStore{},
		handler:    &stubHandler{replies: []string{"respuesta"}},
		detector:   &stubDetector{},
		transcript: &stubTranscript{},
		deliverer:  &stubDeliverer{},
	}
	convID, leadID := uuid.New(), uuid.New()
	f.dir = &stubDirectory{
		conv: leads.Conversation{
			ID:        convID,
			LeadID:    leadID,
			Channel:   messaging.ChannelWidget,
			Recipient: "session-1",
		},
		lead: leads.Lead{ID: leadID, Name: "Ana"},
	}
	f.engine = NewEngine(f.lock, f.dir, f.store, f.handler, f.detector, f.transcript, f.deliverer, nil)
	return f
}

func (f *turnFixture) inbound(text string) InboundTurn {
	return InboundTurn{ConversationID: f.dir.conv.ID, Kind: messaging.KindText, Text: text}
}

func TestProcessRoutesToActiveTask(t *testing.T) {
	f := newTurnFixture()
	f.store.active = &tasks.Task{ConversationID: f.dir.conv.ID, Name: tasks.NameBook, State: tasks.StateCollectingData}

	items, err := f.engine.Process(context.Background(), f.inbound("el jueves a las 4"))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "respuesta", items[0].Body)
	assert.Empty(t, f.store.created, "no new task while one is active")
	require.Len(t, f.handler.turns, 1)
	assert.Equal(t, "el jueves a las 4", f.handler.turns[0].Message.Text)
	assert.Equal(t, 1, f.lock.released)
}

func TestProcessDetectsIntentAndRedispatches(t *testing.T) {
	f := newTurnFixture()
	f.detector.name, f.detector.ok = tasks.NameBook, true

	_, err := f.engine.Process(context.Background(), f.inbound("quiero agendar una cita"))
	require.NoError(t, err)

	require.Equal(t, []tasks.Name{tasks.NameBook}, f.store.created)
	// The message that triggered the task is the one the task consumes.
	require.Len(t, f.handler.turns, 1)
	assert.Equal(t, "quiero agendar una cita", f.handler.turns[0].Message.Text)
}

func TestProcessFallsBackToMenu(t *testing.T) {
	f := newTurnFixture()
	f.detector.ok = false

	items, err := f.engine.Process(context.Background(), f.inbound("qué clima hace"))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, intent.FallbackMenu, items[0].Body)
	assert.Empty(t, f.store.created)
	assert.Empty(t, f.handler.turns)
}

func TestProcessBusyConversation(t *testing.T) {
	f := newTurnFixture()
	f.lock.busy = true

	_, err := f.engine.Process(context.Background(), f.inbound("hola"))
	assert.ErrorIs(t, err, ErrTurnInProgress)
	assert.Empty(t, f.transcript.entries, "busy turn must not touch state")
}

func TestProcessNonTextWithoutTaskIsSilent(t *testing.T) {
	f := newTurnFixture()

	items, err := f.engine.Process(context.Background(), InboundTurn{
		ConversationID: f.dir.conv.ID,
		Kind:           messaging.KindImage,
	})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, f.deliverer.delivered)
}

func TestProcessRecordsTranscript(t *testing.T) {
	f := newTurnFixture()
	f.store.active = &tasks.Task{ConversationID: f.dir.conv.ID, Name: tasks.NameList, State: tasks.StateCollectingData}

	_, err := f.engine.Process(context.Background(), f.inbound("qué citas tengo"))
	require.NoError(t, err)

	require.Len(t, f.transcript.entries, 2)
	assert.Equal(t, RoleUser, f.transcript.entries[0].role)
	assert.Equal(t, "qué citas tengo", f.transcript.entries[0].body)
	assert.Equal(t, RoleAssistant, f.transcript.entries[1].role)
	assert.Equal(t, "respuesta", f.transcript.entries[1].body)
}

func TestProcessSurvivesTranscriptFailure(t *testing.T) {
	f := newTurnFixture()
	f.store.active = &tasks.Task{ConversationID: f.dir.conv.ID, Name: tasks.NameList, State: tasks.StateCollectingData}
	f.transcript.err = errors.New("db down")

	items, err := f.engine.Process(context.Background(), f.inbound("qué citas tengo"))
	require.NoError(t, err)
	assert.Len(t, items, 1, "transcript failures never block the reply")
}

func TestProcessBuildsDeliveryContext(t *testing.T) {
	f := newTurnFixture()
	f.store.active = &tasks.Task{ConversationID: f.dir.conv.ID, Name: tasks.NameList, State: tasks.StateCollectingData}

	_, err := f.engine.Process(context.Background(), f.inbound("hola"))
	require.NoError(t, err)

	assert.Equal(t, f.dir.conv.ID, f.deliverer.cc.ConversationID)
	assert.Equal(t, messaging.ChannelWidget, f.deliverer.cc.Channel)
	assert.Equal(t, "session-1", f.deliverer.cc.Recipient)
}
