package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Name identifies the workflow a task drives. The set is closed; the
// intent detector only ever creates these.
type Name string

const (
	NameBook       Name = "agendar_cita"
	NameReschedule Name = "reagendar_cita"
	NameCancel     Name = "cancelar_cita"
	NameList       Name = "listar_citas"
)

// KnownName reports whether s is a recognized task name.
func KnownName(s string) (Name, bool) {
	switch Name(s) {
	case NameBook, NameReschedule, NameCancel, NameList:
		return Name(s), true
	}
	return "", false
}

// State is the shared state vocabulary of all task machines. A task in an
// unknown state is a defect and is self-healed by deletion.
type State string

const (
	StateInitiated           State = "INITIATED"
	StateCollectingData      State = "COLLECTING_DATA"
	StateCollectingNewDate   State = "COLLECTING_NEW_DATE"
	StateCollectingNewTime   State = "COLLECTING_NEW_TIME"
	StateValidating          State = "VALIDATING_AVAILABILITY"
	StatePendingConfirmation State = "PENDING_USER_CONFIRMATION"
	StateExecuting           State = "EXECUTING_FINAL_ACTION"
)

// Task is one in-flight multi-turn workflow instance. At most one exists
// per conversation; completion, user abort, or an unrecoverable defect
// deletes the row.
type Task struct {
	ConversationID uuid.UUID
	Name           Name
	State          State
	Context        json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DecodeContext unmarshals the task's context blob into dst. An empty blob
// leaves dst zero-valued.
func (t *Task) DecodeContext(dst any) error {
	if len(t.Context) == 0 {
		return nil
	}
	return json.Unmarshal(t.Context, dst)
}

func encodeContext(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(v)
}
