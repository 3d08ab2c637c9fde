package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoActiveTask indicates the conversation has no task in progress.
var ErrNoActiveTask = errors.New("tasks: no active task")

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store checkpoints tasks between turns. The conversation id is the
// primary key, which enforces the one-active-task invariant.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	if db == nil {
		panic("tasks: db required")
	}
	return &Store{db: db}
}

// Get loads the conversation's active task.
func (s *Store) Get(ctx context.Context, conversationID uuid.UUID) (*Task, error) {
	query := `
		SELECT conversation_id, task_name, state, context, created_at, updated_at
		FROM tasks_in_progress WHERE conversation_id = $1
	`
	var t Task
	var name, state string
	if err := s.db.QueryRow(ctx, query, conversationID).Scan(
		&t.ConversationID, &name, &state, &t.Context, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveTask
		}
		return nil, fmt.Errorf("tasks: select failed: %w", err)
	}
	t.Name = Name(name)
	t.State = State(state)
	return &t, nil
}

// Create inserts a fresh task in COLLECTING_DATA with an empty context.
func (s *Store) Create(ctx context.Context, conversationID uuid.UUID, name Name) (*Task, error) {
	t := &Task{
		ConversationID: conversationID,
		Name:           name,
		State:          StateCollectingData,
		Context:        json.RawMessage(`{}`),
	}
	query := `
		INSERT INTO tasks_in_progress (conversation_id, task_name, state, context)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	if err := s.db.QueryRow(ctx, query, t.ConversationID, string(t.Name), string(t.State), t.Context).
		Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("tasks: insert failed: %w", err)
	}
	return t, nil
}

// Save checkpoints the task's state and context.
func (s *Store) Save(ctx context.Context, t *Task) error {
	query := `
		UPDATE tasks_in_progress
		SET state = $2, context = $3, updated_at = now()
		WHERE conversation_id = $1
	`
	tag, err := s.db.Exec(ctx, query, t.ConversationID, string(t.State), t.Context)
	if err != nil {
		return fmt.Errorf("tasks: update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoActiveTask
	}
	return nil
}

// Delete removes the task row. Deleting an already-gone task is not an
// error.
func (s *Store) Delete(ctx context.Context, conversationID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM tasks_in_progress WHERE conversation_id = $1`, conversationID); err != nil {
		return fmt.Errorf("tasks: delete failed: %w", err)
	}
	return nil
}
