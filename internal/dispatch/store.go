package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"
)

// ExecutionStatus is the terminal state of one function execution record.
type ExecutionStatus string

const (
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionRejected  ExecutionStatus = "REJECTED"
	ExecutionUnknown   ExecutionStatus = "UNKNOWN_FUNCTION"
)

// ExecutionRecord is the audit row written for every dispatched call,
// successful or not.
type ExecutionRecord struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	FunctionName   string
	Args           map[string]any
	Status         ExecutionStatus
	Error          string
	DurationMS     int64
	CreatedAt      time.Time
}

// ExecutionStore persists execution records.
type ExecutionStore struct {
	db *sql.DB
}

// OpenExecutionStore connects to Postgres with the pq driver.
func OpenExecutionStore(databaseURL string) (*ExecutionStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("dispatch: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("dispatch: pinging database: %w", err)
	}
	return &ExecutionStore{db: db}, nil
}

// NewExecutionStore wraps an existing handle, mainly for tests.
func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

func (s *ExecutionStore) Close() error {
	return s.db.Close()
}

// Record inserts one execution row. Args are stored as JSONB so failed
// calls can be replayed by hand.
func (s *ExecutionStore) Record(ctx context.Context, rec ExecutionRecord) error {
	blob, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("dispatch: encoding args: %w", err)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	const q = `
		INSERT INTO function_executions
			(id, conversation_id, function_name, args, status, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	var errCol sql.NullString
	if rec.Error != "" {
		errCol = sql.NullString{String: rec.Error, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.ConversationID, rec.FunctionName, blob,
		string(rec.Status), errCol, rec.DurationMS,
	); err != nil {
		return fmt.Errorf("dispatch: inserting execution record: %w", err)
	}
	return nil
}

// RecentFailures returns the latest failed or rejected executions for a
// conversation, newest first.
func (s *ExecutionStore) RecentFailures(ctx context.Context, conversationID uuid.UUID, limit int) ([]ExecutionRecord, error) {
	const q = `
		SELECT id, function_name, status, COALESCE(error, ''), duration_ms, created_at
		FROM function_executions
		WHERE conversation_id = $1 AND status <> 'COMPLETED'
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("dispatch: querying failures: %w", err)
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		rec := ExecutionRecord{ConversationID: conversationID}
		var status string
		if err := rows.Scan(&rec.ID, &rec.FunctionName, &status, &rec.Error, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispatch: scanning failure row: %w", err)
		}
		rec.Status = ExecutionStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
