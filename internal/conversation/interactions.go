package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// InteractionRole distinguishes who produced a stored message.
type InteractionRole string

const (
	RoleUser      InteractionRole = "user"
	RoleAssistant InteractionRole = "assistant"
)

// Interaction is one persisted message of a conversation transcript.
type Interaction struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           InteractionRole
	Body           string
	CreatedAt      time.Time
}

type interactionDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// InteractionStore persists the transcript. Writes are best-effort from the
// turn engine's point of view; a failed insert never blocks the reply.
type InteractionStore struct {
	db interactionDB
}

func NewInteractionStore(db interactionDB) *InteractionStore {
	return &InteractionStore{db: db}
}

func (s *InteractionStore) Append(ctx context.Context, conversationID uuid.UUID, role InteractionRole, body string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO interactions (id, conversation_id, role, body, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), conversationID, string(role), body,
	)
	if err != nil {
		return fmt.Errorf("conversation: appending interaction: %w", err)
	}
	return nil
}

// AppendAssistant stores one assistant reply. Callers outside the turn
// engine only ever write this side of the transcript.
func (s *InteractionStore) AppendAssistant(ctx context.Context, conversationID uuid.UUID, body string) error {
	return s.Append(ctx, conversationID, RoleAssistant, body)
}

// History returns the most recent interactions, oldest first, for prompt
// assembly.
func (s *InteractionStore) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, role, body, created_at FROM (
			SELECT id, role, body, created_at
			FROM interactions
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("conversation: querying interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		it := Interaction{ConversationID: conversationID}
		var role string
		if err := rows.Scan(&it.ID, &role, &it.Body, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scanning interaction: %w", err)
		}
		it.Role = InteractionRole(role)
		out = append(out, it)
	}
	return out, rows.Err()
}
