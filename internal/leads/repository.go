// Package leads exposes read-only lead and conversation context. Writes
// happen in the upstream CRM surface, never here.
package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/citaflow/citaflow/internal/messaging"
)

var (
	ErrLeadNotFound         = errors.New("leads: lead not found")
	ErrConversationNotFound = errors.New("leads: conversation not found")
)

// Lead is the person the conversation belongs to.
type Lead struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Name       string
	Phone      string
	Timezone   string
}

// Conversation carries the routing context of one chat thread. Recipient
// and Sender are channel addresses: phone numbers on WhatsApp, session ids
// on the widget.
type Conversation struct {
	ID          uuid.UUID
	BusinessID  uuid.UUID
	LeadID      uuid.UUID
	AssistantID uuid.UUID
	Channel     messaging.Channel
	Recipient   string
	Sender      string
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads leads and conversations.
type Repository struct {
	db queryRower
}

func NewRepository(db queryRower) *Repository {
	if db == nil {
		panic("leads: db required")
	}
	return &Repository{db: db}
}

// GetLead loads one lead.
func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	query := `SELECT id, business_id, name, phone, timezone FROM leads WHERE id = $1`
	var lead Lead
	if err := r.db.QueryRow(ctx, query, id).Scan(&lead.ID, &lead.BusinessID, &lead.Name, &lead.Phone, &lead.Timezone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select lead: %w", err)
	}
	return &lead, nil
}

// GetConversation loads one conversation's routing context.
func (r *Repository) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	query := `SELECT id, business_id, lead_id, assistant_id, channel, recipient, sender FROM conversations WHERE id = $1`
	var (
		conv    Conversation
		channel string
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(&conv.ID, &conv.BusinessID, &conv.LeadID, &conv.AssistantID, &channel, &conv.Recipient, &conv.Sender); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("leads: select conversation: %w", err)
	}
	parsed, err := messaging.ParseChannel(channel)
	if err != nil {
		return nil, fmt.Errorf("leads: conversation %s: %w", id, err)
	}
	conv.Channel = parsed
	return &conv, nil
}

// GetConversationByAddress resolves the conversation an inbound message
// belongs to by its channel address.
func (r *Repository) GetConversationByAddress(ctx context.Context, channel messaging.Channel, recipient string) (*Conversation, error) {
	query := `SELECT id, business_id, lead_id, assistant_id, channel, recipient, sender FROM conversations WHERE channel = $1 AND recipient = $2`
	var (
		conv Conversation
		raw  string
	)
	if err := r.db.QueryRow(ctx, query, string(channel), recipient).Scan(&conv.ID, &conv.BusinessID, &conv.LeadID, &conv.AssistantID, &raw, &conv.Recipient, &conv.Sender); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("leads: select conversation by address: %w", err)
	}
	conv.Channel = channel
	return &conv, nil
}
