package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/messaging"
)

// CommonContext is merged into every function invocation regardless of what
// the model supplied.
type CommonContext struct {
	ConversationID uuid.UUID
	BusinessID     uuid.UUID
	LeadID         uuid.UUID
	AssistantID    uuid.UUID
	Channel        messaging.Channel
	Recipient      string
	Sender         string
}

// Routine executes one validated function call and returns the outbound
// items it produced.
type Routine func(ctx context.Context, cc CommonContext, args map[string]any) ([]messaging.Outbound, error)

type registration struct {
	schema Schema
	fn     Routine
}

// Registry maps function names to their schema and routine.
type Registry struct {
	routines map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{routines: map[string]registration{}}
}

// Register adds a function. Re-registering a name replaces it.
func (r *Registry) Register(name string, schema Schema, fn Routine) {
	r.routines[name] = registration{schema: schema, fn: fn}
}

func (r *Registry) lookup(name string) (registration, bool) {
	reg, ok := r.routines[name]
	return reg, ok
}
