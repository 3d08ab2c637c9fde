package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/appointments"
	"github.com/citaflow/citaflow/internal/messaging"
)

// AppointmentDirectory is the slice of the appointments repository the
// built-in routines need.
type AppointmentDirectory interface {
	ListFutureByLead(ctx context.Context, businessID, leadID uuid.UUID, after time.Time) ([]appointments.Appointment, error)
	ListActiveTypes(ctx context.Context, businessID uuid.UUID) ([]appointments.AppointmentType, error)
	GetByID(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next appointments.Status) error
}

// RegisterLookups wires the read-mostly routines exposed to the model as
// callable functions. Multi-turn flows keep going through the task engine;
// these cover the one-shot calls the assistant emits directly.
func RegisterLookups(r *Registry, dir AppointmentDirectory, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}

	r.Register("listar_citas", Schema{}, func(ctx context.Context, cc CommonContext, _ map[string]any) ([]messaging.Outbound, error) {
		appts, err := dir.ListFutureByLead(ctx, cc.BusinessID, cc.LeadID, time.Now())
		if err != nil {
			return nil, fmt.Errorf("dispatch: listing appointments: %w", err)
		}
		if len(appts) == 0 {
			return []messaging.Outbound{textReply(cc, "No encontré citas próximas a tu nombre.")}, nil
		}
		var sb strings.Builder
		sb.WriteString("Estas son tus próximas citas:\n")
		for i, a := range appts {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, appointments.Describe(a, loc))
		}
		return []messaging.Outbound{textReply(cc, strings.TrimRight(sb.String(), "\n"))}, nil
	})

	r.Register("consultar_servicios", Schema{}, func(ctx context.Context, cc CommonContext, _ map[string]any) ([]messaging.Outbound, error) {
		types, err := dir.ListActiveTypes(ctx, cc.BusinessID)
		if err != nil {
			return nil, fmt.Errorf("dispatch: listing services: %w", err)
		}
		if len(types) == 0 {
			return []messaging.Outbound{textReply(cc, "Por el momento no tenemos servicios disponibles para agendar.")}, nil
		}
		var sb strings.Builder
		sb.WriteString("Estos son nuestros servicios:\n")
		for i, t := range types {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, t.Name)
		}
		return []messaging.Outbound{textReply(cc, strings.TrimRight(sb.String(), "\n"))}, nil
	})

	cancelSchema := Schema{Fields: []Field{
		{Name: "appointment_id", Type: TypeUUID, Required: true},
	}}
	r.Register("cancelar_cita", cancelSchema, func(ctx context.Context, cc CommonContext, args map[string]any) ([]messaging.Outbound, error) {
		id := args["appointment_id"].(uuid.UUID)
		appt, err := dir.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("dispatch: loading appointment: %w", err)
		}
		// Never act on another lead's appointment, whatever the model says.
		if appt.LeadID != cc.LeadID {
			return nil, fmt.Errorf("dispatch: appointment %s does not belong to lead %s", id, cc.LeadID)
		}
		if appt.Status.Terminal() {
			return []messaging.Outbound{textReply(cc, "Esa cita ya no está activa.")}, nil
		}
		if err := dir.UpdateStatus(ctx, id, appointments.StatusCancelled); err != nil {
			return nil, fmt.Errorf("dispatch: cancelling appointment: %w", err)
		}
		body := fmt.Sprintf("Listo, cancelé tu cita del %s.", appointments.Describe(*appt, loc))
		return []messaging.Outbound{textReply(cc, body)}, nil
	})
}
