package tasks

import (
	"context"

	"github.com/citaflow/citaflow/internal/appointments"
	"github.com/citaflow/citaflow/internal/fuzzy"
	"github.com/citaflow/citaflow/internal/schedule"
)

// handleBook drives the agendar_cita machine. It accumulates service, date
// and time across turns, validates the slot, and books on confirmation.
func (e *Engine) handleBook(ctx context.Context, task *Task, turn Turn) outcome {
	var bc BookContext
	if err := task.DecodeContext(&bc); err != nil {
		e.logger.Error("corrupt book context", "error", err, "conversation_id", task.ConversationID)
		return e.brokenState(task)
	}

	switch task.State {
	case StateCollectingData:
		return e.bookCollect(ctx, &bc, turn)
	case StatePendingConfirmation:
		return e.bookConfirm(ctx, &bc, turn)
	default:
		return e.brokenState(task)
	}
}

func (e *Engine) bookCollect(ctx context.Context, bc *BookContext, turn Turn) outcome {
	// Date/time extraction runs on every turn, independent of the service
	// pick, so "quiero agendar mañana a las 10" keeps the slot even while
	// the service is still being clarified.
	mergeResolved(bc, e.resolveSlot(ctx, turn.Message.Text, turn.Now, nil))

	if bc.TypeID == nil {
		types, err := e.appts.ListActiveTypes(ctx, turn.Conversation.BusinessID)
		if err != nil {
			e.logger.Error("listing appointment types", "error", err)
			return finish(replyTaskBroken)
		}
		if len(types) == 0 {
			return finish(replyNoServicesSetup)
		}

		if matched, ok := matchType(turn.Message.Text, types); ok {
			id := matched.ID
			bc.TypeID = &id
			bc.TypeName = matched.Name
		} else {
			// Either the opening message ("quiero agendar") or an ambiguous
			// pick. List the services and wait.
			return stay(StateCollectingData, bc, renderServiceList(types))
		}
	}

	if !slotComplete(bc) {
		if bc.Date != nil {
			return stay(StateCollectingData, bc, replyAskTimeOnly)
		}
		return stay(StateCollectingData, bc, replyAskDateTime)
	}
	return e.bookValidate(ctx, bc, turn)
}

// bookValidate runs the availability check for the assembled slot. The
// validation happens inline within the turn; only the outcome state is
// checkpointed.
func (e *Engine) bookValidate(ctx context.Context, bc *BookContext, turn Turn) outcome {
	typ, err := e.appts.GetType(ctx, *bc.TypeID)
	if err != nil {
		e.logger.Error("loading appointment type", "error", err, "type_id", *bc.TypeID)
		return finish(replyTaskBroken)
	}

	verdict := e.avail.Check(ctx, schedule.Request{
		BusinessID: turn.Conversation.BusinessID,
		LeadID:     turn.Lead.ID,
		Type:       *typ,
		StartsAt:   slotInstant(bc),
	})
	if !verdict.Available {
		clearSlot(bc)
		return stay(StateCollectingData, bc, verdict.Message)
	}

	return stay(StatePendingConfirmation, bc, renderBookSummary(bc.TypeName, slotInstant(bc), e.loc))
}

func (e *Engine) bookConfirm(ctx context.Context, bc *BookContext, turn Turn) outcome {
	switch parseConfirmation(turn.Message.Text) {
	case confirmNo:
		return finish(replyDeclinedAck)
	case confirmUnknown:
		return stay(StatePendingConfirmation, bc, replyAskConfirmation)
	}

	if bc.TypeID == nil || !slotComplete(bc) {
		// Confirmation state without an assembled slot means the checkpoint
		// was corrupted somewhere.
		return finish(replyTaskBroken)
	}

	typ, err := e.appts.GetType(ctx, *bc.TypeID)
	if err != nil {
		e.logger.Error("loading appointment type", "error", err, "type_id", *bc.TypeID)
		return finish(replyBookingFailed)
	}
	modality := appointments.ModalityInPerson
	if !typ.InPerson && typ.Virtual {
		modality = appointments.ModalityVirtual
	}

	at := slotInstant(bc)
	// The slot may have been taken while the user was deciding.
	verdict := e.avail.Check(ctx, schedule.Request{
		BusinessID: turn.Conversation.BusinessID,
		LeadID:     turn.Lead.ID,
		Type:       *typ,
		StartsAt:   at,
	})
	if !verdict.Available {
		clearSlot(bc)
		return stay(StateCollectingData, bc, verdict.Message)
	}
	_, err = e.appts.Create(ctx, &appointments.Appointment{
		BusinessID:  turn.Conversation.BusinessID,
		LeadID:      turn.Lead.ID,
		AssistantID: turn.Conversation.AssistantID,
		TypeID:      *bc.TypeID,
		StartsAt:    at,
		Subject:     bc.TypeName,
		Modality:    modality,
		Status:      appointments.StatusPending,
	})
	if err != nil {
		e.logger.Error("creating appointment", "error", err, "lead_id", turn.Lead.ID)
		return finish(replyBookingFailed)
	}
	return finish(renderBookSuccess(bc.TypeName, at, e.loc))
}

// matchType resolves the user's service pick against the active catalogue.
func matchType(text string, types []appointments.AppointmentType) (appointments.AppointmentType, bool) {
	cands := make([]fuzzy.Candidate, len(types))
	for i, t := range types {
		cands[i] = fuzzy.Candidate{
			ID:       t.ID.String(),
			Ordinal:  i + 1,
			FullName: t.Name,
			Profile:  fuzzy.Tokenize(t.Name),
		}
	}
	hit, ok := fuzzy.Match(text, cands)
	if !ok {
		return appointments.AppointmentType{}, false
	}
	for _, t := range types {
		if t.ID.String() == hit.ID {
			return t, true
		}
	}
	return appointments.AppointmentType{}, false
}
