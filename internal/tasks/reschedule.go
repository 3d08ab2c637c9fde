package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/appointments"
	"github.com/citaflow/citaflow/internal/fuzzy"
	"github.com/citaflow/citaflow/internal/schedule"
)

// slotMarkers split an utterance like "la cita del martes para el jueves a
// las 5" into the part that names the appointment and the part that names
// the new slot. The marker text stays with the tail so the extractor sees
// the full phrase.
var slotMarkers = []string{" para el ", " para la ", " a las ", " a la "}

func splitOnMarker(text string) (head, tail string) {
	lowered := strings.ToLower(text)
	cut := -1
	for _, m := range slotMarkers {
		if idx := strings.Index(lowered, m); idx >= 0 && (cut < 0 || idx < cut) {
			cut = idx
		}
	}
	if cut < 0 {
		return text, text
	}
	return text[:cut], text[cut:]
}

// handleReschedule drives the reagendar_cita machine: pick the original
// appointment, assemble the new slot, validate, confirm, swap.
func (e *Engine) handleReschedule(ctx context.Context, task *Task, turn Turn) outcome {
	var rc RescheduleContext
	if err := task.DecodeContext(&rc); err != nil {
		e.logger.Error("corrupt reschedule context", "error", err, "conversation_id", task.ConversationID)
		return e.brokenState(task)
	}

	switch task.State {
	case StateCollectingData:
		return e.rescheduleIdentify(ctx, &rc, turn)
	case StateCollectingNewDate, StateCollectingNewTime:
		return e.rescheduleCollectSlot(ctx, &rc, turn, turn.Message.Text)
	case StatePendingConfirmation:
		return e.rescheduleConfirm(ctx, &rc, turn)
	default:
		return e.brokenState(task)
	}
}

func (e *Engine) rescheduleIdentify(ctx context.Context, rc *RescheduleContext, turn Turn) outcome {
	appts, err := e.appts.ListFutureByLead(ctx, turn.Conversation.BusinessID, turn.Lead.ID, turn.Now)
	if err != nil {
		e.logger.Error("listing appointments", "error", err, "lead_id", turn.Lead.ID)
		return finish(replyTaskBroken)
	}
	if len(appts) == 0 {
		return finish(replyNoAppointments)
	}

	head, tail := splitOnMarker(turn.Message.Text)

	var original *appointments.Appointment
	if len(appts) == 1 {
		original = &appts[0]
	} else if hit, ok := matchAppointment(head, appts, e.loc); ok {
		original = hit
	} else {
		return stay(StateCollectingData, rc,
			renderAppointmentList("¿Cuál de tus citas quieres mover?", appts, e.loc))
	}

	id := original.ID
	rc.OriginalID = &id
	return e.rescheduleCollectSlot(ctx, rc, turn, tail)
}

func (e *Engine) rescheduleCollectSlot(ctx context.Context, rc *RescheduleContext, turn Turn, text string) outcome {
	if rc.OriginalID == nil {
		return finish(replyTaskBroken)
	}
	original, err := e.appts.GetByID(ctx, *rc.OriginalID)
	if err != nil {
		e.logger.Error("loading original appointment", "error", err, "appointment_id", *rc.OriginalID)
		return finish(replyTaskBroken)
	}
	if original.Status.Terminal() {
		// Already moved or cancelled through another path.
		return finish(replyNoAppointments)
	}

	origStart := original.StartsAt.In(e.loc)
	mergeResolved(rc, e.resolveSlot(ctx, text, turn.Now, &origStart))

	if !slotComplete(rc) {
		if rc.Date != nil {
			return stay(StateCollectingNewTime, rc, replyAskTimeOnly)
		}
		return stay(StateCollectingNewDate, rc, replyAskNewDateTime)
	}

	typ, err := e.appts.GetType(ctx, original.TypeID)
	if err != nil {
		e.logger.Error("loading appointment type", "error", err, "type_id", original.TypeID)
		return finish(replyTaskBroken)
	}

	verdict := e.avail.Check(ctx, schedule.Request{
		BusinessID:           turn.Conversation.BusinessID,
		LeadID:               turn.Lead.ID,
		Type:                 *typ,
		StartsAt:             slotInstant(rc),
		ExcludeAppointmentID: original.ID,
	})
	if !verdict.Available {
		clearSlot(rc)
		return stay(StateCollectingNewDate, rc, verdict.Message)
	}

	return stay(StatePendingConfirmation, rc,
		renderRescheduleSummary(*original, slotInstant(rc), e.loc))
}

func (e *Engine) rescheduleConfirm(ctx context.Context, rc *RescheduleContext, turn Turn) outcome {
	switch parseConfirmation(turn.Message.Text) {
	case confirmNo:
		return finish(replyDeclinedAck)
	case confirmUnknown:
		return stay(StatePendingConfirmation, rc, replyAskConfirmation)
	}

	if rc.OriginalID == nil || !slotComplete(rc) {
		return finish(replyTaskBroken)
	}

	original, err := e.appts.GetByID(ctx, *rc.OriginalID)
	if err != nil {
		e.logger.Error("loading original appointment", "error", err, "appointment_id", *rc.OriginalID)
		return finish(replyRescheduleFailed)
	}
	typ, err := e.appts.GetType(ctx, original.TypeID)
	if err != nil {
		e.logger.Error("loading appointment type", "error", err, "type_id", original.TypeID)
		return finish(replyRescheduleFailed)
	}

	at := slotInstant(rc)
	// The slot may have been taken while the user was deciding.
	verdict := e.avail.Check(ctx, schedule.Request{
		BusinessID:           turn.Conversation.BusinessID,
		LeadID:               turn.Lead.ID,
		Type:                 *typ,
		StartsAt:             at,
		ExcludeAppointmentID: original.ID,
	})
	if !verdict.Available {
		clearSlot(rc)
		return stay(StateCollectingNewDate, rc, verdict.Message)
	}

	if _, err := e.appts.Reschedule(ctx, *rc.OriginalID, at); err != nil {
		e.logger.Error("rescheduling appointment", "error", err, "appointment_id", *rc.OriginalID)
		return finish(replyRescheduleFailed)
	}
	return finish(renderRescheduleSuccess(at, e.loc))
}

// matchAppointment fuzzy-matches the user's phrasing against the lead's
// future appointments.
func matchAppointment(text string, appts []appointments.Appointment, loc *time.Location) (*appointments.Appointment, bool) {
	cands := make([]fuzzy.Candidate, len(appts))
	for i, a := range appts {
		cands[i] = appointments.SearchProfile(a, i+1, loc)
	}
	hit, ok := fuzzy.Match(text, cands)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(hit.ID)
	if err != nil {
		return nil, false
	}
	for i := range appts {
		if appts[i].ID == id {
			return &appts[i], true
		}
	}
	return nil, false
}
