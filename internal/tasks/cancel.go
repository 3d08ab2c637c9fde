package tasks

import (
	"context"

	"github.com/citaflow/citaflow/internal/appointments"
)

// handleCancel drives the cancelar_cita machine: pick the appointment,
// confirm, mark it cancelled.
func (e *Engine) handleCancel(ctx context.Context, task *Task, turn Turn) outcome {
	var cc CancelContext
	if err := task.DecodeContext(&cc); err != nil {
		e.logger.Error("corrupt cancel context", "error", err, "conversation_id", task.ConversationID)
		return e.brokenState(task)
	}

	switch task.State {
	case StateCollectingData:
		return e.cancelIdentify(ctx, &cc, turn)
	case StatePendingConfirmation:
		return e.cancelConfirm(ctx, &cc, turn)
	default:
		return e.brokenState(task)
	}
}

func (e *Engine) cancelIdentify(ctx context.Context, cc *CancelContext, turn Turn) outcome {
	appts, err := e.appts.ListFutureByLead(ctx, turn.Conversation.BusinessID, turn.Lead.ID, turn.Now)
	if err != nil {
		e.logger.Error("listing appointments", "error", err, "lead_id", turn.Lead.ID)
		return finish(replyTaskBroken)
	}
	if len(appts) == 0 {
		return finish(replyNoAppointments)
	}

	var target *appointments.Appointment
	if len(appts) == 1 {
		target = &appts[0]
	} else if hit, ok := matchAppointment(turn.Message.Text, appts, e.loc); ok {
		target = hit
	} else {
		return stay(StateCollectingData, cc,
			renderAppointmentList("¿Cuál de tus citas quieres cancelar?", appts, e.loc))
	}

	id := target.ID
	cc.AppointmentID = &id
	return stay(StatePendingConfirmation, cc, renderCancelSummary(*target, e.loc))
}

func (e *Engine) cancelConfirm(ctx context.Context, cc *CancelContext, turn Turn) outcome {
	switch parseConfirmation(turn.Message.Text) {
	case confirmNo:
		return finish(replyDeclinedAck)
	case confirmUnknown:
		return stay(StatePendingConfirmation, cc, replyAskConfirmation)
	}

	if cc.AppointmentID == nil {
		return finish(replyTaskBroken)
	}
	if err := e.appts.UpdateStatus(ctx, *cc.AppointmentID, appointments.StatusCancelled); err != nil {
		e.logger.Error("cancelling appointment", "error", err, "appointment_id", *cc.AppointmentID)
		return finish(replyCancelFailed)
	}
	return finish(replyCancelDone)
}
