package tasks

import "context"

// handleList resolves in a single turn: render the lead's upcoming
// appointments and finish.
func (e *Engine) handleList(ctx context.Context, task *Task, turn Turn) outcome {
	if task.State != StateCollectingData {
		return e.brokenState(task)
	}

	appts, err := e.appts.ListFutureByLead(ctx, turn.Conversation.BusinessID, turn.Lead.ID, turn.Now)
	if err != nil {
		e.logger.Error("listing appointments", "error", err, "lead_id", turn.Lead.ID)
		return finish(replyTaskBroken)
	}
	if len(appts) == 0 {
		return finish(replyNoAppointments)
	}
	return finish(renderAppointmentList("Estas son tus próximas citas:", appts, e.loc))
}
