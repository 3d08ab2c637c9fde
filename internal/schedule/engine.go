package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/appointments"
	observemetrics "github.com/citaflow/citaflow/internal/observability/metrics"
	"github.com/citaflow/citaflow/pkg/logging"
)

// Reason codes carried on every rejection.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonOutsideHours Reason = "FUERA_DE_HORARIO"
	ReasonConcurrency  Reason = "LIMITE_CONCURRENCIA"
	ReasonDuplicate    Reason = "CITA_DUPLICADA"
	ReasonInternal     Reason = "ERROR_INTERNO"
)

// Verdict is the engine's answer for one candidate slot.
type Verdict struct {
	Available bool
	Reason    Reason
	Message   string
}

// Request describes the slot to check. ExcludeAppointmentID (uuid.Nil when
// unused) removes the original appointment from conflict checks during a
// reschedule.
type Request struct {
	BusinessID           uuid.UUID
	LeadID               uuid.UUID
	Type                 appointments.AppointmentType
	StartsAt             time.Time
	ExcludeAppointmentID uuid.UUID
}

type hoursStore interface {
	WeeklyHours(ctx context.Context, businessID uuid.UUID, weekday time.Weekday) (*BusinessHours, error)
	ExceptionFor(ctx context.Context, businessID uuid.UUID, date time.Time) (*Exception, error)
}

type conflictStore interface {
	HasDuplicate(ctx context.Context, businessID, leadID, typeID uuid.UUID, startsAt time.Time) (bool, error)
	CountOverlapping(ctx context.Context, businessID, typeID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (int, error)
}

// Engine decides whether a candidate slot is bookable. Checks run in order
// and the first failure short-circuits: duplicate, operating hours,
// concurrency. Any internal error is reported as ERROR_INTERNO, never
// propagated.
type Engine struct {
	hours     hoursStore
	conflicts conflictStore
	loc       *time.Location
	logger    *logging.Logger
	metrics   *observemetrics.TurnMetrics
}

func NewEngine(hours hoursStore, conflicts conflictStore, loc *time.Location, logger *logging.Logger) *Engine {
	if hours == nil || conflicts == nil {
		panic("schedule: hours and conflict stores required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{hours: hours, conflicts: conflicts, loc: loc, logger: logger}
}

// WithMetrics attaches rejection counters. A nil collector is a no-op.
func (e *Engine) WithMetrics(m *observemetrics.TurnMetrics) *Engine {
	e.metrics = m
	return e
}

// Check runs the ordered availability checks for one slot.
func (e *Engine) Check(ctx context.Context, req Request) (verdict Verdict) {
	defer func() {
		if !verdict.Available && verdict.Reason != ReasonNone {
			e.metrics.ObserveSlotRejection(string(verdict.Reason))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("availability check panicked", "panic", r)
			verdict = internalVerdict()
		}
	}()

	dup, err := e.conflicts.HasDuplicate(ctx, req.BusinessID, req.LeadID, req.Type.ID, req.StartsAt)
	if err != nil {
		e.logger.Error("duplicate check failed", "error", err)
		return internalVerdict()
	}
	if dup {
		return Verdict{
			Available: false,
			Reason:    ReasonDuplicate,
			Message:   "Ya tienes una cita de ese servicio en ese mismo horario.",
		}
	}

	window, open, err := e.resolveWindow(ctx, req.BusinessID, req.StartsAt)
	if err != nil {
		e.logger.Error("hours lookup failed", "error", err)
		return internalVerdict()
	}

	local := req.StartsAt.In(e.loc)
	startMinute := local.Hour()*60 + local.Minute()
	endMinute := startMinute + req.Type.DurationMinutes
	if !open || !window.Contains(startMinute, endMinute) {
		return Verdict{
			Available: false,
			Reason:    ReasonOutsideHours,
			Message:   "Ese horario está fuera de nuestro horario de atención. ¿Te gustaría otro?",
		}
	}

	end := req.StartsAt.Add(req.Type.Duration())
	count, err := e.conflicts.CountOverlapping(ctx, req.BusinessID, req.Type.ID, req.StartsAt, end, req.ExcludeAppointmentID)
	if err != nil {
		e.logger.Error("concurrency check failed", "error", err)
		return internalVerdict()
	}
	if count >= req.Type.ConcurrencyLimit {
		return Verdict{
			Available: false,
			Reason:    ReasonConcurrency,
			Message:   "Ese horario ya está lleno. ¿Te gustaría intentar con otro?",
		}
	}

	return Verdict{Available: true}
}

// resolveWindow returns the open window for the slot's date. A date
// exception takes precedence over the recurring weekly schedule.
func (e *Engine) resolveWindow(ctx context.Context, businessID uuid.UUID, at time.Time) (Window, bool, error) {
	local := at.In(e.loc)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.loc)

	exc, err := e.hours.ExceptionFor(ctx, businessID, date)
	if err != nil {
		return Window{}, false, err
	}
	if exc != nil {
		if exc.Closed {
			return Window{}, false, nil
		}
		return Window{OpenMinute: exc.OpenMinute, CloseMinute: exc.CloseMinute}, true, nil
	}

	weekly, err := e.hours.WeeklyHours(ctx, businessID, local.Weekday())
	if err != nil {
		return Window{}, false, err
	}
	if weekly == nil {
		return Window{}, false, nil
	}
	return Window{OpenMinute: weekly.OpenMinute, CloseMinute: weekly.CloseMinute}, true, nil
}

func internalVerdict() Verdict {
	return Verdict{
		Available: false,
		Reason:    ReasonInternal,
		Message:   "Tuvimos un problema al verificar la disponibilidad. Intenta de nuevo en un momento.",
	}
}
