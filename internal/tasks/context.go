package tasks

import (
	"time"

	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/timeparse"
)

// BookContext accumulates the booking task's fields across turns. Pointer
// fields distinguish "confirmed" from "not yet known"; a confirmed field is
// never overwritten by a later extraction.
type BookContext struct {
	TypeID   *uuid.UUID `json:"type_id,omitempty"`
	TypeName string     `json:"type_name,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
	Hour     *int       `json:"hour,omitempty"`
	Minute   *int       `json:"minute,omitempty"`
}

// RescheduleContext tracks the original appointment and the new slot being
// assembled.
type RescheduleContext struct {
	OriginalID *uuid.UUID `json:"original_id,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Hour       *int       `json:"hour,omitempty"`
	Minute     *int       `json:"minute,omitempty"`
}

// CancelContext remembers the appointment pending cancellation.
type CancelContext struct {
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

// slotFields is the shared date/time accumulation used by book and
// reschedule contexts.
type slotFields interface {
	dateField() **time.Time
	hourField() **int
	minuteField() **int
}

func (c *BookContext) dateField() **time.Time { return &c.Date }
func (c *BookContext) hourField() **int       { return &c.Hour }
func (c *BookContext) minuteField() **int     { return &c.Minute }

func (c *RescheduleContext) dateField() **time.Time { return &c.Date }
func (c *RescheduleContext) hourField() **int       { return &c.Hour }
func (c *RescheduleContext) minuteField() **int     { return &c.Minute }

// mergeResolved folds a resolver result into the context without touching
// already-confirmed fields.
func mergeResolved(c slotFields, res timeparse.Result) {
	if res.HasDate && *c.dateField() == nil {
		d := res.Date
		*c.dateField() = &d
	}
	if res.HasTime && *c.hourField() == nil {
		h, m := res.Hour, res.Minute
		*c.hourField() = &h
		*c.minuteField() = &m
	}
}

// slotComplete reports whether both date and time are known.
func slotComplete(c slotFields) bool {
	return *c.dateField() != nil && *c.hourField() != nil
}

// slotInstant combines the accumulated date and time. Only valid when
// slotComplete.
func slotInstant(c slotFields) time.Time {
	d := **c.dateField()
	return time.Date(d.Year(), d.Month(), d.Day(), **c.hourField(), **c.minuteField(), 0, 0, d.Location())
}

// clearSlot discards the candidate date and time, typically after an
// availability rejection.
func clearSlot(c slotFields) {
	*c.dateField() = nil
	*c.hourField() = nil
	*c.minuteField() = nil
}
