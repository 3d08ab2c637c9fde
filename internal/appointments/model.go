package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state. Transitions are monotonic:
// PENDING may move to any terminal status, terminal statuses never change.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusCancelled   Status = "CANCELLED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusCompleted   Status = "COMPLETED"
)

// CanTransitionTo reports whether the status change is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusCancelled, StatusRescheduled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Modality distinguishes virtual from in-person appointments.
type Modality string

const (
	ModalityVirtual  Modality = "virtual"
	ModalityInPerson Modality = "presencial"
)

// Appointment is one scheduled slot for a lead.
type Appointment struct {
	ID          uuid.UUID
	BusinessID  uuid.UUID
	LeadID      uuid.UUID
	AssistantID uuid.UUID
	TypeID      uuid.UUID
	StartsAt    time.Time
	Subject     string
	Modality    Modality
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AppointmentType describes one bookable service.
type AppointmentType struct {
	ID               uuid.UUID
	BusinessID       uuid.UUID
	Name             string
	DurationMinutes  int
	ConcurrencyLimit int
	Active           bool
	Virtual          bool
	InPerson         bool
}

// Duration returns the appointment length.
func (t AppointmentType) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}
