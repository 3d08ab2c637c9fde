package appointments

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusRescheduled, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusRescheduled, StatusCancelled, false},
		{StatusCompleted, StatusRescheduled, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestSearchProfileUsesBusinessTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/Mexico_City")
	assert.NoError(t, err)

	appt := Appointment{
		ID: uuid.New(),
		// 16:00 UTC = 10:00 in Mexico City (CST).
		StartsAt: time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC),
		Subject:  "Consulta dental",
	}

	cand := SearchProfile(appt, 2, loc)

	assert.Equal(t, appt.ID.String(), cand.ID)
	assert.Equal(t, 2, cand.Ordinal)
	assert.Contains(t, cand.Profile, "martes")
	assert.Contains(t, cand.Profile, "10")
	assert.Contains(t, cand.Profile, "10:00")
	assert.Contains(t, cand.Profile, "am")
	assert.Contains(t, cand.Profile, "consulta")
	assert.Contains(t, cand.Profile, "dental")
}

func TestDescribeRendersSpanish(t *testing.T) {
	appt := Appointment{
		StartsAt: time.Date(2026, 3, 10, 17, 30, 0, 0, time.UTC),
		Subject:  "Consulta",
	}

	got := Describe(appt, time.UTC)
	assert.Equal(t, "martes 10 de marzo, 5:30 pm - Consulta", got)
}
