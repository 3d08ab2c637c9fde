package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tuesday, March 10 2026, 09:00 local.
func refTuesday() time.Time {
	return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func TestResolveRelativeDays(t *testing.T) {
	ref := refTuesday()

	hoy := Resolve(Extraction{RelativeDay: "hoy"}, ref, nil)
	require.True(t, hoy.HasDate)
	assert.Equal(t, ref.Day(), hoy.Date.Day())
	assert.False(t, hoy.HasTime)

	manana := Resolve(Extraction{RelativeDay: "mañana"}, ref, nil)
	require.True(t, manana.HasDate)
	assert.Equal(t, ref.Day()+1, manana.Date.Day())
}

func TestResolveWeekdayNextOccurrenceIsAlwaysNearFuture(t *testing.T) {
	weekdays := []string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

	// Walk two full weeks of reference dates against every weekday name.
	for offset := 0; offset < 14; offset++ {
		ref := refTuesday().AddDate(0, 0, offset)
		for _, wd := range weekdays {
			res := Resolve(Extraction{Weekday: wd}, ref, nil)
			require.True(t, res.HasDate, "weekday %q should resolve", wd)

			days := int(res.Date.Sub(time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())).Hours() / 24)
			assert.GreaterOrEqual(t, days, 0, "%q from %s", wd, ref.Weekday())
			assert.LessOrEqual(t, days, 6, "%q from %s", wd, ref.Weekday())
			assert.Equal(t, spanishWeekdays[wd], res.Date.Weekday())
		}
	}
}

func TestResolveSameDayRollover(t *testing.T) {
	ref := refTuesday() // 09:00

	tests := []struct {
		name     string
		phrase   string
		wantDays int
	}{
		{"time already past rolls a week", "8am", 7},
		{"time inside the 5 minute buffer rolls a week", "9:04 am", 7},
		{"time comfortably ahead stays today", "11am", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(Extraction{Weekday: "martes", TimePhrase: tt.phrase}, ref, nil)
			require.True(t, res.HasDate)
			require.True(t, res.HasTime)

			days := int(res.Date.Sub(time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())).Hours() / 24)
			assert.Equal(t, tt.wantDays, days)
			assert.Equal(t, time.Tuesday, res.Date.Weekday())
		})
	}
}

func TestResolveDayOfMonthOverridesDayComponent(t *testing.T) {
	ref := refTuesday() // March 10

	res := Resolve(Extraction{DayOfMonth: 25}, ref, nil)
	require.True(t, res.HasDate)
	assert.Equal(t, 25, res.Date.Day())
	assert.Equal(t, time.March, res.Date.Month())

	// A day that already passed this month lands in the next month.
	past := Resolve(Extraction{DayOfMonth: 3}, ref, nil)
	require.True(t, past.HasDate)
	assert.Equal(t, 3, past.Date.Day())
	assert.Equal(t, time.April, past.Date.Month())
}

func TestResolveTimePhrases(t *testing.T) {
	tests := []struct {
		phrase     string
		wantHour   int
		wantMinute int
	}{
		{"5pm", 17, 0},
		{"a las 5 de la tarde", 17, 0},
		{"8 de la noche", 20, 0},
		{"10:30", 10, 30},
		{"10:30 am", 10, 30},
		{"12pm", 12, 0},
		{"12am", 0, 0},
		{"11 de la mañana", 11, 0},
		{"mediodía", 12, 0},
		{"4 y media de la tarde", 16, 30},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			res := Resolve(Extraction{TimePhrase: tt.phrase}, refTuesday(), nil)
			require.True(t, res.HasTime)
			assert.Equal(t, tt.wantHour, res.Hour)
			assert.Equal(t, tt.wantMinute, res.Minute)
			assert.False(t, res.HasDate)
		})
	}
}

func TestResolveUnparsableTimePhrase(t *testing.T) {
	res := Resolve(Extraction{TimePhrase: "cuando puedas"}, refTuesday(), nil)
	assert.False(t, res.HasTime)
	assert.False(t, res.HasDate)
}

func TestResolveSameTimeCopiesOriginal(t *testing.T) {
	original := time.Date(2026, 3, 3, 16, 45, 0, 0, time.UTC)

	res := Resolve(Extraction{SameTime: true, Weekday: "jueves"}, refTuesday(), &original)
	require.True(t, res.HasTime)
	assert.Equal(t, 16, res.Hour)
	assert.Equal(t, 45, res.Minute)
	require.True(t, res.HasDate)
	assert.Equal(t, time.Thursday, res.Date.Weekday())

	// Without the original instant, "misma hora" resolves nothing.
	none := Resolve(Extraction{SameTime: true}, refTuesday(), nil)
	assert.False(t, none.HasTime)
}

func TestResolveSplitPhrasesMatchFullPhrase(t *testing.T) {
	ref := refTuesday()

	full := Resolve(Extraction{Weekday: "jueves", TimePhrase: "5pm"}, ref, nil)
	require.True(t, full.HasDate)
	require.True(t, full.HasTime)

	dateOnly := Resolve(Extraction{Weekday: "jueves"}, ref, nil)
	timeOnly := Resolve(Extraction{TimePhrase: "5pm"}, ref, nil)
	require.True(t, dateOnly.HasDate)
	require.True(t, timeOnly.HasTime)

	merged := Result{
		Date:    dateOnly.Date,
		Hour:    timeOnly.Hour,
		Minute:  timeOnly.Minute,
		HasDate: true,
		HasTime: true,
	}
	assert.Equal(t, full.Instant(), merged.Instant())
}

func TestResolveNothing(t *testing.T) {
	res := Resolve(Extraction{}, refTuesday(), nil)
	assert.False(t, res.HasDate)
	assert.False(t, res.HasTime)
}
