package timeparse

import (
	"regexp"
	"strings"
	"time"
)

// nearFutureBuffer is how far ahead of the reference instant a same-day
// time must be before it counts as reachable. Anything inside the buffer
// rolls the weekday forward one week.
const nearFutureBuffer = 5 * time.Minute

// Result is the outcome of deterministic construction. HasDate and HasTime
// distinguish "no date found" from "date = today".
type Result struct {
	Date    time.Time // midnight in the reference location
	Hour    int
	Minute  int
	HasDate bool
	HasTime bool
}

// Instant combines the resolved date and time into one instant. Only valid
// when both HasDate and HasTime are set.
func (r Result) Instant() time.Time {
	return time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(), r.Hour, r.Minute, 0, 0, r.Date.Location())
}

var spanishWeekdays = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"miércoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
	"sábado":    time.Saturday,
}

var timePhrasePattern = regexp.MustCompile(`(\d{1,2})(?:[:.](\d{2}))?`)

// Resolve turns extracted keyword slots plus a reference instant into a
// candidate date and/or time. Each slot is applied independently; callers
// accumulate partial results across turns.
func Resolve(ext Extraction, ref time.Time, original *time.Time) Result {
	var res Result

	if hour, minute, ok := parseTimePhrase(ext.TimePhrase); ok {
		res.Hour, res.Minute, res.HasTime = hour, minute, true
	}
	if ext.SameTime && original != nil {
		res.Hour, res.Minute, res.HasTime = original.Hour(), original.Minute(), true
	}

	midnight := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}

	switch strings.ToLower(strings.TrimSpace(ext.RelativeDay)) {
	case "hoy":
		res.Date, res.HasDate = midnight(ref), true
	case "mañana", "manana":
		res.Date, res.HasDate = midnight(ref.AddDate(0, 0, 1)), true
	}

	if !res.HasDate && ext.Weekday != "" {
		if target, ok := spanishWeekdays[strings.ToLower(strings.TrimSpace(ext.Weekday))]; ok {
			delta := (int(target) - int(ref.Weekday()) + 7) % 7
			candidate := midnight(ref.AddDate(0, 0, delta))
			if delta == 0 && res.HasTime {
				at := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), res.Hour, res.Minute, 0, 0, candidate.Location())
				if !at.After(ref.Add(nearFutureBuffer)) {
					candidate = candidate.AddDate(0, 0, 7)
				}
			}
			res.Date, res.HasDate = candidate, true
		}
	}

	if ext.DayOfMonth >= 1 && ext.DayOfMonth <= 31 {
		base := ref
		if res.HasDate {
			base = res.Date
		}
		candidate := time.Date(base.Year(), base.Month(), ext.DayOfMonth, 0, 0, 0, 0, ref.Location())
		// A day-of-month that already passed this month means next month.
		if !res.HasDate && candidate.Before(midnight(ref)) {
			candidate = candidate.AddDate(0, 1, 0)
		}
		res.Date, res.HasDate = candidate, true
	}

	return res
}

// parseTimePhrase parses phrases like "5pm", "10:30", "8 de la noche",
// "a las 4 y media de la tarde" into a 24-hour clock pair.
func parseTimePhrase(phrase string) (hour, minute int, ok bool) {
	s := strings.ToLower(strings.TrimSpace(phrase))
	if s == "" {
		return 0, 0, false
	}

	if strings.Contains(s, "mediodia") || strings.Contains(s, "mediodía") {
		return 12, 0, true
	}
	if strings.Contains(s, "medianoche") {
		return 0, 0, true
	}

	m := timePhrasePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	hour = atoiSafe(m[1])
	if m[2] != "" {
		minute = atoiSafe(m[2])
	}
	if strings.Contains(s, "y media") {
		minute = 30
	} else if strings.Contains(s, "y cuarto") {
		minute = 15
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}

	switch {
	case isMorningQualifier(s):
		if hour == 12 {
			hour = 0
		}
	case isAfternoonQualifier(s):
		if hour < 12 {
			hour += 12
		}
	}
	return hour, minute, true
}

func isMorningQualifier(s string) bool {
	return strings.Contains(s, "am") || strings.Contains(s, "a.m") ||
		strings.Contains(s, "mañana") || strings.Contains(s, "manana")
}

func isAfternoonQualifier(s string) bool {
	return strings.Contains(s, "pm") || strings.Contains(s, "p.m") ||
		strings.Contains(s, "tarde") || strings.Contains(s, "noche")
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
