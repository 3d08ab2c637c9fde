package appointments

import (
	"fmt"
	"strconv"
	"time"

	"github.com/citaflow/citaflow/internal/fuzzy"
)

var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "domingo",
	time.Monday:    "lunes",
	time.Tuesday:   "martes",
	time.Wednesday: "miércoles",
	time.Thursday:  "jueves",
	time.Friday:    "viernes",
	time.Saturday:  "sábado",
}

// SearchProfile builds the fuzzy candidate for one appointment: weekday
// name, day of month, 12-hour time, and subject words, rendered in the
// business timezone.
func SearchProfile(appt Appointment, ordinal int, loc *time.Location) fuzzy.Candidate {
	if loc == nil {
		loc = time.UTC
	}
	local := appt.StartsAt.In(loc)

	hour12 := local.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	meridiem := "am"
	if local.Hour() >= 12 {
		meridiem = "pm"
	}

	profile := []string{
		weekdayNames[local.Weekday()],
		strconv.Itoa(local.Day()),
		strconv.Itoa(hour12),
		fmt.Sprintf("%d:%02d", hour12, local.Minute()),
		meridiem,
	}
	profile = append(profile, fuzzy.Tokenize(appt.Subject)...)

	return fuzzy.Candidate{
		ID:       appt.ID.String(),
		Ordinal:  ordinal,
		FullName: appt.Subject,
		Profile:  profile,
	}
}

// Describe renders one appointment for user-facing lists, in the business
// timezone: "martes 10 de marzo, 10:00 am - Consulta".
func Describe(appt Appointment, loc *time.Location) string {
	s := DescribeInstant(appt.StartsAt, loc)
	if appt.Subject != "" {
		s += " - " + appt.Subject
	}
	return s
}

// DescribeInstant renders one instant in Spanish, in the business timezone.
func DescribeInstant(at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)

	hour12 := local.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	meridiem := "am"
	if local.Hour() >= 12 {
		meridiem = "pm"
	}

	return fmt.Sprintf("%s %d de %s, %d:%02d %s",
		weekdayNames[local.Weekday()],
		local.Day(),
		monthNames[local.Month()],
		hour12,
		local.Minute(),
		meridiem,
	)
}

var monthNames = map[time.Month]string{
	time.January:   "enero",
	time.February:  "febrero",
	time.March:     "marzo",
	time.April:     "abril",
	time.May:       "mayo",
	time.June:      "junio",
	time.July:      "julio",
	time.August:    "agosto",
	time.September: "septiembre",
	time.October:   "octubre",
	time.November:  "noviembre",
	time.December:  "diciembre",
}
