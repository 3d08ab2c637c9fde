package schedule

import (
	"time"

	"github.com/google/uuid"
)

// BusinessHours is one recurring weekly open window.
type BusinessHours struct {
	BusinessID  uuid.UUID
	Weekday     time.Weekday
	OpenMinute  int // minutes from midnight, business timezone
	CloseMinute int
}

// Exception overrides the recurring schedule for one specific date: either
// closed for the day, or a custom open window.
type Exception struct {
	BusinessID  uuid.UUID
	Date        time.Time // midnight, business timezone
	Closed      bool
	OpenMinute  int
	CloseMinute int
}

// Window is a resolved open interval for a date.
type Window struct {
	OpenMinute  int
	CloseMinute int
}

// Contains reports whether [startMinute, endMinute) fits entirely inside
// the window.
func (w Window) Contains(startMinute, endMinute int) bool {
	return startMinute >= w.OpenMinute && endMinute <= w.CloseMinute
}
