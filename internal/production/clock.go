package production

import "time"

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

// Day truncates t to midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return Day(a, loc).Equal(Day(b, loc))
}
