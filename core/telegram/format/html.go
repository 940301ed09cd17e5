package format

import (
	"html"
	"strconv"
	"time"
)

// Escape makes user-provided text safe for HTML parse mode.
func Escape(text string) string {
	return html.EscapeString(text)
}

// Quantity renders a float without trailing zeros: 10, 2.5, 0.00157.
func Quantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Clock renders a wall-clock time as HH:MM in loc.
func Clock(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("15:04")
}

// Deref safely dereferences p and returns def if nil.
func Deref[T any](p *T, def T) T {
	if p != nil {
		return *p
	}
	return def
}
