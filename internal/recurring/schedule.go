package recurring

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseFrequency normalizes s and reports whether it names a known frequency
func ParseFrequency(s string) (Frequency, bool) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return f, true
	}
	return Monthly, false
}

// Advance returns the occurrence after date. Monthly and yearly steps land on the same
// day of the month, clamped to the target month's last day (Jan 31 -> Feb 28).
// Unknown frequencies advance monthly.
func Advance(date time.Time, f Frequency) time.Time {
	return advanceAnchored(date, f, date.Day())
}

// advanceAnchored steps from date, aiming month and year steps at anchorDay so a
// template started on the 31st returns to the 31st after a short month.
func advanceAnchored(date time.Time, f Frequency, anchorDay int) time.Time {
	switch f {
	case Daily:
		return date.AddDate(0, 0, 1)
	case Weekly:
		return date.AddDate(0, 0, 7)
	case Yearly:
		return addMonths(date, 12, anchorDay)
	default:
		return addMonths(date, 1, anchorDay)
	}
}

func addMonths(date time.Time, months, anchorDay int) time.Time {
	y, m, _ := date.Date()
	first := time.Date(y, m+time.Month(months), 1, date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(anchorDay, last)-1)
}

// next is the occurrence after t's current execution date
func (t *Template) next() time.Time {
	return advanceAnchored(t.NextExecutionDate, t.Frequency, t.StartDate.Day())
}

// day truncates t to midnight UTC of its calendar date
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
