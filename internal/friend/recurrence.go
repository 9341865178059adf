package friend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Recurrence is the check-in cadence chosen for a friend.
type Recurrence string

const (
	RecurrenceNone       Recurrence = ""
	RecurrenceDaily      Recurrence = "daily"
	RecurrenceWeekly     Recurrence = "weekly"
	RecurrenceBiweekly   Recurrence = "biweekly"
	RecurrenceMonthly    Recurrence = "monthly"
	RecurrenceSemiannual Recurrence = "semiannual"
)

// Recurrences lists every cadence that yields a next occurrence.
var Recurrences = []Recurrence{
	RecurrenceDaily,
	RecurrenceWeekly,
	RecurrenceBiweekly,
	RecurrenceMonthly,
	RecurrenceSemiannual,
}

// ParseRecurrence accepts the backend spelling (upper case, "NONE" or empty for no cadence).
func ParseRecurrence(s string) (Recurrence, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == "none" {
		return RecurrenceNone, nil
	}
	for _, r := range Recurrences {
		if string(r) == v {
			return r, nil
		}
	}
	return RecurrenceNone, fmt.Errorf("unknown recurrence %q", s)
}

// Advance returns from shifted by one interval of the cadence.
// Month steps keep the day of month, clamped to the length of the target month.
func (r Recurrence) Advance(from time.Time) (time.Time, bool) {
	switch r {
	case RecurrenceDaily:
		return from.AddDate(0, 0, 1), true
	case RecurrenceWeekly:
		return from.AddDate(0, 0, 7), true
	case RecurrenceBiweekly:
		return from.AddDate(0, 0, 14), true
	case RecurrenceMonthly:
		return addMonths(from, 1), true
	case RecurrenceSemiannual:
		return addMonths(from, 6), true
	default:
		return time.Time{}, false
	}
}

// addMonths moves from by n calendar months. Jan 31 + 1 month is Feb 28 (29 in leap years),
// where time.AddDate would overflow into March.
func addMonths(from time.Time, n int) time.Time {
	y, m, d := from.Date()
	first := time.Date(y, m+time.Month(n), 1, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// UnmarshalJSON tolerates the backend's upper-case enum and null.
func (r *Recurrence) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*r = RecurrenceNone
		return nil
	}
	parsed, err := ParseRecurrence(*s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
