package reminder

import (
	"fmt"
	"time"

	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/teambition/rrule-go"
)

// Kind tags what a trigger reminds the user about.
type Kind string

const (
	KindRegular     Kind = "regular"
	KindBirthday    Kind = "birthday"
	KindAnniversary Kind = "anniversary"
)

// Match is a calendar-components match in the style of a platform calendar trigger.
// Zero Month/Day and a nil Weekday are wildcards; Hour and Minute always apply.
type Match struct {
	Month   time.Month    `json:"month,omitempty"`
	Day     int           `json:"day,omitempty"`
	Weekday *time.Weekday `json:"weekday,omitempty"`
	Hour    int           `json:"hour"`
	Minute  int           `json:"minute"`
}

// Trigger is one scheduled local notification bound to a friend.
// A repeating trigger fires on every instant its Match selects; a one-shot
// trigger fires once at FireAt.
type Trigger struct {
	ID         string    `json:"id"`
	ReminderID string    `json:"reminderId"`
	FriendID   string    `json:"friendId"`
	Kind       Kind      `json:"kind"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Match      Match     `json:"match"`
	Repeats    bool      `json:"repeats"`
	FireAt     time.Time `json:"fireAt,omitempty"`
	Read       bool      `json:"read"`
	Triggered  bool      `json:"triggered"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TriggerID returns the stable identifier for a friend's trigger of kind.
// Reusing it on re-registration is what replaces rather than duplicates.
func TriggerID(friendID string, kind Kind) string {
	switch kind {
	case KindBirthday:
		return friendID + config.TriggerSuffixBirthday
	case KindAnniversary:
		return friendID + config.TriggerSuffixAnniversary
	default:
		return friendID
	}
}

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Rule expresses a repeating Match as an RFC 5545 recurrence anchored at dtstart.
func (t Trigger) Rule(dtstart time.Time) *rrule.ROption {
	opt := &rrule.ROption{
		Dtstart:  dtstart.Truncate(time.Second),
		Byhour:   []int{t.Match.Hour},
		Byminute: []int{t.Match.Minute},
		Bysecond: []int{0},
	}

	switch {
	case t.Match.Month != 0 && t.Match.Day != 0:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(t.Match.Month)}
		opt.Bymonthday = []int{t.Match.Day}
	case t.Match.Day != 0:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{t.Match.Day}
	case t.Match.Weekday != nil:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[*t.Match.Weekday]}
	default:
		opt.Freq = rrule.DAILY
	}
	return opt
}

// NextFire returns the first fire time strictly after after.
// A one-shot trigger has none once FireAt has passed.
func (t Trigger) NextFire(after time.Time) (time.Time, bool) {
	if !t.Repeats {
		if t.FireAt.After(after) {
			return t.FireAt, true
		}
		return time.Time{}, false
	}

	r, err := rrule.NewRRule(*t.Rule(after))
	if err != nil {
		return time.Time{}, false
	}
	next := r.After(after, false)
	return next, !next.IsZero()
}

// Validate checks the fields a delivery needs.
func (t Trigger) Validate() error {
	if t.ID == "" || t.FriendID == "" {
		return fmt.Errorf("%s: trigger without id", config.ErrSchedule)
	}
	if !t.Repeats && t.FireAt.IsZero() {
		return fmt.Errorf("%s: one-shot trigger %s has no fire date", config.ErrSchedule, t.ID)
	}
	return nil
}
