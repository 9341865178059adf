package friend

import (
	"time"
)

// Origin records where a friend was first imported from.
type Origin string

const (
	OriginKakao    Origin = "kakao"
	OriginContacts Origin = "contacts"
)

// Anniversary is a user-named yearly date attached to a friend.
type Anniversary struct {
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// Friend is a tracked contact the user wants to keep in touch with.
type Friend struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	Origin       Origin       `json:"origin"`
	Recurrence   Recurrence   `json:"recurrence,omitempty"`
	Category     string       `json:"category,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Relationship string       `json:"relationship,omitempty"`
	BirthDate    *time.Time   `json:"birthDate,omitempty"`
	Anniversary  *Anniversary `json:"anniversary,omitempty"`
	Memo         string       `json:"memo,omitempty"`

	// NextContactAt is always LastContactAt (or the cadence anchor) advanced by Recurrence.
	NextContactAt *time.Time `json:"nextContactAt,omitempty"`
	LastContactAt *time.Time `json:"lastContactAt,omitempty"`

	CareRate *int `json:"careRate,omitempty"` // 0-100
	Position *int `json:"position,omitempty"`
}

// RecordCheckIn advances the contact cadence after the user cared for this friend.
func (f *Friend) RecordCheckIn(now time.Time) {
	last := now
	f.LastContactAt = &last
	f.Reschedule(now)
}

// Reschedule recomputes NextContactAt from anchor, clearing it when the cadence has no interval.
func (f *Friend) Reschedule(anchor time.Time) {
	next, ok := f.Recurrence.Advance(anchor)
	if !ok {
		f.NextContactAt = nil
		return
	}
	f.NextContactAt = &next
}

// Due reports whether the next check-in is at or before now.
func (f Friend) Due(now time.Time) bool {
	return f.NextContactAt != nil && !f.NextContactAt.After(now)
}
