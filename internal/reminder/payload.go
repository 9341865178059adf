package reminder

import (
	"errors"
	"fmt"

	"github.com/tartampluch/go-friendcare/internal/config"
)

// ErrInvalidPayload is returned when notification metadata lacks a friend id or names an unknown kind.
var ErrInvalidPayload = errors.New(config.ErrInvalidPayload)

// Payload is the typed record a delivered notification carries back to the app.
type Payload struct {
	FriendID   string
	ReminderID string
	Kind       Kind
}

// Payload extracts the delivery record of t.
func (t Trigger) Payload() Payload {
	return Payload{FriendID: t.FriendID, ReminderID: t.ReminderID, Kind: t.Kind}
}

// Encode flattens p into the metadata map attached to a platform notification.
func (p Payload) Encode() map[string]string {
	m := map[string]string{
		config.PayloadKeyFriendID: p.FriendID,
		config.PayloadKeyKind:     string(p.Kind),
	}
	if p.ReminderID != "" {
		m[config.PayloadKeyReminderID] = p.ReminderID
	}
	return m
}

// DecodePayload validates notification metadata. A missing kind means a regular reminder.
func DecodePayload(m map[string]string) (Payload, error) {
	p := Payload{
		FriendID:   m[config.PayloadKeyFriendID],
		ReminderID: m[config.PayloadKeyReminderID],
		Kind:       Kind(m[config.PayloadKeyKind]),
	}
	if p.FriendID == "" {
		return Payload{}, fmt.Errorf("%w: missing %s", ErrInvalidPayload, config.PayloadKeyFriendID)
	}

	switch p.Kind {
	case "":
		p.Kind = KindRegular
	case KindRegular, KindBirthday, KindAnniversary:
	default:
		return Payload{}, fmt.Errorf("%w: %s %q", ErrInvalidPayload, config.ErrUnknownKind, p.Kind)
	}
	return p, nil
}
