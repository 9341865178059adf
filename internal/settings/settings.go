// Package settings wraps the small set of local flags the session and scheduler
// persist between launches.
package settings

import (
	"fyne.io/fyne/v2"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/identity"
)

// Store reads and writes flags through fyne.Preferences.
type Store struct {
	prefs fyne.Preferences
}

// New wraps prefs.
func New(prefs fyne.Preferences) *Store {
	return &Store{prefs: prefs}
}

// isSet reports whether a bool key has ever been written. fyne.Preferences has no
// "exists" query, so an unset key is the one whose value follows the fallback.
func (s *Store) isSet(key string) bool {
	return s.prefs.BoolWithFallback(key, true) == s.prefs.BoolWithFallback(key, false)
}

// Migration returns the persisted migration flag and whether it was ever written.
func (s *Store) Migration() (migrated, known bool) {
	if !s.isSet(config.PrefMigrated) {
		return false, false
	}
	return s.prefs.Bool(config.PrefMigrated), true
}

// SetMigrated persists the migration flag.
func (s *Store) SetMigrated(v bool) {
	s.prefs.SetBool(config.PrefMigrated, v)
}

// AgreedTerms reports whether the user accepted the terms while signed in with kind.
func (s *Store) AgreedTerms(kind identity.Kind) bool {
	return s.prefs.Bool(config.PrefAgreedTermsPrefix + kind.Key())
}

// SetAgreedTerms records the terms agreement for kind.
func (s *Store) SetAgreedTerms(kind identity.Kind, v bool) {
	s.prefs.SetBool(config.PrefAgreedTermsPrefix+kind.Key(), v)
}

// ClearAgreedTerms forgets the agreement for both providers.
func (s *Store) ClearAgreedTerms() {
	s.prefs.RemoveValue(config.PrefAgreedTermsPrefix + identity.KindKakao.Key())
	s.prefs.RemoveValue(config.PrefAgreedTermsPrefix + identity.KindApple.Key())
}

func (s *Store) DidSeeOnboarding() bool {
	return s.prefs.Bool(config.PrefDidSeeOnboarding)
}

func (s *Store) SetDidSeeOnboarding() {
	s.prefs.SetBool(config.PrefDidSeeOnboarding, true)
}

func (s *Store) LastPushToken() string {
	return s.prefs.String(config.PrefLastPushToken)
}

func (s *Store) SetLastPushToken(token string) {
	s.prefs.SetString(config.PrefLastPushToken, token)
}

func (s *Store) ClearLastPushToken() {
	s.prefs.RemoveValue(config.PrefLastPushToken)
}

// NotificationPermission returns the cached permission answer and whether it was ever requested.
func (s *Store) NotificationPermission() (granted, requested bool) {
	return s.prefs.Bool(config.PrefNotifGranted), s.prefs.Bool(config.PrefNotifRequested)
}

// SetNotificationPermission records that permission was requested and its answer.
func (s *Store) SetNotificationPermission(granted bool) {
	s.prefs.SetBool(config.PrefNotifRequested, true)
	s.prefs.SetBool(config.PrefNotifGranted, granted)
}
