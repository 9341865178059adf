// Package session owns the signed-in user: auto-login across identity providers,
// the one-time migration check, and the logout and withdraw side effects.
package session

import (
	"errors"

	"github.com/tartampluch/go-friendcare/internal/backend"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/identity"
	"github.com/tartampluch/go-friendcare/internal/tokenstore"
)

var (
	// ErrMissingToken is returned when an operation needs a backend access token and none is stored.
	ErrMissingToken = errors.New(config.ErrMissingToken)
	// ErrInvalidSession is returned when a session cannot be built or none is active.
	ErrInvalidSession = errors.New(config.ErrInvalidSession)
)

// State is the screen-level position of the app in the session lifecycle.
type State string

const (
	StateSplash     State = "splash"
	StateOnboarding State = "onboarding"
	StateLogin      State = "login"
	StateTerms      State = "terms"
	StateHome       State = "home"
)

// Session is the authenticated principal. Both tokens are always non-empty.
type Session struct {
	UserID       string
	Name         string
	Provider     identity.Kind
	AccessToken  string
	RefreshToken string
	Friends      []friend.Friend
	CareRate     int
}

// New builds a session from a fetched profile.
func New(p backend.Profile, provider identity.Kind, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, ErrInvalidSession
	}
	return &Session{
		UserID:       p.ID,
		Name:         p.Name,
		Provider:     provider,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CareRate:     p.CareRate,
	}, nil
}

// clone copies s including its friend slice.
func (s *Session) clone() Session {
	c := *s
	c.Friends = append([]friend.Friend(nil), s.Friends...)
	return c
}

// providerClass maps a provider to the token class its credentials are stored under.
func providerClass(kind identity.Kind) tokenstore.Class {
	if kind == identity.KindApple {
		return tokenstore.ClassApple
	}
	return tokenstore.ClassKakao
}
