// Package backend is the REST façade the session and friend sync talk to.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/identity"
)

// Tokens is the backend's own credential pair issued on social login.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	Expiry       time.Time `json:"-"`
}

// Profile is the signed-in member as returned by /member/me.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CareRate int    `json:"careRate"`
}

// Client is every backend call the core consumes. Each call is a single
// request/response with no retry; callers decide how to fall back.
type Client interface {
	LoginWithProvider(ctx context.Context, providerToken string, kind identity.Kind) (*Tokens, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
	CheckMigrationStatus(ctx context.Context, accessToken string) (bool, error)
	StartMigration(ctx context.Context, accessToken string) error
	Withdraw(ctx context.Context, accessToken, reason, detail string) error
	RegisterPushToken(ctx context.Context, accessToken, pushToken string) error
	FetchFriends(ctx context.Context, accessToken string) ([]friend.Friend, error)
	InitFriends(ctx context.Context, accessToken string, friends []friend.Friend) error
	CheckIn(ctx context.Context, accessToken, friendID string) (*friend.Friend, error)
}

// TransportError wraps every failed backend call: network, unexpected status, or decoding.
type TransportError struct {
	Op     string
	Status int // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s %d: %v", config.ErrTransport, e.Op, config.ErrUnexpectedStatus, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", config.ErrTransport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
