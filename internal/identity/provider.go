// Package identity talks to the two external sign-in providers.
package identity

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/tartampluch/go-friendcare/internal/config"
)

// Kind names an identity provider. Its string form is what the backend expects as socialType.
type Kind string

const (
	KindKakao Kind = config.ProviderKakao
	KindApple Kind = config.ProviderApple
)

// String returns the backend spelling of the provider.
func (k Kind) String() string { return string(k) }

// Key is the lower-case form used in preference keys.
func (k Kind) Key() string { return strings.ToLower(string(k)) }

var (
	ErrInvalidToken   = errors.New(config.ErrInvalidToken)
	ErrMissingAnchor  = errors.New(config.ErrMissingAnchor)
	ErrNoRefreshToken = errors.New(config.ErrNoRefreshToken)
)

// Credential is what a provider hands back after a successful sign-in or refresh.
// Token is the value the backend accepts for /auth/social: the access token for
// Kakao, the identity token for Apple.
type Credential struct {
	Token        string
	RefreshToken string
	Expiry       time.Time
}

// Presenter shows the provider's sign-in page to the user. fyne.App satisfies it.
type Presenter interface {
	OpenURL(u *url.URL) error
}

// Provider is an external identity provider.
type Provider interface {
	Kind() Kind

	// Validate returns nil when token is still accepted by the provider and
	// ErrInvalidToken when it is not.
	Validate(ctx context.Context, token string) error

	// Refresh silently obtains a new credential from a stored refresh token.
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)

	// SignIn runs the interactive flow through presenter. A nil presenter fails with ErrMissingAnchor.
	SignIn(ctx context.Context, presenter Presenter) (*Credential, error)
}
