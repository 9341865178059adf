package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tartampluch/go-friendcare/internal/config"
	"golang.org/x/oauth2"
)

// AppleConfig holds the OAuth2 client settings for the Apple provider.
type AppleConfig struct {
	ClientID string
	AuthURL  string
	TokenURL string
}

// AppleProvider works with identity tokens (JWTs). Their signature is verified by
// the backend on /auth/social; locally we only need to know whether one has expired.
type AppleProvider struct {
	oauth  *oauth2.Config
	Client *http.Client
	Now    func() time.Time
}

// NewAppleProvider builds a provider from cfg.
func NewAppleProvider(cfg AppleConfig) *AppleProvider {
	return &AppleProvider{
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{config.OAuthScopeOpenID, config.OAuthScopeName},
		},
		Client: &http.Client{Timeout: config.HTTPTimeout},
		Now:    time.Now,
	}
}

// Kind returns KindApple.
func (p *AppleProvider) Kind() Kind { return KindApple }

// Validate checks the exp claim of the identity token.
func (p *AppleProvider) Validate(_ context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(p.Now()) {
		return ErrInvalidToken
	}
	return nil
}

// Refresh exchanges the Apple refresh token for a new identity token.
func (p *AppleProvider) Refresh(ctx context.Context, refresh string) (*Credential, error) {
	tok, err := refreshToken(ctx, p.oauth, p.Client, refresh)
	if err != nil {
		return nil, err
	}
	return credentialFromIDToken(tok)
}

// SignIn opens the Apple sign-in page through presenter.
func (p *AppleProvider) SignIn(ctx context.Context, presenter Presenter) (*Credential, error) {
	tok, err := authorizeInteractive(ctx, p.oauth, p.Client, presenter)
	if err != nil {
		return nil, err
	}
	return credentialFromIDToken(tok)
}

func credentialFromIDToken(tok *oauth2.Token) (*Credential, error) {
	idToken, ok := tok.Extra(config.OAuthExtraIDToken).(string)
	if !ok || idToken == "" {
		return nil, errors.New(config.ErrNoIDToken)
	}
	return &Credential{Token: idToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}, nil
}
