package identity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tartampluch/go-friendcare/internal/config"
	"golang.org/x/oauth2"
)

// KakaoConfig holds the OAuth2 client settings for the Kakao provider.
type KakaoConfig struct {
	ClientID     string
	AuthURL      string
	TokenURL     string
	TokenInfoURL string
}

// KakaoProvider validates access tokens against the token-info endpoint and
// refreshes them through the standard OAuth2 refresh grant.
type KakaoProvider struct {
	oauth        *oauth2.Config
	tokenInfoURL string
	Client       *http.Client
}

// NewKakaoProvider builds a provider from cfg.
func NewKakaoProvider(cfg KakaoConfig) *KakaoProvider {
	return &KakaoProvider{
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokenInfoURL: cfg.TokenInfoURL,
		Client:       &http.Client{Timeout: config.HTTPTimeout},
	}
}

// Kind returns KindKakao.
func (p *KakaoProvider) Kind() Kind { return KindKakao }

// Validate asks the provider whether token is still live. 401 means invalid;
// any other non-200 is a transport problem rather than a verdict on the token.
func (p *KakaoProvider) Validate(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.tokenInfoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(config.HeaderAuthorization, config.AuthScheme+token)
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("validating kakao token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusBadRequest:
		return ErrInvalidToken
	default:
		return fmt.Errorf("%s: %d", config.ErrUnexpectedStatus, resp.StatusCode)
	}
}

// Refresh performs the silent re-login.
func (p *KakaoProvider) Refresh(ctx context.Context, refresh string) (*Credential, error) {
	tok, err := refreshToken(ctx, p.oauth, p.Client, refresh)
	if err != nil {
		return nil, err
	}
	return &Credential{Token: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}, nil
}

// SignIn opens the Kakao consent page through presenter.
func (p *KakaoProvider) SignIn(ctx context.Context, presenter Presenter) (*Credential, error) {
	tok, err := authorizeInteractive(ctx, p.oauth, p.Client, presenter)
	if err != nil {
		return nil, err
	}
	return &Credential{Token: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}, nil
}
