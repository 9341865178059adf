package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/identity"
)

// HTTPClient implements Client over JSON/HTTP.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPClient creates a client with the configured timeout.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: config.HTTPTimeout},
	}
}

type socialLoginRequest struct {
	AccessToken string `json:"accessToken"`
	SocialType  string `json:"socialType"`
}

type socialLoginResponse struct {
	AccessToken          string `json:"accessToken"`
	RefreshToken         string `json:"refreshToken"`
	AccessTokenExpiresIn int64  `json:"accessTokenExpiresIn"` // seconds
}

type renewRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type renewResponse struct {
	AccessToken string `json:"accessToken"`
}

type migrationResponse struct {
	Migrated bool `json:"migrated"`
}

type withdrawRequest struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

type initFriendsRequest struct {
	Friends []friend.Friend `json:"friends"`
}

func (c *HTTPClient) LoginWithProvider(ctx context.Context, providerToken string, kind identity.Kind) (*Tokens, error) {
	var out socialLoginResponse
	in := socialLoginRequest{AccessToken: providerToken, SocialType: kind.String()}
	if err := c.do(ctx, http.MethodPost, config.PathAuthSocial, "", in, &out); err != nil {
		return nil, err
	}

	tokens := &Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	if out.AccessTokenExpiresIn > 0 {
		tokens.Expiry = time.Now().Add(time.Duration(out.AccessTokenExpiresIn) * time.Second)
	}
	return tokens, nil
}

func (c *HTTPClient) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	var out renewResponse
	if err := c.do(ctx, http.MethodPost, config.PathAuthRenew, "", renewRequest{RefreshToken: refreshToken}, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &TransportError{Op: config.PathAuthRenew, Err: errors.New(config.ErrDecode)}
	}
	return out.AccessToken, nil
}

func (c *HTTPClient) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, config.PathMemberMe, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CheckMigrationStatus(ctx context.Context, accessToken string) (bool, error) {
	var out migrationResponse
	if err := c.do(ctx, http.MethodGet, config.PathMemberMigration, accessToken, nil, &out); err != nil {
		return false, err
	}
	return out.Migrated, nil
}

func (c *HTTPClient) StartMigration(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, config.PathMemberMigration, accessToken, nil, nil)
}

func (c *HTTPClient) Withdraw(ctx context.Context, accessToken, reason, detail string) error {
	return c.do(ctx, http.MethodPost, config.PathMemberWithdraw, accessToken, withdrawRequest{Reason: reason, Detail: detail}, nil)
}

func (c *HTTPClient) RegisterPushToken(ctx context.Context, accessToken, pushToken string) error {
	return c.do(ctx, http.MethodPut, config.PathMemberPushToken, accessToken, pushTokenRequest{Token: pushToken}, nil)
}

func (c *HTTPClient) FetchFriends(ctx context.Context, accessToken string) ([]friend.Friend, error) {
	var out []friend.Friend
	if err := c.do(ctx, http.MethodGet, config.PathFriendList, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) InitFriends(ctx context.Context, accessToken string, friends []friend.Friend) error {
	return c.do(ctx, http.MethodPost, config.PathFriendInit, accessToken, initFriendsRequest{Friends: friends}, nil)
}

func (c *HTTPClient) CheckIn(ctx context.Context, accessToken, friendID string) (*friend.Friend, error) {
	var out friend.Friend
	path := fmt.Sprintf(config.PathFriendCheckFmt, url.PathEscape(friendID))
	if err := c.do(ctx, http.MethodPost, path, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one JSON request and decodes the response into out (when non-nil).
// Every failure comes back as *TransportError.
func (c *HTTPClient) do(ctx context.Context, method, path, accessToken string, in, out any) error {
	start := time.Now()
	log := slog.With(
		config.LogKeyComponent, config.CompBackend,
		config.LogKeyMethod, method,
		config.LogKeyURL, path,
	)

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: path, Err: fmt.Errorf("%s: %w", config.ErrEncode, err)}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	req.Header.Set(config.HeaderAccept, config.MimeJSON)
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	if in != nil {
		req.Header.Set(config.HeaderContentType, config.MimeJSON)
	}
	if accessToken != "" {
		req.Header.Set(config.HeaderAuthorization, config.AuthScheme+accessToken)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug(config.MsgRequest,
		config.LogKeyStatus, resp.StatusCode,
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &TransportError{Op: path, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	if out == nil {
		return nil
	}

	limited := io.LimitReader(resp.Body, config.MaxHTTPResponseSize)
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return &TransportError{Op: path, Err: fmt.Errorf("%s: %w", config.ErrDecode, err)}
	}
	return nil
}
