package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-friendcare/internal/identity"
)

// browserPresenter plays the user's browser: it follows the consent URL by
// calling the loopback redirect with the given code and the original state.
type browserPresenter struct {
	code     string
	badState bool
	opened   chan *url.URL
}

func (b *browserPresenter) OpenURL(u *url.URL) error {
	q := u.Query()
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		return err
	}
	state := q.Get("state")
	if b.badState {
		state = "forged"
	}
	cb := redirect.Query()
	cb.Set("code", b.code)
	cb.Set("state", state)
	redirect.RawQuery = cb.Encode()

	if b.opened != nil {
		b.opened <- u
	}
	go func() {
		resp, err := http.Get(redirect.String())
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	return nil
}

func tokenEndpoint(t *testing.T, body map[string]any, seen func(r *http.Request)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if seen != nil {
			seen(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func signedIDToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "apple-user",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

// -----------------------------------------------------------------------------
// Kakao
// -----------------------------------------------------------------------------

func TestKakao_Validate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
		anyErr  bool
	}{
		{"valid", http.StatusOK, nil, false},
		{"expired", http.StatusUnauthorized, identity.ErrInvalidToken, true},
		{"server down", http.StatusInternalServerError, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer kakao-token", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			p := identity.NewKakaoProvider(identity.KakaoConfig{TokenInfoURL: ts.URL})
			err := p.Validate(context.Background(), "kakao-token")

			if !tt.anyErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NotErrorIs(t, err, identity.ErrInvalidToken, "transport failures are not token verdicts")
			}
		})
	}
}

func TestKakao_ValidateEmptyToken(t *testing.T) {
	p := identity.NewKakaoProvider(identity.KakaoConfig{TokenInfoURL: "http://127.0.0.1:1"})
	assert.ErrorIs(t, p.Validate(context.Background(), ""), identity.ErrInvalidToken)
}

func TestKakao_Refresh(t *testing.T) {
	ts := tokenEndpoint(t, map[string]any{
		"access_token": "new-access",
		"token_type":   "bearer",
		"expires_in":   3600,
	}, func(r *http.Request) {
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
	})

	p := identity.NewKakaoProvider(identity.KakaoConfig{ClientID: "client-1", TokenURL: ts.URL})
	cred, err := p.Refresh(context.Background(), "old-refresh")

	require.NoError(t, err)
	assert.Equal(t, "new-access", cred.Token)
	assert.Equal(t, "old-refresh", cred.RefreshToken, "refresh token is kept when the provider does not rotate it")
	assert.False(t, cred.Expiry.IsZero())
}

func TestKakao_RefreshWithoutToken(t *testing.T) {
	p := identity.NewKakaoProvider(identity.KakaoConfig{})
	_, err := p.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, identity.ErrNoRefreshToken)
}

func TestKakao_SignIn(t *testing.T) {
	var gotVerifier string
	ts := tokenEndpoint(t, map[string]any{
		"access_token":  "signed-in",
		"refresh_token": "fresh-refresh",
		"token_type":    "bearer",
		"expires_in":    3600,
	}, func(r *http.Request) {
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		gotVerifier = r.PostForm.Get("code_verifier")
	})

	p := identity.NewKakaoProvider(identity.KakaoConfig{
		ClientID: "client-1",
		AuthURL:  "https://auth.example.test/authorize",
		TokenURL: ts.URL,
	})

	opened := make(chan *url.URL, 1)
	cred, err := p.SignIn(context.Background(), &browserPresenter{code: "the-code", opened: opened})

	require.NoError(t, err)
	assert.Equal(t, "signed-in", cred.Token)
	assert.Equal(t, "fresh-refresh", cred.RefreshToken)
	assert.NotEmpty(t, gotVerifier, "PKCE verifier must be sent on exchange")

	consent := <-opened
	assert.Equal(t, "S256", consent.Query().Get("code_challenge_method"))
	assert.NotEmpty(t, consent.Query().Get("code_challenge"))
}

func TestKakao_SignInStateMismatch(t *testing.T) {
	p := identity.NewKakaoProvider(identity.KakaoConfig{AuthURL: "https://auth.example.test/authorize", TokenURL: "http://127.0.0.1:1"})

	_, err := p.SignIn(context.Background(), &browserPresenter{code: "c", badState: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestSignIn_MissingAnchor(t *testing.T) {
	providers := []identity.Provider{
		identity.NewKakaoProvider(identity.KakaoConfig{}),
		identity.NewAppleProvider(identity.AppleConfig{}),
	}
	for _, p := range providers {
		t.Run(p.Kind().String(), func(t *testing.T) {
			_, err := p.SignIn(context.Background(), nil)
			assert.ErrorIs(t, err, identity.ErrMissingAnchor)
		})
	}
}

func TestSignIn_ContextCancelled(t *testing.T) {
	p := identity.NewKakaoProvider(identity.KakaoConfig{AuthURL: "https://auth.example.test/authorize"})
	ctx, cancel := context.WithCancel(context.Background())

	// A presenter that never calls back; cancellation must unblock SignIn.
	presenter := presenterFunc(func(*url.URL) error {
		cancel()
		return nil
	})

	_, err := p.SignIn(ctx, presenter)
	assert.ErrorIs(t, err, context.Canceled)
}

type presenterFunc func(*url.URL) error

func (f presenterFunc) OpenURL(u *url.URL) error { return f(u) }

// -----------------------------------------------------------------------------
// Apple
// -----------------------------------------------------------------------------

func TestApple_Validate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := identity.NewAppleProvider(identity.AppleConfig{})
	p.Now = func() time.Time { return now }

	assert.NoError(t, p.Validate(context.Background(), signedIDToken(t, now.Add(time.Hour))))
	assert.ErrorIs(t, p.Validate(context.Background(), signedIDToken(t, now.Add(-time.Hour))), identity.ErrInvalidToken)
	assert.ErrorIs(t, p.Validate(context.Background(), "not-a-jwt"), identity.ErrInvalidToken)
	assert.ErrorIs(t, p.Validate(context.Background(), ""), identity.ErrInvalidToken)
}

func TestApple_Refresh(t *testing.T) {
	idToken := signedIDToken(t, time.Now().Add(time.Hour))
	ts := tokenEndpoint(t, map[string]any{
		"access_token": "apple-access",
		"id_token":     idToken,
		"token_type":   "bearer",
		"expires_in":   3600,
	}, nil)

	p := identity.NewAppleProvider(identity.AppleConfig{ClientID: "svc", TokenURL: ts.URL})
	cred, err := p.Refresh(context.Background(), "apple-refresh")

	require.NoError(t, err)
	assert.Equal(t, idToken, cred.Token, "Apple credentials carry the identity token")
	assert.Equal(t, "apple-refresh", cred.RefreshToken)
}

func TestApple_RefreshWithoutIDToken(t *testing.T) {
	ts := tokenEndpoint(t, map[string]any{"access_token": "a", "token_type": "bearer"}, nil)

	p := identity.NewAppleProvider(identity.AppleConfig{TokenURL: ts.URL})
	_, err := p.Refresh(context.Background(), "apple-refresh")
	assert.Error(t, err)
}

func TestKind_Key(t *testing.T) {
	assert.Equal(t, "kakao", identity.KindKakao.Key())
	assert.Equal(t, "APPLE", identity.KindApple.String())
}
