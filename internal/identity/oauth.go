package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tartampluch/go-friendcare/internal/config"
	"golang.org/x/oauth2"
)

// withClient makes oauth2 use client for its token endpoint calls.
func withClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// refreshToken exchanges a stored refresh token at cfg's token endpoint.
func refreshToken(ctx context.Context, cfg *oauth2.Config, client *http.Client, refresh string) (*oauth2.Token, error) {
	if refresh == "" {
		return nil, ErrNoRefreshToken
	}
	// A past expiry forces the token source to hit the endpoint.
	stale := &oauth2.Token{RefreshToken: refresh, Expiry: time.Unix(1, 0)}
	tok, err := cfg.TokenSource(withClient(ctx, client), stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing provider token: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refresh
	}
	return tok, nil
}

type callbackResult struct {
	code string
	err  error
}

// authorizeInteractive runs the authorization code flow with PKCE (S256) against a
// loopback redirect listener. The presenter opens the consent page; the provider
// redirects back to 127.0.0.1 with the code, which is exchanged for a token.
func authorizeInteractive(ctx context.Context, base *oauth2.Config, client *http.Client, presenter Presenter) (*oauth2.Token, error) {
	if presenter == nil {
		return nil, ErrMissingAnchor
	}

	ln, err := net.Listen("tcp", config.LocalhostBindAddr+config.AddrSeparator+"0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	cfg := *base
	cfg.RedirectURL = config.SchemeHTTP + "://" + ln.Addr().String() + config.OAuthCallbackPath

	state, err := randomState()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, config.ChannelBufferSize)
	mux := http.NewServeMux()
	mux.HandleFunc(config.OAuthCallbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := callbackResult{code: q.Get(config.OAuthParamCode)}
		switch {
		case q.Get(config.OAuthParamError) != "":
			res.err = fmt.Errorf("%s: %s", config.ErrAuthDenied, q.Get(config.OAuthParamError))
		case q.Get(config.OAuthParamState) != state:
			res.err = errors.New(config.ErrStateMismatch)
		case res.code == "":
			res.err = errors.New(config.ErrAuthDenied)
		}

		w.Header().Set(config.HeaderContentType, config.MimeTextHTML)
		if res.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(config.HTTPMsgSignInError))
		} else {
			_, _ = w.Write([]byte(config.HTTPMsgSignedIn))
		}

		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadTimeout: config.ServerReadTimeout}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL, err := url.Parse(cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)))
	if err != nil {
		return nil, err
	}
	slog.Info(config.MsgSignInOpen,
		config.LogKeyComponent, config.CompIdentity,
		config.LogKeyURL, authURL.Scheme+"://"+authURL.Host+authURL.Path,
	)
	if err := presenter.OpenURL(authURL); err != nil {
		return nil, fmt.Errorf("opening sign-in page: %w", err)
	}

	timeout := time.NewTimer(config.SignInTimeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout.C:
		return nil, errors.New(config.ErrSignInTimeout)
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := cfg.Exchange(withClient(ctx, client), res.code, oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("exchanging code: %w", err)
		}
		return tok, nil
	}
}

func randomState() (string, error) {
	b := make([]byte, config.OAuthStateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
