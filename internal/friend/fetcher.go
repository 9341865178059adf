package friend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tartampluch/go-friendcare/internal/config"
)

// Fetcher downloads a remote address book export.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// HTTPFetcher downloads vCard exports over HTTP(S). Credentials embedded in the URL
// are sent as basic auth and never logged.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher with the standard request timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
	}
}

// IsRemote reports whether src is an http(s) URL rather than a file path.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == config.SchemeHTTP || u.Scheme == config.SchemeHTTPS)
}

// Fetch returns the body of rawURL, capped at config.MaxHTTPResponseSize.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}

	creds := u.User
	u.User = nil
	safeURL := u.Scheme + "://" + u.Host + u.Path

	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, safeURL),
	)
	log.Debug(config.MsgFetchStart)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrImport, err)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	if creds != nil {
		pass, _ := creds.Password()
		req.SetBasicAuth(creds.Username(), pass)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrImport, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		log.Warn(config.ErrUnexpectedStatus, slog.Int(config.LogKeyStatus, resp.StatusCode))
		return nil, fmt.Errorf("%s: %d %s", config.ErrUnexpectedStatus, resp.StatusCode, resp.Status)
	}

	log.Info(config.MsgFetchDone, slog.Int64(config.LogKeySizeBytes, resp.ContentLength))

	return &limitedReadCloser{
		Reader: io.LimitReader(resp.Body, config.MaxHTTPResponseSize),
		Closer: resp.Body,
	}, nil
}

// limitedReadCloser caps reads while still closing the underlying body.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}
