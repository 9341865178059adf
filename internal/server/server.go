package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/notify"
	"github.com/tartampluch/go-friendcare/internal/reminder"
)

// cacheItem stores a rendered document and its metadata for HTTP caching.
type cacheItem struct {
	data         []byte
	mime         string
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// ReminderView is the JSON shape of one pending reminder.
type ReminderView struct {
	ID       string        `json:"id"`
	FriendID string        `json:"friendId"`
	Kind     reminder.Kind `json:"kind"`
	Title    string        `json:"title"`
	Body     string        `json:"body"`
	Repeats  bool          `json:"repeats"`
	NextFire time.Time     `json:"nextFire"`
	Read     bool          `json:"read"`
}

// FeedServer serves the pending reminders on localhost, as an iCalendar
// subscription and as JSON.
type FeedServer struct {
	// Reads are frequent and updates only happen when triggers change,
	// so each document sits behind an atomic pointer instead of a lock.
	calendar  atomic.Pointer[cacheItem]
	reminders atomic.Pointer[cacheItem]
	Port      string
}

// NewFeedServer creates a new instance of the server.
func NewFeedServer(port string) *FeedServer {
	return &FeedServer{
		Port: port,
	}
}

// Handler returns the routes of the feed.
func (s *FeedServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteCalendar, func(w http.ResponseWriter, r *http.Request) {
		serveCached(w, r, s.calendar.Load())
	})
	mux.HandleFunc(config.RouteReminders, func(w http.ResponseWriter, r *http.Request) {
		serveCached(w, r, s.reminders.Load())
	})
	return mux
}

// Start initializes the HTTP server and blocks until the context is cancelled.
func (s *FeedServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Publish renders pending triggers into both documents.
func (s *FeedServer) Publish(pending []reminder.Trigger, now time.Time) error {
	ics, err := notify.Calendar(pending, now)
	if err != nil {
		return err
	}

	views := make([]ReminderView, 0, len(pending))
	for _, t := range pending {
		next, ok := t.NextFire(now)
		if !ok {
			continue
		}
		views = append(views, ReminderView{
			ID:       t.ID,
			FriendID: t.FriendID,
			Kind:     t.Kind,
			Title:    t.Title,
			Body:     t.Body,
			Repeats:  t.Repeats,
			NextFire: next,
			Read:     t.Read,
		})
	}
	list, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrEncode, err)
	}

	s.UpdateCalendar(ics)
	s.UpdateReminders(list)
	return nil
}

// UpdateCalendar atomically replaces the served iCalendar document.
func (s *FeedServer) UpdateCalendar(data []byte) {
	s.calendar.Store(newCacheItem(data, config.MimeTextCalendar))
}

// UpdateReminders atomically replaces the served JSON list.
func (s *FeedServer) UpdateReminders(data []byte) {
	s.reminders.Store(newCacheItem(data, config.MimeJSON))
}

func newCacheItem(data []byte, mime string) *cacheItem {
	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, etag,
	)
	return &cacheItem{
		data:         data,
		mime:         mime,
		etag:         etag,
		lastModified: time.Now().UTC().Format(http.TimeFormat),
	}
}

// serveCached writes item with HTTP caching support.
func serveCached(w http.ResponseWriter, r *http.Request, item *cacheItem) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return
	}

	if item == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set(config.HeaderContentType, item.mime)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match == item.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
			if serverTime, err := time.Parse(http.TimeFormat, item.lastModified); err == nil {
				if !serverTime.After(clientTime) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	if r.Method == http.MethodGet {
		if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
			slog.Error(config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
}
