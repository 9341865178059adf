// Package store keeps an offline copy of the friend list and pending triggers in a JSON file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/reminder"
)

type snapshot struct {
	Owner     string             `json:"owner"`
	Friends   []friend.Friend    `json:"friends"`
	Triggers  []reminder.Trigger `json:"triggers"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// File is a JSON file store. Writes are coalesced by a background worker
// and land atomically through a temp file and rename.
type File struct {
	path  string
	delay time.Duration

	mu   sync.RWMutex
	data snapshot

	saveCh     chan struct{}
	shutdownCh chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// Open loads path (a missing or empty file is an empty store) and starts the save worker.
func Open(path string) (*File, error) {
	s := &File{
		path:       path,
		delay:      config.StoreSaveDelay,
		saveCh:     make(chan struct{}, config.ChannelBufferSize),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), config.DirPermUserRWX); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}
	if err := s.load(); err != nil {
		slog.Error(config.ErrStoreLoad,
			config.LogKeyComponent, config.CompStore,
			config.LogKeyFile, path,
			config.LogKeyError, err,
		)
		return nil, fmt.Errorf("%s: %w", config.ErrStoreLoad, err)
	}

	go s.saveWorker()
	return s, nil
}

func (s *File) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	var data snapshot
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Owner is the user id the stored data belongs to; empty when nobody claimed it.
func (s *File) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Owner
}

// SetOwner records which user the stored data belongs to.
func (s *File) SetOwner(userID string) {
	s.mu.Lock()
	s.data.Owner = userID
	s.data.UpdatedAt = time.Now()
	s.mu.Unlock()
	s.requestSave()
}

// Friends returns a copy of the stored friend list.
func (s *File) Friends() []friend.Friend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]friend.Friend(nil), s.data.Friends...)
}

// SetFriends replaces the friend list and schedules a save.
func (s *File) SetFriends(friends []friend.Friend) {
	s.mu.Lock()
	s.data.Friends = append([]friend.Friend(nil), friends...)
	s.data.UpdatedAt = time.Now()
	s.mu.Unlock()
	s.requestSave()
}

// Triggers returns a copy of the stored triggers.
func (s *File) Triggers() []reminder.Trigger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]reminder.Trigger(nil), s.data.Triggers...)
}

// SetTriggers replaces the trigger list and schedules a save.
func (s *File) SetTriggers(triggers []reminder.Trigger) {
	s.mu.Lock()
	s.data.Triggers = append([]reminder.Trigger(nil), triggers...)
	s.data.UpdatedAt = time.Now()
	s.mu.Unlock()
	s.requestSave()
}

// Clear empties the store and drops its owner, e.g. after the account is withdrawn.
func (s *File) Clear() {
	s.mu.Lock()
	s.data = snapshot{UpdatedAt: time.Now()}
	s.mu.Unlock()
	s.requestSave()
}

// Close stops the worker and writes pending data synchronously.
func (s *File) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdownCh)
		<-s.done
		err = s.save()
	})
	return err
}

func (s *File) requestSave() {
	select {
	case s.saveCh <- struct{}{}:
	default:
	}
}

func (s *File) saveWorker() {
	defer close(s.done)

	timer := time.NewTimer(s.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-s.saveCh:
			timer.Reset(s.delay)
		case <-timer.C:
			if err := s.save(); err != nil {
				slog.Error(config.ErrStoreSave,
					config.LogKeyComponent, config.CompStore,
					config.LogKeyError, err,
				)
			}
		case <-s.shutdownCh:
			return
		}
	}
}

func (s *File) save() error {
	s.mu.RLock()
	data := s.data
	if data.Friends == nil {
		data.Friends = []friend.Friend{}
	}
	if data.Triggers == nil {
		data.Triggers = []reminder.Trigger{}
	}
	err := atomicWriteFileJSON(s.path, data)
	s.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreSave, err)
	}
	slog.Debug(config.MsgStoreSaved,
		config.LogKeyComponent, config.CompStore,
		config.LogKeyCount, len(data.Friends),
	)
	return nil
}

func atomicWriteFileJSON(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, config.FilePermUserRW)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
