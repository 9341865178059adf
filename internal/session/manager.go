package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tartampluch/go-friendcare/internal/backend"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/identity"
	"github.com/tartampluch/go-friendcare/internal/tokenstore"
)

// TokenStore persists bearer tokens per class.
type TokenStore interface {
	Save(token string, class tokenstore.Class, refresh bool) error
	Get(class tokenstore.Class, refresh bool) (string, bool)
	Clear(class tokenstore.Class)
	Forget(class tokenstore.Class)
}

// Preferences holds the local flags the session reads and writes.
type Preferences interface {
	Migration() (migrated, known bool)
	SetMigrated(v bool)
	AgreedTerms(kind identity.Kind) bool
	SetAgreedTerms(kind identity.Kind, v bool)
	ClearAgreedTerms()
	DidSeeOnboarding() bool
	SetDidSeeOnboarding()
	LastPushToken() string
	SetLastPushToken(token string)
	ClearLastPushToken()
}

// Notifications controls reminder delivery.
type Notifications interface {
	Pause()
	Resume()
	Unregister()
}

// Manager is the single owner of the current Session. All methods are safe for concurrent use.
type Manager struct {
	Tokens        TokenStore
	Backend       backend.Client
	Providers     map[identity.Kind]identity.Provider
	Prefs         Preferences
	Notifications Notifications

	// Presenter shows interactive sign-in pages. Nil means no UI is available.
	Presenter identity.Presenter

	MigrationDelay time.Duration
	// After runs f once d has elapsed; time.AfterFunc by default.
	After func(d time.Duration, f func())

	// OnChange is called after every state transition, outside the lock.
	OnChange func(state State, s *Session)

	mu      sync.Mutex
	state   State
	session *Session
}

// NewManager wires a manager in the splash state.
func NewManager(tokens TokenStore, client backend.Client, prefs Preferences, notifications Notifications, providers ...identity.Provider) *Manager {
	m := &Manager{
		Tokens:         tokens,
		Backend:        client,
		Providers:      make(map[identity.Kind]identity.Provider, len(providers)),
		Prefs:          prefs,
		Notifications:  notifications,
		MigrationDelay: config.MigrationDelay,
		After: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		state: StateSplash,
	}
	for _, p := range providers {
		m.Providers[p.Kind()] = p
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the active session.
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return m.session.clone(), true
}

// Friends returns the friends of the active session, or nil when logged out.
func (m *Manager) Friends() []friend.Friend {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	return append([]friend.Friend(nil), m.session.Friends...)
}

// SetFriends replaces the friend list of the active session. It is a no-op when logged out.
func (m *Manager) SetFriends(friends []friend.Friend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Friends = append([]friend.Friend(nil), friends...)
	}
}

// UpdateFriend replaces one friend of the active session by id.
func (m *Manager) UpdateFriend(f friend.Friend) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return false
	}
	for i := range m.session.Friends {
		if m.session.Friends[i].ID == f.ID {
			m.session.Friends[i] = f
			return true
		}
	}
	return false
}

// AccessToken returns the backend token of the active session.
func (m *Manager) AccessToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return "", false
	}
	return m.session.AccessToken, true
}

// UpdateUser makes s the active session, moves to home or terms depending on the provider's
// agreement flag, resumes notifications and schedules the migration check.
func (m *Manager) UpdateUser(s *Session) {
	next := StateTerms
	if m.Prefs.AgreedTerms(s.Provider) {
		next = StateHome
	}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	slog.Info(config.MsgLoggedIn,
		config.LogKeyComponent, config.CompSession,
		config.LogKeyProvider, s.Provider.String(),
	)

	m.Notifications.Resume()
	m.transition(next)

	m.After(m.MigrationDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.HTTPTimeout)
		defer cancel()
		m.CheckIfMigrated(ctx)
	})
}

// CheckIfMigrated runs the one-time migration and returns the stored result.
// A fresh install has nothing to migrate; a failure stores false so the next login retries.
func (m *Manager) CheckIfMigrated(ctx context.Context) bool {
	log := slog.With(config.LogKeyComponent, config.CompSession)

	migrated, known := m.Prefs.Migration()
	if !known {
		m.Prefs.SetMigrated(true)
		log.Debug(config.MsgMigrationSkip, config.LogKeyMigrated, true)
		return true
	}
	if migrated {
		return true
	}

	access, ok := m.Tokens.Get(tokenstore.ClassServer, false)
	if !ok {
		log.Debug(config.MsgMigrationSkip, config.LogKeyError, ErrMissingToken)
		return false
	}

	done, err := m.Backend.CheckMigrationStatus(ctx, access)
	if err == nil && !done {
		err = m.Backend.StartMigration(ctx, access)
		done = err == nil
	}
	if err != nil {
		log.Warn(config.ErrMigration, config.LogKeyError, err)
	}

	m.Prefs.SetMigrated(done)
	log.Info(config.MsgMigrationDone, config.LogKeyMigrated, done)
	return done
}

// Logout drops the session and its backend tokens and returns to login.
// Provider tokens stay so the next launch can sign in silently. Calling it twice is harmless.
func (m *Manager) Logout() {
	m.Tokens.Clear(tokenstore.ClassServer)
	m.Prefs.ClearLastPushToken()
	m.Notifications.Pause()

	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	slog.Info(config.MsgLoggedOut, config.LogKeyComponent, config.CompSession)
	m.transition(StateLogin)
}

// SignOut is the user-driven logout: it also forgets every credential of the provider,
// so the next launch cannot sign in silently.
func (m *Manager) SignOut(kind identity.Kind) {
	m.Tokens.Forget(providerClass(kind))
	m.Logout()
}

// Withdraw deletes the account. Without a backend token it fails with ErrMissingToken before
// any network call; a backend failure leaves the session as it was.
func (m *Manager) Withdraw(ctx context.Context, kind identity.Kind, reason, detail string) error {
	access, ok := m.Tokens.Get(tokenstore.ClassServer, false)
	if !ok {
		return ErrMissingToken
	}

	if err := m.Backend.Withdraw(ctx, access, reason, detail); err != nil {
		slog.Error(config.ErrTransport,
			config.LogKeyComponent, config.CompSession,
			config.LogKeyError, err,
		)
		return err
	}

	m.Tokens.Forget(providerClass(kind))
	m.Prefs.ClearAgreedTerms()
	m.Notifications.Unregister()
	slog.Info(config.MsgWithdrawn,
		config.LogKeyComponent, config.CompSession,
		config.LogKeyProvider, kind.String(),
	)
	m.Logout()
	return nil
}

// Login runs the interactive first sign-in with kind and establishes a session.
func (m *Manager) Login(ctx context.Context, kind identity.Kind) error {
	p, ok := m.Providers[kind]
	if !ok {
		return fmt.Errorf("%s: %s", config.ErrUnknownProvider, kind)
	}

	cred, err := p.SignIn(ctx, m.Presenter)
	if err != nil {
		return err
	}
	if err := m.saveCredential(kind, cred); err != nil {
		return err
	}

	tokens, err := m.Backend.LoginWithProvider(ctx, cred.Token, kind)
	if err != nil {
		return err
	}
	if err := m.saveBackendTokens(tokens); err != nil {
		return err
	}

	profile, err := m.Backend.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}
	s, err := New(*profile, kind, tokens.AccessToken, tokens.RefreshToken)
	if err != nil {
		return err
	}
	m.UpdateUser(s)
	return nil
}

// AgreeTerms records the agreement for the active provider and enters home.
func (m *Manager) AgreeTerms() error {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s == nil {
		return ErrInvalidSession
	}

	m.Prefs.SetAgreedTerms(s.Provider, true)
	m.transition(StateHome)
	return nil
}

// CompleteOnboarding marks onboarding as seen and moves on to login.
func (m *Manager) CompleteOnboarding() {
	m.Prefs.SetDidSeeOnboarding()
	if m.State() == StateOnboarding {
		m.transition(StateLogin)
	}
}

// RegisterPushToken reports the device token to the backend unless it was already registered.
func (m *Manager) RegisterPushToken(ctx context.Context, token string) error {
	log := slog.With(config.LogKeyComponent, config.CompSession)

	if token == m.Prefs.LastPushToken() {
		log.Debug(config.MsgPushUnchanged)
		return nil
	}
	access, ok := m.Tokens.Get(tokenstore.ClassServer, false)
	if !ok {
		return ErrMissingToken
	}
	if err := m.Backend.RegisterPushToken(ctx, access, token); err != nil {
		log.Warn(config.ErrPushRegister, config.LogKeyError, err)
		return fmt.Errorf("%s: %w", config.ErrPushRegister, err)
	}

	m.Prefs.SetLastPushToken(token)
	log.Info(config.MsgPushRegistered)
	return nil
}

func (m *Manager) saveCredential(kind identity.Kind, cred *identity.Credential) error {
	class := providerClass(kind)
	if err := m.Tokens.Save(cred.Token, class, false); err != nil {
		return err
	}
	if cred.RefreshToken != "" {
		return m.Tokens.Save(cred.RefreshToken, class, true)
	}
	return nil
}

func (m *Manager) saveBackendTokens(t *backend.Tokens) error {
	if err := m.Tokens.Save(t.AccessToken, tokenstore.ClassServer, false); err != nil {
		return err
	}
	return m.Tokens.Save(t.RefreshToken, tokenstore.ClassServer, true)
}

func (m *Manager) transition(next State) {
	m.mu.Lock()
	m.state = next
	var snap *Session
	if m.session != nil {
		c := m.session.clone()
		snap = &c
	}
	m.mu.Unlock()

	slog.Debug(config.MsgStateChange,
		config.LogKeyComponent, config.CompSession,
		config.LogKeyState, string(next),
	)
	if m.OnChange != nil {
		m.OnChange(next, snap)
	}
}
