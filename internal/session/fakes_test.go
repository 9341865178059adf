package session

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tartampluch/go-friendcare/internal/backend"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/identity"
	"github.com/tartampluch/go-friendcare/internal/tokenstore"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) LoginWithProvider(ctx context.Context, providerToken string, kind identity.Kind) (*backend.Tokens, error) {
	args := m.Called(ctx, providerToken, kind)
	t, _ := args.Get(0).(*backend.Tokens)
	return t, args.Error(1)
}

func (m *MockBackend) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) FetchProfile(ctx context.Context, accessToken string) (*backend.Profile, error) {
	args := m.Called(ctx, accessToken)
	p, _ := args.Get(0).(*backend.Profile)
	return p, args.Error(1)
}

func (m *MockBackend) CheckMigrationStatus(ctx context.Context, accessToken string) (bool, error) {
	args := m.Called(ctx, accessToken)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackend) StartMigration(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

func (m *MockBackend) Withdraw(ctx context.Context, accessToken, reason, detail string) error {
	return m.Called(ctx, accessToken, reason, detail).Error(0)
}

func (m *MockBackend) RegisterPushToken(ctx context.Context, accessToken, pushToken string) error {
	return m.Called(ctx, accessToken, pushToken).Error(0)
}

func (m *MockBackend) FetchFriends(ctx context.Context, accessToken string) ([]friend.Friend, error) {
	args := m.Called(ctx, accessToken)
	f, _ := args.Get(0).([]friend.Friend)
	return f, args.Error(1)
}

func (m *MockBackend) InitFriends(ctx context.Context, accessToken string, friends []friend.Friend) error {
	return m.Called(ctx, accessToken, friends).Error(0)
}

func (m *MockBackend) CheckIn(ctx context.Context, accessToken, friendID string) (*friend.Friend, error) {
	args := m.Called(ctx, accessToken, friendID)
	f, _ := args.Get(0).(*friend.Friend)
	return f, args.Error(1)
}

type MockProvider struct {
	mock.Mock
	kind identity.Kind
}

func (m *MockProvider) Kind() identity.Kind { return m.kind }

func (m *MockProvider) Validate(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (*identity.Credential, error) {
	args := m.Called(ctx, refreshToken)
	c, _ := args.Get(0).(*identity.Credential)
	return c, args.Error(1)
}

func (m *MockProvider) SignIn(ctx context.Context, presenter identity.Presenter) (*identity.Credential, error) {
	if presenter == nil {
		return nil, identity.ErrMissingAnchor
	}
	args := m.Called(ctx, presenter)
	c, _ := args.Get(0).(*identity.Credential)
	return c, args.Error(1)
}

// -----------------------------------------------------------------------------
// In-memory collaborators
// -----------------------------------------------------------------------------

type memTokens struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemTokens() *memTokens { return &memTokens{m: map[string]string{}} }

func key(class tokenstore.Class, refresh bool) string {
	if refresh {
		return string(class) + ".refresh"
	}
	return string(class) + ".access"
}

func (t *memTokens) Save(token string, class tokenstore.Class, refresh bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[key(class, refresh)] = token
	return nil
}

func (t *memTokens) Get(class tokenstore.Class, refresh bool) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.m[key(class, refresh)]
	return v, ok && v != ""
}

func (t *memTokens) Clear(class tokenstore.Class) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, key(class, false))
	if class != tokenstore.ClassApple {
		delete(t.m, key(class, true))
	}
}

func (t *memTokens) Forget(class tokenstore.Class) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, key(class, false))
	delete(t.m, key(class, true))
}

type memPrefs struct {
	migrated, migratedKnown bool
	agreed                  map[identity.Kind]bool
	sawOnboarding           bool
	lastPush                string
}

func newMemPrefs() *memPrefs { return &memPrefs{agreed: map[identity.Kind]bool{}} }

func (p *memPrefs) Migration() (bool, bool)                { return p.migrated, p.migratedKnown }
func (p *memPrefs) SetMigrated(v bool)                     { p.migrated, p.migratedKnown = v, true }
func (p *memPrefs) AgreedTerms(k identity.Kind) bool       { return p.agreed[k] }
func (p *memPrefs) SetAgreedTerms(k identity.Kind, v bool) { p.agreed[k] = v }
func (p *memPrefs) ClearAgreedTerms()                      { p.agreed = map[identity.Kind]bool{} }
func (p *memPrefs) DidSeeOnboarding() bool                 { return p.sawOnboarding }
func (p *memPrefs) SetDidSeeOnboarding()                   { p.sawOnboarding = true }
func (p *memPrefs) LastPushToken() string                  { return p.lastPush }
func (p *memPrefs) SetLastPushToken(t string)              { p.lastPush = t }
func (p *memPrefs) ClearLastPushToken()                    { p.lastPush = "" }

type fakeNotifications struct {
	paused, resumed, unregistered int
}

func (n *fakeNotifications) Pause()      { n.paused++ }
func (n *fakeNotifications) Resume()     { n.resumed++ }
func (n *fakeNotifications) Unregister() { n.unregistered++ }

type nopPresenter struct{}

func (nopPresenter) OpenURL(*url.URL) error { return nil }

// -----------------------------------------------------------------------------
// Fixture
// -----------------------------------------------------------------------------

type fixture struct {
	m       *Manager
	backend *MockBackend
	kakao   *MockProvider
	apple   *MockProvider
	tokens  *memTokens
	prefs   *memPrefs
	notif   *fakeNotifications
	delays  []time.Duration
	pending []func()
}

func newFixture() *fixture {
	f := &fixture{
		backend: new(MockBackend),
		kakao:   &MockProvider{kind: identity.KindKakao},
		apple:   &MockProvider{kind: identity.KindApple},
		tokens:  newMemTokens(),
		prefs:   newMemPrefs(),
		notif:   &fakeNotifications{},
	}
	f.m = NewManager(f.tokens, f.backend, f.prefs, f.notif, f.kakao, f.apple)
	f.m.After = func(d time.Duration, fn func()) {
		f.delays = append(f.delays, d)
		f.pending = append(f.pending, fn)
	}
	return f
}

// runDelayed executes the callbacks queued through After.
func (f *fixture) runDelayed() {
	queued := f.pending
	f.pending = nil
	for _, fn := range queued {
		fn()
	}
}

var profile = &backend.Profile{ID: "U1", Name: "Seo", CareRate: 72}
