package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-friendcare/internal/backend"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/identity"
	"github.com/tartampluch/go-friendcare/internal/reminder"
	"github.com/tartampluch/go-friendcare/internal/server"
	"github.com/tartampluch/go-friendcare/internal/session"
	"github.com/tartampluch/go-friendcare/internal/store"
	"github.com/tartampluch/go-friendcare/internal/tokenstore"
	"github.com/zalando/go-keyring"
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

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

// MockTray implements minimal system tray functionality for headless testing.
type MockTray struct {
	Menu *fyne.Menu
}

func (m *MockTray) SetSystemTrayMenu(menu *fyne.Menu) {
	m.Menu = menu
}

func (m *MockTray) SetSystemTrayIcon(icon fyne.Resource) {}
func (m *MockTray) SetSystemTrayWindow(w fyne.Window)    {}
func (m *MockTray) Run()                                 {}
func (m *MockTray) Quit()                                {}

// -----------------------------------------------------------------------------
// Test Setup Helper
// -----------------------------------------------------------------------------

// now is a Wednesday afternoon.
var now = time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// setupTestApp initializes a headless Fyne app with a mocked backend and a temporary store.
func setupTestApp(t *testing.T) (*FriendCareApp, *MockBackend, *MockTray) {
	keyring.MockInit()

	a := test.NewApp()
	t.Cleanup(a.Quit)

	st, err := store.Open(filepath.Join(t.TempDir(), config.StoreFileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tokens := tokenstore.New(config.KeyringService)
	for _, c := range []tokenstore.Class{tokenstore.ClassKakao, tokenstore.ClassApple, tokenstore.ClassServer} {
		tokens.Clear(c)
	}

	be := new(MockBackend)
	be.On("RegisterPushToken", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	app := NewFriendCareApp(a, ctx, st, server.NewFeedServer("18181"), be, tokens)

	clk := MockClock{CurrentTime: now}
	app.Clock = clk
	app.Scheduler.Clock = clk
	app.Center.Clock = clk
	app.Session.After = func(time.Duration, func()) {}

	mockTray := &MockTray{}
	app.Tray = mockTray
	return app, be, mockTray
}

// signIn establishes a session that already agreed to the terms.
func signIn(t *testing.T, app *FriendCareApp) {
	t.Helper()
	require.NoError(t, app.Session.Tokens.Save("srv-a", tokenstore.ClassServer, false))
	require.NoError(t, app.Session.Tokens.Save("srv-r", tokenstore.ClassServer, true))

	s, err := session.New(backend.Profile{ID: "U1", Name: "Seo"}, identity.KindKakao, "srv-a", "srv-r")
	require.NoError(t, err)
	app.Session.UpdateUser(s)
	require.NoError(t, app.Session.AgreeTerms())
	require.Equal(t, session.StateHome, app.Session.State())
}

func testFriends() []friend.Friend {
	return []friend.Friend{
		{
			ID:            "F1",
			Name:          "Mina",
			Recurrence:    friend.RecurrenceDaily,
			NextContactAt: ptr(now.Add(-time.Hour)),
		},
		{
			ID:            "F2",
			Name:          "Joon",
			Recurrence:    friend.RecurrenceWeekly,
			BirthDate:     ptr(time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)),
			NextContactAt: ptr(now.Add(72 * time.Hour)),
		},
	}
}

func pendingIDs(app *FriendCareApp) []string {
	var ids []string
	for _, t := range app.Center.Pending() {
		ids = append(ids, t.ID)
	}
	return ids
}

// -----------------------------------------------------------------------------
// Wiring
// -----------------------------------------------------------------------------

func TestNewFriendCareApp_Wiring(t *testing.T) {
	app, _, _ := setupTestApp(t)

	assert.Contains(t, app.Session.Providers, identity.KindKakao)
	assert.Contains(t, app.Session.Providers, identity.KindApple)
	assert.Same(t, app.Center, app.Scheduler.Center)
	assert.NotNil(t, app.Session.Presenter)
	assert.NotNil(t, app.Center.OnFire)
	assert.NotNil(t, app.Center.OnChange)
	assert.Equal(t, "http://127.0.0.1:18181/reminders.ics", app.FeedURL().String())
}

func TestDeviceToken_Stable(t *testing.T) {
	app, _, _ := setupTestApp(t)

	first := app.deviceToken()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, app.deviceToken())
	assert.Equal(t, first, app.Preferences.String(config.PrefDeviceToken))
}

// -----------------------------------------------------------------------------
// Sync
// -----------------------------------------------------------------------------

func TestPerformSync_Success(t *testing.T) {
	app, be, mockTray := setupTestApp(t)
	app.setupTrayMenu()
	signIn(t, app)

	be.On("FetchFriends", mock.Anything, "srv-a").Return(testFriends(), nil)

	app.performSync(true)

	be.AssertExpectations(t)
	assert.ElementsMatch(t, []string{"F1", "F2", "F2-birthday"}, pendingIDs(app))
	assert.Len(t, app.Store.Friends(), 2)
	assert.Len(t, app.Store.Triggers(), 3)
	assert.Len(t, app.Session.Friends(), 2)

	require.NotNil(t, mockTray.Menu)
	assert.Equal(t, "1 friend to check in with", app.TrayStatusItem.Label)
	require.NotNil(t, app.TrayCheckInItem.ChildMenu)
	require.Len(t, app.TrayCheckInItem.ChildMenu.Items, 1)
	assert.Equal(t, "I checked in with Mina", app.TrayCheckInItem.ChildMenu.Items[0].Label)

	// The feed is republished from the pending set.
	rec := httptest.NewRecorder()
	app.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, config.RouteReminders, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "F2-birthday")
}

func TestPerformSync_OfflineFallback(t *testing.T) {
	app, be, _ := setupTestApp(t)
	app.setupTrayMenu()
	signIn(t, app)
	app.Store.SetFriends(testFriends())

	be.On("FetchFriends", mock.Anything, "srv-a").Return(nil, errors.New("connection refused"))

	app.performSync(false)

	assert.ElementsMatch(t, []string{"F1", "F2", "F2-birthday"}, pendingIDs(app))
	assert.Len(t, app.Session.Friends(), 2)
}

func TestPerformSync_Failure(t *testing.T) {
	app, be, _ := setupTestApp(t)
	app.setupTrayMenu()
	signIn(t, app)

	be.On("FetchFriends", mock.Anything, "srv-a").Return(nil, errors.New("connection refused"))

	app.performSync(true)

	assert.Equal(t, config.FallbackTrayError, app.TrayStatusItem.Label)
	assert.Empty(t, app.Center.Pending())
}

func TestPerformSync_NoSession(t *testing.T) {
	app, be, _ := setupTestApp(t)

	app.performSync(true)
	be.AssertNotCalled(t, "FetchFriends", mock.Anything, mock.Anything)
}

func TestPerformSync_PrunesRemovedFriends(t *testing.T) {
	app, be, _ := setupTestApp(t)
	signIn(t, app)

	be.On("FetchFriends", mock.Anything, "srv-a").Return(testFriends(), nil).Once()
	app.performSync(false)
	require.Contains(t, pendingIDs(app), "F2-birthday")

	be.On("FetchFriends", mock.Anything, "srv-a").Return(testFriends()[:1], nil).Once()
	app.performSync(false)

	assert.Equal(t, []string{"F1"}, pendingIDs(app))
}

// -----------------------------------------------------------------------------
// Check-in, import, withdraw
// -----------------------------------------------------------------------------

func TestCheckIn_Reschedules(t *testing.T) {
	app, be, _ := setupTestApp(t)
	app.setupTrayMenu()
	signIn(t, app)

	be.On("FetchFriends", mock.Anything, "srv-a").Return(testFriends(), nil)
	app.performSync(false)

	updated := testFriends()[0]
	updated.LastContactAt = ptr(now)
	updated.NextContactAt = ptr(now.Add(24 * time.Hour))
	be.On("CheckIn", mock.Anything, "srv-a", "F1").Return(&updated, nil)

	require.NoError(t, app.CheckIn(context.Background(), testFriends()[0]))

	got := app.Session.Friends()[0]
	assert.Equal(t, now.Add(24*time.Hour), *got.NextContactAt)
	assert.Equal(t, now.Add(24*time.Hour), *app.Store.Friends()[0].NextContactAt)
	assert.Equal(t, "Everyone is cared for", app.TrayStatusItem.Label)
	assert.True(t, app.TrayCheckInItem.Disabled)

	_, ok := app.Center.NextFire("F1")
	assert.True(t, ok)
}

func TestCheckIn_Errors(t *testing.T) {
	app, be, _ := setupTestApp(t)
	assert.ErrorIs(t, app.CheckIn(context.Background(), testFriends()[0]), session.ErrMissingToken)

	signIn(t, app)
	be.On("CheckIn", mock.Anything, "srv-a", "F1").Return(nil, errors.New("boom"))

	err := app.CheckIn(context.Background(), testFriends()[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrCheckIn)
}

func TestImportContacts(t *testing.T) {
	app, be, _ := setupTestApp(t)

	vcf := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Mina Kim\r\nBDAY:1992-04-01\r\nEND:VCARD\r\n" +
		"BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Joon Park\r\nEND:VCARD\r\n"

	_, err := app.ImportContacts(context.Background(), strings.NewReader(vcf))
	assert.ErrorIs(t, err, session.ErrMissingToken)

	signIn(t, app)
	be.On("InitFriends", mock.Anything, "srv-a", mock.MatchedBy(func(fs []friend.Friend) bool {
		return len(fs) == 2 && fs[0].Origin == friend.OriginContacts
	})).Return(nil)

	n, err := app.ImportContacts(context.Background(), strings.NewReader(vcf))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	be.AssertExpectations(t)
}

func TestImportSource_Missing(t *testing.T) {
	app, _, _ := setupTestApp(t)
	signIn(t, app)

	_, err := app.ImportSource(context.Background(), filepath.Join(t.TempDir(), "absent.vcf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrImport)
}

func TestImportSource_Remote(t *testing.T) {
	app, be, _ := setupTestApp(t)
	signIn(t, app)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Remote Friend\r\nEND:VCARD\r\n"))
	}))
	defer ts.Close()

	be.On("InitFriends", mock.Anything, "srv-a", mock.MatchedBy(func(fs []friend.Friend) bool {
		return len(fs) == 1 && fs[0].Name == "Remote Friend"
	})).Return(nil)

	n, err := app.ImportSource(context.Background(), ts.URL+"/contacts.vcf")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAccountSwitch_DropsPreviousOfflineData(t *testing.T) {
	app, be, _ := setupTestApp(t)
	app.setupTrayMenu()
	signIn(t, app)

	be.On("FetchFriends", mock.Anything, "srv-a").Return(testFriends(), nil)
	app.performSync(false)
	require.NotEmpty(t, app.Center.Pending())
	assert.Equal(t, "U1", app.Store.Owner())

	app.SignOut()
	require.Equal(t, session.StateLogin, app.Session.State())

	be.On("FetchFriends", mock.Anything, "srv-b").Return(nil, errors.New("connection refused"))
	s, err := session.New(backend.Profile{ID: "U2", Name: "Park"}, identity.KindApple, "srv-b", "srv-r2")
	require.NoError(t, err)
	app.Session.UpdateUser(s)
	require.NoError(t, app.Session.AgreeTerms())

	app.performSync(false)

	assert.Empty(t, app.Session.Friends(), "friends of the previous account must not leak")
	assert.Empty(t, app.Center.Pending())
	assert.Empty(t, app.Store.Friends())
	assert.Equal(t, "U2", app.Store.Owner())
	assert.Equal(t, config.FallbackTrayError, app.TrayStatusItem.Label)
}

func TestAccountSwitch_SameUserKeepsOfflineData(t *testing.T) {
	app, be, _ := setupTestApp(t)
	signIn(t, app)

	be.On("FetchFriends", mock.Anything, "srv-a").Return(testFriends(), nil).Once()
	app.performSync(false)

	app.Session.Logout()
	signIn(t, app)

	assert.Len(t, app.Store.Friends(), 2)
	assert.Len(t, app.Session.Friends(), 2)
	assert.ElementsMatch(t, []string{"F1", "F2", "F2-birthday"}, pendingIDs(app))
}

func TestWithdraw_ClearsOfflineData(t *testing.T) {
	app, be, _ := setupTestApp(t)
	signIn(t, app)

	be.On("FetchFriends", mock.Anything, "srv-a").Return(testFriends(), nil)
	app.performSync(false)
	_ = app.deviceToken()

	be.On("Withdraw", mock.Anything, "srv-a", config.WithdrawReasonDefault, "").Return(nil)

	require.NoError(t, app.Withdraw(context.Background()))

	assert.Equal(t, session.StateLogin, app.Session.State())
	assert.Empty(t, app.Store.Friends())
	assert.Empty(t, app.Store.Triggers())
	assert.Empty(t, app.Center.Pending())
	assert.Empty(t, app.Preferences.String(config.PrefDeviceToken))
}

func TestWithdraw_NoSession(t *testing.T) {
	app, be, _ := setupTestApp(t)

	assert.ErrorIs(t, app.Withdraw(context.Background()), session.ErrInvalidSession)
	be.AssertNotCalled(t, "Withdraw", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// -----------------------------------------------------------------------------
// Notification routing
// -----------------------------------------------------------------------------

func TestOnFire_SelectsFriend(t *testing.T) {
	app, be, _ := setupTestApp(t)
	signIn(t, app)
	be.On("FetchFriends", mock.Anything, "srv-a").Return(testFriends(), nil)
	app.performSync(false)

	payload := reminder.Payload{FriendID: "f2", Kind: reminder.KindBirthday}
	app.onFire(context.Background(), payload.Encode())

	select {
	case f := <-app.Router.Selected():
		assert.Equal(t, "F2", f.ID)
	case <-time.After(time.Second):
		t.Fatal("friend was not published")
	}
}

func TestSelectionWorker_PutsSelectedFirst(t *testing.T) {
	app, be, _ := setupTestApp(t)
	app.setupTrayMenu()
	signIn(t, app)
	be.On("FetchFriends", mock.Anything, "srv-a").Return(testFriends(), nil)
	app.performSync(false)

	go app.selectionWorker()
	app.onFire(context.Background(), reminder.Payload{FriendID: "F2"}.Encode())

	assert.Eventually(t, func() bool {
		due := app.dueFriends()
		return len(due) == 2 && due[0].ID == "F2"
	}, time.Second, 10*time.Millisecond)
}

// -----------------------------------------------------------------------------
// Tray
// -----------------------------------------------------------------------------

func TestTray_LoggedOut(t *testing.T) {
	app, _, mockTray := setupTestApp(t)
	app.Session.Logout()
	app.setupTrayMenu()

	require.NotNil(t, mockTray.Menu)
	assert.Equal(t, "Logged out", app.TrayStatusItem.Label)
	assert.False(t, app.TrayLoginKakaoItem.Disabled)
	assert.False(t, app.TrayLoginAppleItem.Disabled)
	assert.True(t, app.TrayLogoutItem.Disabled)
	assert.True(t, app.TraySyncItem.Disabled)
	assert.True(t, app.TrayCheckInItem.Disabled)
}

func TestTray_TermsPending(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.setupTrayMenu()

	s, err := session.New(backend.Profile{ID: "U1"}, identity.KindApple, "a", "r")
	require.NoError(t, err)
	app.Session.UpdateUser(s)

	assert.Equal(t, "Terms not accepted yet", app.TrayStatusItem.Label)
	assert.False(t, app.TrayTermsItem.Disabled)
	assert.True(t, app.TrayLoginKakaoItem.Disabled)
}

func TestTray_StatusCounts(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.setupTrayMenu()

	app.updateTrayStatus(-1)
	assert.Equal(t, config.FallbackTrayError, app.TrayStatusItem.Label)

	app.updateTrayStatus(0)
	assert.Equal(t, "Everyone is cared for", app.TrayStatusItem.Label)

	app.updateTrayStatus(10)
	assert.Equal(t, "10 friends to check in with", app.TrayStatusItem.Label)
}

func TestTray_LanguageSwitch(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.setupTrayMenu()
	assert.Equal(t, "Sync now", app.TraySyncItem.Label)

	app.Preferences.SetString(config.PrefLanguage, "ko")
	app.applyLanguage()
	assert.Equal(t, "지금 동기화", app.TraySyncItem.Label)
}

func TestWatchPreferences_SignalsWorker(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.watchPreferences()

	app.Preferences.SetInt(config.PrefSyncInterval, 120)

	select {
	case key := <-app.configChan:
		assert.Equal(t, config.PrefSyncInterval, key)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("changing the interval should notify the background worker")
	}
	assert.Equal(t, 120*time.Minute, app.syncInterval())
}
