// Package app hosts the core in a system tray: it wires the session, the reminder
// scheduler and the notification center together and runs the background workers.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"github.com/tartampluch/go-friendcare/internal/backend"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/locale"
	"github.com/tartampluch/go-friendcare/internal/notify"
	"github.com/tartampluch/go-friendcare/internal/reminder"
	"github.com/tartampluch/go-friendcare/internal/router"
	"github.com/tartampluch/go-friendcare/internal/server"
	"github.com/tartampluch/go-friendcare/internal/session"
	"github.com/tartampluch/go-friendcare/internal/settings"
)

// OfflineStore keeps friends and pending triggers across launches, for one user at a time.
type OfflineStore interface {
	Owner() string
	SetOwner(userID string)
	Friends() []friend.Friend
	SetFriends(friends []friend.Friend)
	Triggers() []reminder.Trigger
	SetTriggers(triggers []reminder.Trigger)
	Clear()
}

// FriendCareApp owns the wired core and the tray shell around it.
type FriendCareApp struct {
	App         fyne.App
	Preferences fyne.Preferences
	Ctx         context.Context
	Clock       reminder.Clock

	Settings  *settings.Store
	Locale    *locale.Localizer
	Backend   backend.Client
	Session   *session.Manager
	Center    *notify.Center
	Scheduler *reminder.Scheduler
	Router    *router.Router
	Store     OfflineStore
	Server    *server.FeedServer

	// ImportPath is a .vcf file or URL imported once the user reaches home.
	ImportPath string
	Fetcher    friend.Fetcher

	Tray desktop.App
	Menu *fyne.Menu

	TrayStatusItem     *fyne.MenuItem
	TrayCheckInItem    *fyne.MenuItem
	TraySyncItem       *fyne.MenuItem
	TrayFeedItem       *fyne.MenuItem
	TrayLoginKakaoItem *fyne.MenuItem
	TrayLoginAppleItem *fyne.MenuItem
	TrayTermsItem      *fyne.MenuItem
	TrayLogoutItem     *fyne.MenuItem
	TrayWithdrawItem   *fyne.MenuItem

	configChan chan string
	syncChan   chan struct{}

	selectedMu sync.Mutex
	selected   string
	importOnce sync.Once
}

// NewFriendCareApp constructs the application and wires dependencies.
func NewFriendCareApp(a fyne.App, ctx context.Context, st OfflineStore, srv *server.FeedServer, client backend.Client, tokens session.TokenStore) *FriendCareApp {
	a.SetIcon(theme.AccountIcon())
	prefs := a.Preferences()

	// Core services. The scheduler registers into the center; the session
	// pauses and resumes it on logout and login.

	set := settings.New(prefs)
	loc := locale.New(prefs.StringWithFallback(config.PrefLanguage, config.DefaultLanguage))

	center := notify.NewCenter(a)
	sched := reminder.NewScheduler(center, set)
	sched.Text = loc.ReminderText

	mgr := session.NewManager(tokens, client, set, center, Providers(prefs)...)
	mgr.Presenter = a

	app := &FriendCareApp{
		App:         a,
		Preferences: prefs,
		Ctx:         ctx,
		Clock:       reminder.RealClock{}, // Default to real clock in production
		Settings:    set,
		Locale:      loc,
		Backend:     client,
		Session:     mgr,
		Center:      center,
		Scheduler:   sched,
		Router:      router.New(mgr, sched),
		Store:       st,
		Server:      srv,
		Fetcher:     friend.NewHTTPFetcher(),
		configChan:  make(chan string, config.ChannelBufferSize),
		syncChan:    make(chan struct{}, config.ChannelBufferSize),
	}

	// Callbacks run outside the owners' locks, so they may call back into them.
	center.OnFire = app.onFire
	center.OnChange = app.onTriggersChanged
	mgr.OnChange = app.onSessionChange
	return app
}

// Run launches the application services and the main UI loop.
func (app *FriendCareApp) Run() {
	app.watchPreferences()

	// Reminders registered in a previous run are re-armed before any login;
	// they stay paused until a session resumes them.
	app.Center.Restore(app.Store.Triggers())
	app.Center.Pause()

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyPort, app.Server.Port,
			config.LogKeyComponent, config.CompApp)

		if err := app.Server.Start(app.Ctx); err != nil {
			slog.Error(config.ErrServerStartup,
				config.LogKeyError, err,
				config.LogKeyComponent, config.CompApp)

			app.App.SendNotification(fyne.NewNotification(
				config.TitleStartupError,
				fmt.Sprintf(config.MsgPortBusy, app.Server.Port)))
		}
	}()

	if desk, ok := app.App.(desktop.App); ok {
		app.Tray = desk
		app.Tray.SetSystemTrayIcon(app.App.Icon())
		app.setupTrayMenu()
	} else {
		slog.Warn(config.ErrTrayNotSupported,
			config.LogKeyComponent, config.CompApp)
	}

	// Workers: local delivery, notification selection and the sync loop.
	go app.Center.Run(app.Ctx, config.DeliveryInterval)
	go app.selectionWorker()
	go app.backgroundWorker()
	app.App.Run()
}

// watchPreferences forwards preference changes to the workers.
func (app *FriendCareApp) watchPreferences() {
	app.Preferences.AddChangeListener(func() {
		select {
		case app.configChan <- config.PrefSyncInterval:
		default:
		}
	})
}

// requestSync asks the background worker for a sync without blocking.
func (app *FriendCareApp) requestSync() {
	select {
	case app.syncChan <- struct{}{}:
	default:
	}
}

func (app *FriendCareApp) syncInterval() time.Duration {
	val := app.Preferences.IntWithFallback(config.PrefSyncInterval, config.DefaultSyncMin)
	if val <= 0 {
		val = config.DefaultSyncMin
	}
	return time.Duration(val) * time.Minute
}

// backgroundWorker restores the session, then keeps the friend list in sync.
func (app *FriendCareApp) backgroundWorker() {
	log := slog.With(config.LogKeyComponent, config.CompWorker)

	// Restoring the session comes first; a home transition queues the first sync.
	app.Session.TryAutoLogin(app.Ctx)

	currentDuration := app.syncInterval()
	ticker := time.NewTicker(currentDuration)
	defer ticker.Stop()

	log.Info(config.MsgWorkerStart, config.LogKeyInterval, currentDuration)

	for {
		select {
		case <-app.Ctx.Done():
			log.Info(config.MsgWorkerStop)
			return

		case <-app.configChan:
			// Any preference change may touch the language or the interval.
			app.applyLanguage()
			newDuration := app.syncInterval()
			if newDuration != currentDuration {
				log.Info(config.MsgUpdateSync, config.LogKeyOld, currentDuration, config.LogKeyNew, newDuration)
				currentDuration = newDuration
				ticker.Reset(currentDuration)
			}

		case <-app.syncChan:
			app.performSync(false)

		case <-ticker.C:
			app.performSync(false)
		}
	}
}

// selectionWorker surfaces friends picked through delivered notifications.
func (app *FriendCareApp) selectionWorker() {
	for {
		select {
		case <-app.Ctx.Done():
			return
		case f := <-app.Router.Selected():
			slog.Info(config.MsgSelected,
				config.LogKeyComponent, config.CompApp,
				config.LogKeyFriend, f.ID)
			app.selectedMu.Lock()
			app.selected = f.ID
			app.selectedMu.Unlock()
			app.refreshCheckInMenu()
		}
	}
}

// onSessionChange reacts to every session transition.
func (app *FriendCareApp) onSessionChange(state session.State, s *session.Session) {
	if s != nil {
		app.claimOfflineData(s.UserID)
	}

	switch state {
	case session.StateHome:
		if friends := app.Store.Friends(); len(friends) > 0 {
			app.Session.SetFriends(friends)
		}
		go app.afterLogin()
		app.requestSync()
	case session.StateLogin:
		app.selectedMu.Lock()
		app.selected = ""
		app.selectedMu.Unlock()
	}
	app.RefreshTrayMenu()
}

// claimOfflineData binds the offline copy to userID. Friends and reminders left by another
// account are dropped before anything reads them.
func (app *FriendCareApp) claimOfflineData(userID string) {
	owner := app.Store.Owner()
	if owner == userID {
		return
	}

	app.Scheduler.CancelAll()
	app.Store.Clear()
	app.Store.SetOwner(userID)

	app.selectedMu.Lock()
	app.selected = ""
	app.selectedMu.Unlock()

	slog.Info(config.MsgOwnerChanged,
		config.LogKeyComponent, config.CompApp,
		config.LogKeyOld, owner,
		config.LogKeyNew, userID)
}

// afterLogin runs the one-time work that needs a signed-in user.
func (app *FriendCareApp) afterLogin() {
	app.registerDevice(app.Ctx)

	if app.ImportPath == "" {
		return
	}
	app.importOnce.Do(func() {
		if _, err := app.ImportSource(app.Ctx, app.ImportPath); err != nil {
			slog.Error(config.ErrImport,
				config.LogKeyComponent, config.CompApp,
				config.LogKeyError, err)
		}
	})
}

// onFire routes a delivered notification.
func (app *FriendCareApp) onFire(ctx context.Context, metadata map[string]string) {
	if err := app.Router.Deliver(ctx, metadata); err != nil {
		slog.Warn(config.MsgResolveFailed,
			config.LogKeyComponent, config.CompApp,
			config.LogKeyError, err)
	}
}

// onTriggersChanged persists the pending set and republishes the feed.
func (app *FriendCareApp) onTriggersChanged(pending []reminder.Trigger) {
	app.Store.SetTriggers(pending)
	if err := app.Server.Publish(pending, app.Clock.Now()); err != nil {
		slog.Error(config.ErrICalEncode,
			config.LogKeyComponent, config.CompApp,
			config.LogKeyError, err)
	}
}

// applyLanguage follows the language preference.
func (app *FriendCareApp) applyLanguage() {
	app.Locale.SetLanguage(app.Preferences.StringWithFallback(config.PrefLanguage, config.DefaultLanguage))
	app.RefreshTrayMenu()
}

// notifyUser shows a plain desktop notification.
func (app *FriendCareApp) notifyUser(body string) {
	app.App.SendNotification(fyne.NewNotification(config.AppName, body))
}
