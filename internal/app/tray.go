package app

import (
	"fmt"
	"log/slog"
	"net/url"

	"fyne.io/fyne/v2"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/identity"
	"github.com/tartampluch/go-friendcare/internal/session"
)

// setupTrayMenu constructs the system tray menu.
func (app *FriendCareApp) setupTrayMenu() {
	app.TrayStatusItem = fyne.NewMenuItem(config.FallbackTrayLabel, nil)
	app.TrayStatusItem.Disabled = true

	app.TrayCheckInItem = fyne.NewMenuItem(app.Locale.Msg(config.TKeyMenuCheckInList), nil)
	app.TrayCheckInItem.ChildMenu = fyne.NewMenu("")

	app.TraySyncItem = fyne.NewMenuItem(app.Locale.Msg(config.TKeyMenuSync), func() {
		go app.performSync(true)
	})
	app.TrayFeedItem = fyne.NewMenuItem(app.Locale.Msg(config.TKeyMenuFeed), app.openFeed)

	app.TrayLoginKakaoItem = fyne.NewMenuItem(app.Locale.Msg(config.TKeyMenuLoginKakao), func() {
		go func() { _ = app.Login(app.Ctx, identity.KindKakao) }()
	})
	app.TrayLoginAppleItem = fyne.NewMenuItem(app.Locale.Msg(config.TKeyMenuLoginApple), func() {
		go func() { _ = app.Login(app.Ctx, identity.KindApple) }()
	})
	app.TrayTermsItem = fyne.NewMenuItem(app.Locale.Msg(config.TKeyMenuAgreeTerms), func() {
		if err := app.Session.AgreeTerms(); err != nil {
			slog.Warn(config.ErrInvalidSession, config.LogKeyComponent, config.CompApp, config.LogKeyError, err)
		}
	})
	app.TrayLogoutItem = fyne.NewMenuItem(app.Locale.Msg(config.TKeyMenuLogout), app.SignOut)
	app.TrayWithdrawItem = fyne.NewMenuItem(app.Locale.Msg(config.TKeyMenuWithdraw), func() {
		go func() { _ = app.Withdraw(app.Ctx) }()
	})

	app.Menu = fyne.NewMenu(config.AppName,
		app.TrayStatusItem,
		app.TrayCheckInItem,
		fyne.NewMenuItemSeparator(),
		app.TraySyncItem,
		app.TrayFeedItem,
		fyne.NewMenuItemSeparator(),
		app.TrayLoginKakaoItem,
		app.TrayLoginAppleItem,
		app.TrayTermsItem,
		app.TrayLogoutItem,
		app.TrayWithdrawItem,
	)

	if app.Tray != nil {
		app.Tray.SetSystemTrayMenu(app.Menu)
	}
	app.RefreshTrayMenu()
}

// RefreshTrayMenu updates localized labels and item visibility for the current session state.
func (app *FriendCareApp) RefreshTrayMenu() {
	if app.Menu == nil {
		return
	}

	state := app.Session.State()
	signedIn := state == session.StateHome || state == session.StateTerms
	home := state == session.StateHome

	app.TraySyncItem.Label = app.Locale.Msg(config.TKeyMenuSync)
	app.TrayFeedItem.Label = app.Locale.Msg(config.TKeyMenuFeed)
	app.TrayLoginKakaoItem.Label = app.Locale.Msg(config.TKeyMenuLoginKakao)
	app.TrayLoginAppleItem.Label = app.Locale.Msg(config.TKeyMenuLoginApple)
	app.TrayTermsItem.Label = app.Locale.Msg(config.TKeyMenuAgreeTerms)
	app.TrayLogoutItem.Label = app.Locale.Msg(config.TKeyMenuLogout)
	app.TrayWithdrawItem.Label = app.Locale.Msg(config.TKeyMenuWithdraw)

	app.TrayLoginKakaoItem.Disabled = signedIn
	app.TrayLoginAppleItem.Disabled = signedIn
	app.TrayTermsItem.Disabled = state != session.StateTerms
	app.TrayLogoutItem.Disabled = !signedIn
	app.TrayWithdrawItem.Disabled = !signedIn
	app.TraySyncItem.Disabled = !home
	app.TrayFeedItem.Disabled = !home

	switch {
	case home:
		app.updateTrayStatus(len(app.dueFriends()))
	case state == session.StateTerms:
		app.TrayStatusItem.Label = app.Locale.Msg(config.TKeyTrayTerms)
	default:
		app.TrayStatusItem.Label = app.Locale.Msg(config.TKeyTrayLoggedOut)
	}

	app.refreshCheckInMenu()
}

// refreshCheckInMenu lists one check-in entry per due friend, the notification-selected friend first.
func (app *FriendCareApp) refreshCheckInMenu() {
	if app.Menu == nil || app.TrayCheckInItem == nil {
		return
	}

	due := app.dueFriends()
	items := make([]*fyne.MenuItem, 0, len(due))
	for _, f := range due {
		items = append(items, fyne.NewMenuItem(
			app.Locale.Format(config.TKeyMenuCheckIn, map[string]any{"Name": f.Name}),
			func() { go func() { _ = app.CheckIn(app.Ctx, f) }() },
		))
	}

	app.TrayCheckInItem.Label = app.Locale.Msg(config.TKeyMenuCheckInList)
	app.TrayCheckInItem.ChildMenu = fyne.NewMenu("", items...)
	app.TrayCheckInItem.Disabled = len(items) == 0
	app.Menu.Refresh()
}

// dueFriends returns the friends whose check-in is due, the selected friend first.
func (app *FriendCareApp) dueFriends() []friend.Friend {
	app.selectedMu.Lock()
	selected := app.selected
	app.selectedMu.Unlock()

	now := app.Clock.Now()
	var due []friend.Friend
	for _, f := range app.Session.Friends() {
		switch {
		case f.ID == selected:
			due = append([]friend.Friend{f}, due...)
		case f.Due(now):
			due = append(due, f)
		}
	}
	return due
}

// updateTrayStatus shows how many friends are waiting for a check-in. A negative count is a sync error.
func (app *FriendCareApp) updateTrayStatus(count int) {
	if app.Menu == nil || app.TrayStatusItem == nil {
		return
	}

	var label string
	switch {
	case count < 0:
		label = config.FallbackTrayError
	case count == 0:
		label = app.Locale.Msg(config.TKeyTrayStatusZero)
	default:
		label = app.Locale.Plural(config.TKeyTrayStatus, count)
		if label == config.TKeyTrayStatus {
			label = fmt.Sprintf(config.FallbackTrayDefault, count)
		}
	}

	app.TrayStatusItem.Label = label
	app.Menu.Refresh()
}

// FeedURL is the local address of the reminder calendar.
func (app *FriendCareApp) FeedURL() *url.URL {
	return &url.URL{
		Scheme: config.SchemeHTTP,
		Host:   config.LocalhostBindAddr + config.AddrSeparator + app.Server.Port,
		Path:   config.RouteCalendar,
	}
}

func (app *FriendCareApp) openFeed() {
	if err := app.App.OpenURL(app.FeedURL()); err != nil {
		slog.Warn(config.ErrServerStartup,
			config.LogKeyComponent, config.CompApp,
			config.LogKeyURL, app.FeedURL().String(),
			config.LogKeyError, err)
	}
}
