package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"fyne.io/fyne/v2"
	"github.com/google/uuid"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/identity"
	"github.com/tartampluch/go-friendcare/internal/reminder"
	"github.com/tartampluch/go-friendcare/internal/session"
)

// performSync fetches the friend list, falling back to the offline copy, and reschedules every reminder.
func (app *FriendCareApp) performSync(manual bool) {
	log := slog.With(config.LogKeyComponent, config.CompApp)
	log.Info(config.MsgSyncReq, config.LogKeyManual, manual)

	access, ok := app.Session.AccessToken()
	if !ok {
		log.Debug(config.MsgSyncReq, config.LogKeyError, session.ErrMissingToken)
		return
	}

	friends, err := app.Backend.FetchFriends(app.Ctx, access)
	if err != nil {
		log.Error(config.ErrFriendSync, config.LogKeyError, err)
		if manual {
			app.notifyUser(app.Locale.Msg(config.TKeyNotifError))
		}
		friends = app.Store.Friends()
		if len(friends) == 0 {
			app.updateTrayStatus(-1)
			return
		}
	} else {
		app.Store.SetFriends(friends)
	}

	app.Session.SetFriends(friends)
	app.pruneTriggers(friends)

	if err := app.Scheduler.ScheduleAll(app.Ctx, friends); err != nil {
		log.Warn(config.ErrSchedule, config.LogKeyError, err)
	}

	log.Info(config.MsgSyncDone, config.LogKeyCount, len(friends))
	app.RefreshTrayMenu()
}

// pruneTriggers cancels the reminders of friends that are no longer listed.
func (app *FriendCareApp) pruneTriggers(friends []friend.Friend) {
	known := make(map[string]bool, len(friends))
	for _, f := range friends {
		known[f.ID] = true
	}

	gone := make(map[string]bool)
	for _, t := range app.Center.Pending() {
		if !known[t.FriendID] {
			gone[t.FriendID] = true
		}
	}
	for id := range gone {
		app.Scheduler.Cancel(id)
	}
	if len(gone) > 0 {
		slog.Info(config.MsgPrunedTriggers,
			config.LogKeyComponent, config.CompApp,
			config.LogKeyCount, len(gone))
	}
}

// CheckIn reports that the user cared for f, then reschedules its cadence reminder.
func (app *FriendCareApp) CheckIn(ctx context.Context, f friend.Friend) error {
	access, ok := app.Session.AccessToken()
	if !ok {
		return session.ErrMissingToken
	}

	updated, err := app.Backend.CheckIn(ctx, access, f.ID)
	if err != nil {
		slog.Error(config.ErrCheckIn,
			config.LogKeyComponent, config.CompApp,
			config.LogKeyFriend, f.ID,
			config.LogKeyError, err)
		app.notifyUser(app.Locale.Msg(config.TKeyNotifError))
		return fmt.Errorf("%s: %w", config.ErrCheckIn, err)
	}
	if updated.NextContactAt == nil {
		updated.RecordCheckIn(app.Clock.Now())
	}

	app.Session.UpdateFriend(*updated)
	app.Store.SetFriends(app.Session.Friends())
	app.Center.MarkRead(reminder.TriggerID(f.ID, reminder.KindRegular))

	if err := app.Scheduler.ScheduleRegular(ctx, *updated); err != nil && !errors.Is(err, reminder.ErrInvalidRecurrence) {
		slog.Warn(config.ErrSchedule,
			config.LogKeyComponent, config.CompApp,
			config.LogKeyFriend, f.ID,
			config.LogKeyError, err)
	}

	app.selectedMu.Lock()
	if app.selected == f.ID {
		app.selected = ""
	}
	app.selectedMu.Unlock()

	slog.Info(config.MsgCheckedIn,
		config.LogKeyComponent, config.CompApp,
		config.LogKeyFriend, f.ID)
	app.RefreshTrayMenu()
	return nil
}

// ImportSource imports the vCards found at src, a file path or an http(s) URL.
func (app *FriendCareApp) ImportSource(ctx context.Context, src string) (int, error) {
	var rc io.ReadCloser
	if friend.IsRemote(src) {
		body, err := app.Fetcher.Fetch(ctx, src)
		if err != nil {
			return 0, err
		}
		rc = body
	} else {
		file, err := os.Open(src)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", config.ErrImport, err)
		}
		rc = file
	}
	defer func() { _ = rc.Close() }()

	return app.ImportContacts(ctx, rc)
}

// ImportContacts parses r, sends the friends to the backend and triggers a sync.
func (app *FriendCareApp) ImportContacts(ctx context.Context, r io.Reader) (int, error) {
	access, ok := app.Session.AccessToken()
	if !ok {
		return 0, session.ErrMissingToken
	}

	friends, err := friend.ImportVCards(ctx, r)
	if err != nil {
		return 0, err
	}
	if err := app.Backend.InitFriends(ctx, access, friends); err != nil {
		return 0, fmt.Errorf("%s: %w", config.ErrImport, err)
	}

	slog.Info(config.MsgImported,
		config.LogKeyComponent, config.CompApp,
		config.LogKeyCount, len(friends))
	app.notifyUser(app.Locale.Plural(config.TKeyNotifImported, len(friends)))
	app.requestSync()
	return len(friends), nil
}

// deviceToken returns the install's push token, generating it on first use.
func (app *FriendCareApp) deviceToken() string {
	token := app.Preferences.String(config.PrefDeviceToken)
	if token == "" {
		token = uuid.NewString()
		app.Preferences.SetString(config.PrefDeviceToken, token)
		slog.Debug(config.MsgDeviceToken, config.LogKeyComponent, config.CompApp)
	}
	return token
}

func (app *FriendCareApp) registerDevice(ctx context.Context) {
	if err := app.Session.RegisterPushToken(ctx, app.deviceToken()); err != nil {
		slog.Warn(config.ErrPushRegister,
			config.LogKeyComponent, config.CompApp,
			config.LogKeyError, err)
	}
}

// Login runs the interactive sign-in with kind.
func (app *FriendCareApp) Login(ctx context.Context, kind identity.Kind) error {
	app.App.SendNotification(fyne.NewNotification(app.Locale.Msg(config.TKeySignInTitle), app.Locale.Msg(config.TKeySignInBody)))

	ctx, cancel := context.WithTimeout(ctx, config.SignInTimeout)
	defer cancel()

	if err := app.Session.Login(ctx, kind); err != nil {
		slog.Error(config.ErrInvalidToken,
			config.LogKeyComponent, config.CompApp,
			config.LogKeyProvider, kind.String(),
			config.LogKeyError, err)
		app.notifyUser(app.Locale.Msg(config.TKeyNotifError))
		return err
	}
	return nil
}

// SignOut logs out and forgets the provider credentials of the active session.
func (app *FriendCareApp) SignOut() {
	s, ok := app.Session.Session()
	if !ok {
		app.Session.Logout()
		return
	}
	app.Session.SignOut(s.Provider)
}

// Withdraw deletes the account and everything kept offline for it.
func (app *FriendCareApp) Withdraw(ctx context.Context) error {
	s, ok := app.Session.Session()
	if !ok {
		return session.ErrInvalidSession
	}

	if err := app.Session.Withdraw(ctx, s.Provider, config.WithdrawReasonDefault, ""); err != nil {
		app.notifyUser(app.Locale.Msg(config.TKeyNotifError))
		return err
	}
	app.Store.Clear()
	app.Preferences.RemoveValue(config.PrefDeviceToken)
	return nil
}
