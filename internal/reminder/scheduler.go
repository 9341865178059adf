// Package reminder computes check-in dates and registers local notification
// triggers for friends.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
)

var (
	ErrInvalidRecurrence = errors.New(config.ErrInvalidRecurrence)
	ErrPermissionDenied  = errors.New(config.ErrPermissionDenied)
)

// Center is the local notification service triggers are registered with.
// Add replaces any pending trigger with the same ID.
type Center interface {
	Add(ctx context.Context, t Trigger) error
	Remove(ids ...string)
	RemoveAll()
	RequestAuthorization(ctx context.Context) (bool, error)
}

// PermissionCache remembers the one permission request made per install.
type PermissionCache interface {
	NotificationPermission() (granted, requested bool)
	SetNotificationPermission(granted bool)
}

// TextFunc renders the title and body shown for a trigger.
type TextFunc func(kind Kind, f friend.Friend) (title, body string)

// Scheduler turns friends into triggers. Time of day and the weekly weekday are
// fixed policy, not user input.
type Scheduler struct {
	Center      Center
	Permissions PermissionCache
	Clock       Clock
	Text        TextFunc

	Hour    int
	Minute  int
	Weekday time.Weekday

	permMu sync.Mutex
}

// NewScheduler wires a scheduler with the configured fixed times.
func NewScheduler(center Center, perms PermissionCache) *Scheduler {
	return &Scheduler{
		Center:      center,
		Permissions: perms,
		Clock:       RealClock{},
		Hour:        config.ReminderHour,
		Minute:      config.ReminderMinute,
		Weekday:     config.ReminderWeekday,
	}
}

// NextOccurrence is the next check-in date after from for rule; none yields false.
func NextOccurrence(from time.Time, rule friend.Recurrence) (time.Time, bool) {
	return rule.Advance(from)
}

// ScheduleRegular registers the single cadence trigger of f, replacing any previous one.
// Cadences the trigger primitive cannot express drop the old trigger and return ErrInvalidRecurrence.
func (s *Scheduler) ScheduleRegular(ctx context.Context, f friend.Friend) error {
	log := slog.With(
		config.LogKeyComponent, config.CompScheduler,
		config.LogKeyFriend, f.ID,
		config.LogKeyRule, string(f.Recurrence),
	)

	t, err := s.regularTrigger(f)
	if err != nil {
		s.Center.Remove(TriggerID(f.ID, KindRegular))
		log.Debug(config.MsgSkippedRule)
		return err
	}
	return s.register(ctx, t, log)
}

// ScheduleSpecialDates registers yearly birthday and anniversary triggers.
// Their identifiers are stable, so calling this repeatedly is idempotent.
func (s *Scheduler) ScheduleSpecialDates(ctx context.Context, f friend.Friend) error {
	log := slog.With(config.LogKeyComponent, config.CompScheduler, config.LogKeyFriend, f.ID)

	var errs []error
	if f.BirthDate != nil {
		t := s.yearlyTrigger(f, KindBirthday, *f.BirthDate)
		errs = append(errs, s.register(ctx, t, log))
	} else {
		s.Center.Remove(TriggerID(f.ID, KindBirthday))
	}

	if f.Anniversary != nil {
		t := s.yearlyTrigger(f, KindAnniversary, f.Anniversary.Date)
		errs = append(errs, s.register(ctx, t, log))
	} else {
		s.Center.Remove(TriggerID(f.ID, KindAnniversary))
	}
	return errors.Join(errs...)
}

// ScheduleAll (re)registers every trigger for friends. Friends are independent,
// so one failure does not stop the rest; unschedulable cadences are not errors here.
func (s *Scheduler) ScheduleAll(ctx context.Context, friends []friend.Friend) error {
	var errs []error
	for _, f := range friends {
		if err := s.ScheduleRegular(ctx, f); err != nil && !errors.Is(err, ErrInvalidRecurrence) {
			errs = append(errs, err)
		}
		if err := s.ScheduleSpecialDates(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Cancel removes every trigger of friendID.
func (s *Scheduler) Cancel(friendID string) {
	s.Center.Remove(
		TriggerID(friendID, KindRegular),
		TriggerID(friendID, KindBirthday),
		TriggerID(friendID, KindAnniversary),
	)
	slog.Debug(config.MsgCancelled, config.LogKeyComponent, config.CompScheduler, config.LogKeyFriend, friendID)
}

// CancelAll clears every pending trigger.
func (s *Scheduler) CancelAll() {
	s.Center.RemoveAll()
	slog.Info(config.MsgCancelled, config.LogKeyComponent, config.CompScheduler)
}

func (s *Scheduler) regularTrigger(f friend.Friend) (Trigger, error) {
	t := s.newTrigger(f, KindRegular)
	t.Repeats = true

	switch f.Recurrence {
	case friend.RecurrenceDaily:
	case friend.RecurrenceWeekly:
		wd := s.Weekday
		t.Match.Weekday = &wd
	case friend.RecurrenceBiweekly:
		// A calendar match cannot express a 14-day period: fire once and let the
		// delivery handler schedule the next one.
		now := s.Clock.Now()
		day := now.AddDate(0, 0, config.BiweeklyDays)
		t.Repeats = false
		t.FireAt = time.Date(day.Year(), day.Month(), day.Day(), s.Hour, s.Minute, 0, 0, now.Location())
	case friend.RecurrenceMonthly:
		t.Match.Day = s.Clock.Now().Day()
	default:
		return Trigger{}, fmt.Errorf("%w: %q", ErrInvalidRecurrence, f.Recurrence)
	}
	return t, nil
}

func (s *Scheduler) yearlyTrigger(f friend.Friend, kind Kind, date time.Time) Trigger {
	t := s.newTrigger(f, kind)
	t.Repeats = true
	t.Match.Month = date.Month()
	t.Match.Day = date.Day()
	return t
}

func (s *Scheduler) newTrigger(f friend.Friend, kind Kind) Trigger {
	t := Trigger{
		ID:         TriggerID(f.ID, kind),
		ReminderID: uuid.NewString(),
		FriendID:   f.ID,
		Kind:       kind,
		Match:      Match{Hour: s.Hour, Minute: s.Minute},
		CreatedAt:  s.Clock.Now(),
	}
	if s.Text != nil {
		t.Title, t.Body = s.Text(kind, f)
	} else {
		t.Title, t.Body = config.AppName, f.Name
	}
	return t
}

func (s *Scheduler) register(ctx context.Context, t Trigger, log *slog.Logger) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	if err := s.Center.Add(ctx, t); err != nil {
		log.Error(config.ErrSchedule, config.LogKeyTrigger, t.ID, config.LogKeyError, err)
		return fmt.Errorf("%s: %w", config.ErrSchedule, err)
	}
	log.Debug(config.MsgScheduled, config.LogKeyTrigger, t.ID, config.LogKeyKind, string(t.Kind))
	return nil
}

// authorize asks the center for permission the first time only; later calls reuse the cached answer.
func (s *Scheduler) authorize(ctx context.Context) error {
	s.permMu.Lock()
	defer s.permMu.Unlock()

	log := slog.With(config.LogKeyComponent, config.CompScheduler)

	granted, requested := s.Permissions.NotificationPermission()
	if !requested {
		g, err := s.Center.RequestAuthorization(ctx)
		if err != nil {
			log.Warn(config.ErrPermissionDenied, config.LogKeyError, err)
		}
		granted = g && err == nil
		s.Permissions.SetNotificationPermission(granted)
		log.Info(config.MsgPermRequested, config.LogKeyOutcome, granted)
	}

	if !granted {
		log.Warn(config.MsgPermDenied)
		return ErrPermissionDenied
	}
	return nil
}
