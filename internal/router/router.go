// Package router maps delivered notifications back to the friend they are about.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/reminder"
)

// ErrResolution is logged when a payload names a friend that is not in the current session.
var ErrResolution = errors.New(config.ErrResolution)

// FriendSource returns the friends of the current session; none when logged out.
type FriendSource interface {
	Friends() []friend.Friend
}

// Rescheduler re-registers a friend's cadence trigger.
type Rescheduler interface {
	ScheduleRegular(ctx context.Context, f friend.Friend) error
}

// Router resolves notification payloads and hands the friend to the UI layer.
type Router struct {
	Friends   FriendSource
	Scheduler Rescheduler

	selected chan friend.Friend
}

// New creates a router with a buffered selection channel.
func New(friends FriendSource, scheduler Rescheduler) *Router {
	return &Router{
		Friends:   friends,
		Scheduler: scheduler,
		selected:  make(chan friend.Friend, config.SelectionBufferSize),
	}
}

// Selected delivers the friends chosen through notifications.
func (r *Router) Selected() <-chan friend.Friend {
	return r.selected
}

// Resolve finds the friend p refers to. Friend ids are compared case-insensitively.
func (r *Router) Resolve(p reminder.Payload) (friend.Friend, bool) {
	for _, f := range r.Friends.Friends() {
		if strings.EqualFold(f.ID, p.FriendID) {
			slog.Debug(config.MsgResolved,
				config.LogKeyComponent, config.CompRouter,
				config.LogKeyFriend, f.ID,
			)
			return f, true
		}
	}

	slog.Warn(config.MsgResolveFailed,
		config.LogKeyComponent, config.CompRouter,
		config.LogKeyFriend, p.FriendID,
		config.LogKeyError, ErrResolution,
	)
	return friend.Friend{}, false
}

// Deliver handles the metadata of a delivered notification. A biweekly friend gets its
// next one-shot trigger, and the friend is published on Selected when a reader keeps up.
func (r *Router) Deliver(ctx context.Context, metadata map[string]string) error {
	p, err := reminder.DecodePayload(metadata)
	if err != nil {
		slog.Warn(config.ErrInvalidPayload,
			config.LogKeyComponent, config.CompRouter,
			config.LogKeyError, err,
		)
		return err
	}

	f, ok := r.Resolve(p)
	if !ok {
		return fmt.Errorf("%w: %s", ErrResolution, p.FriendID)
	}

	if p.Kind == reminder.KindRegular && f.Recurrence == friend.RecurrenceBiweekly && r.Scheduler != nil {
		if err := r.Scheduler.ScheduleRegular(ctx, f); err != nil {
			slog.Error(config.ErrSchedule,
				config.LogKeyComponent, config.CompRouter,
				config.LogKeyFriend, f.ID,
				config.LogKeyError, err,
			)
		} else {
			slog.Debug(config.MsgRechained,
				config.LogKeyComponent, config.CompRouter,
				config.LogKeyFriend, f.ID,
			)
		}
	}

	select {
	case r.selected <- f:
	default:
		slog.Warn(config.MsgSelectionDropped,
			config.LogKeyComponent, config.CompRouter,
			config.LogKeyFriend, f.ID,
		)
	}
	return nil
}
