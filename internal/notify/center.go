// Package notify is the local notification center: it keeps pending triggers,
// delivers the due ones through the desktop notifier and exports them as iCalendar.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/reminder"
)

// Sender displays a notification. fyne.App satisfies it.
type Sender interface {
	SendNotification(n *fyne.Notification)
}

type entry struct {
	trigger reminder.Trigger
	next    time.Time
}

// Center implements reminder.Center on top of a Sender.
type Center struct {
	Sender Sender
	Clock  reminder.Clock

	// OnFire receives the metadata of each delivered trigger, after the desktop notification was shown.
	OnFire func(ctx context.Context, metadata map[string]string)
	// OnChange receives a snapshot whenever the pending set changes.
	OnChange func(pending []reminder.Trigger)

	mu      sync.Mutex
	pending map[string]*entry
	paused  bool
}

// NewCenter creates an empty, running center.
func NewCenter(sender Sender) *Center {
	return &Center{
		Sender:  sender,
		Clock:   reminder.RealClock{},
		pending: make(map[string]*entry),
	}
}

// RequestAuthorization reports whether notifications can be shown.
// Desktop notifiers need no prompt, so this only checks that a sender is wired.
func (c *Center) RequestAuthorization(context.Context) (bool, error) {
	if c.Sender == nil {
		return false, fmt.Errorf("%s: no notifier", config.ErrPermissionDenied)
	}
	return true, nil
}

// Add registers t, replacing any pending trigger with the same ID.
func (c *Center) Add(ctx context.Context, t reminder.Trigger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}

	next, ok := t.NextFire(c.Clock.Now())
	if !ok {
		return fmt.Errorf("%s: trigger %s never fires", config.ErrSchedule, t.ID)
	}

	c.mu.Lock()
	c.pending[t.ID] = &entry{trigger: t, next: next}
	c.mu.Unlock()

	slog.Debug(config.MsgScheduled,
		config.LogKeyComponent, config.CompCenter,
		config.LogKeyTrigger, t.ID,
		config.LogKeyFireAt, next,
	)
	c.changed()
	return nil
}

// Remove drops the given triggers; unknown IDs are ignored.
func (c *Center) Remove(ids ...string) {
	c.mu.Lock()
	removed := 0
	for _, id := range ids {
		if _, ok := c.pending[id]; ok {
			delete(c.pending, id)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.changed()
	}
}

// RemoveAll drops every pending trigger.
func (c *Center) RemoveAll() {
	c.mu.Lock()
	c.pending = make(map[string]*entry)
	c.mu.Unlock()
	c.changed()
}

// Restore loads previously persisted triggers without notifying OnChange.
// Triggers that can no longer fire are discarded.
func (c *Center) Restore(triggers []reminder.Trigger) {
	now := c.Clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range triggers {
		if t.Validate() != nil {
			continue
		}
		if next, ok := t.NextFire(now); ok {
			c.pending[t.ID] = &entry{trigger: t, next: next}
		}
	}
}

// Pause stops delivery; pending triggers are kept.
func (c *Center) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	slog.Info(config.MsgDeliveryPaused, config.LogKeyComponent, config.CompCenter)
}

// Resume restarts delivery. Repeating triggers missed while paused are skipped.
func (c *Center) Resume() {
	now := c.Clock.Now()

	c.mu.Lock()
	c.paused = false
	for _, e := range c.pending {
		if e.trigger.Repeats && !e.next.After(now) {
			if next, ok := e.trigger.NextFire(now); ok {
				e.next = next
			}
		}
	}
	c.mu.Unlock()
	slog.Info(config.MsgDeliveryResumed, config.LogKeyComponent, config.CompCenter)
}

// Unregister removes every trigger and stops delivery until Resume.
func (c *Center) Unregister() {
	c.RemoveAll()
	c.Pause()
}

// Paused reports whether delivery is stopped.
func (c *Center) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// MarkRead flags a delivered trigger as read.
func (c *Center) MarkRead(id string) bool {
	c.mu.Lock()
	e, ok := c.pending[id]
	if ok {
		e.trigger.Read = true
	}
	c.mu.Unlock()

	if ok {
		c.changed()
	}
	return ok
}

// Pending returns a copy of the pending triggers ordered by next fire time.
func (c *Center) Pending() []reminder.Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// NextFire returns when the trigger id is due next.
func (c *Center) NextFire(id string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.pending[id]
	if !ok {
		return time.Time{}, false
	}
	return e.next, true
}

// Run delivers due triggers every interval until ctx is cancelled.
func (c *Center) Run(ctx context.Context, interval time.Duration) {
	log := slog.With(config.LogKeyComponent, config.CompCenter)
	log.Info(config.MsgWorkerStart, config.LogKeyInterval, interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info(config.MsgWorkerStop)
			return
		case <-ticker.C:
			c.DeliverDue(ctx)
		}
	}
}

// DeliverDue shows every trigger whose fire time has passed and returns how many were delivered.
// Repeating triggers move to their next occurrence; one-shot triggers are removed.
func (c *Center) DeliverDue(ctx context.Context) int {
	now := c.Clock.Now()

	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		return 0
	}
	var due []reminder.Trigger
	for id, e := range c.pending {
		if e.next.After(now) {
			continue
		}
		e.trigger.Triggered = true
		e.trigger.Read = false
		due = append(due, e.trigger)

		next, ok := e.trigger.NextFire(now)
		if !e.trigger.Repeats || !ok {
			delete(c.pending, id)
			continue
		}
		e.next = next
	}
	c.mu.Unlock()

	if len(due) == 0 {
		return 0
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	for _, t := range due {
		c.Sender.SendNotification(fyne.NewNotification(t.Title, t.Body))
		slog.Info(config.MsgDelivered,
			config.LogKeyComponent, config.CompCenter,
			config.LogKeyTrigger, t.ID,
			config.LogKeyKind, string(t.Kind),
		)
		// OnFire runs without the lock; it may re-register triggers.
		if c.OnFire != nil {
			c.OnFire(ctx, t.Payload().Encode())
		}
	}
	c.changed()
	return len(due)
}

func (c *Center) changed() {
	if c.OnChange == nil {
		return
	}
	c.mu.Lock()
	snap := c.snapshot()
	c.mu.Unlock()
	c.OnChange(snap)
}

// snapshot must be called with c.mu held.
func (c *Center) snapshot() []reminder.Trigger {
	entries := make([]*entry, 0, len(c.pending))
	for _, e := range c.pending {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].next.Equal(entries[j].next) {
			return entries[i].trigger.ID < entries[j].trigger.ID
		}
		return entries[i].next.Before(entries[j].next)
	})

	out := make([]reminder.Trigger, len(entries))
	for i, e := range entries {
		out[i] = e.trigger
	}
	return out
}
