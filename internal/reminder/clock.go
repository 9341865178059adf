package reminder

import "time"

// Clock abstracts time.Now() to allow deterministic testing.
// It is used by the Scheduler and the notification center to place triggers in time.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}
