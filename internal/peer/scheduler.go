package peer

import "time"

// Scheduler runs deferred work. The registry uses it for the one-shot
// highlight retry so tests can fire it deterministically.
type Scheduler interface {
	// AfterFunc runs f once after d and returns a function that cancels
	// it if it has not run yet.
	AfterFunc(d time.Duration, f func()) (cancel func() bool)
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

// AfterFunc implements Scheduler.
func (TimerScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
