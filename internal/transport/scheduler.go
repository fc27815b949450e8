package transport

import "time"

// Scheduler defers a task. The returned cancel function stops a pending
// task; cancelling after the task ran is a no-op. Abstracted so tests can
// drive reconnection deterministically without wall-clock timers.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler schedules on real timers.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
