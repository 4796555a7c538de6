package syncer

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Cancel stops a scheduled callback. Calling it after the callback ran, or
// more than once, is harmless.
type Cancel func()

// Scheduler runs callbacks after a delay. The engine never touches wall
// clock timers directly, so tests can drive it with a fake clock.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Cancel
}

type clockScheduler struct {
	clock clockwork.Clock
}

// NewScheduler schedules against clock.
func NewScheduler(clock clockwork.Clock) Scheduler {
	return clockScheduler{clock: clock}
}

func (s clockScheduler) Schedule(d time.Duration, fn func()) Cancel {
	// fn may block on a fetch; run it off the clock's goroutine.
	t := s.clock.AfterFunc(d, func() { go fn() })
	return func() { t.Stop() }
}
