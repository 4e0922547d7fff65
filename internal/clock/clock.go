// Package clock abstracts the time calls made by the transfer engine and
// the room loops so tests can drive timers deterministically.
package clock

import "time"

// Clock is the subset of the time package used by Roomdrop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers ticks on C until Stop is called.
type Ticker struct {
	C    <-chan time.Time
	stop func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
