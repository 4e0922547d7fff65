package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
	changed *sync.Cond
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
	interval time.Duration
	stopped  bool
}

// NewFake returns a FakeClock set to start.
func NewFake(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.changed = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, &waiter{deadline: c.now.Add(d), ch: ch})
	c.changed.Broadcast()
	return ch
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w := &waiter{deadline: c.now.Add(d), ch: make(chan time.Time, 1), interval: d}
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()

	return &Ticker{C: w.ch, stop: func() {
		c.mu.Lock()
		w.stopped = true
		c.mu.Unlock()
	}}
}

// Advance moves the clock forward by d, firing every waiter whose deadline
// falls inside the new time in deadline order. Ticks that find a full
// channel are dropped, as with time.Ticker.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now

	var due, pending []*waiter
	for {
		due, pending = due[:0], pending[:0]
		for _, w := range c.waiters {
			switch {
			case w.stopped:
			case w.deadline.After(target):
				pending = append(pending, w)
			default:
				due = append(due, w)
			}
		}
		if len(due) == 0 {
			c.waiters = append([]*waiter(nil), pending...)
			c.mu.Unlock()
			return
		}

		sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
		for _, w := range due {
			select {
			case w.ch <- target:
			default:
			}
			if w.interval > 0 {
				w.deadline = w.deadline.Add(w.interval)
				pending = append(pending, w)
			}
		}
		c.waiters = append([]*waiter(nil), pending...)
	}
}

// WaitForTimers blocks until at least n timers or tickers are registered.
// Call it before Advance to avoid racing the goroutine that creates them.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

func (c *FakeClock) pendingLocked() int {
	n := 0
	for _, w := range c.waiters {
		if !w.stopped {
			n++
		}
	}
	return n
}
