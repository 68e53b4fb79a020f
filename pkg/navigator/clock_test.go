package navigator

import (
	"sort"
	"sync"
	"time"
)

// fakeClock fires callbacks synchronously from Advance, in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Duration
	seq      int
	f        func()
	stopped  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, deadline: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

// Advance moves time forward by d and runs every timer that comes due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].deadline == c.timers[j].deadline {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].deadline < c.timers[j].deadline
		})
		var due *fakeTimer
		for len(c.timers) > 0 {
			head := c.timers[0]
			if head.stopped {
				c.timers = c.timers[1:]
				continue
			}
			if head.deadline <= target {
				due = head
				due.stopped = true
				c.timers = c.timers[1:]
				c.now = due.deadline
			}
			break
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		due.f()
	}
}
