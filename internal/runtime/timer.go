package runtime

import (
	"sort"
	"sync"
)

// armedTimer is one pending entry in a VirtualClock.
type armedTimer struct {
	handle   string
	deadline float64 // seconds since the clock's epoch
	fire     func()
}

// VirtualClock is a deterministic sip.TimerService: it has no relation
// to wall time. Tests advance it explicitly with Advance, which fires,
// in deadline order, every timer whose deadline has been reached.
type VirtualClock struct {
	mu     sync.Mutex
	now    float64
	timers map[string]*armedTimer
}

// NewVirtualClock returns a clock starting at time zero with nothing armed.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{timers: make(map[string]*armedTimer)}
}

// SetTimer arms handle to fire seconds from the clock's current time,
// replacing any prior arming for handle.
func (c *VirtualClock) SetTimer(handle string, seconds float64, fire func()) {
	c.mu.Lock()
	c.timers[handle] = &armedTimer{handle: handle, deadline: c.now + seconds, fire: fire}
	c.mu.Unlock()
}

// RemoveTimer disarms handle. Idempotent.
func (c *VirtualClock) RemoveTimer(handle string) {
	c.mu.Lock()
	delete(c.timers, handle)
	c.mu.Unlock()
}

// Now returns the clock's current virtual time in seconds.
func (c *VirtualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by seconds and fires, in deadline
// order, every timer due at or before the new time. A fire callback
// that re-arms a timer (including re-arming itself) is only eligible
// on a later Advance call: the due set is computed once, up front,
// under the lock, and callbacks run after the lock is released so
// that a callback calling SetTimer/RemoveTimer cannot deadlock.
func (c *VirtualClock) Advance(seconds float64) {
	c.mu.Lock()
	c.now += seconds
	var due []*armedTimer
	for handle, t := range c.timers {
		if t.deadline <= c.now {
			due = append(due, t)
			delete(c.timers, handle)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline < due[j].deadline })
	for _, t := range due {
		t.fire()
	}
}

// Pending reports how many timers are currently armed, for assertions.
func (c *VirtualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
