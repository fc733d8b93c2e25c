package runtime

import (
	"sync"

	"github.com/loveapplication/sems/sip"
)

// FakeQueue is a sip.EventQueue that just remembers what was posted,
// for assertions that a timer-induced termination woke the session.
type FakeQueue struct {
	mu     sync.Mutex
	Events []sip.Event
}

// NewFakeQueue returns an empty queue.
func NewFakeQueue() *FakeQueue { return &FakeQueue{} }

func (q *FakeQueue) PostEvent(ev sip.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Events = append(q.Events, ev)
}

// Len reports how many events have been posted.
func (q *FakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Events)
}
