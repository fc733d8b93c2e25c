package sip

// EventQueue wakes the owning session after something happens that it
// could not have observed synchronously: in this module, solely a
// timer-induced subscription termination (§6). It is optional: a SUB
// with no EventQueue simply does not post.
type EventQueue interface {
	PostEvent(ev Event)
}

// Event is the payload an EventQueue carries. The subscription core
// only ever posts a WakeEvent; the type exists so EventQueue can be
// reused by callers that post richer events of their own.
type Event interface {
	isEvent()
}

// WakeEvent is posted after a SUB is terminated by Timer N or the
// Expires timer, so the owning session notices the dialog usage
// change without polling.
type WakeEvent struct {
	Handle string
	Kind   TimerKind
}

func (WakeEvent) isEvent() {}
