package subscription

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/loveapplication/sems/sip"
)

// FSM states, per §4.1's consolidated state table.
const (
	stateInit       = "init"
	stateNotifyWait = "notify_wait"
	statePending    = "pending"
	stateActive     = "active"
	stateTerminated = "terminated"
)

// FSM events.
const (
	eventAdmit         = "admit"          // SUBSCRIBE/REFER admitted or sent
	eventNotifyActive  = "notify_active"  // NOTIFY active;expires>0
	eventNotifyPending = "notify_pending" // NOTIFY pending;expires>0
	eventTerminate     = "terminate"      // any terminating input
)

// Sub is a Single Subscription (SUB): one event-package subscription
// identified by the triple (role, event, id), §3/§4.1.
type Sub struct {
	Role  Role
	Event string
	ID    string

	handle string // stable arena key this SUB is reachable under in its Set

	dialog  sip.Dialog
	timers  sip.TimerService
	queue   sip.EventQueue // optional
	log     zerolog.Logger
	metrics *Metrics
	t1      time.Duration

	mu  sync.Mutex // state_lock, guards fsm only
	fsm *fsm.FSM

	pendingSubscribe int32 // atomic, §3 invariant 5

	// notifiedOnce records whether this SUB has ever reached Active or
	// Pending. ReplyFSM uses it to tell a failure of the initial
	// SUBSCRIBE/REFER (never notified) from a refresh failure.
	notifiedOnce int32 // atomic
}

func newSub(
	handle string, role Role, event, id string,
	dialog sip.Dialog, timers sip.TimerService, queue sip.EventQueue,
	log zerolog.Logger, metrics *Metrics, t1 time.Duration,
) *Sub {
	s := &Sub{
		Role: role, Event: event, ID: id, handle: handle,
		dialog: dialog, timers: timers, queue: queue,
		log: log.With().
			Str("event", event).Str("subscription_id", id).Str("role", role.String()).
			Logger(),
		metrics: metrics,
		t1:      t1,
	}
	s.fsm = fsm.NewFSM(
		stateInit,
		fsm.Events{
			{Name: eventAdmit, Src: []string{stateInit}, Dst: stateNotifyWait},
			{Name: eventNotifyActive, Src: []string{stateNotifyWait, statePending, stateActive}, Dst: stateActive},
			{Name: eventNotifyPending, Src: []string{stateNotifyWait, statePending, stateActive}, Dst: statePending},
			{Name: eventTerminate, Src: []string{stateInit, stateNotifyWait, statePending, stateActive}, Dst: stateTerminated},
		},
		fsm.Callbacks{
			"enter_" + stateTerminated: s.onEnterTerminated,
		},
	)
	metrics.onCreated()
	return s
}

// onEnterTerminated is the single funnel §4.1 requires: it fires at
// most once per Sub, because stateTerminated has no outgoing
// transitions, and decrements the dialog's usage count exactly once.
// Calling back into the dialog here is permitted by §5's locking
// discipline (only timer arm/cancel is forbidden under state_lock).
func (s *Sub) onEnterTerminated(_ context.Context, e *fsm.Event) {
	reason, _ := e.Args[0].(string)
	s.dialog.DecUsages()
	s.metrics.onTerminated(reason)
	s.log.Info().Str("reason", reason).Str("from", e.Src).Msg("subscription terminated")
}

// transition runs one FSM event under state_lock and reports the
// resulting state. err is non-nil (an *fsm.InvalidEventError) when the
// event is not allowed from the current state: every event once the Sub
// is Terminated, admit outside Init, and a NOTIFY event in Init. The
// state is then unchanged, which callers treat as a no-op rather than a
// real failure.
func (s *Sub) transition(event, reason string) (to string, err error) {
	s.mu.Lock()
	err = s.fsm.Event(context.Background(), event, reason)
	to = s.fsm.Current()
	s.mu.Unlock()
	return to, err
}

// State returns the current FSM state name.
func (s *Sub) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.Current()
}

// Terminated reports whether the Sub has reached the absorbing state.
func (s *Sub) Terminated() bool {
	return s.State() == stateTerminated
}

// Handle returns the arena key this Sub is stored under in its Set.
func (s *Sub) Handle() string { return s.handle }

// Terminate forces a transition to Terminated. Idempotent: calling it
// again on an already-terminated Sub is a no-op, never a double
// usage-count decrement.
func (s *Sub) Terminate() {
	s.terminate("forced")
}

func (s *Sub) terminate(reason string) {
	if _, err := s.transition(eventTerminate, reason); err == nil {
		s.cancelTimers()
	}
}

// timerNHandle/timerExpiresHandle give each of a Sub's two timers a
// stable identity with the injected TimerService, per §6.
func (s *Sub) timerNHandle() string       { return s.handle + "#n" }
func (s *Sub) timerExpiresHandle() string { return s.handle + "#e" }

func (s *Sub) cancelTimers() {
	s.timers.RemoveTimer(s.timerNHandle())
	s.timers.RemoveTimer(s.timerExpiresHandle())
}

func (s *Sub) cancelTimerN() {
	s.timers.RemoveTimer(s.timerNHandle())
}

func (s *Sub) armTimerN() {
	d := TimerNDuration(s.t1)
	s.timers.SetTimer(s.timerNHandle(), d.Seconds(), s.fireTimerN)
}

func (s *Sub) armTimerExpires(seconds int) {
	s.timers.SetTimer(s.timerExpiresHandle(), float64(seconds), s.fireTimerExpires)
}

// fireTimerN and fireTimerExpires run on the timer service's own
// goroutine (§5). Each acquires state_lock only for the FSM
// transition, releases it, then arms/cancels timers and pokes the
// event queue strictly outside the lock.
func (s *Sub) fireTimerN() {
	if _, err := s.transition(eventTerminate, "timer-n"); err == nil {
		s.cancelTimers()
		s.wake(sip.TimerKindN)
	}
}

func (s *Sub) fireTimerExpires() {
	if _, err := s.transition(eventTerminate, "timer-expires"); err == nil {
		s.cancelTimers()
		s.wake(sip.TimerKindExpires)
	}
}

func (s *Sub) wake(kind sip.TimerKind) {
	if s.queue != nil {
		s.queue.PostEvent(sip.WakeEvent{Handle: s.handle, Kind: kind})
	}
}

// OnRequestIn admits a UAS-side SUBSCRIBE/REFER, §4.1 "Request
// admission", or applies an inbound NOTIFY's Subscription-State
// directly (the Subscriber side has no reply step of its own to hang
// that transition off; it reads the header the moment the request
// arrives). Returns false iff the request was rejected locally (a
// response has already been sent through the dialog).
func (s *Sub) OnRequestIn(req sip.Request) bool {
	if req.GetMethod() == sip.NOTIFY {
		ss := sip.ParseSubscriptionState(req.GetHeader().Get("Subscription-State"))
		s.applySubscriptionState(ss)
		return true
	}
	if atomic.LoadInt32(&s.pendingSubscribe) > 0 {
		s.log.Warn().Err(ErrOverlappingRefresh).Str("method", req.GetMethod()).Msg("refusing overlapping request")
		hdrs := sip.Header{}
		hdrs.Set("Retry-After", retryAfterValue())
		if err := s.dialog.Reply(req, sip.SERVER_INTERNAL_ERROR, "Server Internal Error", hdrs); err != nil {
			s.log.Warn().Err(err).Msg("failed to send 500 for overlapping SUBSCRIBE/REFER")
		}
		return false
	}
	s.admit()
	return true
}

// OnRequestSent notifies the Sub that an outbound UAC-side request has
// been handed to the transport. Only a SUBSCRIBE or REFER drives the
// request-FSM and the pending_subscribe increment (§4.1's
// Request-FSM is SUBSCRIBE/REFER only); an outbound NOTIFY carries its
// own Subscription-State and is applied once its reply confirms
// delivery (ReplyFSM.replyToNotify), never through this path. Per §9's
// Open Question resolution, this is the single pending_subscribe
// increment for the UAC path (the UAS path increments in OnRequestIn
// instead); there is never a double increment for one admitted/sent
// request.
func (s *Sub) OnRequestSent(req sip.Request) {
	switch req.GetMethod() {
	case sip.SUBSCRIBE, sip.REFER:
		s.admit()
	}
}

func (s *Sub) admit() {
	atomic.AddInt32(&s.pendingSubscribe, 1)
	s.metrics.onPendingDelta(1)
	s.requestFSM()
}

// requestFSM is the SUBSCRIBE/REFER request-FSM of §4.1: Init moves to
// NotifyWait, NotifyWait/Pending/Active keep their state, and Timer N
// is (re-)armed in every non-terminal state.
func (s *Sub) requestFSM() {
	if to, _ := s.transition(eventAdmit, "admit"); to == stateTerminated {
		s.log.Debug().Msg("admit ignored: subscription already terminated")
		return
	}
	s.armTimerN()
}

// applySubscriptionState runs the NOTIFY-state transition shared by
// both sides of the protocol: the Subscriber applies it directly off
// an inbound NOTIFY request (OnRequestIn above); the Notifier applies
// the same rule to the Subscription-State header of the NOTIFY it
// sent, once a final reply confirms delivery (ReplyFSM).
func (s *Sub) applySubscriptionState(ss sip.SubscriptionStateHeader) {
	switch {
	case ss.Expires > 0 && ss.State == "active":
		if _, err := s.transition(eventNotifyActive, "notify-active"); err == nil {
			atomic.StoreInt32(&s.notifiedOnce, 1)
			s.cancelTimerN()
			s.armTimerExpires(ss.Expires)
		}
	case ss.Expires > 0 && ss.State == "pending":
		if _, err := s.transition(eventNotifyPending, "notify-pending"); err == nil {
			atomic.StoreInt32(&s.notifiedOnce, 1)
			s.cancelTimerN()
			s.armTimerExpires(ss.Expires)
		}
	default:
		if ss.Expires > 0 && ss.State != "terminated" {
			s.log.Warn().Str("state", ss.State).Msg("NOTIFY Subscription-State outside {active,pending}; terminating")
		}
		s.terminate("notify-terminated")
	}
}

func retryAfterValue() string {
	return strconv.Itoa(rand.Intn(10))
}
