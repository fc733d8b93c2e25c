package subscription

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loveapplication/sems/sip"
)

// Set is the Subscription Set (SS) of §4.2: the collection of SUBs
// belonging to a single dialog, plus the matching and dispatch logic
// that routes SUBSCRIBE/NOTIFY/REFER traffic to the right one. A Set is
// owned by exactly one dialog's serialisation domain; per §5 it is not
// safe for concurrent use from more than one logical owner at a time.
type Set struct {
	dialog  sip.Dialog
	timers  sip.TimerService
	queue   sip.EventQueue
	log     zerolog.Logger
	metrics *Metrics
	cfg     Config

	subs map[string]*Sub // arena, keyed by stable handle

	uacCSeqMap map[uint32]string
	uasCSeqMap map[uint32]string
}

// NewSet constructs an empty Subscription Set bound to dialog. timers
// and log must be non-nil; queue and metrics may be nil.
func NewSet(dialog sip.Dialog, timers sip.TimerService, queue sip.EventQueue, log zerolog.Logger, metrics *Metrics, cfg Config) *Set {
	return &Set{
		dialog:     dialog,
		timers:     timers,
		queue:      queue,
		log:        log,
		metrics:    metrics,
		cfg:        cfg,
		subs:       make(map[string]*Sub),
		uacCSeqMap: make(map[uint32]string),
		uasCSeqMap: make(map[uint32]string),
	}
}

// Len reports the number of SUBs currently in the set, including any
// not yet reaped after reaching Terminated.
func (ss *Set) Len() int { return len(ss.subs) }

// Subs returns a snapshot slice of every SUB currently in the set, for
// inspection by callers that need more than a count.
func (ss *Set) Subs() []*Sub {
	out := make([]*Sub, 0, len(ss.subs))
	for _, s := range ss.subs {
		out = append(out, s)
	}
	return out
}

// canCreate reports whether method is allowed to originate a new
// subscription; only SUBSCRIBE and REFER can (§4.2 "Creation").
func canCreate(method string) bool {
	return method == sip.SUBSCRIBE || method == sip.REFER
}

// match implements §4.2's matching algorithm. uac is true when req is
// outbound (UAC side), false when req is inbound (UAS side). ok is
// false for the end sentinel: no SUB matched and none was created; the
// caller tells a miss on the creation path (step 1, method refused by
// canCreate) from a miss after the scan to choose between 501 and 481.
func (ss *Set) match(req sip.Request, uac bool) (sub *Sub, ok bool) {
	method := req.GetMethod()

	if ss.dialog.GetRemoteTag() == "" || method == sip.REFER || len(ss.subs) == 0 {
		return ss.create(req, uac)
	}

	role, recognised := roleFor(method, uac)
	if !recognised {
		return nil, false
	}

	ev := sip.ParseEventHeader(req.GetHeader().Get("Event"))
	event, id := ev.Package, ev.ID

	for handle, s := range ss.subs {
		if s.Role != role || s.Event != event {
			continue
		}
		if s.ID == id || (id == "" && event == "refer") {
			if s.Terminated() {
				delete(ss.subs, handle)
				continue
			}
			return s, true
		}
	}

	if method == sip.SUBSCRIBE {
		return ss.create(req, uac)
	}
	return nil, false
}

// create builds a new SUB from req per §4.2's creation rules. Only
// SUBSCRIBE and REFER can create a subscription; any other method is
// rejected here with no reply sent; the caller (OnRequestIn) decides
// what status code that failure deserves.
func (ss *Set) create(req sip.Request, uac bool) (*Sub, bool) {
	method := req.GetMethod()
	if !canCreate(method) {
		return nil, false
	}
	role, _ := roleFor(method, uac)

	ev := sip.ParseEventHeader(req.GetHeader().Get("Event"))
	event, id := ev.Package, ev.ID
	if method == sip.REFER {
		event = "refer"
		id = ""
		if seq, _, parsed := sip.ParseCSeq(req.GetHeader().Get("CSeq")); parsed {
			id = strconv.FormatUint(uint64(seq), 10)
		}
	}

	handle := uuid.NewString()
	sub := newSub(handle, role, event, id, ss.dialog, ss.timers, ss.queue, ss.log, ss.metrics, ss.cfg.t1())
	ss.dialog.IncUsages()
	ss.subs[handle] = sub
	return sub, true
}

// OnRequestIn handles an inbound (UAS) SUBSCRIBE/REFER/NOTIFY. It
// returns false when the request was rejected locally (a response has
// already been sent through the dialog); the caller must not process
// req further.
func (ss *Set) OnRequestIn(req sip.Request) bool {
	// On this path match tries to create (§4.2 step 1), so a miss is a
	// creation refusal (501); any other miss is a plain 481.
	creating := ss.dialog.GetRemoteTag() == "" || req.GetMethod() == sip.REFER || len(ss.subs) == 0
	sub, ok := ss.match(req, false)
	if !ok {
		if creating && !canCreate(req.GetMethod()) {
			ss.log.Warn().Err(ErrCreateNotAllowed).Str("method", req.GetMethod()).Msg("rejecting request with 501")
			if err := ss.dialog.Reply(req, sip.NOT_IMPLEMENTED, "Not Implemented", nil); err != nil {
				ss.log.Warn().Err(err).Msg("failed to send 501 for non-creating method")
			}
		} else {
			ss.log.Warn().Err(ErrNoMatch).Str("method", req.GetMethod()).Msg("rejecting request with 481")
			if err := ss.dialog.Reply(req, sip.CALL_OR_TRANSACTION_DOES_NOT_EXIST, "Subscription Does Not Exist", nil); err != nil {
				ss.log.Warn().Err(err).Msg("failed to send 481 for unmatched request")
			}
		}
		return false
	}
	if sub.Terminated() {
		ss.log.Warn().Err(ErrNoMatch).Str("method", req.GetMethod()).Msg("matched subscription already terminated, rejecting with 481")
		if err := ss.dialog.Reply(req, sip.CALL_OR_TRANSACTION_DOES_NOT_EXIST, "Subscription Does Not Exist", nil); err != nil {
			ss.log.Warn().Err(err).Msg("failed to send 481 for unmatched request")
		}
		return false
	}
	// An inbound NOTIFY applies its Subscription-State immediately
	// (below) and has no further FSM-relevant reply of its own: the
	// trivial 200 OK we send back to it is not tracked here, so
	// OnReplySent never re-applies the same transition a second time.
	if req.GetMethod() != sip.NOTIFY {
		if seq, _, parsed := sip.ParseCSeq(req.GetHeader().Get("CSeq")); parsed {
			ss.uasCSeqMap[seq] = sub.Handle()
		}
	}
	return sub.OnRequestIn(req)
}

// OnRequestSent handles an outbound (UAC) SUBSCRIBE/REFER/NOTIFY
// already handed to the transport layer: it routes the request to its
// matching (or newly created) SUB for CSeq tracking, though only
// SUBSCRIBE/REFER drive the request-FSM itself (Sub.OnRequestSent). A
// miss here is a caller bug: every outbound request in scope should
// have matched or created a SUB.
func (ss *Set) OnRequestSent(req sip.Request) {
	sub, ok := ss.match(req, true)
	if !ok {
		ss.log.Error().Str("method", req.GetMethod()).Msg("on_request_sent: no matching subscription (caller bug)")
		return
	}
	if seq, _, parsed := sip.ParseCSeq(req.GetHeader().Get("CSeq")); parsed {
		ss.uacCSeqMap[seq] = sub.Handle()
	}
	sub.OnRequestSent(req)
}

// OnReplyIn handles a reply to a request this process sent (UAC side).
// ok is false when the reply's CSeq does not match any outstanding
// outbound request and should be dropped.
func (ss *Set) OnReplyIn(req sip.Request, reply sip.Response) bool {
	seq, _, parsed := sip.ParseCSeq(req.GetHeader().Get("CSeq"))
	if !parsed {
		return false
	}
	handle, found := ss.uacCSeqMap[seq]
	if !found {
		return false
	}
	delete(ss.uacCSeqMap, seq)

	sub, present := ss.subs[handle]
	if !present {
		return false
	}
	sub.ReplyFSM(req, reply)
	if sub.Terminated() {
		delete(ss.subs, handle)
	}
	return true
}

// OnReplySent is the UAS-side symmetric counterpart of OnReplyIn,
// driven by ss.uasCSeqMap.
func (ss *Set) OnReplySent(req sip.Request, reply sip.Response) bool {
	seq, _, parsed := sip.ParseCSeq(req.GetHeader().Get("CSeq"))
	if !parsed {
		return false
	}
	handle, found := ss.uasCSeqMap[seq]
	if !found {
		return false
	}
	delete(ss.uasCSeqMap, seq)

	sub, present := ss.subs[handle]
	if !present {
		return false
	}
	sub.ReplyFSM(req, reply)
	if sub.Terminated() {
		delete(ss.subs, handle)
	}
	return true
}

// Terminate force-terminates every SUB in the set, §4.2's "terminate()".
// Each SUB is terminated under its own state_lock; Terminate does not
// hold any set-level lock across those calls since the set itself is
// only ever touched from its owning dialog's serialisation domain.
func (ss *Set) Terminate() {
	for _, s := range ss.subs {
		s.Terminate()
	}
}
