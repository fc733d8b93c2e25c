package subscription

import (
	"sync/atomic"

	"github.com/loveapplication/sems/sip"
)

// ReplyFSM consumes a final (>=200) reply to a prior request belonging
// to this Sub. Provisional replies are ignored. §4.1 "Reply-FSM".
func (s *Sub) ReplyFSM(req sip.Request, reply sip.Response) {
	if reply.GetStatusCode() < 200 {
		return
	}

	method := req.GetMethod()
	switch method {
	case sip.SUBSCRIBE, sip.REFER:
		s.replyToSubscribeOrRefer(method, reply)
	case sip.NOTIFY:
		s.replyToNotify(req, reply)
	default:
		s.log.Warn().Str("method", method).Msg("reply for unexpected originating method")
	}
}

func (s *Sub) replyToSubscribeOrRefer(method string, reply sip.Response) {
	defer func() {
		atomic.AddInt32(&s.pendingSubscribe, -1)
		s.metrics.onPendingDelta(-1)
	}()

	code := reply.GetStatusCode()
	if code >= 300 {
		if atomic.LoadInt32(&s.notifiedOnce) == 0 {
			// never reached Active/Pending: this is the initial
			// subscription establishment, and it failed.
			s.terminate("initial-failure")
		} else if isRFC5057(code) {
			s.log.Warn().Err(ErrFatalResponse).Int("code", code).Msg("terminating on RFC 5057 refresh failure")
			s.terminate("rfc5057-refresh-failure")
		}
		// any other refresh failure: only the transaction fails
		return
	}

	// 2xx: adopt the remote tag and route set on the first success.
	if s.dialog.GetRemoteTag() == "" {
		s.dialog.UpdateRemoteTag(sip.ParseTag(reply.GetHeader().Get("To")))
		s.dialog.UpdateRouteSet(reply.GetHeader().Values("Record-Route"))
	}

	raw := reply.GetHeader().Get("Expires")
	seconds, ok := sip.ParseExpires(raw)
	switch {
	case ok && seconds > 0:
		s.armTimerExpires(seconds)
	case ok && seconds == 0:
		// Timer N remains the safety net.
	default:
		// Expires absent or unparseable. RFC 6665 requires Expires in
		// a 2xx to SUBSCRIBE; REFER's 2xx carries no such requirement.
		if method == sip.SUBSCRIBE {
			s.log.Warn().Err(ErrMissingExpires).Msg("terminating subscription")
			s.terminate("missing-expires")
		}
	}
}

func (s *Sub) replyToNotify(req sip.Request, reply sip.Response) {
	code := reply.GetStatusCode()
	if code >= 300 {
		if isRFC5057(code) {
			s.log.Warn().Err(ErrFatalResponse).Int("code", code).Msg("terminating on RFC 5057 NOTIFY failure")
			s.terminate("rfc5057-notify-failure")
		}
		return
	}

	ss := sip.ParseSubscriptionState(req.GetHeader().Get("Subscription-State"))
	s.applySubscriptionState(ss)
}

func isRFC5057(code int) bool {
	switch code {
	case sip.METHOD_NOT_ALLOWED, sip.CALL_OR_TRANSACTION_DOES_NOT_EXIST, sip.BAD_EVENT, sip.NOT_IMPLEMENTED:
		return true
	default:
		return false
	}
}
