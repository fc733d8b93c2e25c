package runtime_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loveapplication/sems/internal/runtime"
	"github.com/loveapplication/sems/sip"
	"github.com/loveapplication/sems/subscription"
)

func newReq(t *testing.T, method, event, id string, cseq uint32) sip.Request {
	t.Helper()
	req, err := sip.NewRequest(method, "sip:bob@biloxi.com", nil)
	require.NoError(t, err)
	if event != "" {
		v := event
		if id != "" {
			v += ";id=" + id
		}
		req.GetHeader().Set("Event", v)
	}
	req.GetHeader().Set("CSeq", strconv.FormatUint(uint64(cseq), 10)+" "+method)
	return req
}

func newSet(t *testing.T) (*subscription.Set, *runtime.FakeDialog, *runtime.VirtualClock, *runtime.FakeQueue) {
	t.Helper()
	dialog := runtime.NewFakeDialog("local-tag", "call-1")
	clock := runtime.NewVirtualClock()
	queue := runtime.NewFakeQueue()
	ss := subscription.NewSet(dialog, clock, queue, sip.NopLogger(), nil, subscription.Config{})
	return ss, dialog, clock, queue
}

// Scenario 1: happy subscribe.
func TestHappySubscribe(t *testing.T) {
	ss, dialog, clock, _ := newSet(t)

	sub := newReq(t, sip.SUBSCRIBE, "presence", "a", 1)
	ss.OnRequestSent(sub)
	require.Equal(t, 1, dialog.Usages())

	reply := sip.NewResponse(sip.OK, "OK")
	reply.GetHeader().Set("To", `"Bob" <sip:bob@biloxi.com>;tag=remote-tag`)
	reply.GetHeader().Set("Expires", "3600")
	ok := ss.OnReplyIn(sub, reply)
	require.True(t, ok)
	assert.Equal(t, "remote-tag", dialog.GetRemoteTag())
	assert.Equal(t, 2, clock.Pending()) // timer-n still armed, timer-expires newly armed

	notify := newReq(t, sip.NOTIFY, "presence", "a", 2)
	notify.GetHeader().Set("Subscription-State", "active;expires=3600")
	ss.OnRequestIn(notify)

	assert.Equal(t, 1, dialog.Usages())
	assert.Equal(t, 1, clock.Pending())
}

// Scenario 2: initial failure.
func TestInitialFailure(t *testing.T) {
	ss, dialog, _, _ := newSet(t)

	sub := newReq(t, sip.SUBSCRIBE, "presence", "a", 1)
	ss.OnRequestSent(sub)
	require.Equal(t, 1, dialog.Usages())

	reply := sip.NewResponse(sip.NOT_FOUND, "Not Found")
	ok := ss.OnReplyIn(sub, reply)
	require.True(t, ok)

	assert.Equal(t, 0, dialog.Usages())
	assert.Equal(t, 0, ss.Len())
}

// Scenario 3: refresh 489 terminates per RFC 5057.
func TestRefresh489Terminates(t *testing.T) {
	ss, dialog, _, _ := newSet(t)

	sub := newReq(t, sip.SUBSCRIBE, "presence", "a", 1)
	ss.OnRequestSent(sub)
	ok200 := sip.NewResponse(sip.OK, "OK")
	ok200.GetHeader().Set("To", `<sip:bob@biloxi.com>;tag=remote-tag`)
	ok200.GetHeader().Set("Expires", "3600")
	ss.OnReplyIn(sub, ok200)
	require.Equal(t, 1, dialog.Usages())

	notify := newReq(t, sip.NOTIFY, "presence", "a", 2)
	notify.GetHeader().Set("Subscription-State", "active;expires=3600")
	ss.OnRequestIn(notify)

	refresh := newReq(t, sip.SUBSCRIBE, "presence", "a", 3)
	ss.OnRequestSent(refresh)

	badEvent := sip.NewResponse(sip.BAD_EVENT, "Bad Event")
	ss.OnReplyIn(refresh, badEvent)

	assert.Equal(t, 0, dialog.Usages())
	assert.Equal(t, 0, ss.Len())
}

// Scenario 4: refresh 408 leaves the subscription Active.
func TestRefresh408StaysActive(t *testing.T) {
	ss, dialog, _, _ := newSet(t)

	sub := newReq(t, sip.SUBSCRIBE, "presence", "a", 1)
	ss.OnRequestSent(sub)
	ok200 := sip.NewResponse(sip.OK, "OK")
	ok200.GetHeader().Set("To", `<sip:bob@biloxi.com>;tag=remote-tag`)
	ok200.GetHeader().Set("Expires", "3600")
	ss.OnReplyIn(sub, ok200)

	notify := newReq(t, sip.NOTIFY, "presence", "a", 2)
	notify.GetHeader().Set("Subscription-State", "active;expires=3600")
	ss.OnRequestIn(notify)

	refresh := newReq(t, sip.SUBSCRIBE, "presence", "a", 3)
	ss.OnRequestSent(refresh)
	timeout := sip.NewResponse(sip.REQUEST_TIMEOUT, "Request Timeout")
	ss.OnReplyIn(refresh, timeout)

	assert.Equal(t, 1, dialog.Usages())
	assert.Equal(t, 1, ss.Len())
	for _, s := range ss.Subs() {
		assert.Equal(t, "active", s.State())
	}
}

// Scenario 5: NOTIFY timeout fires Timer N and wakes the queue.
func TestNotifyTimeout(t *testing.T) {
	ss, dialog, clock, queue := newSet(t)

	sub := newReq(t, sip.SUBSCRIBE, "presence", "a", 1)
	ss.OnRequestSent(sub)
	require.Equal(t, 1, clock.Pending())

	clock.Advance(subscription.TimerNDuration(subscription.DefaultT1).Seconds())

	assert.Equal(t, 0, dialog.Usages())
	assert.Equal(t, 1, queue.Len())
}

// Scenario 6: REFER always creates a fresh subscription keyed on CSeq.
func TestReferCreatesDistinctSubscriptions(t *testing.T) {
	ss, dialog, _, _ := newSet(t)

	r1 := newReq(t, sip.REFER, "", "", 7)
	ss.OnRequestSent(r1)
	r2 := newReq(t, sip.REFER, "", "", 8)
	ss.OnRequestSent(r2)

	assert.Equal(t, 2, ss.Len())
	assert.Equal(t, 2, dialog.Usages())

	var ids []string
	for _, s := range ss.Subs() {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{"7", "8"}, ids)
}

// An outbound NOTIFY must not drive the SUBSCRIBE/REFER request-FSM: it
// carries no pending_subscribe increment of its own, so a Notifier
// sending NOTIFY after NOTIFY never blocks a later inbound SUBSCRIBE
// refresh with a spurious 500.
func TestOutboundNotifyDoesNotBlockRefresh(t *testing.T) {
	ss, dialog, _, _ := newSet(t)
	dialog.UpdateRemoteTag("remote-tag")

	sub := newReq(t, sip.SUBSCRIBE, "presence", "a", 1)
	ss.OnRequestIn(sub)
	subOK := sip.NewResponse(sip.OK, "OK")
	subOK.GetHeader().Set("Expires", "3600")
	ss.OnReplySent(sub, subOK)

	notify := newReq(t, sip.NOTIFY, "presence", "a", 2)
	notify.GetHeader().Set("Subscription-State", "active;expires=3600")
	ss.OnRequestSent(notify)
	reply := sip.NewResponse(sip.OK, "OK")
	ss.OnReplyIn(notify, reply)

	refresh := newReq(t, sip.SUBSCRIBE, "presence", "a", 3)
	admitted := ss.OnRequestIn(refresh)

	assert.True(t, admitted)
	assert.Equal(t, 1, dialog.Usages())
}

// Scenario 7: overlapping SUBSCRIBE is refused with 500 and Retry-After.
func TestOverlappingSubscribeRefused(t *testing.T) {
	ss, dialog, _, _ := newSet(t)
	// An inbound SUBSCRIBE arrives on an already-established dialog, so
	// the remote tag (learned from the initiating request) is non-empty
	// and the matcher can find the existing subscription instead of
	// creating a second one.
	dialog.UpdateRemoteTag("remote-tag")

	first := newReq(t, sip.SUBSCRIBE, "presence", "a", 1)
	admitted := ss.OnRequestIn(first)
	require.True(t, admitted)

	second := newReq(t, sip.SUBSCRIBE, "presence", "a", 2)
	admitted = ss.OnRequestIn(second)
	assert.False(t, admitted)

	last := dialog.LastReply()
	assert.Equal(t, sip.SERVER_INTERNAL_ERROR, last.Code)
	retryAfter := last.Hdrs.Get("Retry-After")
	require.NotEmpty(t, retryAfter)
	n, err := strconv.Atoi(retryAfter)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
	assert.LessOrEqual(t, n, 9)
}

// Scenario 8: an unmatched NOTIFY is rejected with 481 and creates nothing.
func TestUnmatchedNotifyGets481(t *testing.T) {
	ss, dialog, _, _ := newSet(t)

	// Seed the dialog with a remote tag so the empty-set fast path
	// doesn't treat this NOTIFY as dialog-establishing.
	dialog.UpdateRemoteTag("remote-tag")
	// Seed one unrelated subscription so the set is non-empty.
	seed := newReq(t, sip.SUBSCRIBE, "dialog", "", 1)
	ss.OnRequestIn(seed)

	notify := newReq(t, sip.NOTIFY, "presence", "x", 2)
	admitted := ss.OnRequestIn(notify)

	assert.False(t, admitted)
	last := dialog.LastReply()
	assert.Equal(t, sip.CALL_OR_TRANSACTION_DOES_NOT_EXIST, last.Code)
	assert.Equal(t, 1, ss.Len())
}
