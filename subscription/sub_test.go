package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loveapplication/sems/sip"
)

// testDialog is a minimal sip.Dialog for unit tests internal to this
// package: it records the usage count and the status code of every
// reply.
type testDialog struct {
	remoteTag string
	routeSet  []string
	usages    int
	replies   []int
}

func (d *testDialog) GetLocalParty() string                 { return "" }
func (d *testDialog) GetRemoteParty() string                { return "" }
func (d *testDialog) GetRemoteTarget() string                { return "" }
func (d *testDialog) GetDialogId() string                    { return "dlg" }
func (d *testDialog) GetCallId() string                      { return "call" }
func (d *testDialog) GetLocalSequenceNumber() int             { return 0 }
func (d *testDialog) GetRemoteSequenceNumber() int            { return 0 }
func (d *testDialog) GetRouteSet() []string                   { return d.routeSet }
func (d *testDialog) IsSecure() bool                          { return false }
func (d *testDialog) IsServer() bool                          { return false }
func (d *testDialog) IncrementLocalSequenceNumber()           {}
func (d *testDialog) CreateRequest(m string) (sip.Request, error) {
	return sip.NewRequest(m, "sip:test@example.com", nil)
}
func (d *testDialog) SendRequest(ct sip.ClientTransaction) error { return nil }
func (d *testDialog) SendAck(ack sip.Request) error              { return nil }
func (d *testDialog) GetState() sip.DialogState                  { return sip.DIALOGSTATE_CONFIRMED }
func (d *testDialog) Close()                                     {}
func (d *testDialog) GetFirstTransaction() sip.Transaction       { return nil }
func (d *testDialog) GetLocalTag() string                        { return "local" }
func (d *testDialog) GetRemoteTag() string                        { return d.remoteTag }
func (d *testDialog) SetApplicationData(v interface{})            {}
func (d *testDialog) GetApplicationData() interface{}             { return nil }
func (d *testDialog) UpdateRemoteTag(tag string)                  { d.remoteTag = tag }
func (d *testDialog) UpdateRouteSet(route []string)               { d.routeSet = route }
func (d *testDialog) IncUsages()                                  { d.usages++ }
func (d *testDialog) DecUsages()                                  { d.usages-- }
func (d *testDialog) Reply(req sip.Request, code int, reason string, hdrs sip.Header) error {
	d.replies = append(d.replies, code)
	return nil
}

// testTimers is a no-op sip.TimerService that just records which
// handles are currently armed, without ever actually firing anything.
type testTimers struct {
	armed map[string]bool
}

func newTestTimers() *testTimers { return &testTimers{armed: map[string]bool{}} }

func (t *testTimers) SetTimer(handle string, seconds float64, fire func()) {
	t.armed[handle] = true
}

func (t *testTimers) RemoveTimer(handle string) {
	delete(t.armed, handle)
}

func newTestSub(t *testing.T, role Role, event, id string) (*Sub, *testDialog, *testTimers) {
	t.Helper()
	d := &testDialog{}
	tm := newTestTimers()
	s := newSub("h1", role, event, id, d, tm, nil, sip.NopLogger(), nil, DefaultT1)
	return s, d, tm
}

func TestNewSubStartsInInit(t *testing.T) {
	s, _, _ := newTestSub(t, Subscriber, "presence", "a")
	assert.Equal(t, stateInit, s.State())
	assert.False(t, s.Terminated())
}

func TestAdmitArmsTimerN(t *testing.T) {
	s, _, tm := newTestSub(t, Subscriber, "presence", "a")
	s.requestFSM()
	assert.Equal(t, stateNotifyWait, s.State())
	assert.True(t, tm.armed[s.timerNHandle()])
}

func TestTerminateIsIdempotent(t *testing.T) {
	s, d, tm := newTestSub(t, Subscriber, "presence", "a")
	s.requestFSM()
	s.Terminate()
	assert.True(t, s.Terminated())
	assert.Equal(t, -1, d.usages) // IncUsages is the Set's job, not newSub's
	assert.False(t, tm.armed[s.timerNHandle()])

	s.Terminate()
	assert.Equal(t, -1, d.usages) // no double decrement
}

func TestOverlappingAdmissionRefused(t *testing.T) {
	s, d, _ := newTestSub(t, Notifier, "presence", "a")

	req1, err := sip.NewRequest(sip.SUBSCRIBE, "sip:bob@biloxi.com", nil)
	require.NoError(t, err)
	ok := s.OnRequestIn(req1)
	require.True(t, ok)

	req2, err := sip.NewRequest(sip.SUBSCRIBE, "sip:bob@biloxi.com", nil)
	require.NoError(t, err)
	ok = s.OnRequestIn(req2)
	assert.False(t, ok)
	require.Len(t, d.replies, 1)
	assert.Equal(t, sip.SERVER_INTERNAL_ERROR, d.replies[0])
}

func TestApplySubscriptionStateActiveCancelsTimerN(t *testing.T) {
	s, _, tm := newTestSub(t, Subscriber, "presence", "a")
	s.requestFSM()
	require.True(t, tm.armed[s.timerNHandle()])

	s.applySubscriptionState(sip.SubscriptionStateHeader{State: "active", Expires: 60})
	assert.Equal(t, stateActive, s.State())
	assert.False(t, tm.armed[s.timerNHandle()])
	assert.True(t, tm.armed[s.timerExpiresHandle()])
}

func TestApplySubscriptionStateTerminatedTerminates(t *testing.T) {
	s, d, _ := newTestSub(t, Subscriber, "presence", "a")
	s.requestFSM()

	s.applySubscriptionState(sip.SubscriptionStateHeader{State: "terminated", Expires: -1})
	assert.True(t, s.Terminated())
	assert.Equal(t, -1, d.usages)
}

func TestApplySubscriptionStateUnknownExtensionTerminates(t *testing.T) {
	s, _, _ := newTestSub(t, Subscriber, "presence", "a")
	s.requestFSM()

	s.applySubscriptionState(sip.SubscriptionStateHeader{State: "some-extension", Expires: 60})
	assert.True(t, s.Terminated())
}
