// Package runtime provides fake collaborators for the subscription
// core (a Dialog, a virtual-clock TimerService, and an EventQueue) so
// the end-to-end scenarios can be driven deterministically without a
// real transport or real sleeps.
package runtime

import (
	"sync"

	"github.com/loveapplication/sems/sip"
)

// SentReply records one call to Dialog.Reply, for test assertions.
type SentReply struct {
	Req    sip.Request
	Code   int
	Reason string
	Hdrs   sip.Header
}

// FakeDialog is a minimal sip.Dialog for tests: it has no transport,
// just enough state to observe what the subscription core does to it.
type FakeDialog struct {
	mu sync.Mutex

	localTag, remoteTag string
	routeSet            []string
	callID              string
	usages               int
	state                sip.DialogState
	appData              interface{}

	Replies []SentReply
}

// NewFakeDialog builds a dialog with the given local tag and call-ID.
// The remote tag starts empty, as it is before the first 2xx.
func NewFakeDialog(localTag, callID string) *FakeDialog {
	return &FakeDialog{localTag: localTag, callID: callID, state: sip.DIALOGSTATE_CONFIRMED}
}

func (d *FakeDialog) GetLocalParty() string    { return "" }
func (d *FakeDialog) GetRemoteParty() string   { return "" }
func (d *FakeDialog) GetRemoteTarget() string  { return "" }
func (d *FakeDialog) GetDialogId() string      { return d.callID + d.localTag + d.remoteTag }
func (d *FakeDialog) GetCallId() string        { return d.callID }

func (d *FakeDialog) GetLocalSequenceNumber() int  { return 0 }
func (d *FakeDialog) GetRemoteSequenceNumber() int { return 0 }

func (d *FakeDialog) GetRouteSet() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.routeSet
}

func (d *FakeDialog) IsSecure() bool { return false }
func (d *FakeDialog) IsServer() bool { return false }

func (d *FakeDialog) IncrementLocalSequenceNumber() {}

func (d *FakeDialog) CreateRequest(method string) (sip.Request, error) {
	return sip.NewRequest(method, "sip:test@example.com", nil)
}

func (d *FakeDialog) SendRequest(ct sip.ClientTransaction) error { return nil }
func (d *FakeDialog) SendAck(ack sip.Request) error              { return nil }

func (d *FakeDialog) GetState() sip.DialogState { return d.state }
func (d *FakeDialog) Close()                    {}

func (d *FakeDialog) GetFirstTransaction() sip.Transaction { return nil }

func (d *FakeDialog) GetLocalTag() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.localTag
}

func (d *FakeDialog) GetRemoteTag() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteTag
}

func (d *FakeDialog) SetApplicationData(v interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appData = v
}

func (d *FakeDialog) GetApplicationData() interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.appData
}

func (d *FakeDialog) UpdateRemoteTag(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remoteTag = tag
}

func (d *FakeDialog) UpdateRouteSet(route []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routeSet = route
}

func (d *FakeDialog) IncUsages() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.usages++
}

func (d *FakeDialog) DecUsages() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.usages--
}

// Usages returns the dialog's current usage count, for assertions.
func (d *FakeDialog) Usages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.usages
}

func (d *FakeDialog) Reply(req sip.Request, code int, reason string, hdrs sip.Header) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Replies = append(d.Replies, SentReply{Req: req, Code: code, Reason: reason, Hdrs: hdrs})
	return nil
}

// LastReply returns the most recently sent reply, or the zero value if
// none has been sent yet.
func (d *FakeDialog) LastReply() SentReply {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Replies) == 0 {
		return SentReply{}
	}
	return d.Replies[len(d.Replies)-1]
}
