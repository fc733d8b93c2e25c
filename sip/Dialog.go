package sip

// Dialog is the enclosing SIP dialog collaborator consumed by the
// subscription core (package subscription). The core never implements
// Dialog; it is supplied by the owning call layer.
type Dialog interface {
	GetLocalParty() string
	GetRemoteParty() string
	GetRemoteTarget() string
	GetDialogId() string
	GetCallId() string
	GetLocalSequenceNumber() int
	GetRemoteSequenceNumber() int
	GetRouteSet() []string
	IsSecure() bool
	IsServer() bool
	IncrementLocalSequenceNumber()
	CreateRequest(method string) (Request, error)
	SendRequest(ct ClientTransaction) error
	SendAck(ack Request) error
	GetState() DialogState
	Close()
	GetFirstTransaction() Transaction
	GetLocalTag() string
	GetRemoteTag() string
	SetApplicationData(applicationData interface{})
	GetApplicationData() interface{}

	// UpdateRemoteTag adopts tag as the dialog's remote tag. Called by
	// a subscription on the first 2xx to a SUBSCRIBE/REFER when
	// GetRemoteTag() was previously empty.
	UpdateRemoteTag(tag string)

	// UpdateRouteSet replaces the dialog's route set, installed from a
	// 2xx response's Record-Route headers.
	UpdateRouteSet(route []string)

	// IncUsages/DecUsages track the dialog's usage count. Every
	// non-terminated subscription contributes exactly one usage; the
	// dialog is torn down by its owner once usages reach zero.
	IncUsages()
	DecUsages()

	// Reply sends a response to req through this dialog's transaction
	// layer. hdrs, if non-nil, is merged into the response header
	// before it is sent (used for Retry-After on a 500).
	Reply(req Request, code int, reason string, hdrs Header) error
}

type DialogState int

const (
	DIALOGSTATE_EARLY      DialogState = iota //0
	DIALOGSTATE_CONFIRMED                     //1
	DIALOGSTATE_COMPLETED                     //2
	DIALOGSTATE_TERMINATED                    //3
)
