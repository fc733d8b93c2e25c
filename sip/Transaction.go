package sip

// Transaction is the SIP transaction-layer collaborator: the
// subscription core never constructs one, it only receives a Request
// plus, for UAC transactions, a later final Response, and reads the
// originating request's method off it (see subscription.Sub.ReplyFSM).
type Transaction interface {
	GetDialog() Dialog
	GetState() TransactionState
	GetRetransmitTimer() int
	SetRetransmitTimer(retransmitTimer int)
	GetBranchId() string
	GetRequest() Request
	Close()
}

// ClientTransaction is the UAC-side transaction for a request this
// process sent (a SUBSCRIBE/REFER/NOTIFY we are the subscriber/notifier
// for).
type ClientTransaction interface {
	Transaction

	SendRequest() error
	CreateCancel() (Request, error)
	CreateAck() (Request, error)
}

// ServerTransaction is the UAS-side transaction for a request this
// process received.
type ServerTransaction interface {
	Transaction

	SendResponse(Response) error
}

type TransactionState int

const (
	TRANSACTIONSTATE_CALLING    TransactionState = iota //0
	TRANSACTIONSTATE_TRYING                             //1
	TRANSACTIONSTATE_PROCEEDING                         //2
	TRANSACTIONSTATE_COMPLETED                          //3
	TRANSACTIONSTATE_CONFIRMED                          //4
	TRANSACTIONSTATE_TERMINATED                         //5
)
