package sip

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"net/textproto"
	"strings"
)

// A Request represents a SIP request received by a server or to be sent
// by a client.
type Request interface {
	Message

	// GetMethod returns the method of this Request message.
	GetMethod() string

	// SetMethod sets the method of this Request message.
	SetMethod(method string) error

	// GetRequestURI returns the Request-URI: the SIP/SIPS (or other
	// scheme) URI identifying the user or service this request targets.
	GetRequestURI() string

	SetRequestURI(uri string) error
}

// Request methods.
const (
	ACK      = "ACK"
	BYE      = "BYE"
	CANCEL   = "CANCEL"
	INVITE   = "INVITE"
	OPTIONS  = "OPTIONS"
	REGISTER = "REGISTER"
	MESSAGE  = "MESSAGE"
	INFO     = "INFO"
	PRACK    = "PRACK"
	UPDATE   = "UPDATE"

	// NOTIFY carries a change in the state of a subscribed-to event
	// package (RFC 6665). Its Subscription-State header governs the
	// subscription's state-machine transitions; see subscription.Sub.
	NOTIFY = "NOTIFY"

	// SUBSCRIBE requests notification of changes to the state of an
	// event package named by its Event header (RFC 6665).
	SUBSCRIBE = "SUBSCRIBE"

	// REFER asks the recipient to issue a request (typically INVITE)
	// per the Refer-To header, and implicitly creates an event
	// subscription to the "refer" package for the resulting progress
	// notifications (RFC 3515, RFC 4488).
	REFER = "REFER"
)

type request struct {
	message

	method     string
	requestURI string

	protoMajor int
	protoMinor int
}

// NewRequest builds a Request with an empty header and SIP/2.0 version.
func NewRequest(method, requestURI string, body io.Reader) (Request, error) {
	rc, ok := body.(io.ReadCloser)
	if !ok && body != nil {
		rc = ioutil.NopCloser(body)
	}
	this := &request{
		message: message{
			sipVersion: "SIP/2.0",
			header:     make(Header),
			body:       rc,
		},
		method:     method,
		requestURI: requestURI,
	}
	switch v := body.(type) {
	case *bytes.Buffer:
		this.contentLength = v.Len()
	case *bytes.Reader:
		this.contentLength = v.Len()
	case *strings.Reader:
		this.contentLength = v.Len()
	}
	return this, nil
}

func (this *request) GetMethod() string {
	return this.method
}

func (this *request) SetMethod(method string) error {
	this.method = method
	return nil
}

func (this *request) GetRequestURI() string {
	return this.requestURI
}

func (this *request) SetRequestURI(requestURI string) error {
	this.requestURI = requestURI
	return nil
}

// parseRequestLine parses "INVITE sip:bob@biloxi.com SIP/2.0" into its
// three parts.
func parseRequestLine(line string) (method, requestURI, proto string, ok bool) {
	s1 := strings.Index(line, " ")
	if s1 < 0 {
		return
	}
	s2 := strings.Index(line[s1+1:], " ")
	if s2 < 0 {
		return
	}
	s2 += s1 + 1
	return line[:s1], line[s1+1 : s2], line[s2+1:], true
}

// ReadRequest reads and parses an incoming request from b.
func ReadRequest(b *bufio.Reader) (Request, error) {
	tp := textproto.NewReader(b)

	line, err := tp.ReadLine()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	req := &request{message: message{header: make(Header)}}
	var ok bool
	req.method, req.requestURI, req.sipVersion, ok = parseRequestLine(line)
	if !ok {
		return nil, fmt.Errorf("sip: malformed request line %q", line)
	}
	if req.protoMajor, req.protoMinor, ok = ParseSIPVersion(req.sipVersion); !ok {
		return nil, fmt.Errorf("sip: malformed SIP version %q", req.sipVersion)
	}

	if err := readHeaderAndBody(req, tp, b); err != nil {
		return nil, err
	}
	return req, nil
}
