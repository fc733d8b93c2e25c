package sip

import (
	"bufio"
	"errors"
	"io"
	"io/ioutil"
	"net/textproto"
	"strconv"
	"strings"
)

// Header is a SIP message header, a multi-valued map keyed by
// canonical header name (as produced by textproto.CanonicalMIMEHeaderKey).
type Header map[string][]string

// Get returns the first value associated with key, or "" if absent.
func (h Header) Get(key string) string {
	v := h[textproto.CanonicalMIMEHeaderKey(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Set replaces the values associated with key with a single value.
func (h Header) Set(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = []string{value}
}

// Add appends value to the values associated with key.
func (h Header) Add(key, value string) {
	k := textproto.CanonicalMIMEHeaderKey(key)
	h[k] = append(h[k], value)
}

// Values returns all values associated with key, e.g. the full
// Record-Route set.
func (h Header) Values(key string) []string {
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

// Del removes the values associated with key.
func (h Header) Del(key string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(key))
}

// Message is the common envelope shared by Request and Response: a SIP
// version line, a header block, and an optional body. Body/SDP
// processing is out of scope for this module; GetBody exists only so
// wire framing (Content-Length) can be honored.
type Message interface {
	GetSIPVersion() string
	SetSIPVersion(string) error
	GetHeader() Header
	SetHeader(Header)
	GetContentLength() int
	SetContentLength(l int)
	GetBody() io.ReadCloser
	SetBody(io.ReadCloser)
}

type message struct {
	sipVersion    string
	header        Header
	contentLength int
	body          io.ReadCloser
}

func (this *message) GetSIPVersion() string {
	return this.sipVersion
}

func (this *message) SetSIPVersion(s string) error {
	if s != "SIP/2.0" {
		return errors.New("sip: wrong SIP version")
	}
	this.sipVersion = s
	return nil
}

func (this *message) GetHeader() Header {
	return this.header
}

func (this *message) SetHeader(header Header) {
	this.header = header
}

func (this *message) GetContentLength() int {
	return this.contentLength
}

func (this *message) SetContentLength(l int) {
	this.contentLength = l
}

func (this *message) GetBody() io.ReadCloser {
	return this.body
}

func (this *message) SetBody(body io.ReadCloser) {
	this.body = body
}

// eofReader is a non-nil io.ReadCloser that always returns EOF, used as
// the body of messages with no Content-Length.
var eofReader io.ReadCloser = ioutil.NopCloser(strings.NewReader(""))

// readHeaderAndBody parses the MIME-style header block from tp and, based
// on Content-Length, attaches the remaining bytes of b as the message body.
func readHeaderAndBody(m Message, tp *textproto.Reader, b *bufio.Reader) error {
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		return err
	}
	m.SetHeader(Header(mimeHeader))

	contentLens := m.GetHeader()["Content-Length"]
	if len(contentLens) > 1 { // harden against request smuggling, RFC 7230
		return errors.New("sip: message has multiple Content-Length headers")
	}

	var cl string
	if len(contentLens) == 1 {
		cl = strings.TrimSpace(contentLens[0])
	}
	if cl == "" {
		m.GetHeader().Del("Content-Length")
		m.SetContentLength(0)
	} else {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return errors.New("sip: bad Content-Length " + cl)
		}
		m.SetContentLength(n)
	}

	if m.GetContentLength() > 0 {
		m.SetBody(ioutil.NopCloser(io.LimitReader(b, int64(m.GetContentLength()))))
	} else {
		m.SetBody(eofReader)
	}
	return nil
}

// ParseSIPVersion parses a SIP version string. "SIP/2.0" returns (2, 0, true).
func ParseSIPVersion(vers string) (major, minor int, ok bool) {
	const big = 1000000 // arbitrary upper bound
	if vers == "SIP/2.0" {
		return 2, 0, true
	}
	if !strings.HasPrefix(vers, "SIP/") {
		return 0, 0, false
	}
	dot := strings.Index(vers, ".")
	if dot < 0 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(vers[4:dot])
	if err != nil || major < 0 || major > big {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(vers[dot+1:])
	if err != nil || minor < 0 || minor > big {
		return 0, 0, false
	}
	return major, minor, true
}
