package sip

import (
	"strconv"
	"strings"
)

// EventHeader is the parsed form of an "Event:" header, e.g.
// "Event: presence;id=a1b2" -> {Package: "presence", ID: "a1b2"}.
type EventHeader struct {
	Package string
	ID      string
}

// ParseEventHeader splits a raw Event header value into its package
// token and "id" parameter. Event package names are case-sensitive, as
// received, and are never lower-cased by this parser.
func ParseEventHeader(raw string) EventHeader {
	token, params := splitParams(raw)
	return EventHeader{Package: token, ID: params["id"]}
}

// SubscriptionStateHeader is the parsed form of a "Subscription-State:"
// header on a NOTIFY request, e.g. "active;expires=3600".
type SubscriptionStateHeader struct {
	State   string // "active", "pending", "terminated", or an extension token
	Expires int    // -1 if the expires parameter was absent or unparseable
}

// ParseSubscriptionState parses the Subscription-State header carried by
// a NOTIFY request.
func ParseSubscriptionState(raw string) SubscriptionStateHeader {
	token, params := splitParams(raw)
	h := SubscriptionStateHeader{State: token, Expires: -1}
	if v, ok := params["expires"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			h.Expires = n
		}
	}
	return h
}

// ParseExpires parses the decimal-seconds value of an Expires header.
// ok is false if raw is empty or not a non-negative integer.
func ParseExpires(raw string) (seconds int, ok bool) {
	token, _ := splitParams(raw)
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// splitParams splits a "token;k1=v1;k2=v2" header value into the leading
// token and a map of its parameters. Parameter names are lower-cased;
// values are not. A valueless parameter (";lr") maps to "".
func splitParams(raw string) (token string, params map[string]string) {
	params = make(map[string]string)
	parts := strings.Split(raw, ";")
	token = strings.TrimSpace(parts[0])
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i := strings.Index(p, "="); i >= 0 {
			params[strings.ToLower(strings.TrimSpace(p[:i]))] = strings.TrimSpace(p[i+1:])
		} else {
			params[strings.ToLower(p)] = ""
		}
	}
	return token, params
}

// ParseCSeq parses a "CSeq: 1 SUBSCRIBE" header value into its sequence
// number and method.
func ParseCSeq(raw string) (seq uint32, method string, ok bool) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return 0, "", false
	}
	n, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0, "", false
	}
	return uint32(n), fields[1], true
}

// ParseTag extracts the "tag" parameter from a To/From header value
// such as `"Bob" <sip:bob@biloxi.com>;tag=a6c85cf`. Returns "" if absent.
func ParseTag(raw string) string {
	const marker = ";tag="
	i := strings.Index(raw, marker)
	if i < 0 {
		return ""
	}
	rest := raw[i+len(marker):]
	if j := strings.IndexByte(rest, ';'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}
