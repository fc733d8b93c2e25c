package subscription

import "errors"

// Sentinel errors for the error kinds enumerated in §7. No function
// returns them: each is logged as the error of a Warn entry at the site
// that rejects a request or terminates a subscription, with
// request/response context as structured fields alongside it.
var (
	// ErrNoMatch means an inbound request could not be matched to any
	// subscription in the set (§7 kind 1). Logged when the SS replies
	// 481.
	ErrNoMatch = errors.New("subscription: no matching subscription")

	// ErrOverlappingRefresh means a SUBSCRIBE/REFER was refused because
	// a prior transaction on the same subscription is still pending
	// (§7 kind 2). Logged just before the 500 reply is sent.
	ErrOverlappingRefresh = errors.New("subscription: overlapping SUBSCRIBE/REFER refused")

	// ErrMissingExpires means a 2xx to SUBSCRIBE lacked a parseable
	// Expires header (§7 kind 3). Logged just before the subscription
	// is terminated.
	ErrMissingExpires = errors.New("subscription: 2xx to SUBSCRIBE missing Expires")

	// ErrFatalResponse means an RFC 5057 fatal response code
	// (405/481/489/501) terminated the subscription (§7 kind 4).
	ErrFatalResponse = errors.New("subscription: RFC 5057 fatal response code")

	// ErrCreateNotAllowed means a request reached the creation path
	// with a method that cannot create a subscription (any method other
	// than SUBSCRIBE or REFER). The SS replies 501.
	ErrCreateNotAllowed = errors.New("subscription: method cannot create a subscription")
)
