package subscription

import "time"

// DefaultT1 is the base SIP retransmission interval, RFC 3261 §17.1.1.1.
const DefaultT1 = 500 * time.Millisecond

// TimerNDuration returns RFC 6665 §4.1.2's Timer N duration, 64*T1.
// With the default T1 this is 32 seconds.
func TimerNDuration(t1 time.Duration) time.Duration {
	return 64 * t1
}

// This is a plain duration constant, not a layered configuration
// object: the core has exactly one tunable (T1) and no environment- or
// file-backed settings to load, so a config library from the
// reference corpus (go-simpler.org/env, BurntSushi/toml, used by
// orly.dev and keda for their application-level config) has nothing to
// do here. Callers running this as part of a larger stack wire T1 in
// through subscription.Config at construction time instead.

// Config bundles the construction-time knobs for a Set/Sub.
type Config struct {
	// T1 is the base retransmission interval used to size Timer N.
	// Zero means DefaultT1.
	T1 time.Duration
}

func (c Config) t1() time.Duration {
	if c.T1 <= 0 {
		return DefaultT1
	}
	return c.T1
}
