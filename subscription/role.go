package subscription

// Role is which side of a subscription this process plays, fixed at
// creation (§3).
type Role int

const (
	// Subscriber issues SUBSCRIBE/REFER and receives NOTIFY.
	Subscriber Role = iota
	// Notifier receives SUBSCRIBE/REFER and sends NOTIFY.
	Notifier
)

func (r Role) String() string {
	switch r {
	case Subscriber:
		return "subscriber"
	case Notifier:
		return "notifier"
	default:
		return "unknown-role"
	}
}

// roleFor derives the role a subscription plays from the method of the
// request that matched it and which side of the dialog this process is
// on (§4.2 step 2).
func roleFor(method string, uac bool) (Role, bool) {
	switch method {
	case "SUBSCRIBE", "REFER":
		if uac {
			return Subscriber, true
		}
		return Notifier, true
	case "NOTIFY":
		if uac {
			return Notifier, true
		}
		return Subscriber, true
	default:
		return 0, false
	}
}
