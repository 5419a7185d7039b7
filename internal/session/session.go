package session

import "github.com/mberg/authdeck/internal/store"

// State classifies the session for UI consumers.
type State int

const (
	// StateUnknown means the last verification attempt failed at the
	// transport level; consumers should treat it as "retry later".
	StateUnknown State = iota
	// StateAnonymous means no usable credential is present.
	StateAnonymous
	// StateAuthenticated means the credential was accepted by the service
	// (or provisionally, that one is persisted and awaiting verification).
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is the answer to "who is logged in". Provisional marks a value
// seeded from persisted state or a fresh mutation that has not been verified
// against the service yet.
type Session struct {
	State       State
	User        *store.Identity
	Provisional bool
}

// SurfaceLogin is the navigation target used by teardown redirects.
const SurfaceLogin = "login"

// Navigator moves the UI between surfaces. Teardown paths use it to land the
// user back on the login view unless they are already there.
type Navigator interface {
	Current() string
	GoTo(target string)
}

type nopNavigator struct{}

func (nopNavigator) Current() string { return "" }
func (nopNavigator) GoTo(string)     {}
