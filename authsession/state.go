package authsession

import "github.com/jrsteele09/go-rag-client/users"

// State is where the manager is in establishing who the user is.
//
//	Unknown ──Start──▶ Unauthenticated            (no access token)
//	Unknown ──Start──▶ Resolving ──▶ Authenticated (token present, identity confirmed)
//	Authenticated/Resolving ──logout or unrecoverable 401──▶ Unauthenticated
type State int

const (
	StateUnknown State = iota
	StateUnauthenticated
	StateResolving
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateResolving:
		return "resolving"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is the read-only view of the session handed to the presentation layer.
// While Resolving, User may be a cached copy that has not been re-verified.
type Snapshot struct {
	State             State
	User              *users.User
	ConnectionHealthy bool
	Loading           bool
	LastError         string
}

func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated
}

// Degraded reports an Authenticated session kept on a cached identity
// because the server could not be reached.
func (s Snapshot) Degraded() bool {
	return s.State == StateAuthenticated && !s.ConnectionHealthy
}

func (s Snapshot) clone() Snapshot {
	s.User = s.User.Public()
	return s
}
