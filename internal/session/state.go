package session

import "github.com/wolfeidau/smartcampus/internal/models"

// State is the lifecycle position of the session manager.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a point in time copy of the manager state.
type Snapshot struct {
	State State
	User  *models.Student
	// Demo is true when the session was synthesized from the demo directory.
	Demo bool
}
