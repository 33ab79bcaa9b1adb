package session

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	// ErrSuperseded is returned when a newer operation started before this one completed.
	// The result was discarded.
	ErrSuperseded = errors.New("superseded by a newer session operation")

	// ErrUnknownDemoUser is returned by DirectLogin for usernames outside the demo directory.
	ErrUnknownDemoUser = errors.New("demo user not found")

	// ErrNotAuthenticated is returned when an operation needs a current user.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// LoginError is returned when neither the backend nor the demo directory accepted the credentials.
type LoginError struct {
	DemoUsernames []string
	// Err is the backend failure.
	Err error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed. Demo accounts available: %s", strings.Join(e.DemoUsernames, ", "))
}

func (e *LoginError) Unwrap() error {
	return e.Err
}
