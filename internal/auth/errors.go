package auth

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/wolfeidau/smartcampus/internal/client"
	"github.com/wolfeidau/smartcampus/internal/credentials"
)

// Sentinel errors
var (
	// ErrNoRefreshToken is returned when a refresh is attempted without a stored token.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrRefreshExpired is returned when the backend rejects the refresh token.
	// The token store has been cleared when this is returned.
	ErrRefreshExpired = errors.New("refresh token expired")
)

// Kind enumerates the failure classes of the session subsystem.
type Kind int

const (
	KindNone Kind = iota
	KindUnauthorized
	KindRequestFailed
	KindNoRefreshToken
	KindRefreshExpired
	KindParse
	KindNetwork
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnauthorized:
		return "unauthorized"
	case KindRequestFailed:
		return "request_failed"
	case KindNoRefreshToken:
		return "no_refresh_token"
	case KindRefreshExpired:
		return "refresh_expired"
	case KindParse:
		return "parse_error"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// KindOf classifies err. A nil error is KindNone.
func KindOf(err error) Kind {
	var (
		urlErr *url.Error
		netErr net.Error
	)

	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, client.ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNoRefreshToken):
		return KindNoRefreshToken
	case errors.Is(err, ErrRefreshExpired):
		return KindRefreshExpired
	case errors.Is(err, client.ErrRequestFailed):
		return KindRequestFailed
	case errors.Is(err, credentials.ErrCorruptUser), errors.Is(err, ErrMissingToken):
		return KindParse
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &urlErr), errors.As(err, &netErr):
		return KindNetwork
	default:
		return KindUnknown
	}
}
