package credentials

import (
	"crypto/sha256"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

// DemoTokenPrefix marks tokens synthesized for offline demo sessions.
const DemoTokenPrefix = "mock_token_"

// TokenInfo describes a stored token without revealing it.
type TokenInfo struct {
	// Fingerprint is the Base58-encoded SHA256 of the raw token.
	Fingerprint string
	Demo        bool
	// JWT is true when the token parses as a JWT. Claims are NOT verified.
	JWT       bool
	Subject   string
	ExpiresAt time.Time
}

// Expired returns true if the token carries an expiry in the past.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// IsDemoToken returns true if the token was synthesized for a demo session.
func IsDemoToken(token string) bool {
	return strings.HasPrefix(token, DemoTokenPrefix)
}

// Inspect fingerprints a token and, for JWTs, extracts the unverified subject and expiry.
// DRF tokens are opaque hex strings and only get a fingerprint.
func Inspect(token string) TokenInfo {
	hash := sha256.Sum256([]byte(token))
	info := TokenInfo{
		Fingerprint: base58.Encode(hash[:]),
		Demo:        IsDemoToken(token),
	}

	if info.Demo || strings.Count(token, ".") != 2 {
		return info
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return info
	}

	info.JWT = true
	info.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}

	return info
}
