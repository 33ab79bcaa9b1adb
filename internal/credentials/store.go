package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/smartcampus/internal/models"
)

// Storage slots. These mirror the keys the web client kept in localStorage.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Sentinel errors
var (
	// ErrSessionNotFound is returned when either token is missing.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUserNotFound is returned when no user record is cached.
	ErrUserNotFound = errors.New("cached user not found")

	// ErrCorruptUser is returned when the cached user record cannot be parsed.
	ErrCorruptUser = errors.New("cached user is corrupt")
)

// Backend is a string key/value store.
type Backend interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key string) error
	// Update sets and removes keys as one change.
	Update(set map[string]string, remove ...string) error
}

// Store persists the session tokens and a denormalized copy of the user record.
type Store struct {
	backend Backend
}

// NewStore creates a token store on top of the given backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Save writes both tokens and the user record in one update. A nil user removes the
// cached record.
func (s *Store) Save(session models.Session, user *models.Student) error {
	set := tokenValues(session)

	var remove []string
	if user == nil {
		remove = append(remove, KeyUser)
	} else {
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		set[KeyUser] = string(data)
	}

	if err := s.backend.Update(set, remove...); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// SaveSession writes both tokens, leaving the user record untouched.
func (s *Store) SaveSession(session models.Session) error {
	if err := s.backend.Update(tokenValues(session)); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

func tokenValues(session models.Session) map[string]string {
	return map[string]string{
		KeyAccessToken:  session.AccessToken,
		KeyRefreshToken: session.RefreshToken,
	}
}

// SaveUser writes the cached user record.
func (s *Store) SaveUser(user *models.Student) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := s.backend.Set(KeyUser, string(data)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}

	return nil
}

// Load returns the stored session. It returns ErrSessionNotFound unless both tokens are present.
func (s *Store) Load() (models.Session, error) {
	access, err := s.get(KeyAccessToken)
	if err != nil {
		return models.Session{}, err
	}

	refresh, err := s.get(KeyRefreshToken)
	if err != nil {
		return models.Session{}, err
	}

	if access == "" || refresh == "" {
		return models.Session{}, ErrSessionNotFound
	}

	return models.Session{AccessToken: access, RefreshToken: refresh}, nil
}

// AccessToken returns the stored access token, or an empty string.
func (s *Store) AccessToken() (string, error) {
	return s.get(KeyAccessToken)
}

// RefreshToken returns the stored refresh token, or an empty string.
func (s *Store) RefreshToken() (string, error) {
	return s.get(KeyRefreshToken)
}

// CachedUser returns the cached user record.
func (s *Store) CachedUser() (*models.Student, error) {
	data, err := s.get(KeyUser)
	if err != nil {
		return nil, err
	}

	if data == "" {
		return nil, ErrUserNotFound
	}

	var user models.Student
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptUser, err)
	}

	// "null" decodes without error but carries nothing
	if user.Username == "" && user.ID == "" {
		return nil, ErrCorruptUser
	}

	return &user, nil
}

// HasUser reports whether a user record is stored, parseable or not.
func (s *Store) HasUser() (bool, error) {
	data, err := s.get(KeyUser)
	if err != nil {
		return false, err
	}
	return data != "", nil
}

// Clear removes all three entries. It is safe to call on an empty store.
func (s *Store) Clear() error {
	if err := s.backend.Update(nil, KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		return fmt.Errorf("failed to clear token store: %w", err)
	}

	log.Debug().Msg("token store cleared")

	return nil
}

func (s *Store) get(key string) (string, error) {
	value, ok, err := s.backend.Get(key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return value, nil
}
