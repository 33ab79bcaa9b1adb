package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/smartcampus/internal/client"
	"github.com/wolfeidau/smartcampus/internal/credentials"
	"github.com/wolfeidau/smartcampus/internal/models"
)

// Endpoints are the auth routes relative to the API base URL.
type Endpoints struct {
	Login         string
	Register      string
	Refresh       string
	Logout        string
	Profile       string
	ProfileUpdate string
}

// DefaultEndpoints match the accounts app mounted at /api/auth/.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:         "/auth/login/",
		Register:      "/auth/register/",
		Refresh:       "/auth/refresh/",
		Logout:        "/auth/logout/",
		Profile:       "/auth/profile/",
		ProfileUpdate: "/auth/profile/update/",
	}
}

// Result is returned by Login and Register.
type Result struct {
	// User is nil when the backend did not include the student record.
	User    *models.Student
	Session models.Session
	Shape   Shape
}

// Option configures a Service.
type Option func(*Service)

// WithEndpoints overrides the default auth routes.
func WithEndpoints(e Endpoints) Option {
	return func(s *Service) {
		s.endpoints = e
	}
}

// Service performs the identity operations against the backend. Login, Register and
// RefreshToken keep the token store in sync with the results.
type Service struct {
	client    *client.Client
	store     *credentials.Store
	endpoints Endpoints
}

// NewService creates an auth service.
func NewService(c *client.Client, store *credentials.Store, opts ...Option) *Service {
	s := &Service{
		client:    c,
		store:     store,
		endpoints: DefaultEndpoints(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Login authenticates with username and password and persists the resulting session.
func (s *Service) Login(ctx context.Context, creds models.Credentials) (*Result, error) {
	return s.persist(s.LoginSession(ctx, creds))
}

// Register creates an account and persists the resulting session.
func (s *Service) Register(ctx context.Context, data models.RegisterData) (*Result, error) {
	return s.persist(s.RegisterSession(ctx, data))
}

// LoginSession authenticates like Login but leaves the token store alone. Callers
// decide when the session is saved.
func (s *Service) LoginSession(ctx context.Context, creds models.Credentials) (*Result, error) {
	return s.authenticate(ctx, "login", s.endpoints.Login, creds)
}

// RegisterSession creates an account like Register but leaves the token store alone.
func (s *Service) RegisterSession(ctx context.Context, data models.RegisterData) (*Result, error) {
	return s.authenticate(ctx, "register", s.endpoints.Register, data)
}

func (s *Service) persist(res *Result, err error) (*Result, error) {
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(res.Session, res.User); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return res, nil
}

func (s *Service) authenticate(ctx context.Context, op, endpoint string, payload any) (*Result, error) {
	var resp Response
	err := s.client.Do(ctx, endpoint, &client.RequestOptions{
		Method:    http.MethodPost,
		Body:      payload,
		Anonymous: true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	session, err := resp.Session("")
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	user := resp.User()

	log.Debug().
		Str("op", op).
		Stringer("shape", resp.Shape).
		Bool("user", user != nil).
		Msg("session established")

	return &Result{User: user, Session: session, Shape: resp.Shape}, nil
}

// CurrentUser fetches the authenticated profile.
func (s *Service) CurrentUser(ctx context.Context) (*models.Student, error) {
	return s.profile(ctx, "")
}

// SessionUser fetches the profile that belongs to session, which need not be stored yet.
func (s *Service) SessionUser(ctx context.Context, session models.Session) (*models.Student, error) {
	if session.AccessToken == "" {
		return nil, ErrMissingToken
	}
	return s.profile(ctx, session.AccessToken)
}

func (s *Service) profile(ctx context.Context, token string) (*models.Student, error) {
	var bs BackendStudent
	err := s.client.Do(ctx, s.endpoints.Profile, &client.RequestOptions{
		Method: http.MethodGet,
		Token:  token,
	}, &bs)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return bs.ToStudent(), nil
}

// RefreshToken exchanges the stored refresh token for a new session.
// On rejection the store is cleared and ErrRefreshExpired is returned.
func (s *Service) RefreshToken(ctx context.Context) (models.Session, error) {
	refresh, err := s.store.RefreshToken()
	if err != nil {
		return models.Session{}, err
	}
	if refresh == "" {
		return models.Session{}, ErrNoRefreshToken
	}

	var resp Response
	err = s.client.Do(ctx, s.endpoints.Refresh, &client.RequestOptions{
		Method:    http.MethodPost,
		Body:      map[string]string{"refresh": refresh},
		Anonymous: true,
	}, &resp)
	if err == nil {
		var session models.Session
		if session, err = resp.Session(refresh); err == nil {
			if err := s.store.SaveSession(session); err != nil {
				return models.Session{}, fmt.Errorf("failed to persist session: %w", err)
			}
			log.Debug().Stringer("shape", resp.Shape).Msg("session refreshed")
			return session, nil
		}
	}

	if clearErr := s.store.Clear(); clearErr != nil {
		log.Error().Err(clearErr).Msg("failed to clear token store")
	}

	return models.Session{}, fmt.Errorf("%w: %w", ErrRefreshExpired, err)
}

// UpdateProfile sends a partial update to the backend and returns the stored record.
func (s *Service) UpdateProfile(ctx context.Context, patch models.StudentPatch) (*models.Student, error) {
	var resp struct {
		Student *BackendStudent `json:"student"`
		Message string          `json:"message"`
	}
	if err := s.client.Patch(ctx, s.endpoints.ProfileUpdate, patch, &resp); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if resp.Student == nil {
		return nil, errors.New("failed to update profile: response carries no student")
	}
	return resp.Student.ToStudent(), nil
}

// Revoke asks the backend to delete the server-side token. It does not touch the local store.
func (s *Service) Revoke(ctx context.Context) error {
	if err := s.client.Post(ctx, s.endpoints.Logout, nil, nil); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// Logout clears the token store. No network call is made.
func (s *Service) Logout() error {
	return s.store.Clear()
}

// IsAuthenticated reports whether an access token is stored.
func (s *Service) IsAuthenticated() bool {
	token, err := s.store.AccessToken()
	return err == nil && token != ""
}
