// Package session holds the application-wide authentication state.
//
// A Manager is created once by the application root and passed to whatever needs
// the current user. Every operation advances a generation counter; results of an
// operation that finishes after a newer one started are discarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/smartcampus/internal/auth"
	"github.com/wolfeidau/smartcampus/internal/client"
	"github.com/wolfeidau/smartcampus/internal/credentials"
	"github.com/wolfeidau/smartcampus/internal/demo"
	"github.com/wolfeidau/smartcampus/internal/models"
	"github.com/wolfeidau/smartcampus/internal/telemetry"
)

// Authenticator is the subset of auth.Service used by the manager. LoginSession and
// RegisterSession must not write the token store: the manager saves the session only
// when the operation is still current.
type Authenticator interface {
	LoginSession(ctx context.Context, creds models.Credentials) (*auth.Result, error)
	RegisterSession(ctx context.Context, data models.RegisterData) (*auth.Result, error)
	CurrentUser(ctx context.Context) (*models.Student, error)
	SessionUser(ctx context.Context, session models.Session) (*models.Student, error)
	UpdateProfile(ctx context.Context, patch models.StudentPatch) (*models.Student, error)
	Logout() error
}

var _ Authenticator = (*auth.Service)(nil)
var _ client.Navigator = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithDemoDirectory replaces the embedded demo accounts.
func WithDemoDirectory(d *demo.Directory) Option {
	return func(m *Manager) {
		m.demo = d
	}
}

// WithNotifier sets where success and error messages go.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notify = n
	}
}

// WithClock overrides time.Now, used for demo token synthesis.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithProfileSync sends profile updates of real sessions to the backend.
// Demo sessions always update locally.
func WithProfileSync(enabled bool) Option {
	return func(m *Manager) {
		m.profileSync = enabled
	}
}

// WithNavigator forwards navigation requests after the manager has reacted to them.
func WithNavigator(n client.Navigator) Option {
	return func(m *Manager) {
		m.next = n
	}
}

// Manager is the session state machine.
type Manager struct {
	authn       Authenticator
	store       *credentials.Store
	demo        *demo.Directory
	notify      Notifier
	now         func() time.Time
	profileSync bool
	next        client.Navigator

	mu     sync.RWMutex
	state  State
	user   *models.Student
	isDemo bool
	gen    uint64
}

// New creates a manager in the Uninitialized state.
func New(authn Authenticator, store *credentials.Store, opts ...Option) *Manager {
	m := &Manager{
		authn:  authn,
		store:  store,
		demo:   demo.Default(),
		notify: LogNotifier{},
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Snapshot returns the current state and a copy of the user.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{State: m.state, User: m.user.Clone(), Demo: m.isDemo}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns a copy of the current user, or nil.
func (m *Manager) User() *models.Student {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.Clone()
}

func (m *Manager) IsLoading() bool {
	return m.State() == StateLoading
}

// Init restores a persisted session. When the backend cannot confirm it, the cached
// user record is trusted as is; without one the session is dropped. Demo sessions are
// restored from the cache without contacting the backend.
func (m *Manager) Init(ctx context.Context) (Snapshot, error) {
	gen := m.begin(true)

	session, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, credentials.ErrSessionNotFound) {
			log.Error().Err(err).Msg("failed to read stored session")
		}
		if cerr := m.commit(gen, StateUnauthenticated, nil, false, m.dropOrphanUser); cerr != nil {
			return m.Snapshot(), cerr
		}
		if errors.Is(err, credentials.ErrSessionNotFound) {
			return m.Snapshot(), nil
		}
		return m.Snapshot(), err
	}

	isDemo := credentials.IsDemoToken(session.AccessToken)

	if !isDemo {
		user, err := m.authn.CurrentUser(ctx)
		if err == nil {
			err = m.commit(gen, StateAuthenticated, user, false, func() error {
				return m.store.SaveUser(user)
			})
			if err == nil {
				telemetry.RecordAuth(ctx, "restore", "success")
			}
			return m.Snapshot(), err
		}

		log.Warn().Err(err).Stringer("kind", auth.KindOf(err)).Msg("failed to get current user")
	}

	cached, cacheErr := m.store.CachedUser()
	if cacheErr == nil {
		if err := m.commit(gen, StateAuthenticated, cached, isDemo, nil); err != nil {
			return m.Snapshot(), err
		}
		telemetry.RecordOfflineRestore(ctx)
		log.Info().Str("user", cached.Username).Bool("demo", isDemo).Msg("session restored from cached user")
		return m.Snapshot(), nil
	}

	log.Warn().Err(cacheErr).Stringer("kind", auth.KindOf(cacheErr)).Msg("no usable cached user, dropping session")

	err = m.commit(gen, StateUnauthenticated, nil, false, m.authn.Logout)
	telemetry.RecordAuth(ctx, "restore", "failure")

	return m.Snapshot(), err
}

// Login tries the backend first and falls back to the demo directory.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.Student, error) {
	gen := m.begin(true)

	res, apiErr := m.authn.LoginSession(ctx, models.Credentials{Username: username, Password: password})
	if apiErr == nil {
		return m.completeAPIAuth(ctx, gen, "login", res)
	}

	log.Debug().Err(apiErr).Msg("api login failed, trying demo directory")

	if student, ok := m.demo.Authenticate(username, password); ok {
		if err := m.commitDemo(gen, student); err != nil {
			return nil, err
		}
		telemetry.RecordDemoFallback(ctx)
		telemetry.RecordAuth(ctx, "login", "demo")
		m.notify.Success("Login successful (demo mode)")
		return student.Clone(), nil
	}

	if err := m.commit(gen, StateUnauthenticated, nil, false, nil); err != nil {
		return nil, err
	}

	loginErr := &LoginError{DemoUsernames: m.demo.Usernames(), Err: apiErr}
	telemetry.RecordAuth(ctx, "login", "failure")
	m.notify.Error(loginErr.Error())

	return nil, loginErr
}

// DirectLogin signs in as a demo user without a password.
func (m *Manager) DirectLogin(username string) (*models.Student, error) {
	student, ok := m.demo.Lookup(username)
	if !ok {
		m.notify.Error("Demo user not found")
		return nil, fmt.Errorf("%w: %s", ErrUnknownDemoUser, username)
	}

	gen := m.begin(false)
	if err := m.commitDemo(gen, student); err != nil {
		return nil, err
	}

	telemetry.RecordAuth(context.Background(), "direct_login", "demo")
	m.notify.Success(fmt.Sprintf("Direct login successful for %s", student.FullName()))

	return student.Clone(), nil
}

// Register creates an account and signs in with it.
func (m *Manager) Register(ctx context.Context, data models.RegisterData) (*models.Student, error) {
	gen := m.begin(true)

	res, err := m.authn.RegisterSession(ctx, data)
	if err != nil {
		if cerr := m.commit(gen, StateUnauthenticated, nil, false, nil); cerr != nil {
			return nil, cerr
		}
		telemetry.RecordAuth(ctx, "register", "failure")
		m.notify.Error(err.Error())
		return nil, err
	}

	return m.completeAPIAuth(ctx, gen, "register", res)
}

// Logout clears the stored session and the in-memory user. It is always safe to call.
// Operations still in flight are superseded and never write the store afterwards.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.gen++
	m.state = StateUnauthenticated
	m.user = nil
	m.isDemo = false
	err := m.authn.Logout()
	m.mu.Unlock()

	if err != nil {
		m.notify.Error(err.Error())
		return err
	}

	telemetry.RecordAuth(context.Background(), "logout", "success")
	m.notify.Success("Logged out")

	return nil
}

// UpdateProfile merges patch into the current user.
func (m *Manager) UpdateProfile(ctx context.Context, patch models.StudentPatch) (*models.Student, error) {
	m.mu.RLock()
	current := m.user.Clone()
	isDemo := m.isDemo
	gen := m.gen
	m.mu.RUnlock()

	if current == nil {
		return nil, ErrNotAuthenticated
	}

	token, err := m.store.AccessToken()
	if err != nil {
		return nil, err
	}
	isDemo = isDemo || credentials.IsDemoToken(token)

	var updated *models.Student
	if m.profileSync && !isDemo {
		updated, err = m.authn.UpdateProfile(ctx, patch)
		if err != nil {
			m.notify.Error(err.Error())
			return nil, err
		}
	} else {
		updated = patch.Apply(current)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.user == nil {
		return nil, ErrSuperseded
	}

	if err := m.store.SaveUser(updated); err != nil {
		m.notify.Error(err.Error())
		return nil, err
	}
	m.user = updated.Clone()

	if isDemo {
		m.notify.Success("Profile updated (demo mode)")
	} else {
		m.notify.Success("Profile updated")
	}

	return updated, nil
}

// Navigate reacts to the API client ending the session. The stored session has
// already been cleared by the client.
func (m *Manager) Navigate(path string) {
	m.mu.Lock()
	m.state = StateUnauthenticated
	m.user = nil
	m.isDemo = false
	m.mu.Unlock()

	log.Debug().Str("path", path).Msg("session ended by api client")

	if m.next != nil {
		m.next.Navigate(path)
	}
}

func (m *Manager) completeAPIAuth(ctx context.Context, gen uint64, op string, res *auth.Result) (*models.Student, error) {
	user := res.User
	if user == nil {
		var err error
		if user, err = m.authn.SessionUser(ctx, res.Session); err != nil {
			if cerr := m.commit(gen, StateUnauthenticated, nil, false, nil); cerr != nil {
				return nil, cerr
			}
			telemetry.RecordAuth(ctx, op, "failure")
			m.notify.Error(err.Error())
			return nil, err
		}
	}

	err := m.commit(gen, StateAuthenticated, user, false, func() error {
		if err := m.store.Save(res.Session, user); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrSuperseded) {
			m.notify.Error(err.Error())
		}
		return nil, err
	}

	telemetry.RecordAuth(ctx, op, "success")
	if op == "register" {
		m.notify.Success("Registration successful")
	} else {
		m.notify.Success("Login successful")
	}

	return user.Clone(), nil
}

// commitDemo persists a synthesized demo session and moves to Authenticated.
func (m *Manager) commitDemo(gen uint64, student *models.Student) error {
	err := m.commit(gen, StateAuthenticated, student, true, func() error {
		return m.store.Save(demo.Session(student.Username, m.now()), student)
	})
	if err != nil && !errors.Is(err, ErrSuperseded) {
		return fmt.Errorf("failed to persist demo session: %w", err)
	}
	return err
}

// begin starts an operation and returns its generation.
func (m *Manager) begin(loading bool) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	if loading {
		m.state = StateLoading
	}
	return m.gen
}

// commit applies the outcome of operation gen. It returns ErrSuperseded if a newer
// operation started. persist runs under the lock first; when it fails the manager
// ends up Unauthenticated and the error is returned.
func (m *Manager) commit(gen uint64, state State, user *models.Student, isDemo bool, persist func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		log.Debug().Uint64("gen", gen).Uint64("current", m.gen).Msg("discarding stale session result")
		return ErrSuperseded
	}

	if persist != nil {
		if err := persist(); err != nil {
			m.state, m.user, m.isDemo = StateUnauthenticated, nil, false
			return err
		}
	}

	m.state = state
	m.user = user.Clone()
	m.isDemo = isDemo

	return nil
}

// dropOrphanUser clears a cached user record that has no session next to it.
// Failures are logged, the session stays dropped either way.
func (m *Manager) dropOrphanUser() error {
	has, err := m.store.HasUser()
	if err != nil || !has {
		return nil
	}

	log.Warn().Msg("cached user without session, clearing store")

	if err := m.store.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear token store")
	}
	return nil
}
