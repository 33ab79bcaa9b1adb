package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/smartcampus/internal/client"
	"github.com/wolfeidau/smartcampus/internal/credentials"
	"github.com/wolfeidau/smartcampus/internal/models"
)

const studentJSON = `{
	"id": 12,
	"username": "yassine",
	"email": "yassine@fp-ouarzazate.ma",
	"first_name": "Yassine",
	"last_name": "Amrani",
	"student_id": "FPO2024012",
	"level": "M1",
	"filiere": "INFO",
	"phone_number": "",
	"address": "Tarmigte, Ouarzazate",
	"study_preferences": {},
	"interests": ["Cloud"],
	"availability": {},
	"profile": {
		"id": 3,
		"student": 12,
		"gpa": 3.4,
		"enrollment_year": 2023,
		"expected_graduation": 2025,
		"preferred_group_size": 3,
		"communication_preference": "email",
		"emergency_contact_name": "",
		"created_at": "2024-01-01T00:00:00Z",
		"updated_at": "2024-01-01T00:00:00Z"
	}
}`

type recordedRequest struct {
	Method string
	Path   string
	Authz  string
	Body   map[string]any
}

type fakeBackend struct {
	t      *testing.T
	mu     sync.Mutex
	routes map[string]func(w http.ResponseWriter, r *http.Request)
	seen   []recordedRequest
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(data) > 0 {
		require.NoError(f.t, json.Unmarshal(data, &body))
	}

	f.mu.Lock()
	f.seen = append(f.seen, recordedRequest{Method: r.Method, Path: r.URL.Path, Authz: r.Header.Get("Authorization"), Body: body})
	route, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "Not found."}`))
		return
	}
	route(w, r)
}

func respond(status int, body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestService(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) (*Service, *credentials.Store, *fakeBackend) {
	t.Helper()

	backend := &fakeBackend{t: t, routes: routes}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	store := credentials.NewStore(credentials.NewMemoryBackend())
	c := client.New(client.Config{BaseURL: server.URL + "/api"}, store)

	return NewService(c, store), store, backend
}

func TestServiceLogin(t *testing.T) {
	ctx := context.Background()
	creds := models.Credentials{Username: "yassine", Password: "s3cret"}

	t.Run("token pair with student", func(t *testing.T) {
		svc, store, backend := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST /api/auth/login/": respond(200, `{"access": "acc", "refresh": "ref", "student": `+studentJSON+`, "message": "Login successful"}`),
		})

		res, err := svc.Login(ctx, creds)
		require.NoError(t, err)
		assert.Equal(t, ShapePair, res.Shape)
		assert.Equal(t, models.Session{AccessToken: "acc", RefreshToken: "ref"}, res.Session)
		require.NotNil(t, res.User)
		assert.Equal(t, "12", res.User.ID)
		assert.Nil(t, res.User.PhoneNumber)

		session, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, res.Session, session)

		cached, err := store.CachedUser()
		require.NoError(t, err)
		assert.Equal(t, "yassine", cached.Username)

		require.Len(t, backend.seen, 1)
		assert.Empty(t, backend.seen[0].Authz)
		assert.Equal(t, map[string]any{"username": "yassine", "password": "s3cret"}, backend.seen[0].Body)
		assert.True(t, svc.IsAuthenticated())
	})

	t.Run("single drf token with user", func(t *testing.T) {
		svc, store, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST /api/auth/login/": respond(200, `{"token": "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b", "user": `+studentJSON+`}`),
		})

		res, err := svc.Login(ctx, creds)
		require.NoError(t, err)
		assert.Equal(t, ShapeToken, res.Shape)
		assert.Equal(t, res.Session.AccessToken, res.Session.RefreshToken)
		require.NotNil(t, res.User)

		token, err := store.AccessToken()
		require.NoError(t, err)
		assert.Equal(t, "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b", token)
	})

	t.Run("no student in response", func(t *testing.T) {
		svc, store, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST /api/auth/login/": respond(200, `{"access": "acc", "refresh": "ref"}`),
		})

		res, err := svc.Login(ctx, creds)
		require.NoError(t, err)
		assert.Nil(t, res.User)

		has, err := store.HasUser()
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("rejected credentials leave storage untouched", func(t *testing.T) {
		svc, store, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST /api/auth/login/": respond(401, `{"detail": "No active account found with the given credentials"}`),
		})
		require.NoError(t, store.SaveSession(models.Session{AccessToken: "old", RefreshToken: "old-ref"}))

		res, err := svc.Login(ctx, creds)
		require.ErrorIs(t, err, client.ErrRequestFailed)
		assert.Nil(t, res)
		assert.Equal(t, "login failed: No active account found with the given credentials", err.Error())
		assert.Equal(t, KindRequestFailed, KindOf(err))

		session, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "old", session.AccessToken)
	})

	t.Run("response without token", func(t *testing.T) {
		svc, _, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST /api/auth/login/": respond(200, `{"message": "ok"}`),
		})

		_, err := svc.Login(ctx, creds)
		require.ErrorIs(t, err, ErrMissingToken)
		assert.Equal(t, KindParse, KindOf(err))
	})
}

func TestServiceRegister(t *testing.T) {
	svc, store, backend := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /api/auth/register/": respond(201, `{"access": "acc", "refresh": "ref", "student": `+studentJSON+`, "message": "Registration successful"}`),
	})

	res, err := svc.Register(context.Background(), models.RegisterData{
		Username:        "yassine",
		Email:           "yassine@fp-ouarzazate.ma",
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
		FirstName:       "Yassine",
		LastName:        "Amrani",
		StudentID:       "FPO2024012",
		Level:           models.LevelM1,
		Filiere:         models.FiliereInfo,
	})
	require.NoError(t, err)
	assert.Equal(t, "Yassine", res.User.FirstName)

	_, err = store.Load()
	require.NoError(t, err)

	require.Len(t, backend.seen, 1)
	assert.Equal(t, "s3cret-pass", backend.seen[0].Body["password_confirm"])
	assert.Equal(t, "M1", backend.seen[0].Body["level"])
	assert.NotContains(t, backend.seen[0].Body, "phone_number")
}

func TestServiceCurrentUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, store, backend := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET /api/auth/profile/": respond(200, studentJSON),
		})
		require.NoError(t, store.SaveSession(models.Session{AccessToken: "acc", RefreshToken: "ref"}))

		user, err := svc.CurrentUser(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Amrani", user.LastName)
		require.NotNil(t, user.Profile)
		assert.InDelta(t, 3.4, *user.Profile.GPA, 0.0001)
		assert.Nil(t, user.Profile.EmergencyContactName)
		assert.Equal(t, "Bearer acc", backend.seen[0].Authz)
	})

	t.Run("expired token ends the session", func(t *testing.T) {
		svc, store, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET /api/auth/profile/": respond(401, `{"detail": "Token is invalid or expired"}`),
		})
		require.NoError(t, store.Save(models.Session{AccessToken: "acc", RefreshToken: "ref"}, &models.Student{Username: "yassine"}))

		_, err := svc.CurrentUser(context.Background())
		require.ErrorIs(t, err, client.ErrUnauthorized)
		assert.Equal(t, KindUnauthorized, KindOf(err))
		assert.False(t, svc.IsAuthenticated())

		has, err := store.HasUser()
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestServiceSessionWithoutPersisting(t *testing.T) {
	ctx := context.Background()

	t.Run("login session leaves the store alone", func(t *testing.T) {
		svc, store, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST /api/auth/login/": respond(200, `{"token": "drf", "student": `+studentJSON+`}`),
		})
		require.NoError(t, store.SaveSession(models.Session{AccessToken: "old", RefreshToken: "old"}))

		res, err := svc.LoginSession(ctx, models.Credentials{Username: "yassine", Password: "s3cret"})
		require.NoError(t, err)
		assert.Equal(t, models.Session{AccessToken: "drf", RefreshToken: "drf"}, res.Session)

		session, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "old", session.AccessToken)
	})

	t.Run("register session leaves the store alone", func(t *testing.T) {
		svc, store, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST /api/auth/register/": respond(201, `{"access": "acc", "refresh": "ref"}`),
		})

		res, err := svc.RegisterSession(ctx, models.RegisterData{Username: "yassine"})
		require.NoError(t, err)
		assert.Nil(t, res.User)
		assert.False(t, svc.IsAuthenticated())

		_, err = store.Load()
		require.ErrorIs(t, err, credentials.ErrSessionNotFound)
	})

	t.Run("session user uses the given token", func(t *testing.T) {
		svc, store, backend := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET /api/auth/profile/": respond(200, studentJSON),
		})
		require.NoError(t, store.SaveSession(models.Session{AccessToken: "stored", RefreshToken: "stored"}))

		user, err := svc.SessionUser(ctx, models.Session{AccessToken: "fresh", RefreshToken: "fresh"})
		require.NoError(t, err)
		assert.Equal(t, "yassine", user.Username)
		assert.Equal(t, "Bearer fresh", backend.seen[0].Authz)
	})

	t.Run("rejected session user keeps the stored session", func(t *testing.T) {
		svc, store, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET /api/auth/profile/": respond(401, `{"detail": "Invalid token."}`),
		})
		require.NoError(t, store.SaveSession(models.Session{AccessToken: "stored", RefreshToken: "stored"}))

		_, err := svc.SessionUser(ctx, models.Session{AccessToken: "fresh", RefreshToken: "fresh"})
		require.ErrorIs(t, err, client.ErrRequestFailed)
		assert.True(t, svc.IsAuthenticated())
	})

	t.Run("session user needs a token", func(t *testing.T) {
		svc, _, backend := newTestService(t, nil)

		_, err := svc.SessionUser(ctx, models.Session{})
		require.ErrorIs(t, err, ErrMissingToken)
		assert.Empty(t, backend.seen)
	})
}

func TestServiceRefreshToken(t *testing.T) {
	ctx := context.Background()

	t.Run("no stored refresh token", func(t *testing.T) {
		svc, _, backend := newTestService(t, nil)

		_, err := svc.RefreshToken(ctx)
		require.ErrorIs(t, err, ErrNoRefreshToken)
		assert.Equal(t, KindNoRefreshToken, KindOf(err))
		assert.Empty(t, backend.seen)
	})

	t.Run("rotated pair", func(t *testing.T) {
		svc, store, backend := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST /api/auth/refresh/": respond(200, `{"access": "acc2", "refresh": "ref2"}`),
		})
		require.NoError(t, store.Save(models.Session{AccessToken: "acc", RefreshToken: "ref"}, &models.Student{Username: "yassine"}))

		session, err := svc.RefreshToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.Session{AccessToken: "acc2", RefreshToken: "ref2"}, session)
		assert.Equal(t, map[string]any{"refresh": "ref"}, backend.seen[0].Body)
		assert.Empty(t, backend.seen[0].Authz)

		stored, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, session, stored)

		has, err := store.HasUser()
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("access only keeps refresh token", func(t *testing.T) {
		svc, store, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST /api/auth/refresh/": respond(200, `{"access": "acc2"}`),
		})
		require.NoError(t, store.SaveSession(models.Session{AccessToken: "acc", RefreshToken: "ref"}))

		session, err := svc.RefreshToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.Session{AccessToken: "acc2", RefreshToken: "ref"}, session)
	})

	t.Run("rejected refresh clears the store", func(t *testing.T) {
		svc, store, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST /api/auth/refresh/": respond(401, `{"detail": "Token is invalid or expired", "code": "token_not_valid"}`),
		})
		require.NoError(t, store.Save(models.Session{AccessToken: "acc", RefreshToken: "ref"}, &models.Student{Username: "yassine"}))

		_, err := svc.RefreshToken(ctx)
		require.ErrorIs(t, err, ErrRefreshExpired)
		require.ErrorIs(t, err, client.ErrRequestFailed)
		assert.Equal(t, KindRefreshExpired, KindOf(err))

		_, err = store.Load()
		require.ErrorIs(t, err, credentials.ErrSessionNotFound)
		has, err := store.HasUser()
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestServiceUpdateProfile(t *testing.T) {
	address := "Tarmigte, Ouarzazate"

	t.Run("success", func(t *testing.T) {
		svc, store, backend := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"PATCH /api/auth/profile/update/": respond(200, `{"student": `+studentJSON+`, "message": "Profile updated successfully"}`),
		})
		require.NoError(t, store.SaveSession(models.Session{AccessToken: "acc", RefreshToken: "ref"}))

		user, err := svc.UpdateProfile(context.Background(), models.StudentPatch{Address: &address})
		require.NoError(t, err)
		assert.Equal(t, address, *user.Address)
		assert.Equal(t, map[string]any{"address": address}, backend.seen[0].Body)
	})

	t.Run("response without student", func(t *testing.T) {
		svc, store, _ := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
			"PATCH /api/auth/profile/update/": respond(200, `{"message": "ok"}`),
		})
		require.NoError(t, store.SaveSession(models.Session{AccessToken: "acc", RefreshToken: "ref"}))

		_, err := svc.UpdateProfile(context.Background(), models.StudentPatch{Address: &address})
		require.Error(t, err)
	})
}

func TestServiceRevokeAndLogout(t *testing.T) {
	svc, store, backend := newTestService(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /api/auth/logout/": respond(200, `{"message": "Logout successful"}`),
	})
	require.NoError(t, store.Save(models.Session{AccessToken: "acc", RefreshToken: "ref"}, &models.Student{Username: "yassine"}))

	require.NoError(t, svc.Revoke(context.Background()))
	assert.Equal(t, "Bearer acc", backend.seen[0].Authz)
	assert.True(t, svc.IsAuthenticated())

	require.NoError(t, svc.Logout())
	assert.False(t, svc.IsAuthenticated())
	require.NoError(t, svc.Logout())
	assert.Len(t, backend.seen, 1)
}
