package campus

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/smartcampus/internal/client"
	"github.com/wolfeidau/smartcampus/internal/credentials"
	"github.com/wolfeidau/smartcampus/internal/models"
)

const hackathonJSON = `{
	"id": 7,
	"title": "Hackathon IA",
	"description": "48h pour construire un assistant de révision",
	"event_type": "WORKSHOP",
	"organizer": {"id": 1, "username": "demo_student", "first_name": "Ahmed", "last_name": "Benali", "level": "L3"},
	"start_datetime": "2025-03-01T09:00:00Z",
	"end_datetime": "2025-03-03T09:00:00Z",
	"location": "Amphi A",
	"max_attendees": 40,
	"status": "PUBLISHED",
	"requirements": ["Laptop"],
	"created_at": "2025-01-10T10:00:00Z",
	"current_attendees": 2,
	"is_full": false,
	"available_spots": 38,
	"attendees": [
		{"id": "2", "username": "student2", "first_name": "Salma", "last_name": "Idrissi", "level": "L2", "profile_picture": "https://cdn.example.com/salma.png"}
	],
	"tags": ["ia", "python"],
	"is_liked": true,
	"likes_count": 5,
	"comments_count": 1,
	"views_count": 120
}`

type call struct {
	method string
	path   string
	query  url.Values
	authz  string
	body   map[string]any
}

func newTestEvents(t *testing.T, status int, body string) (*EventService, *[]call) {
	t.Helper()

	var calls []call
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var reqBody map[string]any
		if len(data) > 0 {
			_ = json.Unmarshal(data, &reqBody)
		}
		calls = append(calls, call{method: r.Method, path: r.URL.Path, query: r.URL.Query(), authz: r.Header.Get("Authorization"), body: reqBody})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	store := credentials.NewStore(credentials.NewMemoryBackend())
	require.NoError(t, store.SaveSession(models.Session{AccessToken: "acc", RefreshToken: "ref"}))

	c := client.New(client.Config{BaseURL: server.URL + "/api"}, store)
	return NewEventService(c), &calls
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("paginated", func(t *testing.T) {
		svc, calls := newTestEvents(t, 200, `{"count": 11, "next": "http://localhost:8000/api/events/?page=2", "previous": null, "results": [`+hackathonJSON+`]}`)

		page, err := svc.List(ctx, EventFilter{Search: "hack", EventType: "WORKSHOP", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 11, page.Count)
		require.NotNil(t, page.Next)
		assert.Nil(t, page.Previous)
		require.Len(t, page.Results, 1)
		assert.Equal(t, "7", page.Results[0].ID)

		require.Len(t, *calls, 1)
		got := (*calls)[0]
		assert.Equal(t, http.MethodGet, got.method)
		assert.Equal(t, "/api/events/", got.path)
		assert.Equal(t, "hack", got.query.Get("search"))
		assert.Equal(t, "WORKSHOP", got.query.Get("event_type"))
		assert.Equal(t, "1", got.query.Get("page"))
		assert.Equal(t, "10", got.query.Get("page_size"))
		assert.Equal(t, "Bearer acc", got.authz)
	})

	t.Run("plain list", func(t *testing.T) {
		svc, calls := newTestEvents(t, 200, `[`+hackathonJSON+`,`+hackathonJSON+`]`)

		page, err := svc.List(ctx, EventFilter{EventType: EventTypeAll})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Count)
		assert.Len(t, page.Results, 2)
		assert.Empty(t, (*calls)[0].query)
	})

	t.Run("unexpected body", func(t *testing.T) {
		svc, _ := newTestEvents(t, 200, `{"detail": "ok"}`)

		_, err := svc.List(ctx, EventFilter{})
		require.ErrorIs(t, err, ErrUnexpectedListing)
	})

	t.Run("server error", func(t *testing.T) {
		svc, _ := newTestEvents(t, 500, `{"detail": "database unavailable"}`)

		_, err := svc.List(ctx, EventFilter{})
		require.ErrorIs(t, err, client.ErrRequestFailed)
		assert.Contains(t, err.Error(), "database unavailable")
	})
}

func TestNormalization(t *testing.T) {
	svc, _ := newTestEvents(t, 200, hackathonJSON)

	ev, err := svc.Get(context.Background(), "7")
	require.NoError(t, err)

	assert.Equal(t, "Hackathon IA", ev.Title)
	assert.Equal(t, "WORKSHOP", ev.EventType)
	assert.Equal(t, Person{ID: "1", Name: "Ahmed Benali", Avatar: DefaultAvatar("Ahmed"), Level: "L3"}, ev.Organizer)
	require.Len(t, ev.Attendees, 1)
	assert.Equal(t, "Salma Idrissi", ev.Attendees[0].Name)
	assert.Equal(t, "https://cdn.example.com/salma.png", ev.Attendees[0].Avatar)
	require.NotNil(t, ev.MaxAttendees)
	assert.Equal(t, 40, *ev.MaxAttendees)
	assert.Nil(t, ev.Price)
	assert.Equal(t, "2025-01-10T10:00:00Z", ev.Created)
	assert.True(t, ev.IsLiked)
	assert.Equal(t, []string{"ia", "python"}, ev.Tags)
}

func TestActions(t *testing.T) {
	tests := []struct {
		name   string
		do     func(*EventService) (*Event, error)
		method string
		path   string
	}{
		{"join", func(s *EventService) (*Event, error) { return s.Join(context.Background(), "7") }, http.MethodPost, "/api/events/7/join/"},
		{"leave", func(s *EventService) (*Event, error) { return s.Leave(context.Background(), "7") }, http.MethodDelete, "/api/events/7/leave/"},
		{"like", func(s *EventService) (*Event, error) { return s.Like(context.Background(), "7") }, http.MethodPost, "/api/events/7/like/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, calls := newTestEvents(t, 200, hackathonJSON)

			ev, err := tt.do(svc)
			require.NoError(t, err)
			assert.Equal(t, "7", ev.ID)

			require.Len(t, *calls, 1)
			assert.Equal(t, tt.method, (*calls)[0].method)
			assert.Equal(t, tt.path, (*calls)[0].path)
		})
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		svc, calls := newTestEvents(t, 201, hackathonJSON)
		maxAttendees := 40

		ev, err := svc.Create(ctx, EventInput{
			Title:         "Hackathon IA",
			Description:   "48h pour construire un assistant de révision",
			EventType:     "WORKSHOP",
			StartDateTime: "2025-03-14T09:00:00Z",
			EndDateTime:   "2025-03-16T09:00:00Z",
			Location:      "Salle B12",
			MaxAttendees:  &maxAttendees,
			Tags:          []string{"IA"},
		})
		require.NoError(t, err)
		assert.Equal(t, "7", ev.ID)

		require.Len(t, *calls, 1)
		got := (*calls)[0]
		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, "/api/events/", got.path)
		assert.Equal(t, "Bearer acc", got.authz)
		assert.Equal(t, "Hackathon IA", got.body["title"])
		assert.Equal(t, float64(40), got.body["max_attendees"])
		assert.NotContains(t, got.body, "price")
		assert.NotContains(t, got.body, "online_link")
	})

	t.Run("create with missing fields is not sent", func(t *testing.T) {
		svc, calls := newTestEvents(t, 201, hackathonJSON)

		_, err := svc.Create(ctx, EventInput{Title: "Hackathon IA", EventType: "WORKSHOP"})
		require.ErrorIs(t, err, ErrInvalidEvent)
		assert.Equal(t, "missing event fields: start_datetime, end_datetime, location", err.Error())
		assert.Empty(t, *calls)
	})

	t.Run("update sends only set fields", func(t *testing.T) {
		svc, calls := newTestEvents(t, 200, hackathonJSON)
		status := "CANCELLED"
		tags := []string{}

		_, err := svc.Update(ctx, "7", EventPatch{Status: &status, Tags: &tags})
		require.NoError(t, err)

		got := (*calls)[0]
		assert.Equal(t, http.MethodPatch, got.method)
		assert.Equal(t, "/api/events/7/", got.path)
		assert.Equal(t, map[string]any{"status": "CANCELLED", "tags": []any{}}, got.body)
	})

	t.Run("empty update is rejected", func(t *testing.T) {
		svc, calls := newTestEvents(t, 200, hackathonJSON)

		_, err := svc.Update(ctx, "7", EventPatch{})
		require.ErrorIs(t, err, ErrEmptyPatch)
		assert.Empty(t, *calls)
	})

	t.Run("delete", func(t *testing.T) {
		svc, calls := newTestEvents(t, 204, "")

		require.NoError(t, svc.Delete(ctx, "7"))
		assert.Equal(t, http.MethodDelete, (*calls)[0].method)
		assert.Equal(t, "/api/events/7/", (*calls)[0].path)
	})

	t.Run("delete forbidden", func(t *testing.T) {
		svc, _ := newTestEvents(t, 403, `{"detail": "You do not have permission to perform this action."}`)

		err := svc.Delete(ctx, "7")
		require.ErrorIs(t, err, client.ErrRequestFailed)
		assert.Equal(t, "failed to delete event: You do not have permission to perform this action.", err.Error())
	})
}

func TestMineAndAttending(t *testing.T) {
	t.Run("mine paginated", func(t *testing.T) {
		svc, calls := newTestEvents(t, 200, `{"count": 1, "results": [`+hackathonJSON+`]}`)

		events, err := svc.Mine(context.Background())
		require.NoError(t, err)
		assert.Len(t, events, 1)
		assert.Equal(t, "/api/events/my-events/", (*calls)[0].path)
	})

	t.Run("attending plain", func(t *testing.T) {
		svc, calls := newTestEvents(t, 200, `[]`)

		events, err := svc.Attending(context.Background())
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Equal(t, "/api/events/attending/", (*calls)[0].path)
	})
}

func TestDefaultAvatar(t *testing.T) {
	assert.Equal(t, DefaultAvatar("Ahmed"), DefaultAvatar("Amine"))
	assert.Equal(t, defaultAvatars['S'%len(defaultAvatars)], DefaultAvatar("Salma"))
	assert.Equal(t, defaultAvatars[0], DefaultAvatar(""))
}
