// Package campus provides typed access to the SmartCampus domain endpoints that sit
// behind the authenticated REST client.
package campus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wolfeidau/smartcampus/internal/client"
)

const (
	eventsPath   = "/events/"
	myEventsPath = "/events/my-events/"
)

// EventTypeAll disables the type filter.
const EventTypeAll = "ALL"

var defaultAvatars = []string{"👨‍💻", "👩‍💻", "👨‍🎓", "👩‍🎓", "👨‍💼", "👩‍💼", "👨‍🔬", "👩‍🔬", "👨‍🎨", "👩‍🎨"}

var (
	// ErrUnexpectedListing is returned when a listing is neither a page nor an array.
	ErrUnexpectedListing = errors.New("unexpected event listing")

	ErrInvalidEvent = errors.New("missing event fields")
	ErrEmptyPatch   = errors.New("nothing to update")
)

// Person is an organizer or attendee as shown to the user.
type Person struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Level  string `json:"level"`
}

// Event is the normalized event record.
type Event struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	EventType        string   `json:"event_type"`
	Organizer        Person   `json:"organizer"`
	StartDateTime    string   `json:"start_datetime"`
	EndDateTime      string   `json:"end_datetime"`
	Location         string   `json:"location"`
	OnlineLink       string   `json:"online_link,omitempty"`
	MaxAttendees     *int     `json:"max_attendees,omitempty"`
	CurrentAttendees int      `json:"current_attendees"`
	Status           string   `json:"status"`
	IsFull           bool     `json:"is_full"`
	AvailableSpots   int      `json:"available_spots"`
	Tags             []string `json:"tags"`
	Price            *float64 `json:"price,omitempty"`
	IsLiked          bool     `json:"is_liked"`
	LikesCount       int      `json:"likes_count"`
	CommentsCount    int      `json:"comments_count"`
	ViewsCount       int      `json:"views_count"`
	Attendees        []Person `json:"attendees"`
	Requirements     []string `json:"requirements,omitempty"`
	Created          string   `json:"created"`
}

// EventPage is one page of a listing. Unpaginated listings come back as a single page.
type EventPage struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Event `json:"results"`
}

// EventFilter narrows a listing. Zero values are not sent.
type EventFilter struct {
	Search    string
	EventType string
	Page      int
	PageSize  int
}

func (f EventFilter) query() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.EventType != "" && f.EventType != EventTypeAll {
		q.Set("event_type", f.EventType)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return q
}

// EventInput is the body of a create request.
type EventInput struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	EventType     string   `json:"event_type"`
	StartDateTime string   `json:"start_datetime"`
	EndDateTime   string   `json:"end_datetime"`
	Location      string   `json:"location"`
	OnlineLink    string   `json:"online_link,omitempty"`
	MaxAttendees  *int     `json:"max_attendees,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	Requirements  []string `json:"requirements,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// Validate reports the required fields that are empty.
func (in EventInput) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"title", in.Title},
		{"event_type", in.EventType},
		{"start_datetime", in.StartDateTime},
		{"end_datetime", in.EndDateTime},
		{"location", in.Location},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(missing, ", "))
	}
	return nil
}

// EventPatch is a partial update. Nil fields are not sent.
type EventPatch struct {
	Title         *string   `json:"title,omitempty"`
	Description   *string   `json:"description,omitempty"`
	EventType     *string   `json:"event_type,omitempty"`
	StartDateTime *string   `json:"start_datetime,omitempty"`
	EndDateTime   *string   `json:"end_datetime,omitempty"`
	Location      *string   `json:"location,omitempty"`
	OnlineLink    *string   `json:"online_link,omitempty"`
	MaxAttendees  *int      `json:"max_attendees,omitempty"`
	Price         *float64  `json:"price,omitempty"`
	Requirements  *[]string `json:"requirements,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
	Status        *string   `json:"status,omitempty"`
}

func (p EventPatch) IsEmpty() bool {
	return p == EventPatch{}
}

// EventService wraps the events endpoints.
type EventService struct {
	client *client.Client
}

func NewEventService(c *client.Client) *EventService {
	return &EventService{client: c}
}

// List returns the events matching filter.
func (s *EventService) List(ctx context.Context, filter EventFilter) (*EventPage, error) {
	var raw json.RawMessage
	err := s.client.Do(ctx, eventsPath, &client.RequestOptions{
		Method: http.MethodGet,
		Query:  filter.query(),
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return decodeListing(raw)
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, id string) (*Event, error) {
	return s.single(ctx, http.MethodGet, eventPath(id), "get event", nil)
}

// Create publishes a new event organized by the current user.
func (s *EventService) Create(ctx context.Context, in EventInput) (*Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.single(ctx, http.MethodPost, eventsPath, "create event", in)
}

// Update changes the fields set in patch.
func (s *EventService) Update(ctx context.Context, id string, patch EventPatch) (*Event, error) {
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}
	return s.single(ctx, http.MethodPatch, eventPath(id), "update event", patch)
}

// Delete removes an event.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, eventPath(id), nil); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// Mine returns the events organized by the current user.
func (s *EventService) Mine(ctx context.Context) ([]Event, error) {
	return s.all(ctx, myEventsPath, "list my events")
}

// Attending returns the events the current user has joined.
func (s *EventService) Attending(ctx context.Context) ([]Event, error) {
	return s.all(ctx, eventsPath+"attending/", "list attended events")
}

func (s *EventService) Join(ctx context.Context, id string) (*Event, error) {
	return s.single(ctx, http.MethodPost, actionPath(id, "join"), "join event", nil)
}

func (s *EventService) Leave(ctx context.Context, id string) (*Event, error) {
	return s.single(ctx, http.MethodDelete, actionPath(id, "leave"), "leave event", nil)
}

// Like toggles the like of the current user.
func (s *EventService) Like(ctx context.Context, id string) (*Event, error) {
	return s.single(ctx, http.MethodPost, actionPath(id, "like"), "like event", nil)
}

func (s *EventService) all(ctx context.Context, endpoint, op string) ([]Event, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	page, err := decodeListing(raw)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (s *EventService) single(ctx context.Context, method, endpoint, op string, body any) (*Event, error) {
	var be backendEvent
	if err := s.client.Do(ctx, endpoint, &client.RequestOptions{Method: method, Body: body}, &be); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	ev := be.toEvent()
	return &ev, nil
}

func eventPath(id string) string {
	return eventsPath + url.PathEscape(id) + "/"
}

func actionPath(id, action string) string {
	return eventPath(id) + action + "/"
}

// decodeListing accepts both a DRF page and a bare array.
func decodeListing(raw json.RawMessage) (*EventPage, error) {
	trimmed := bytes.TrimSpace(raw)

	switch {
	case len(trimmed) == 0:
		return &EventPage{Results: []Event{}}, nil
	case trimmed[0] == '[':
		var list []backendEvent
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
		events := normalize(list)
		return &EventPage{Count: len(events), Results: events}, nil
	case trimmed[0] == '{':
		var page struct {
			Count    int            `json:"count"`
			Next     *string        `json:"next"`
			Previous *string        `json:"previous"`
			Results  []backendEvent `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
		if page.Results == nil {
			return nil, ErrUnexpectedListing
		}
		return &EventPage{
			Count:    page.Count,
			Next:     page.Next,
			Previous: page.Previous,
			Results:  normalize(page.Results),
		}, nil
	default:
		return nil, ErrUnexpectedListing
	}
}

func normalize(list []backendEvent) []Event {
	events := make([]Event, 0, len(list))
	for _, be := range list {
		events = append(events, be.toEvent())
	}
	return events
}

type backendPerson struct {
	ID             flexID `json:"id"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Level          string `json:"level"`
	ProfilePicture string `json:"profile_picture"`
}

func (p backendPerson) toPerson() Person {
	avatar := p.ProfilePicture
	if avatar == "" {
		avatar = DefaultAvatar(p.FirstName)
	}
	return Person{
		ID:     string(p.ID),
		Name:   p.FirstName + " " + p.LastName,
		Avatar: avatar,
		Level:  p.Level,
	}
}

type backendEvent struct {
	ID               flexID          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	EventType        string          `json:"event_type"`
	Organizer        backendPerson   `json:"organizer"`
	StartDateTime    string          `json:"start_datetime"`
	EndDateTime      string          `json:"end_datetime"`
	Location         string          `json:"location"`
	OnlineLink       string          `json:"online_link"`
	MaxAttendees     *int            `json:"max_attendees"`
	Status           string          `json:"status"`
	Price            *float64        `json:"price"`
	Requirements     []string        `json:"requirements"`
	CreatedAt        string          `json:"created_at"`
	CurrentAttendees int             `json:"current_attendees"`
	IsFull           bool            `json:"is_full"`
	AvailableSpots   int             `json:"available_spots"`
	Attendees        []backendPerson `json:"attendees"`
	Tags             []string        `json:"tags"`
	IsLiked          bool            `json:"is_liked"`
	LikesCount       int             `json:"likes_count"`
	CommentsCount    int             `json:"comments_count"`
	ViewsCount       int             `json:"views_count"`
}

func (b backendEvent) toEvent() Event {
	attendees := make([]Person, 0, len(b.Attendees))
	for _, a := range b.Attendees {
		attendees = append(attendees, a.toPerson())
	}

	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}

	return Event{
		ID:               string(b.ID),
		Title:            b.Title,
		Description:      b.Description,
		EventType:        b.EventType,
		Organizer:        b.Organizer.toPerson(),
		StartDateTime:    b.StartDateTime,
		EndDateTime:      b.EndDateTime,
		Location:         b.Location,
		OnlineLink:       b.OnlineLink,
		MaxAttendees:     b.MaxAttendees,
		CurrentAttendees: b.CurrentAttendees,
		Status:           b.Status,
		IsFull:           b.IsFull,
		AvailableSpots:   b.AvailableSpots,
		Tags:             tags,
		Price:            b.Price,
		IsLiked:          b.IsLiked,
		LikesCount:       b.LikesCount,
		CommentsCount:    b.CommentsCount,
		ViewsCount:       b.ViewsCount,
		Attendees:        attendees,
		Requirements:     b.Requirements,
		Created:          b.CreatedAt,
	}
}

// DefaultAvatar picks a stable placeholder avatar from the first letter of a name.
func DefaultAvatar(firstName string) string {
	r, _ := utf8.DecodeRuneInString(firstName)
	if r == utf8.RuneError {
		return defaultAvatars[0]
	}
	return defaultAvatars[int(r)%len(defaultAvatars)]
}

// flexID accepts numeric and string primary keys.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = flexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = flexID(n.String())
	return nil
}
