package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfeidau/smartcampus/internal/models"
)

// Shape identifies which token contract the backend used.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeToken is the DRF TokenAuthentication contract: a single "token" used for
	// both access and refresh.
	ShapeToken
	// ShapePair is the SimpleJWT contract: distinct "access" and "refresh" tokens.
	ShapePair
)

func (s Shape) String() string {
	switch s {
	case ShapeToken:
		return "token"
	case ShapePair:
		return "pair"
	default:
		return "unknown"
	}
}

// ErrMissingToken is returned when an auth response carries no usable token.
var ErrMissingToken = errors.New("auth response carries no token")

// Response is the body returned by the login, register and refresh endpoints.
type Response struct {
	Shape   Shape
	Token   string
	Access  string
	Refresh string
	Student *BackendStudent
	Message string
}

type rawResponse struct {
	Token   string          `json:"token"`
	Access  string          `json:"access"`
	Refresh string          `json:"refresh"`
	Student *BackendStudent `json:"student"`
	User    *BackendStudent `json:"user"`
	Message string          `json:"message"`
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var raw rawResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Response{
		Token:   raw.Token,
		Access:  raw.Access,
		Refresh: raw.Refresh,
		Student: raw.Student,
		Message: raw.Message,
	}
	if r.Student == nil {
		r.Student = raw.User
	}

	switch {
	case raw.Access != "":
		r.Shape = ShapePair
	case raw.Token != "":
		r.Shape = ShapeToken
	}

	return nil
}

// Session converts the response into a session. fallbackRefresh is used when a pair
// response omits the refresh token, as SimpleJWT does without rotation.
func (r *Response) Session(fallbackRefresh string) (models.Session, error) {
	switch r.Shape {
	case ShapeToken:
		return models.Session{AccessToken: r.Token, RefreshToken: r.Token}, nil
	case ShapePair:
		refresh := r.Refresh
		if refresh == "" {
			refresh = fallbackRefresh
		}
		if refresh == "" {
			return models.Session{}, fmt.Errorf("%w: refresh token missing", ErrMissingToken)
		}
		return models.Session{AccessToken: r.Access, RefreshToken: refresh}, nil
	default:
		return models.Session{}, ErrMissingToken
	}
}

// User returns the normalized user record, or nil when the response carried none.
func (r *Response) User() *models.Student {
	if r.Student == nil {
		return nil
	}
	return r.Student.ToStudent()
}

// flexibleID accepts both numeric and string primary keys.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}

	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*id = flexibleID(v)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", s, err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("invalid id %s: %w", s, err)
	}
	*id = flexibleID(n.String())
	return nil
}

// BackendStudent is the student record as serialized by the backend.
type BackendStudent struct {
	ID               flexibleID      `json:"id"`
	Username         string          `json:"username"`
	Email            string          `json:"email"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	StudentID        string          `json:"student_id"`
	Level            models.Level    `json:"level"`
	Filiere          string          `json:"filiere"`
	PhoneNumber      *string         `json:"phone_number"`
	BirthDate        *string         `json:"birth_date"`
	Address          *string         `json:"address"`
	ProfilePicture   *string         `json:"profile_picture"`
	StudyPreferences map[string]any  `json:"study_preferences"`
	Interests        []string        `json:"interests"`
	Availability     map[string]any  `json:"availability"`
	Profile          *BackendProfile `json:"profile"`
}

// BackendProfile is the nested profile, including server bookkeeping fields.
type BackendProfile struct {
	ID                      flexibleID `json:"id"`
	Student                 flexibleID `json:"student"`
	GPA                     *float64   `json:"gpa"`
	EnrollmentYear          int        `json:"enrollment_year"`
	ExpectedGraduation      int        `json:"expected_graduation"`
	PreferredGroupSize      int        `json:"preferred_group_size"`
	CommunicationPreference string     `json:"communication_preference"`
	EmergencyContactName    *string    `json:"emergency_contact_name"`
	EmergencyContactPhone   *string    `json:"emergency_contact_phone"`
	CreatedAt               string     `json:"created_at"`
	UpdatedAt               string     `json:"updated_at"`
}

// ToStudent normalizes the backend record. Empty optional strings become nil.
func (b *BackendStudent) ToStudent() *models.Student {
	s := &models.Student{
		ID:               string(b.ID),
		Username:         b.Username,
		Email:            b.Email,
		FirstName:        b.FirstName,
		LastName:         b.LastName,
		StudentID:        b.StudentID,
		Level:            b.Level,
		Filiere:          b.Filiere,
		PhoneNumber:      optional(b.PhoneNumber),
		BirthDate:        optional(b.BirthDate),
		Address:          optional(b.Address),
		ProfilePicture:   optional(b.ProfilePicture),
		StudyPreferences: b.StudyPreferences,
		Interests:        b.Interests,
		Availability:     b.Availability,
	}

	if p := b.Profile; p != nil {
		s.Profile = &models.StudentProfile{
			GPA:                     p.GPA,
			EnrollmentYear:          p.EnrollmentYear,
			ExpectedGraduation:      p.ExpectedGraduation,
			PreferredGroupSize:      p.PreferredGroupSize,
			CommunicationPreference: p.CommunicationPreference,
			EmergencyContactName:    optional(p.EmergencyContactName),
			EmergencyContactPhone:   optional(p.EmergencyContactPhone),
		}
	}

	return s
}

func optional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
