package models

// Level is the program level of a student.
type Level string

const (
	LevelL1 Level = "L1"
	LevelL2 Level = "L2"
	LevelL3 Level = "L3"
	LevelM1 Level = "M1"
	LevelM2 Level = "M2"
)

// Field of study codes used by the backend.
const (
	FiliereInfo    = "INFO"
	FiliereMath    = "MATH"
	FilierePhys    = "PHYS"
	FiliereEcon    = "ECON"
	FiliereGestion = "GESTION"
	FiliereDroit   = "DROIT"
)

// Student is the user record surfaced after authentication.
// Optional fields are nil when the backend did not send them.
type Student struct {
	ID               string          `json:"id" yaml:"id"`
	Username         string          `json:"username" yaml:"username"`
	Email            string          `json:"email" yaml:"email"`
	FirstName        string          `json:"first_name" yaml:"first_name"`
	LastName         string          `json:"last_name" yaml:"last_name"`
	StudentID        string          `json:"student_id" yaml:"student_id"`
	Level            Level           `json:"level" yaml:"level"`
	Filiere          string          `json:"filiere" yaml:"filiere"`
	PhoneNumber      *string         `json:"phone_number,omitempty" yaml:"phone_number,omitempty"`
	BirthDate        *string         `json:"birth_date,omitempty" yaml:"birth_date,omitempty"`
	Address          *string         `json:"address,omitempty" yaml:"address,omitempty"`
	ProfilePicture   *string         `json:"profile_picture,omitempty" yaml:"profile_picture,omitempty"`
	StudyPreferences map[string]any  `json:"study_preferences" yaml:"study_preferences"`
	Interests        []string        `json:"interests" yaml:"interests"`
	Availability     map[string]any  `json:"availability" yaml:"availability"`
	Profile          *StudentProfile `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// StudentProfile holds the academic details attached to a student.
type StudentProfile struct {
	GPA                     *float64 `json:"gpa,omitempty" yaml:"gpa,omitempty"`
	EnrollmentYear          int      `json:"enrollment_year" yaml:"enrollment_year"`
	ExpectedGraduation      int      `json:"expected_graduation" yaml:"expected_graduation"`
	PreferredGroupSize      int      `json:"preferred_group_size" yaml:"preferred_group_size"`
	CommunicationPreference string   `json:"communication_preference" yaml:"communication_preference"`
	EmergencyContactName    *string  `json:"emergency_contact_name,omitempty" yaml:"emergency_contact_name,omitempty"`
	EmergencyContactPhone   *string  `json:"emergency_contact_phone,omitempty" yaml:"emergency_contact_phone,omitempty"`
}

// FullName returns "First Last".
func (s *Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Clone returns a deep copy of the student.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}

	clone := *s
	clone.PhoneNumber = cloneString(s.PhoneNumber)
	clone.BirthDate = cloneString(s.BirthDate)
	clone.Address = cloneString(s.Address)
	clone.ProfilePicture = cloneString(s.ProfilePicture)
	clone.StudyPreferences = cloneMap(s.StudyPreferences)
	clone.Availability = cloneMap(s.Availability)
	if s.Interests != nil {
		clone.Interests = append([]string(nil), s.Interests...)
	}
	if s.Profile != nil {
		p := *s.Profile
		if s.Profile.GPA != nil {
			gpa := *s.Profile.GPA
			p.GPA = &gpa
		}
		p.EmergencyContactName = cloneString(s.Profile.EmergencyContactName)
		p.EmergencyContactPhone = cloneString(s.Profile.EmergencyContactPhone)
		clone.Profile = &p
	}

	return &clone
}

// StudentPatch is a partial update of a student record. Nil fields are left untouched.
type StudentPatch struct {
	Email            *string         `json:"email,omitempty"`
	FirstName        *string         `json:"first_name,omitempty"`
	LastName         *string         `json:"last_name,omitempty"`
	Level            *Level          `json:"level,omitempty"`
	Filiere          *string         `json:"filiere,omitempty"`
	PhoneNumber      *string         `json:"phone_number,omitempty"`
	BirthDate        *string         `json:"birth_date,omitempty"`
	Address          *string         `json:"address,omitempty"`
	ProfilePicture   *string         `json:"profile_picture,omitempty"`
	StudyPreferences map[string]any  `json:"study_preferences,omitempty"`
	Interests        []string        `json:"interests,omitempty"`
	Availability     map[string]any  `json:"availability,omitempty"`
	Profile          *StudentProfile `json:"profile,omitempty"`
}

// IsEmpty returns true if the patch changes nothing.
func (p StudentPatch) IsEmpty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil && p.Level == nil &&
		p.Filiere == nil && p.PhoneNumber == nil && p.BirthDate == nil && p.Address == nil &&
		p.ProfilePicture == nil && p.StudyPreferences == nil && p.Interests == nil &&
		p.Availability == nil && p.Profile == nil
}

// Apply returns a copy of s with the patch merged in. Maps and slices replace the
// existing values wholesale, matching a shallow object spread.
func (p StudentPatch) Apply(s *Student) *Student {
	merged := s.Clone()
	if merged == nil {
		merged = &Student{}
	}

	if p.Email != nil {
		merged.Email = *p.Email
	}
	if p.FirstName != nil {
		merged.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		merged.LastName = *p.LastName
	}
	if p.Level != nil {
		merged.Level = *p.Level
	}
	if p.Filiere != nil {
		merged.Filiere = *p.Filiere
	}
	if p.PhoneNumber != nil {
		merged.PhoneNumber = cloneString(p.PhoneNumber)
	}
	if p.BirthDate != nil {
		merged.BirthDate = cloneString(p.BirthDate)
	}
	if p.Address != nil {
		merged.Address = cloneString(p.Address)
	}
	if p.ProfilePicture != nil {
		merged.ProfilePicture = cloneString(p.ProfilePicture)
	}
	if p.StudyPreferences != nil {
		merged.StudyPreferences = cloneMap(p.StudyPreferences)
	}
	if p.Interests != nil {
		merged.Interests = append([]string(nil), p.Interests...)
	}
	if p.Availability != nil {
		merged.Availability = cloneMap(p.Availability)
	}
	if p.Profile != nil {
		merged.Profile = (&Student{Profile: p.Profile}).Clone().Profile
	}

	return merged
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// cloneMap copies the top level only; nested values are shared.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
