package models

// Session is the pair of bearer tokens identifying an authenticated client.
// Both values are opaque to the client and are persisted together.
type Session struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// IsZero returns true if neither token is set.
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// Credentials is the username/password pair submitted to the login endpoint.
// It is never persisted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterData is the payload accepted by the registration endpoint.
type RegisterData struct {
	Username           string `json:"username" yaml:"username"`
	Email              string `json:"email" yaml:"email"`
	Password           string `json:"password" yaml:"password"`
	PasswordConfirm    string `json:"password_confirm" yaml:"password_confirm"`
	FirstName          string `json:"first_name" yaml:"first_name"`
	LastName           string `json:"last_name" yaml:"last_name"`
	StudentID          string `json:"student_id" yaml:"student_id"`
	Level              Level  `json:"level" yaml:"level"`
	Filiere            string `json:"filiere" yaml:"filiere"`
	PhoneNumber        string `json:"phone_number,omitempty" yaml:"phone_number,omitempty"`
	EnrollmentYear     int    `json:"enrollment_year" yaml:"enrollment_year"`
	ExpectedGraduation int    `json:"expected_graduation" yaml:"expected_graduation"`
}
