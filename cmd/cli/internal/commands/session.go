package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/smartcampus/internal/demo"
	"github.com/wolfeidau/smartcampus/internal/models"
	"github.com/wolfeidau/smartcampus/internal/session"
	"gopkg.in/yaml.v3"
)

// LoginCmd signs in with a username and password, falling back to the demo accounts.
type LoginCmd struct {
	Username string `arg:"" help:"Username"`
	Password string `help:"Password" required:"" env:"SMARTCAMPUS_PASSWORD"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	user, err := app.Session.Login(ctx, l.Username, l.Password)
	if err != nil {
		return err
	}

	printUser(globals.out(), user, app.Session.Snapshot().Demo)
	return nil
}

// DemoCmd works with the built-in demo accounts.
type DemoCmd struct {
	Login    DemoLoginCmd    `cmd:"" help:"Sign in as a demo user without a password"`
	Accounts DemoAccountsCmd `cmd:"" help:"List the demo accounts"`
}

type DemoLoginCmd struct {
	Username string `arg:"" help:"Demo username"`
}

func (d *DemoLoginCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	user, err := app.Session.DirectLogin(d.Username)
	if err != nil {
		if errors.Is(err, session.ErrUnknownDemoUser) {
			return fmt.Errorf("%w\n\nRun 'smartcampus demo accounts' to see available demo users", err)
		}
		return err
	}

	printUser(globals.out(), user, true)
	return nil
}

type DemoAccountsCmd struct{}

func (d *DemoAccountsCmd) Run(ctx context.Context, globals *Globals) error {
	dir := demo.Default()

	w := newTable(globals.out())
	fmt.Fprintln(w, "USERNAME\tNAME\tLEVEL\tFILIERE")
	for _, name := range dir.Usernames() {
		s, _ := dir.Lookup(name)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Username, s.FullName(), s.Level, s.Filiere)
	}

	return w.Flush()
}

// RegisterCmd creates an account. Values can come from a YAML or JSON file; flags win.
type RegisterCmd struct {
	File               string `help:"YAML or JSON file with the registration data" type:"existingfile" short:"f"`
	Username           string `help:"Username"`
	Email              string `help:"Email address"`
	Password           string `help:"Password" env:"SMARTCAMPUS_PASSWORD"`
	FirstName          string `help:"First name"`
	LastName           string `help:"Last name"`
	StudentID          string `help:"Student number" name:"student-id"`
	Level              string `help:"Program level (L1, L2, L3, M1, M2)"`
	Filiere            string `help:"Field of study (INFO, MATH, PHYS, ECON, GESTION, DROIT)"`
	Phone              string `help:"Phone number"`
	EnrollmentYear     int    `help:"Enrollment year"`
	ExpectedGraduation int    `help:"Expected graduation year"`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	data, err := r.registerData()
	if err != nil {
		return err
	}

	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	user, err := app.Session.Register(ctx, data)
	if err != nil {
		return err
	}

	printUser(globals.out(), user, false)
	return nil
}

func (r *RegisterCmd) registerData() (models.RegisterData, error) {
	var data models.RegisterData

	if r.File != "" {
		raw, err := os.ReadFile(r.File)
		if err != nil {
			return data, fmt.Errorf("failed to read %s: %w", r.File, err)
		}
		// JSON is valid YAML
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return data, fmt.Errorf("failed to parse %s: %w", r.File, err)
		}
	}

	setString(&data.Username, r.Username)
	setString(&data.Email, r.Email)
	setString(&data.Password, r.Password)
	setString(&data.FirstName, r.FirstName)
	setString(&data.LastName, r.LastName)
	setString(&data.StudentID, r.StudentID)
	setString(&data.Filiere, strings.ToUpper(r.Filiere))
	setString(&data.PhoneNumber, r.Phone)
	if r.Level != "" {
		data.Level = models.Level(r.Level)
	}
	if r.EnrollmentYear != 0 {
		data.EnrollmentYear = r.EnrollmentYear
	}
	if r.ExpectedGraduation != 0 {
		data.ExpectedGraduation = r.ExpectedGraduation
	}
	if data.PasswordConfirm == "" {
		data.PasswordConfirm = data.Password
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"username", data.Username},
		{"email", data.Email},
		{"password", data.Password},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return data, fmt.Errorf("missing registration fields: %s", strings.Join(missing, ", "))
	}

	return data, nil
}

// LogoutCmd ends the local session.
type LogoutCmd struct {
	Revoke bool `help:"Also delete the token on the server"`
}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	if l.Revoke && app.Auth.IsAuthenticated() {
		if err := app.Auth.Revoke(ctx); err != nil {
			log.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}

	return app.Session.Logout()
}

// WhoamiCmd restores the stored session and prints the current user.
type WhoamiCmd struct {
	JSON bool `help:"Print the user record as JSON"`
}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	snap, err := app.Session.Init(ctx)
	if err != nil {
		return err
	}

	out := globals.out()
	if snap.State != session.StateAuthenticated {
		fmt.Fprintln(out, "Not signed in.")
		return nil
	}

	if w.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.User)
	}

	printUser(out, snap.User, snap.Demo)
	return nil
}

// ProfileCmd manages the profile of the current user.
type ProfileCmd struct {
	Update ProfileUpdateCmd `cmd:"" help:"Update profile fields"`
}

type ProfileUpdateCmd struct {
	Email     *string  `help:"Email address"`
	FirstName *string  `help:"First name"`
	LastName  *string  `help:"Last name"`
	Level     *string  `help:"Program level (L1, L2, L3, M1, M2)"`
	Filiere   *string  `help:"Field of study"`
	Phone     *string  `help:"Phone number"`
	BirthDate *string  `help:"Birth date (YYYY-MM-DD)"`
	Address   *string  `help:"Postal address"`
	Interests []string `help:"Interests, replaces the current list"`
}

func (p *ProfileUpdateCmd) patch() models.StudentPatch {
	patch := models.StudentPatch{
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Filiere:     p.Filiere,
		PhoneNumber: p.Phone,
		BirthDate:   p.BirthDate,
		Address:     p.Address,
		Interests:   p.Interests,
	}
	if p.Level != nil {
		level := models.Level(*p.Level)
		patch.Level = &level
	}
	return patch
}

func (p *ProfileUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	patch := p.patch()
	if patch.IsEmpty() {
		return errors.New("nothing to update, pass at least one field")
	}

	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	snap, err := app.Session.Init(ctx)
	if err != nil {
		return err
	}
	if snap.State != session.StateAuthenticated {
		return session.ErrNotAuthenticated
	}

	user, err := app.Session.UpdateProfile(ctx, patch)
	if err != nil {
		return err
	}

	printUser(globals.out(), user, snap.Demo)
	return nil
}

func printUser(w io.Writer, user *models.Student, isDemo bool) {
	t := newTable(w)
	fmt.Fprintf(t, "Name:\t%s\n", user.FullName())
	fmt.Fprintf(t, "Username:\t%s\n", user.Username)
	fmt.Fprintf(t, "Email:\t%s\n", user.Email)
	if user.StudentID != "" {
		fmt.Fprintf(t, "Student ID:\t%s\n", user.StudentID)
	}
	fmt.Fprintf(t, "Level:\t%s %s\n", user.Level, user.Filiere)
	if isDemo {
		fmt.Fprintf(t, "Mode:\tdemo\n")
	}
	_ = t.Flush()
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
