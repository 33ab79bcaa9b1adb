// Package demo holds the fixed demo accounts used when no backend accepts the credentials.
package demo

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/wolfeidau/smartcampus/internal/credentials"
	"github.com/wolfeidau/smartcampus/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed accounts.yaml
var accountsYAML []byte

// ErrIncompleteAccount is returned when a fixture account has no username or password.
var ErrIncompleteAccount = errors.New("demo account is incomplete")

type account struct {
	Password string         `yaml:"password"`
	Student  models.Student `yaml:"student"`
}

type fixture struct {
	Accounts []account `yaml:"accounts"`
}

// Directory is a read-only table of demo accounts.
type Directory struct {
	accounts map[string]account
}

// Load parses a YAML fixture.
func Load(data []byte) (*Directory, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse demo accounts: %w", err)
	}

	d := &Directory{accounts: make(map[string]account, len(f.Accounts))}
	for i, a := range f.Accounts {
		if a.Student.Username == "" || a.Password == "" {
			return nil, fmt.Errorf("%w: entry %d", ErrIncompleteAccount, i)
		}
		d.accounts[a.Student.Username] = a
	}

	return d, nil
}

var (
	defaultOnce sync.Once
	defaultDir  *Directory
)

// Default returns the directory built from the embedded fixture.
func Default() *Directory {
	defaultOnce.Do(func() {
		d, err := Load(accountsYAML)
		if err != nil {
			panic(err)
		}
		defaultDir = d
	})
	return defaultDir
}

// Authenticate returns a copy of the demo student when the password matches.
func (d *Directory) Authenticate(username, password string) (*models.Student, bool) {
	a, ok := d.accounts[username]
	if !ok || a.Password != password {
		return nil, false
	}
	return a.Student.Clone(), true
}

// Lookup returns a copy of the demo student without checking a password.
func (d *Directory) Lookup(username string) (*models.Student, bool) {
	a, ok := d.accounts[username]
	if !ok {
		return nil, false
	}
	return a.Student.Clone(), true
}

// Usernames returns the demo usernames in sorted order.
func (d *Directory) Usernames() []string {
	names := make([]string, 0, len(d.accounts))
	for name := range d.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Token synthesizes a demo bearer token for username.
func Token(username string, now time.Time) string {
	return credentials.DemoTokenPrefix + username + "_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// Session builds the session persisted for a demo login. Access and refresh are the same token.
func Session(username string, now time.Time) models.Session {
	token := Token(username, now)
	return models.Session{AccessToken: token, RefreshToken: token}
}
