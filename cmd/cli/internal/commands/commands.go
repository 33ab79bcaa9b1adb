package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/smartcampus/internal/auth"
	"github.com/wolfeidau/smartcampus/internal/campus"
	"github.com/wolfeidau/smartcampus/internal/client"
	"github.com/wolfeidau/smartcampus/internal/credentials"
	"github.com/wolfeidau/smartcampus/internal/session"
)

type Globals struct {
	Debug       bool
	Version     string
	APIURL      string
	AuthScheme  string
	StateDir    string
	Cache       bool
	CacheDir    string
	Timeout     time.Duration
	ProfileSync bool
	Tracing     bool

	// Out receives command output, stdout when nil.
	Out io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// App is the wired session subsystem used by every command.
type App struct {
	Store   *credentials.Store
	Client  *client.Client
	Auth    *auth.Service
	Session *session.Manager
	Events  *campus.EventService

	statePath string
}

// NewApp builds the store, client, auth service and session manager from the globals.
func (g *Globals) NewApp() (*App, error) {
	backend, err := credentials.NewFileBackend(g.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token store: %w", err)
	}
	store := credentials.NewStore(backend)

	config := client.DefaultConfig()
	if g.APIURL != "" {
		config.BaseURL = g.APIURL
	}
	if g.AuthScheme != "" {
		config.AuthScheme = g.AuthScheme
	}
	config.Timeout = g.Timeout
	config.Cache = g.Cache
	config.CacheDir = g.CacheDir
	config.Tracing = g.Tracing

	c := client.New(config, store)
	svc := auth.NewService(c, store)

	out := g.out()
	mgr := session.New(svc, store,
		session.WithNotifier(printNotifier{w: out}),
		session.WithProfileSync(g.ProfileSync),
		session.WithNavigator(client.NavigatorFunc(func(path string) {
			fmt.Fprintln(out, "Session expired. Sign in again with: smartcampus login <username>")
		})),
	)
	c.SetNavigator(mgr)

	return &App{
		Store:     store,
		Client:    c,
		Auth:      svc,
		Session:   mgr,
		Events:    campus.NewEventService(c),
		statePath: backend.Path(),
	}, nil
}

// printNotifier prints successes; errors are returned to kong and only logged here.
type printNotifier struct {
	w io.Writer
}

func (p printNotifier) Success(msg string) {
	fmt.Fprintln(p.w, msg)
}

func (p printNotifier) Error(msg string) {
	log.Debug().Msg(msg)
}
