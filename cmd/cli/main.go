package main

import (
	"context"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/smartcampus/cmd/cli/internal/commands"
	"github.com/wolfeidau/smartcampus/internal/logger"
	"github.com/wolfeidau/smartcampus/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Sign in"`
		Register commands.RegisterCmd `cmd:"" help:"Create an account and sign in"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Sign out"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the signed in user"`
		Profile  commands.ProfileCmd  `cmd:"" help:"Manage your profile"`
		Demo     commands.DemoCmd     `cmd:"" help:"Use the demo accounts"`
		Token    commands.TokenCmd    `cmd:"" help:"Inspect and refresh session tokens"`
		Events   commands.EventsCmd   `cmd:"" help:"Browse campus events"`
		API      commands.APICmd      `cmd:"" name:"api" help:"Send a raw API request"`

		APIURL      string        `name:"api-url" help:"SmartCampus API base URL" default:"http://localhost:8000/api" env:"SMARTCAMPUS_API_URL,VITE_API_URL"`
		AuthScheme  string        `help:"Authorization header scheme" enum:"Bearer,Token" default:"Bearer" env:"SMARTCAMPUS_AUTH_SCHEME"`
		StateDir    string        `help:"Directory holding the session (default: ~/.smartcampus)" env:"SMARTCAMPUS_STATE_DIR"`
		Cache       bool          `help:"Cache cacheable API responses" env:"SMARTCAMPUS_CACHE"`
		CacheDir    string        `help:"Persist the response cache in this directory" env:"SMARTCAMPUS_CACHE_DIR"`
		Timeout     time.Duration `help:"Request timeout, 0 disables it" default:"0s" env:"SMARTCAMPUS_TIMEOUT"`
		ProfileSync bool          `help:"Send profile updates to the server" env:"SMARTCAMPUS_PROFILE_SYNC"`
		Telemetry   bool          `help:"Export traces and metrics over OTLP" env:"SMARTCAMPUS_TELEMETRY"`
		Debug       bool          `help:"Enable debug mode."`
		Version     kong.VersionFlag
	}
)

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("smartcampus"),
		kong.Description("SmartCampus command line client."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	shutdown := func(context.Context) error { return nil }
	if cli.Telemetry {
		var err error
		if shutdown, err = telemetry.Init(ctx, "smartcampus-cli", version); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
			shutdown = func(context.Context) error { return nil }
		}
	}

	err := cmd.Run(&commands.Globals{
		Debug:       cli.Debug,
		Version:     version,
		APIURL:      cli.APIURL,
		AuthScheme:  cli.AuthScheme,
		StateDir:    cli.StateDir,
		Cache:       cli.Cache || cli.CacheDir != "",
		CacheDir:    cli.CacheDir,
		Timeout:     cli.Timeout,
		ProfileSync: cli.ProfileSync,
		Tracing:     cli.Telemetry,
	})

	// flush telemetry before FatalIfErrorf exits
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("Failed to shutdown telemetry")
	}
	cancel()

	cmd.FatalIfErrorf(err)
}
