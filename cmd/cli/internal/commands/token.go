package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wolfeidau/smartcampus/internal/auth"
	"github.com/wolfeidau/smartcampus/internal/credentials"
)

// TokenCmd inspects and refreshes the stored session tokens.
type TokenCmd struct {
	Show    TokenShowCmd    `cmd:"" help:"Show the stored tokens without revealing them"`
	Refresh TokenRefreshCmd `cmd:"" help:"Exchange the refresh token for a new session"`
}

type TokenShowCmd struct{}

func (t *TokenShowCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	session, err := app.Store.Load()
	if err != nil {
		if errors.Is(err, credentials.ErrSessionNotFound) {
			return fmt.Errorf("no stored session in %s\n\nSign in with: smartcampus login <username>", app.statePath)
		}
		return err
	}

	out := globals.out()
	fmt.Fprintf(out, "Store:    %s\n", app.statePath)
	printToken(out, "Access", credentials.Inspect(session.AccessToken))
	printToken(out, "Refresh", credentials.Inspect(session.RefreshToken))

	return nil
}

func printToken(w io.Writer, label string, info credentials.TokenInfo) {
	kind := "opaque"
	switch {
	case info.Demo:
		kind = "demo"
	case info.JWT:
		kind = "jwt"
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s token\n", label)
	fmt.Fprintf(w, "  Type:        %s\n", kind)
	fmt.Fprintf(w, "  Fingerprint: %s\n", info.Fingerprint)
	if info.Subject != "" {
		fmt.Fprintf(w, "  Subject:     %s\n", info.Subject)
	}
	if !info.ExpiresAt.IsZero() {
		status := "valid"
		if info.Expired(time.Now()) {
			status = "expired"
		}
		fmt.Fprintf(w, "  Expires:     %s (%s)\n", info.ExpiresAt.Format(time.RFC3339), status)
	}
}

type TokenRefreshCmd struct{}

func (t *TokenRefreshCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	session, err := app.Auth.RefreshToken(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshExpired) {
			return fmt.Errorf("%w\n\nSign in again with: smartcampus login <username>", err)
		}
		return err
	}

	fmt.Fprintln(globals.out(), "Session refreshed.")
	printToken(globals.out(), "Access", credentials.Inspect(session.AccessToken))

	return nil
}
