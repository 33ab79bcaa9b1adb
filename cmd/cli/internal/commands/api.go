package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfeidau/smartcampus/internal/client"
)

// APICmd sends an arbitrary request through the authenticated client.
type APICmd struct {
	Method    string   `arg:"" help:"HTTP method" enum:"GET,POST,PUT,PATCH,DELETE,get,post,put,patch,delete"`
	Path      string   `arg:"" help:"Endpoint relative to the API URL, e.g. /events/"`
	Data      string   `help:"JSON request body" short:"d"`
	Query     []string `help:"Query parameters as key=value" short:"q"`
	Anonymous bool     `help:"Send without the Authorization header"`
}

func (a *APICmd) Run(ctx context.Context, globals *Globals) error {
	opts := &client.RequestOptions{
		Method:    strings.ToUpper(a.Method),
		Anonymous: a.Anonymous,
	}

	if a.Data != "" {
		if !json.Valid([]byte(a.Data)) {
			return fmt.Errorf("request body is not valid JSON")
		}
		opts.Body = json.RawMessage(a.Data)
	}

	if len(a.Query) > 0 {
		opts.Query = url.Values{}
		for _, kv := range a.Query {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid query parameter %q, expected key=value", kv)
			}
			opts.Query.Add(key, value)
		}
	}

	path := a.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	var raw json.RawMessage
	if err := app.Client.Do(ctx, path, opts, &raw); err != nil {
		return err
	}

	out := globals.out()
	if len(raw) == 0 {
		if opts.Method != http.MethodGet {
			fmt.Fprintln(out, "OK")
		}
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		_, err = out.Write(raw)
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(out)

	return err
}
