// Package api is the REST gateway to the ChatX backend: authenticated
// request/response exchanges, envelope unwrapping and failure classification.
// It never touches the local state store; callers apply the payloads.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chatx/chatx-go/internal/errs"
	"github.com/chatx/chatx-go/internal/logger"
	"github.com/chatx/chatx-go/internal/session"
)

// Gateway issues JSON-over-HTTP calls against the backend's /api/v1 surface.
type Gateway struct {
	baseURL  string
	http     *http.Client
	sessions *session.Manager
}

// New builds a Gateway. httpClient may be nil; a 15s-timeout client is used.
func New(baseURL string, httpClient *http.Client, sessions *session.Manager) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Gateway{baseURL: baseURL, http: httpClient, sessions: sessions}
}

// BaseURL returns the configured backend base (including /api/v1).
func (g *Gateway) BaseURL() string { return g.baseURL }

type callOptions struct {
	method       string
	requiresAuth bool
	body         any
}

// envelope is the backend's uniform response wrapper. Some endpoints return
// bare payloads; both shapes are accepted.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// do performs one exchange and returns the unwrapped payload.
//
// With requiresAuth and no active session it fails with ErrAuthRequired
// before any network use. A 401 on an authenticated call clears the session
// (and the persisted credential) before the APIError is returned, so every
// caller observes the torn-down session uniformly.
func (g *Gateway) do(ctx context.Context, path string, opts callOptions) (json.RawMessage, error) {
	method := opts.method
	if method == "" {
		method = http.MethodGet
	}

	var credential string
	if opts.requiresAuth {
		raw, ok := g.sessions.Credential()
		if !ok {
			return nil, errs.ErrAuthRequired
		}
		credential = raw
	}

	var bodyReader io.Reader
	if opts.body != nil {
		encoded, err := json.Marshal(opts.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	if opts.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	var env envelope
	parsed := len(raw) > 0 && json.Unmarshal(raw, &env) == nil

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := ""
		if parsed {
			message = env.Error
		}
		apiErr := errs.NewAPIError(resp.StatusCode, message)
		if apiErr.Unauthorized() && opts.requiresAuth {
			logger.Infof("api: unauthorized on %s %s, clearing session", method, path)
			g.sessions.Clear()
		}
		return nil, apiErr
	}

	if len(raw) == 0 {
		return nil, nil
	}
	// Bare payloads (arrays, /health) do not parse as an envelope; return
	// them as-is.
	if parsed && env.Data != nil {
		return env.Data, nil
	}
	return json.RawMessage(raw), nil
}
