package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roomlink-io/roomlink/internal/infrastructure/config"
)

// defaultTimeout bounds each REST call when the config does not set one.
const defaultTimeout = 5 * time.Second

// maxResponseSize caps how much of a remote response is read (1MB).
const maxResponseSize = 1 << 20

// Client talks to a Firebase Realtime Database over its REST interface.
//
// The database is a hierarchical JSON tree addressed by path; each
// operation targets {database_url}{path}.json. All operations are
// best-effort with a bounded timeout: the caller receives a structured
// error and decides whether to log and move on. The in-memory mirror
// remains the source of truth for the running process.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// Connect creates a client for the configured database.
//
// No network traffic happens here; the first request is made by the
// caller (typically the engine's schema bootstrap). Use HealthCheck to
// verify reachability.
//
// Parameters:
//   - cfg: Firebase configuration from config.yaml
//
// Returns:
//   - *Client: Client ready for use
//   - error: If the database URL is missing or malformed
func Connect(cfg config.FirebaseConfig) (*Client, error) {
	url := strings.TrimRight(cfg.DatabaseURL, "/")
	if url == "" {
		return nil, ErrMissingURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("%w: %q", ErrMissingURL, cfg.DatabaseURL)
	}

	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:   url,
		authToken: cfg.AuthToken,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

// Read returns the JSON value stored at path.
//
// An absent subtree is an explicit, checkable outcome: the RTDB REST
// interface answers "null" for missing paths, which is surfaced as
// ErrAbsent rather than an empty document.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - path: Hierarchical path, e.g. "/devices/door_lock"
//
// Returns:
//   - json.RawMessage: The stored value
//   - error: ErrAbsent if nothing is stored at path, ErrRequestFailed otherwise
func (c *Client) Read(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if isNull(body) {
		return nil, fmt.Errorf("%w: %s", ErrAbsent, path)
	}
	return json.RawMessage(body), nil
}

// Overwrite replaces the entire subtree at path with value (HTTP PUT).
//
// Used only for first-run schema creation; everything after bootstrap
// goes through PartialUpdate so sibling fields written by other paths
// are never clobbered.
func (c *Client) Overwrite(ctx context.Context, path string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encoding value: %w", ErrRequestFailed, err)
	}
	_, err = c.do(ctx, http.MethodPut, path, payload)
	return err
}

// PartialUpdate merges fields into the subtree at path (HTTP PATCH).
//
// The merge is top-level only: named fields are replaced, siblings are
// untouched, and no nested merge occurs.
func (c *Client) PartialUpdate(ctx context.Context, path string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: encoding fields: %w", ErrRequestFailed, err)
	}
	_, err = c.do(ctx, http.MethodPatch, path, payload)
	return err
}

// HealthCheck verifies the database answers REST requests.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	// Shallow read of the root keeps the response small regardless of
	// how much data the database holds.
	url := c.baseURL + "/.json?shallow=true"
	if c.authToken != "" {
		url += "&auth=" + c.authToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("firebase health check: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("firebase health check: %w", err)
	}
	defer resp.Body.Close()
	//nolint:errcheck // drain for connection reuse; the status is what matters
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("firebase health check: %w: status %d", ErrRequestFailed, resp.StatusCode)
	}
	return nil
}

// do executes one REST call and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	url, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrRequestFailed, method, path, resp.StatusCode)
	}

	return data, nil
}

// endpoint builds the REST URL for a database path.
func (c *Client) endpoint(path string) (string, error) {
	if path == "" || !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	url := c.baseURL + strings.TrimRight(path, "/") + ".json"
	if c.authToken != "" {
		url += "?auth=" + c.authToken
	}
	return url, nil
}

// isNull reports whether the response body is the JSON null literal,
// which is how the RTDB represents an absent path.
func isNull(body []byte) bool {
	return string(bytes.TrimSpace(body)) == "null"
}
