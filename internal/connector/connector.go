// Package connector implements the per-vendor adapters that authenticate
// against a platform API, page through its user directory, and normalize the
// raw records into the canonical identity shape.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"sparrowvision/internal/identity"
)

// Classified connection failures. Callers render the corrective hint from
// these rather than from raw transport errors.
var (
	ErrMissingConfig      = errors.New("connector configuration is incomplete")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInsufficientScope  = errors.New("insufficient permissions")
	ErrNotFound           = errors.New("resource not found")
	ErrNetwork            = errors.New("network error")
	ErrNotRegistered      = errors.New("connector not registered")
)

const (
	// DefaultPageSize is the per-page record count requested from vendors
	// that let us choose one.
	DefaultPageSize = 100

	// DefaultTimeout bounds each individual page request.
	DefaultTimeout = 30 * time.Second

	// MaxSyncRecords is the hard safety ceiling on records accumulated in a
	// single SyncUsers call. It bounds memory and runtime for misconfigured
	// or unexpectedly large organizations; callers needing more page
	// manually via the returned NextCursor.
	MaxSyncRecords = 10000
)

// Config carries everything a connector needs at construction. Connectors
// never mutate or refresh credentials; rotation is the caller's problem.
type Config struct {
	// APIKey is the primary credential: API key, bearer token, or the
	// token half of a basic-auth pair depending on the vendor.
	APIKey string

	// APISecret is the secondary credential for vendors that need one
	// (Zendesk agent email, GitHub username).
	APISecret string

	// OrgID identifies the tenant for multi-tenant APIs.
	OrgID string

	// Domain is the vendor-assigned org domain or subdomain
	// (acme.okta.com, the Zendesk subdomain, a Workspace domain).
	Domain string

	// BaseURL overrides the vendor's default API root, mainly for tests.
	BaseURL string

	PageSize int
	Timeout  time.Duration
}

func (c Config) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return DefaultPageSize
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Connector is the capability set every platform adapter implements. The
// vendor set is closed: one implementing type per platform, all registered
// in the Registry.
type Connector interface {
	// Name returns the platform identifier (e.g., "okta", "slack").
	Name() string

	// DisplayName returns the human-readable platform name.
	DisplayName() string

	// TestConnection issues one cheap authenticated request and returns nil
	// on success. Failures wrap the classified sentinel errors above.
	TestConnection(ctx context.Context) error

	// SyncUsers pages through the vendor's user directory starting at the
	// optional continuation cursor and returns the normalized records. A
	// non-nil error is returned only for configuration problems detected
	// before any network call; every runtime failure is recorded in the
	// result so already-fetched pages are never lost.
	SyncUsers(ctx context.Context, cursor string) (*SyncResult, error)
}

// SyncResult is produced once per sync invocation and never mutated after
// return. Success is true iff zero errors occurred.
type SyncResult struct {
	Success        bool             `json:"success"`
	UsersCount     int              `json:"users_count"`
	Users          []*identity.User `json:"users"`
	Errors         []string         `json:"errors"`
	SyncDuration   time.Duration    `json:"sync_duration_ms"`
	NextCursor     string           `json:"next_cursor,omitempty"`
	Pages          int              `json:"pages"`
	APICalls       int              `json:"api_calls"`
	ActiveUsers    int              `json:"active_users"`
	SuspendedUsers int              `json:"suspended_users"`
}

// Hint returns the corrective message shown to an administrator for a
// classified connection failure.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "authentication failed: check the API key or token"
	case errors.Is(err, ErrInsufficientScope):
		return "the credential is valid but lacks permission to read users"
	case errors.Is(err, ErrNotFound):
		return "the organization or endpoint was not found: check the domain and org ID"
	case errors.Is(err, ErrNetwork):
		return "could not reach the platform API: check network access and the base URL"
	case errors.Is(err, ErrMissingConfig):
		return "connector configuration is incomplete: check required credentials"
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// classifyStatus maps HTTP status codes onto the failure taxonomy.
func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusForbidden:
		return ErrInsufficientScope
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited by vendor", ErrNetwork)
	default:
		if code >= 400 {
			return fmt.Errorf("vendor returned status %d", code)
		}
		return nil
	}
}

// classifyTransport wraps client-side request failures (timeouts, refused
// connections, DNS) as network errors.
func classifyTransport(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", ErrNetwork)
	}
	return err
}

// getJSON issues the prepared request and decodes the response body into
// out. HTTP and transport failures come back classified.
func getJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return err
	}

	return decodeBody(resp, out)
}

func decodeBody(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode vendor response: %w", err)
	}
	return nil
}

// --- raw-record field helpers ---

// stringField returns the first non-empty string value among keys.
func stringField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// boolField returns the boolean at key, and whether it was present.
func boolField(raw map[string]any, key string) (bool, bool) {
	v, ok := raw[key].(bool)
	return v, ok
}

// nestedMap returns the object at key, or nil.
func nestedMap(raw map[string]any, key string) map[string]any {
	m, _ := raw[key].(map[string]any)
	return m
}

// stringList flattens a vendor list field into names. List entries may be
// bare strings or objects carrying a name-like key.
func stringList(raw map[string]any, key string, nameKeys ...string) []string {
	items, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				out = append(out, v)
			}
		case map[string]any:
			if name := stringField(v, nameKeys...); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// recordList extracts the page's record array from a decoded response body.
func recordList(body map[string]any, key string) []map[string]any {
	items, ok := body[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
