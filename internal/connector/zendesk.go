package connector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sparrowvision/internal/identity"
)

const (
	ZendeskName        = "zendesk"
	ZendeskDisplayName = "Zendesk"
)

// Zendesk reads the account's user list via the Support API. Authentication
// is basic auth with "agent-email/token" as the username and the API token
// as the password; pagination follows next_page URLs.
type Zendesk struct {
	cfg    Config
	client *http.Client
}

// NewZendesk creates a Zendesk connector. Config.Domain is the subdomain
// (the "acme" of acme.zendesk.com), Config.APISecret the agent email.
func NewZendesk(cfg Config) *Zendesk {
	return &Zendesk{
		cfg:    cfg,
		client: newHTTPClient(cfg.timeout()),
	}
}

func (z *Zendesk) Name() string        { return ZendeskName }
func (z *Zendesk) DisplayName() string { return ZendeskDisplayName }

func (z *Zendesk) baseURL() string {
	if z.cfg.BaseURL != "" {
		return z.cfg.BaseURL
	}
	return "https://" + z.cfg.Domain + ".zendesk.com/api/v2"
}

func (z *Zendesk) checkConfig() error {
	if z.cfg.APIKey == "" {
		return fmt.Errorf("%w: missing API token", ErrMissingConfig)
	}
	if z.cfg.APISecret == "" {
		return fmt.Errorf("%w: missing agent email", ErrMissingConfig)
	}
	if z.cfg.Domain == "" && z.cfg.BaseURL == "" {
		return fmt.Errorf("%w: missing subdomain", ErrMissingConfig)
	}
	return nil
}

func (z *Zendesk) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(z.cfg.APISecret+"/token", z.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (z *Zendesk) TestConnection(ctx context.Context) error {
	if err := z.checkConfig(); err != nil {
		return err
	}
	req, err := z.newRequest(ctx, z.baseURL()+"/users.json?per_page=1")
	if err != nil {
		return err
	}
	var body map[string]any
	return getJSON(z.client, req, &body)
}

func (z *Zendesk) SyncUsers(ctx context.Context, cursor string) (*SyncResult, error) {
	if err := z.checkConfig(); err != nil {
		return nil, err
	}
	return resumePages(ctx, cursor, z.cfg.pageSize(), 0, z.fetchPage, z.transformUser), nil
}

func (z *Zendesk) fetchPage(ctx context.Context, cursor string) (*page, error) {
	u := cursor
	if u == "" {
		u = fmt.Sprintf("%s/users.json?per_page=%d", z.baseURL(), z.cfg.pageSize())
	}

	req, err := z.newRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := getJSON(z.client, req, &body); err != nil {
		return nil, err
	}
	return &page{
		Records: recordList(body, "users"),
		Next:    stringField(body, "next_page"),
	}, nil
}

// transformUser maps a Zendesk user onto the canonical shape. Zendesk sends
// a single combined name, split here on the first space; the role string
// (admin, agent, end-user) doubles as the group for risk scoring. Status
// policy: suspended flag → suspended; active=false → inactive; otherwise
// active.
func (z *Zendesk) transformUser(raw map[string]any, now time.Time) (*identity.User, error) {
	email := stringField(raw, "email")
	if email == "" {
		return nil, identity.ErrMissingEmail
	}

	status := identity.StatusActive
	if suspended, _ := boolField(raw, "suspended"); suspended {
		status = identity.StatusSuspended
	} else if active, ok := boolField(raw, "active"); ok && !active {
		status = identity.StatusInactive
	}

	first, last := splitName(stringField(raw, "name"))

	var groups []string
	if role := stringField(raw, "role"); role != "" {
		groups = append(groups, role)
	}
	groups = append(groups, stringList(raw, "tags")...)

	id := ""
	if v, ok := raw["id"].(float64); ok {
		id = fmt.Sprintf("%.0f", v)
	}

	u := &identity.User{
		ID:          id,
		Email:       email,
		FirstName:   first,
		LastName:    last,
		DisplayName: stringField(raw, "name"),
		Status:      status,
		LastLogin:   stringField(raw, "last_login_at"),
		CreatedAt:   stringField(raw, "created_at"),
		UpdatedAt:   stringField(raw, "updated_at"),
		Groups:      groups,
		RawData:     raw,
	}
	u.RiskScore = identity.RiskScore(now, identity.RiskSignals{
		Status:    u.Status,
		LastLogin: identity.ParseTimestamp(u.LastLogin),
		Groups:    u.Groups,
	}, identity.APIWeights)
	u.Finalize()
	return u, nil
}

// splitName splits a combined display name into first and last on the first
// whitespace run.
func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
