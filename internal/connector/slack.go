package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"sparrowvision/internal/identity"
)

const (
	SlackName        = "slack"
	SlackDisplayName = "Slack"
	SlackBaseURL     = "https://slack.com/api"

	// slackPageDelay spaces page requests out per Slack's documented
	// rate-limit tier for users.list.
	slackPageDelay = 500 * time.Millisecond
)

// Slack reads the workspace member list via the Web API. Pagination is
// cursor-based through response_metadata.next_cursor.
type Slack struct {
	cfg    Config
	client *http.Client
}

// NewSlack creates a Slack connector.
func NewSlack(cfg Config) *Slack {
	return &Slack{
		cfg:    cfg,
		client: newHTTPClient(cfg.timeout()),
	}
}

func (s *Slack) Name() string        { return SlackName }
func (s *Slack) DisplayName() string { return SlackDisplayName }

func (s *Slack) baseURL() string {
	if s.cfg.BaseURL != "" {
		return s.cfg.BaseURL
	}
	return SlackBaseURL
}

func (s *Slack) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL()+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	return req, nil
}

// slackErr maps the Web API's in-band error strings onto the failure
// taxonomy; Slack returns HTTP 200 with ok=false for most failures.
func slackErr(body map[string]any) error {
	if ok, _ := boolField(body, "ok"); ok {
		return nil
	}
	code := stringField(body, "error")
	switch code {
	case "invalid_auth", "not_authed", "token_revoked", "token_expired":
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, code)
	case "missing_scope", "no_permission":
		return fmt.Errorf("%w: %s", ErrInsufficientScope, code)
	case "ratelimited":
		return fmt.Errorf("%w: %s", ErrNetwork, code)
	default:
		return fmt.Errorf("slack API error: %s", code)
	}
}

func (s *Slack) TestConnection(ctx context.Context) error {
	if s.cfg.APIKey == "" {
		return fmt.Errorf("%w: missing bot token", ErrMissingConfig)
	}
	req, err := s.newRequest(ctx, "/auth.test")
	if err != nil {
		return err
	}
	var body map[string]any
	if err := getJSON(s.client, req, &body); err != nil {
		return err
	}
	return slackErr(body)
}

func (s *Slack) SyncUsers(ctx context.Context, cursor string) (*SyncResult, error) {
	if s.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing bot token", ErrMissingConfig)
	}
	return resumePages(ctx, cursor, s.cfg.pageSize(), slackPageDelay, s.fetchPage, s.transformUser), nil
}

func (s *Slack) fetchPage(ctx context.Context, cursor string) (*page, error) {
	path := fmt.Sprintf("/users.list?limit=%d", s.cfg.pageSize())
	if cursor != "" {
		path += "&cursor=" + url.QueryEscape(cursor)
	}

	req, err := s.newRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := getJSON(s.client, req, &body); err != nil {
		return nil, err
	}
	if err := slackErr(body); err != nil {
		return nil, err
	}

	next := ""
	if meta := nestedMap(body, "response_metadata"); meta != nil {
		next = stringField(meta, "next_cursor")
	}
	return &page{Records: recordList(body, "members"), Next: next}, nil
}

// transformUser maps a Slack member onto the canonical shape. Status
// policy: deleted → deprovisioned; bot accounts → inactive; otherwise
// active. Admin/owner flags surface as role names for the risk scorer.
func (s *Slack) transformUser(raw map[string]any, now time.Time) (*identity.User, error) {
	profile := nestedMap(raw, "profile")
	if profile == nil {
		profile = map[string]any{}
	}

	email := stringField(profile, "email")
	if email == "" {
		return nil, identity.ErrMissingEmail
	}

	status := identity.StatusActive
	if deleted, _ := boolField(raw, "deleted"); deleted {
		status = identity.StatusDeprovisioned
	} else if isBot, _ := boolField(raw, "is_bot"); isBot {
		status = identity.StatusInactive
	}

	var groups []string
	if isOwner, _ := boolField(raw, "is_owner"); isOwner {
		groups = append(groups, "Workspace Owner")
	}
	if isAdmin, _ := boolField(raw, "is_admin"); isAdmin {
		groups = append(groups, "Workspace Admin")
	}
	if restricted, _ := boolField(raw, "is_restricted"); restricted {
		groups = append(groups, "Guest")
	}

	u := &identity.User{
		ID:          stringField(raw, "id"),
		Email:       email,
		FirstName:   stringField(profile, "first_name"),
		LastName:    stringField(profile, "last_name"),
		DisplayName: stringField(profile, "display_name", "real_name"),
		Status:      status,
		JobTitle:    stringField(profile, "title"),
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
