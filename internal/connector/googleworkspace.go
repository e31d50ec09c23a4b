package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"sparrowvision/internal/identity"
)

const (
	GoogleWorkspaceName        = "googleworkspace"
	GoogleWorkspaceDisplayName = "Google Workspace"
	GoogleWorkspaceBaseURL     = "https://admin.googleapis.com/admin/directory/v1"
)

// GoogleWorkspace reads the user directory via the Admin SDK Directory API.
// Authentication is an OAuth2 access token (Config.APIKey) carried by an
// oauth2 transport; pagination uses pageToken/nextPageToken.
type GoogleWorkspace struct {
	cfg    Config
	client *http.Client
}

// NewGoogleWorkspace creates a Google Workspace connector.
func NewGoogleWorkspace(cfg Config) *GoogleWorkspace {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey})
	client := oauth2.NewClient(context.Background(), src)
	client.Timeout = cfg.timeout()

	return &GoogleWorkspace{
		cfg:    cfg,
		client: client,
	}
}

func (g *GoogleWorkspace) Name() string        { return GoogleWorkspaceName }
func (g *GoogleWorkspace) DisplayName() string { return GoogleWorkspaceDisplayName }

func (g *GoogleWorkspace) baseURL() string {
	if g.cfg.BaseURL != "" {
		return g.cfg.BaseURL
	}
	return GoogleWorkspaceBaseURL
}

func (g *GoogleWorkspace) usersURL(maxResults int, pageToken string) string {
	q := url.Values{}
	q.Set("maxResults", fmt.Sprintf("%d", maxResults))
	if g.cfg.Domain != "" {
		q.Set("domain", g.cfg.Domain)
	} else {
		q.Set("customer", "my_customer")
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	return g.baseURL() + "/users?" + q.Encode()
}

func (g *GoogleWorkspace) TestConnection(ctx context.Context) error {
	if g.cfg.APIKey == "" {
		return fmt.Errorf("%w: missing access token", ErrMissingConfig)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.usersURL(1, ""), nil)
	if err != nil {
		return err
	}
	var body map[string]any
	return getJSON(g.client, req, &body)
}

func (g *GoogleWorkspace) SyncUsers(ctx context.Context, cursor string) (*SyncResult, error) {
	if g.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing access token", ErrMissingConfig)
	}
	return resumePages(ctx, cursor, g.cfg.pageSize(), 0, g.fetchPage, g.transformUser), nil
}

func (g *GoogleWorkspace) fetchPage(ctx context.Context, cursor string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.usersURL(g.cfg.pageSize(), cursor), nil)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := getJSON(g.client, req, &body); err != nil {
		return nil, err
	}
	return &page{
		Records: recordList(body, "users"),
		Next:    stringField(body, "nextPageToken"),
	}, nil
}

// transformUser maps a Directory API user onto the canonical shape. Status
// policy: suspended flag → suspended; archived → deprovisioned; otherwise
// active. Super-admin and delegated-admin flags surface as role names so
// the risk scorer sees them.
func (g *GoogleWorkspace) transformUser(raw map[string]any, now time.Time) (*identity.User, error) {
	email := stringField(raw, "primaryEmail", "email")
	if email == "" {
		return nil, identity.ErrMissingEmail
	}

	status := identity.StatusActive
	if suspended, _ := boolField(raw, "suspended"); suspended {
		status = identity.StatusSuspended
	} else if archived, _ := boolField(raw, "archived"); archived {
		status = identity.StatusDeprovisioned
	}

	var groups []string
	if isAdmin, _ := boolField(raw, "isAdmin"); isAdmin {
		groups = append(groups, "Super Admin")
	}
	if delegated, _ := boolField(raw, "isDelegatedAdmin"); delegated {
		groups = append(groups, "Delegated Admin")
	}

	name := nestedMap(raw, "name")
	if name == nil {
		name = map[string]any{}
	}

	u := &identity.User{
		ID:          stringField(raw, "id"),
		Email:       email,
		FirstName:   stringField(name, "givenName"),
		LastName:    stringField(name, "familyName"),
		DisplayName: stringField(name, "fullName"),
		Status:      status,
		LastLogin:   stringField(raw, "lastLoginTime"),
		CreatedAt:   stringField(raw, "creationTime"),
		Department:  stringField(raw, "orgUnitPath"),
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
