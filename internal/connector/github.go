package connector

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"sparrowvision/internal/identity"
)

const (
	GitHubName        = "github"
	GitHubDisplayName = "GitHub"
	GitHubBaseURL     = "https://api.github.com"
)

// GitHub reads an organization's member list. Authentication is basic auth
// with the personal access token as the password; pagination is a page
// number encoded as the cursor, terminated by a short page.
type GitHub struct {
	cfg    Config
	client *http.Client
}

// NewGitHub creates a GitHub connector. Config.OrgID is the organization
// login; Config.APISecret is the username half of the basic-auth pair.
func NewGitHub(cfg Config) *GitHub {
	return &GitHub{
		cfg:    cfg,
		client: newHTTPClient(cfg.timeout()),
	}
}

func (g *GitHub) Name() string        { return GitHubName }
func (g *GitHub) DisplayName() string { return GitHubDisplayName }

func (g *GitHub) baseURL() string {
	if g.cfg.BaseURL != "" {
		return g.cfg.BaseURL
	}
	return GitHubBaseURL
}

func (g *GitHub) checkConfig() error {
	if g.cfg.APIKey == "" {
		return fmt.Errorf("%w: missing access token", ErrMissingConfig)
	}
	if g.cfg.OrgID == "" {
		return fmt.Errorf("%w: missing organization", ErrMissingConfig)
	}
	return nil
}

func (g *GitHub) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL()+path, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.cfg.APISecret, g.cfg.APIKey)
	req.Header.Set("Accept", "application/vnd.github+json")
	return req, nil
}

func (g *GitHub) TestConnection(ctx context.Context) error {
	if err := g.checkConfig(); err != nil {
		return err
	}
	req, err := g.newRequest(ctx, "/orgs/"+g.cfg.OrgID+"/members?per_page=1")
	if err != nil {
		return err
	}
	var body []map[string]any
	return getJSON(g.client, req, &body)
}

func (g *GitHub) SyncUsers(ctx context.Context, cursor string) (*SyncResult, error) {
	if err := g.checkConfig(); err != nil {
		return nil, err
	}
	return resumePages(ctx, cursor, g.cfg.pageSize(), 0, g.fetchPage, g.transformUser), nil
}

func (g *GitHub) fetchPage(ctx context.Context, cursor string) (*page, error) {
	pageNum := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, fmt.Errorf("malformed cursor %q", cursor)
		}
		pageNum = n
	}

	path := fmt.Sprintf("/orgs/%s/members?per_page=%d&page=%d", g.cfg.OrgID, g.cfg.pageSize(), pageNum)
	req, err := g.newRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	var members []map[string]any
	if err := getJSON(g.client, req, &members); err != nil {
		return nil, err
	}

	next := ""
	if len(members) == g.cfg.pageSize() {
		next = strconv.Itoa(pageNum + 1)
	}
	return &page{Records: members, Next: next}, nil
}

// transformUser maps an org member onto the canonical shape. The members
// endpoint only exposes an email when the user has made one public; a
// member without one is excluded with a reason rather than stored under a
// blank join key.
func (g *GitHub) transformUser(raw map[string]any, now time.Time) (*identity.User, error) {
	email := stringField(raw, "email")
	if email == "" {
		login := stringField(raw, "login")
		return nil, fmt.Errorf("member %q: %w (no public email)", login, identity.ErrMissingEmail)
	}

	var groups []string
	if siteAdmin, _ := boolField(raw, "site_admin"); siteAdmin {
		groups = append(groups, "Site Admin")
	}

	u := &identity.User{
		ID:          stringField(raw, "login"),
		Email:       email,
		DisplayName: stringField(raw, "name", "login"),
		Status:      identity.StatusActive,
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
