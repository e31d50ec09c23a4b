package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sparrowvision/internal/identity"
)

const (
	OktaName        = "okta"
	OktaDisplayName = "Okta"
)

// Okta reads the user directory via the Okta management API. Pagination is
// cursor-based: the next cursor arrives as the "after" parameter inside the
// Link rel="next" response header.
type Okta struct {
	cfg    Config
	client *http.Client
}

// NewOkta creates an Okta connector. Config.Domain is the org domain, e.g.
// "acme.okta.com".
func NewOkta(cfg Config) *Okta {
	return &Okta{
		cfg:    cfg,
		client: newHTTPClient(cfg.timeout()),
	}
}

func (o *Okta) Name() string        { return OktaName }
func (o *Okta) DisplayName() string { return OktaDisplayName }

func (o *Okta) baseURL() string {
	if o.cfg.BaseURL != "" {
		return o.cfg.BaseURL
	}
	return "https://" + o.cfg.Domain + "/api/v1"
}

func (o *Okta) checkConfig() error {
	if o.cfg.APIKey == "" {
		return fmt.Errorf("%w: missing API token", ErrMissingConfig)
	}
	if o.cfg.Domain == "" && o.cfg.BaseURL == "" {
		return fmt.Errorf("%w: missing org domain", ErrMissingConfig)
	}
	return nil
}

func (o *Okta) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "SSWS "+o.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (o *Okta) TestConnection(ctx context.Context) error {
	if err := o.checkConfig(); err != nil {
		return err
	}
	req, err := o.newRequest(ctx, o.baseURL()+"/users?limit=1")
	if err != nil {
		return err
	}
	var body []map[string]any
	return getJSON(o.client, req, &body)
}

func (o *Okta) SyncUsers(ctx context.Context, cursor string) (*SyncResult, error) {
	if err := o.checkConfig(); err != nil {
		return nil, err
	}
	return resumePages(ctx, cursor, o.cfg.pageSize(), 0, o.fetchPage, o.transformUser), nil
}

func (o *Okta) fetchPage(ctx context.Context, cursor string) (*page, error) {
	u := fmt.Sprintf("%s/users?limit=%d", o.baseURL(), o.cfg.pageSize())
	if cursor != "" {
		u += "&after=" + url.QueryEscape(cursor)
	}

	req, err := o.newRequest(ctx, u)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var users []map[string]any
	if err := decodeBody(resp, &users); err != nil {
		return nil, err
	}

	return &page{
		Records: users,
		Next:    nextCursorFromLink(resp.Header.Values("Link")),
	}, nil
}

// nextCursorFromLink extracts the "after" parameter from a Link header's
// rel="next" entry. Okta always sends a rel="self" entry alongside it.
func nextCursorFromLink(links []string) string {
	for _, header := range links {
		for _, link := range strings.Split(header, ",") {
			if !strings.Contains(link, `rel="next"`) {
				continue
			}
			start := strings.Index(link, "<")
			end := strings.Index(link, ">")
			if start < 0 || end <= start {
				continue
			}
			parsed, err := url.Parse(link[start+1 : end])
			if err != nil {
				continue
			}
			if after := parsed.Query().Get("after"); after != "" {
				return after
			}
		}
	}
	return ""
}

// transformUser maps an Okta user onto the canonical shape. Okta statuses
// (ACTIVE, PROVISIONED, STAGED, SUSPENDED, DEPROVISIONED, LOCKED_OUT, ...)
// go through the shared lexical table; anything the table does not know
// resolves to inactive.
func (o *Okta) transformUser(raw map[string]any, now time.Time) (*identity.User, error) {
	profile := nestedMap(raw, "profile")
	if profile == nil {
		profile = map[string]any{}
	}

	email := stringField(profile, "email", "login")
	if email == "" {
		return nil, identity.ErrMissingEmail
	}

	u := &identity.User{
		ID:          stringField(raw, "id"),
		Email:       email,
		FirstName:   stringField(profile, "firstName"),
		LastName:    stringField(profile, "lastName"),
		DisplayName: stringField(profile, "displayName"),
		Status:      identity.NormalizeStatus(stringField(raw, "status")),
		LastLogin:   stringField(raw, "lastLogin"),
		CreatedAt:   stringField(raw, "created"),
		UpdatedAt:   stringField(raw, "lastUpdated"),
		Department:  stringField(profile, "department"),
		JobTitle:    stringField(profile, "title"),
		Manager:     stringField(profile, "manager"),
		Groups:      stringList(profile, "groups"),
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
