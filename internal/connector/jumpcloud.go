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
	JumpCloudName        = "jumpcloud"
	JumpCloudDisplayName = "JumpCloud"
	JumpCloudBaseURL     = "https://console.jumpcloud.com/api"
)

// JumpCloud reads the system-user directory via the JumpCloud admin API.
// Pagination is skip/limit; the opaque cursor encodes the skip offset.
type JumpCloud struct {
	cfg    Config
	client *http.Client
}

// NewJumpCloud creates a JumpCloud connector.
func NewJumpCloud(cfg Config) *JumpCloud {
	return &JumpCloud{
		cfg:    cfg,
		client: newHTTPClient(cfg.timeout()),
	}
}

func (j *JumpCloud) Name() string        { return JumpCloudName }
func (j *JumpCloud) DisplayName() string { return JumpCloudDisplayName }

func (j *JumpCloud) baseURL() string {
	if j.cfg.BaseURL != "" {
		return j.cfg.BaseURL
	}
	return JumpCloudBaseURL
}

func (j *JumpCloud) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.baseURL()+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", j.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if j.cfg.OrgID != "" {
		req.Header.Set("x-org-id", j.cfg.OrgID)
	}
	return req, nil
}

// TestConnection requests a single system user.
func (j *JumpCloud) TestConnection(ctx context.Context) error {
	if j.cfg.APIKey == "" {
		return fmt.Errorf("%w: missing API key", ErrMissingConfig)
	}
	req, err := j.newRequest(ctx, "/systemusers?limit=1")
	if err != nil {
		return err
	}
	var body map[string]any
	return getJSON(j.client, req, &body)
}

func (j *JumpCloud) SyncUsers(ctx context.Context, cursor string) (*SyncResult, error) {
	if j.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrMissingConfig)
	}
	return resumePages(ctx, cursor, j.cfg.pageSize(), 0, j.fetchPage, j.transformUser), nil
}

func (j *JumpCloud) fetchPage(ctx context.Context, cursor string) (*page, error) {
	skip := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, fmt.Errorf("malformed cursor %q", cursor)
		}
		skip = n
	}

	req, err := j.newRequest(ctx, fmt.Sprintf("/systemusers?limit=%d&skip=%d", j.cfg.pageSize(), skip))
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := getJSON(j.client, req, &body); err != nil {
		return nil, err
	}

	records := recordList(body, "results")
	next := ""
	if len(records) == j.cfg.pageSize() {
		next = strconv.Itoa(skip + len(records))
	}
	return &page{Records: records, Next: next}, nil
}

// transformUser maps a JumpCloud system user onto the canonical shape.
// Status policy: suspended flag → suspended; an account never activated →
// inactive; otherwise active.
func (j *JumpCloud) transformUser(raw map[string]any, now time.Time) (*identity.User, error) {
	email := stringField(raw, "email")
	if email == "" {
		return nil, identity.ErrMissingEmail
	}

	status := identity.StatusActive
	if suspended, _ := boolField(raw, "suspended"); suspended {
		status = identity.StatusSuspended
	} else if activated, ok := boolField(raw, "activated"); ok && !activated {
		status = identity.StatusInactive
	}

	groups := stringList(raw, "tags", "name")

	u := &identity.User{
		ID:          stringField(raw, "_id", "id"),
		Email:       email,
		FirstName:   stringField(raw, "firstname", "firstName"),
		LastName:    stringField(raw, "lastname", "lastName"),
		DisplayName: stringField(raw, "displayname", "displayName"),
		Status:      status,
		LastLogin:   stringField(raw, "lastLogin", "last_login"),
		CreatedAt:   stringField(raw, "created"),
		UpdatedAt:   stringField(raw, "updated"),
		Department:  stringField(raw, "department"),
		JobTitle:    stringField(raw, "jobTitle"),
		Manager:     stringField(raw, "manager"),
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
