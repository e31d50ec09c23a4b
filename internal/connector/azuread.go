package connector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sparrowvision/internal/identity"
)

const (
	AzureADName        = "azuread"
	AzureADDisplayName = "Microsoft Entra ID"
	AzureADBaseURL     = "https://graph.microsoft.com/v1.0"
)

const azureSelectFields = "id,mail,userPrincipalName,givenName,surname,displayName," +
	"accountEnabled,department,jobTitle,createdDateTime,signInActivity"

// AzureAD reads the directory via Microsoft Graph. Pagination follows the
// @odata.nextLink convention: the cursor is the full continuation URL.
type AzureAD struct {
	cfg    Config
	client *http.Client
}

// NewAzureAD creates a Microsoft Entra ID (Azure AD) connector.
func NewAzureAD(cfg Config) *AzureAD {
	return &AzureAD{
		cfg:    cfg,
		client: newHTTPClient(cfg.timeout()),
	}
}

func (a *AzureAD) Name() string        { return AzureADName }
func (a *AzureAD) DisplayName() string { return AzureADDisplayName }

func (a *AzureAD) baseURL() string {
	if a.cfg.BaseURL != "" {
		return a.cfg.BaseURL
	}
	return AzureADBaseURL
}

func (a *AzureAD) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (a *AzureAD) TestConnection(ctx context.Context) error {
	if a.cfg.APIKey == "" {
		return fmt.Errorf("%w: missing access token", ErrMissingConfig)
	}
	req, err := a.newRequest(ctx, a.baseURL()+"/users?$top=1")
	if err != nil {
		return err
	}
	var body map[string]any
	return getJSON(a.client, req, &body)
}

func (a *AzureAD) SyncUsers(ctx context.Context, cursor string) (*SyncResult, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing access token", ErrMissingConfig)
	}
	return resumePages(ctx, cursor, a.cfg.pageSize(), 0, a.fetchPage, a.transformUser), nil
}

func (a *AzureAD) fetchPage(ctx context.Context, cursor string) (*page, error) {
	u := cursor
	if u == "" {
		u = fmt.Sprintf("%s/users?$top=%d&$select=%s", a.baseURL(), a.cfg.pageSize(), azureSelectFields)
	}

	req, err := a.newRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := getJSON(a.client, req, &body); err != nil {
		return nil, err
	}
	return &page{
		Records: recordList(body, "value"),
		Next:    stringField(body, "@odata.nextLink"),
	}, nil
}

// transformUser maps a Graph user onto the canonical shape. Graph exposes a
// distinct accountEnabled flag rather than a status string; a disabled
// account maps to suspended and carries the heavier "disabled" risk weight.
func (a *AzureAD) transformUser(raw map[string]any, now time.Time) (*identity.User, error) {
	email := stringField(raw, "mail", "userPrincipalName")
	if email == "" {
		return nil, identity.ErrMissingEmail
	}

	enabled, hasFlag := boolField(raw, "accountEnabled")
	disabled := hasFlag && !enabled

	status := identity.StatusActive
	if disabled {
		status = identity.StatusSuspended
	}

	lastLogin := ""
	if activity := nestedMap(raw, "signInActivity"); activity != nil {
		lastLogin = stringField(activity, "lastSignInDateTime")
	}

	u := &identity.User{
		ID:          stringField(raw, "id"),
		Email:       email,
		FirstName:   stringField(raw, "givenName"),
		LastName:    stringField(raw, "surname"),
		DisplayName: stringField(raw, "displayName"),
		Status:      status,
		LastLogin:   lastLogin,
		CreatedAt:   stringField(raw, "createdDateTime"),
		Department:  stringField(raw, "department"),
		JobTitle:    stringField(raw, "jobTitle"),
		RawData:     raw,
	}
	u.RiskScore = identity.RiskScore(now, identity.RiskSignals{
		Status:    u.Status,
		Disabled:  disabled,
		LastLogin: identity.ParseTimestamp(u.LastLogin),
		Groups:    u.Groups,
	}, identity.APIWeights)
	u.Finalize()
	return u, nil
}
