package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAzureAD_SyncUsersFollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		body := map[string]any{}
		if r.URL.Query().Get("$skiptoken") == "" {
			body["value"] = []any{
				map[string]any{"id": "g1", "mail": "ann@acme.com", "accountEnabled": true},
				map[string]any{"id": "g2", "userPrincipalName": "bob@acme.com", "accountEnabled": false},
			}
			body["@odata.nextLink"] = srv.URL + "/users?$skiptoken=page2"
		} else {
			body["value"] = []any{
				map[string]any{"id": "g3", "mail": "cid@acme.com", "accountEnabled": true},
			}
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	a := NewAzureAD(Config{APIKey: "graph-token", BaseURL: srv.URL, PageSize: 2})
	res, err := a.SyncUsers(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Success {
		t.Fatalf("expected success, errors: %v", res.Errors)
	}
	if res.UsersCount != 3 {
		t.Errorf("expected 3 users, got %d", res.UsersCount)
	}
}

func TestAzureAD_DisabledAccountCarriesHeavierWeight(t *testing.T) {
	a := NewAzureAD(Config{APIKey: "t"})
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	raw := map[string]any{
		"id":             "g2",
		"mail":           "gone@acme.com",
		"accountEnabled": false,
		"signInActivity": map[string]any{"lastSignInDateTime": "2025-05-30T00:00:00Z"},
	}

	u, err := a.transformUser(raw, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Status != "suspended" {
		t.Errorf("disabled account should map to suspended, got %q", u.Status)
	}
	// The distinct disabled signal weighs 50, not the suspended 30.
	if u.RiskScore != 50 {
		t.Errorf("expected risk 50, got %d", u.RiskScore)
	}
}

func TestAzureAD_UPNFallbackForEmail(t *testing.T) {
	a := NewAzureAD(Config{APIKey: "t"})
	now := time.Now().UTC()

	u, err := a.transformUser(map[string]any{
		"id":                "g9",
		"userPrincipalName": "sam@acme.onmicrosoft.com",
		"accountEnabled":    true,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Email != "sam@acme.onmicrosoft.com" {
		t.Errorf("expected UPN fallback, got %q", u.Email)
	}

	if _, err := a.transformUser(map[string]any{"id": "g10"}, now); err == nil {
		t.Error("expected rejection for missing email and UPN")
	}
}
