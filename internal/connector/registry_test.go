package connector

import (
	"errors"
	"testing"
)

func TestRegistry_AllPlatformsRegistered(t *testing.T) {
	r := NewRegistry()

	want := []string{"azuread", "github", "googleworkspace", "jumpcloud", "okta", "slack", "zendesk"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d platforms, got %v", len(want), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("expected %q at position %d, got %q", name, i, got[i])
		}
	}
}

func TestRegistry_New(t *testing.T) {
	r := NewRegistry()

	c, err := r.New("okta", Config{APIKey: "token", Domain: "acme.okta.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name() != "okta" {
		t.Errorf("expected okta connector, got %q", c.Name())
	}
	if c.DisplayName() != "Okta" {
		t.Errorf("unexpected display name %q", c.DisplayName())
	}
}

func TestRegistry_NewUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.New("telex", Config{})
	if !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestConnectorInterfaces(t *testing.T) {
	var _ Connector = (*JumpCloud)(nil)
	var _ Connector = (*Okta)(nil)
	var _ Connector = (*GoogleWorkspace)(nil)
	var _ Connector = (*AzureAD)(nil)
	var _ Connector = (*Slack)(nil)
	var _ Connector = (*GitHub)(nil)
	var _ Connector = (*Zendesk)(nil)
}
