package identity

import (
	"errors"
	"strings"
)

// Status is the canonical account status. Every ingestion path resolves
// vendor-specific statuses down to exactly one of these four values.
type Status string

const (
	StatusActive        Status = "active"
	StatusInactive      Status = "inactive"
	StatusSuspended     Status = "suspended"
	StatusDeprovisioned Status = "deprovisioned"
)

// Domain errors
var (
	ErrMissingEmail = errors.New("user record has no email")
)

// User is the normalized, vendor-agnostic user record that every connector
// and the CSV pipeline converge on.
type User struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	FirstName   string         `json:"first_name,omitempty"`
	LastName    string         `json:"last_name,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Status      Status         `json:"status"`
	LastLogin   string         `json:"last_login,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
	Department  string         `json:"department,omitempty"`
	JobTitle    string         `json:"job_title,omitempty"`
	Manager     string         `json:"manager,omitempty"`
	Groups      []string       `json:"groups,omitempty"`
	Permissions []string       `json:"permissions,omitempty"`
	RiskScore   int            `json:"risk_score"`
	RawData     map[string]any `json:"raw_data,omitempty"`
}

// Finalize applies the display-name fallback: "FirstName LastName" trimmed,
// then the email when both names are empty.
func (u *User) Finalize() {
	if u.DisplayName != "" {
		return
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Email
	}
	u.DisplayName = name
}

// Validate checks the mandatory fields. A record without an email cannot be
// joined against known identities and must be rejected, never stored blank.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return ErrMissingEmail
	}
	return nil
}

// statusTable maps lexical vendor status values onto the canonical enum.
// Keys are lowercased. Anything not present maps to inactive by policy so a
// fifth status value can never leak downstream.
var statusTable = map[string]Status{
	"active":        StatusActive,
	"enabled":       StatusActive,
	"activated":     StatusActive,
	"ok":            StatusActive,
	"member":        StatusActive,
	"provisioned":   StatusActive,
	"inactive":      StatusInactive,
	"disabled":      StatusInactive,
	"staged":        StatusInactive,
	"pending":       StatusInactive,
	"invited":       StatusInactive,
	"suspended":     StatusSuspended,
	"blocked":       StatusSuspended,
	"locked":        StatusSuspended,
	"locked_out":    StatusSuspended,
	"deprovisioned": StatusDeprovisioned,
	"deleted":       StatusDeprovisioned,
	"deactivated":   StatusDeprovisioned,
	"terminated":    StatusDeprovisioned,
	"exit":          StatusDeprovisioned,
}

// NormalizeStatus resolves an arbitrary vendor status string to a canonical
// Status. Unrecognized or empty values map to inactive by explicit policy.
func NormalizeStatus(raw string) Status {
	s, ok := statusTable[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return StatusInactive
	}
	return s
}

// StatusFromEnabled maps an "enabled"-like boolean flag to a status when the
// vendor exposes no explicit status value.
func StatusFromEnabled(enabled bool) Status {
	if enabled {
		return StatusActive
	}
	return StatusSuspended
}
