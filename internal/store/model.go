package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"sparrowvision/internal/identity"
)

// Record is the persisted form of a canonical user. One row exists per
// (platform, email) pair; re-syncing the same account updates the row in
// place. Groups and permissions are stored as JSON text columns.
type Record struct {
	ID           uuid.UUID `json:"id"`
	Platform     string    `json:"platform"`
	ExternalID   string    `json:"external_id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	Status       string    `json:"status"`
	Department   string    `json:"department,omitempty"`
	JobTitle     string    `json:"job_title,omitempty"`
	Manager      string    `json:"manager,omitempty"`
	Groups       []string  `json:"groups,omitempty"`
	Permissions  []string  `json:"permissions,omitempty"`
	RiskScore    int       `json:"risk_score"`
	LastLogin    string    `json:"last_login,omitempty"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SyncRun is one row of the sync history, written once per sync or CSV
// import regardless of outcome. Partial runs keep their tallies.
type SyncRun struct {
	ID             uuid.UUID     `json:"id"`
	Platform       string        `json:"platform"`
	Success        bool          `json:"success"`
	UsersCount     int           `json:"users_count"`
	SkippedCount   int           `json:"skipped_count"`
	ActiveUsers    int           `json:"active_users"`
	SuspendedUsers int           `json:"suspended_users"`
	APICalls       int           `json:"api_calls"`
	NextCursor     string        `json:"next_cursor,omitempty"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration_ms"`
	StartedAt      time.Time     `json:"started_at"`
}

// RecordFromUser converts a canonical user into its persisted form.
func RecordFromUser(platform string, u *identity.User) *Record {
	return &Record{
		Platform:    platform,
		ExternalID:  u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DisplayName: u.DisplayName,
		Status:      string(u.Status),
		Department:  u.Department,
		JobTitle:    u.JobTitle,
		Manager:     u.Manager,
		Groups:      u.Groups,
		Permissions: u.Permissions,
		RiskScore:   u.RiskScore,
		LastLogin:   u.LastLogin,
	}
}

// User converts a persisted record back into the canonical shape.
func (r *Record) User() *identity.User {
	return &identity.User{
		ID:          r.ExternalID,
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DisplayName: r.DisplayName,
		Status:      identity.Status(r.Status),
		Department:  r.Department,
		JobTitle:    r.JobTitle,
		Manager:     r.Manager,
		Groups:      r.Groups,
		Permissions: r.Permissions,
		RiskScore:   r.RiskScore,
		LastLogin:   r.LastLogin,
	}
}

// marshalList renders a string slice as a JSON text column value. A nil
// slice stores as an empty array so scans never see SQL NULL.
func marshalList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}
