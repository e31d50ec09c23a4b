package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sparrowvision/internal/identity"
)

// Domain errors
var (
	ErrNotFound     = errors.New("identity record not found")
	ErrInvalidEmail = errors.New("invalid email")
)

// Manager handles business logic for the identity store.
type Manager struct {
	ds *Datastore
}

// NewManager creates a new store manager.
func NewManager(ds *Datastore) *Manager {
	return &Manager{ds: ds}
}

// UpsertUsers persists a batch of canonical users for one platform. A row
// that fails to persist does not abort the batch; the count of stored rows
// and the per-row errors are both returned.
func (m *Manager) UpsertUsers(ctx context.Context, platform string, users []*identity.User) (int, []error) {
	var errs []error
	stored := 0
	for _, u := range users {
		email := strings.TrimSpace(u.Email)
		if email == "" {
			errs = append(errs, fmt.Errorf("%w for account %q", ErrInvalidEmail, u.ID))
			continue
		}
		rec := RecordFromUser(platform, u)
		rec.Email = email
		if err := m.ds.UpsertRecord(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("failed to store %s: %w", email, err))
			continue
		}
		stored++
	}
	return stored, errs
}

// GetUser retrieves one stored user by platform and email.
func (m *Manager) GetUser(ctx context.Context, platform, email string) (*identity.User, error) {
	rec, err := m.ds.GetByEmail(ctx, platform, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec.User(), nil
}

// ListUsers retrieves all stored users for one platform.
func (m *Manager) ListUsers(ctx context.Context, platform string) ([]*identity.User, error) {
	records, err := m.ds.ListByPlatform(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	users := make([]*identity.User, len(records))
	for i, rec := range records {
		users[i] = rec.User()
	}
	return users, nil
}

// HighRiskUsers retrieves stored users at or above the risk threshold.
func (m *Manager) HighRiskUsers(ctx context.Context, threshold int) ([]*identity.User, error) {
	records, err := m.ds.ListHighRisk(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list high-risk records: %w", err)
	}
	users := make([]*identity.User, len(records))
	for i, rec := range records {
		users[i] = rec.User()
	}
	return users, nil
}

// PurgePlatform removes every stored record for one platform.
func (m *Manager) PurgePlatform(ctx context.Context, platform string) (int64, error) {
	n, err := m.ds.DeleteByPlatform(ctx, platform)
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", platform, err)
	}
	return n, nil
}

// StatusCounts tallies stored records per status for one platform.
func (m *Manager) StatusCounts(ctx context.Context, platform string) (map[string]int, error) {
	counts, err := m.ds.CountByStatus(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	return counts, nil
}

// RecordRun appends one entry to the sync history.
func (m *Manager) RecordRun(ctx context.Context, run *SyncRun) error {
	if err := m.ds.InsertSyncRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// History retrieves recent sync runs, newest first. An empty platform spans
// all platforms.
func (m *Manager) History(ctx context.Context, platform string, limit int) ([]*SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	runs, err := m.ds.ListSyncRuns(ctx, platform, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}
