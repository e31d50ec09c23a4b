package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DBTX is the interface for database operations.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Datastore handles database operations for identity records and sync runs.
type Datastore struct {
	db DBTX
}

// NewDatastore creates a new identity datastore.
func NewDatastore(db DBTX) *Datastore {
	return &Datastore{db: db}
}

const recordColumns = `id, platform, external_id, email, first_name, last_name,
		display_name, status, department, job_title, manager, groups, permissions,
		risk_score, last_login, last_synced_at, created_at, updated_at`

// UpsertRecord creates or updates one identity record. Conflict resolution
// is by (platform, email); when the record carries a vendor id, a row whose
// email changed upstream is realigned first so the upsert updates it in
// place instead of creating a sibling.
func (ds *Datastore) UpsertRecord(ctx context.Context, rec *Record) error {
	now := time.Now()

	if rec.ExternalID != "" {
		if err := ds.realignEmail(ctx, rec); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO identity_records (id, platform, external_id, email, first_name,
			last_name, display_name, status, department, job_title, manager,
			groups, permissions, risk_score, last_login, last_synced_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (platform, email)
		DO UPDATE SET external_id = $3, first_name = $5, last_name = $6,
			display_name = $7, status = $8, department = $9, job_title = $10,
			manager = $11, groups = $12, permissions = $13, risk_score = $14,
			last_login = $15, last_synced_at = $16, updated_at = $18
		RETURNING id, created_at, updated_at`

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.LastSyncedAt = now

	return ds.db.QueryRowContext(ctx, query,
		rec.ID, rec.Platform, rec.ExternalID, rec.Email, rec.FirstName,
		rec.LastName, rec.DisplayName, rec.Status, rec.Department, rec.JobTitle,
		rec.Manager, marshalList(rec.Groups), marshalList(rec.Permissions),
		rec.RiskScore, rec.LastLogin, rec.LastSyncedAt, now, now,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// realignEmail moves a row matched by (platform, external_id) onto the
// record's current email. Skipped when another row already holds that email;
// the email-keyed upsert then resolves the conflict as usual.
func (ds *Datastore) realignEmail(ctx context.Context, rec *Record) error {
	query := `
		UPDATE identity_records SET email = $3
		WHERE platform = $1 AND external_id = $2 AND email <> $3
			AND NOT EXISTS (
				SELECT 1 FROM identity_records WHERE platform = $1 AND email = $3
			)`

	_, err := ds.db.ExecContext(ctx, query, rec.Platform, rec.ExternalID, rec.Email)
	return err
}

// GetByEmail retrieves one identity record by platform and email.
func (ds *Datastore) GetByEmail(ctx context.Context, platform, email string) (*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM identity_records WHERE platform = $1 AND email = $2`

	return scanRecord(ds.db.QueryRowContext(ctx, query, platform, email))
}

// ListByPlatform retrieves all identity records for one platform, highest
// risk first.
func (ds *Datastore) ListByPlatform(ctx context.Context, platform string) ([]*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM identity_records WHERE platform = $1
		ORDER BY risk_score DESC, email`

	rows, err := ds.db.QueryContext(ctx, query, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListHighRisk retrieves records at or above the risk threshold across all
// platforms.
func (ds *Datastore) ListHighRisk(ctx context.Context, threshold int) ([]*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM identity_records WHERE risk_score >= $1
		ORDER BY risk_score DESC, email`

	rows, err := ds.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// DeleteByPlatform removes all records for one platform.
func (ds *Datastore) DeleteByPlatform(ctx context.Context, platform string) (int64, error) {
	result, err := ds.db.ExecContext(ctx, `DELETE FROM identity_records WHERE platform = $1`, platform)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountByStatus tallies records per status for one platform.
func (ds *Datastore) CountByStatus(ctx context.Context, platform string) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*) FROM identity_records
		WHERE platform = $1 GROUP BY status`

	rows, err := ds.db.QueryContext(ctx, query, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// InsertSyncRun appends one row to the sync history.
func (ds *Datastore) InsertSyncRun(ctx context.Context, run *SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, platform, success, users_count, skipped_count,
			active_users, suspended_users, api_calls, next_cursor, errors,
			duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	return ds.db.QueryRowContext(ctx, query,
		run.ID, run.Platform, run.Success, run.UsersCount, run.SkippedCount,
		run.ActiveUsers, run.SuspendedUsers, run.APICalls, run.NextCursor,
		marshalList(run.Errors), run.Duration.Milliseconds(), run.StartedAt,
	).Scan(&run.ID)
}

// ListSyncRuns retrieves the most recent sync runs for one platform, newest
// first. A platform of "" lists runs across all platforms.
func (ds *Datastore) ListSyncRuns(ctx context.Context, platform string, limit int) ([]*SyncRun, error) {
	query := `
		SELECT id, platform, success, users_count, skipped_count, active_users,
			suspended_users, api_calls, next_cursor, errors, duration_ms, started_at
		FROM sync_runs
		WHERE ($1 = '' OR platform = $1)
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := ds.db.QueryContext(ctx, query, platform, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*SyncRun
	for rows.Next() {
		run := &SyncRun{}
		var errList string
		var durationMS int64
		if err := rows.Scan(
			&run.ID, &run.Platform, &run.Success, &run.UsersCount, &run.SkippedCount,
			&run.ActiveUsers, &run.SuspendedUsers, &run.APICalls, &run.NextCursor,
			&errList, &durationMS, &run.StartedAt,
		); err != nil {
			return nil, err
		}
		run.Errors = unmarshalList(errList)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRecord(row *sql.Row) (*Record, error) {
	rec := &Record{}
	var groups, permissions string
	err := row.Scan(
		&rec.ID, &rec.Platform, &rec.ExternalID, &rec.Email, &rec.FirstName,
		&rec.LastName, &rec.DisplayName, &rec.Status, &rec.Department,
		&rec.JobTitle, &rec.Manager, &groups, &permissions, &rec.RiskScore,
		&rec.LastLogin, &rec.LastSyncedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Groups = unmarshalList(groups)
	rec.Permissions = unmarshalList(permissions)
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		rec := &Record{}
		var groups, permissions string
		if err := rows.Scan(
			&rec.ID, &rec.Platform, &rec.ExternalID, &rec.Email, &rec.FirstName,
			&rec.LastName, &rec.DisplayName, &rec.Status, &rec.Department,
			&rec.JobTitle, &rec.Manager, &groups, &permissions, &rec.RiskScore,
			&rec.LastLogin, &rec.LastSyncedAt, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rec.Groups = unmarshalList(groups)
		rec.Permissions = unmarshalList(permissions)
		records = append(records, rec)
	}
	return records, rows.Err()
}
