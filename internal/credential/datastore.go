package credential

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DBTX is the interface for database operations (supports both *sql.DB and *sql.Tx).
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Datastore handles database operations for connector credentials.
type Datastore struct {
	db DBTX
}

// NewDatastore creates a new credential datastore.
func NewDatastore(db DBTX) *Datastore {
	return &Datastore{db: db}
}

// Create inserts a new credential.
func (ds *Datastore) Create(ctx context.Context, c *Credential) error {
	c.ID = uuid.New()
	now := time.Now()

	query := `
		INSERT INTO connector_credentials (
			id, platform, label, ciphertext, payload_nonce,
			encrypted_dek, dek_nonce, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	return ds.db.QueryRowContext(ctx, query,
		c.ID, c.Platform, c.Label,
		c.Ciphertext, c.PayloadNonce, c.EncryptedDEK, c.DEKNonce,
		c.IsActive, now, now,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// GetByID retrieves a credential by ID.
func (ds *Datastore) GetByID(ctx context.Context, id uuid.UUID) (*Credential, error) {
	query := `
		SELECT id, platform, label, ciphertext, payload_nonce,
		       encrypted_dek, dek_nonce, is_active, created_at, updated_at
		FROM connector_credentials WHERE id = $1`

	c := &Credential{}
	err := ds.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Platform, &c.Label,
		&c.Ciphertext, &c.PayloadNonce, &c.EncryptedDEK, &c.DEKNonce,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetActiveByPlatform retrieves the active credential for one platform.
func (ds *Datastore) GetActiveByPlatform(ctx context.Context, platform string) (*Credential, error) {
	query := `
		SELECT id, platform, label, ciphertext, payload_nonce,
		       encrypted_dek, dek_nonce, is_active, created_at, updated_at
		FROM connector_credentials
		WHERE platform = $1 AND is_active = true
		LIMIT 1`

	c := &Credential{}
	err := ds.db.QueryRowContext(ctx, query, platform).Scan(
		&c.ID, &c.Platform, &c.Label,
		&c.Ciphertext, &c.PayloadNonce, &c.EncryptedDEK, &c.DEKNonce,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List retrieves all stored credentials.
func (ds *Datastore) List(ctx context.Context) ([]*Credential, error) {
	query := `
		SELECT id, platform, label, ciphertext, payload_nonce,
		       encrypted_dek, dek_nonce, is_active, created_at, updated_at
		FROM connector_credentials
		ORDER BY platform, created_at`

	rows, err := ds.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		c := &Credential{}
		if err := rows.Scan(
			&c.ID, &c.Platform, &c.Label,
			&c.Ciphertext, &c.PayloadNonce, &c.EncryptedDEK, &c.DEKNonce,
			&c.IsActive, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// SetActive updates the active flag for a credential.
func (ds *Datastore) SetActive(ctx context.Context, id uuid.UUID, active bool) (int64, error) {
	query := `UPDATE connector_credentials SET is_active = $2, updated_at = $3 WHERE id = $1`
	result, err := ds.db.ExecContext(ctx, query, id, active, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes a credential.
func (ds *Datastore) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := ds.db.ExecContext(ctx, `DELETE FROM connector_credentials WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
