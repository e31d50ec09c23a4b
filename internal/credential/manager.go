package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sparrowvision/internal/connector"
)

// Domain errors
var (
	ErrNotFound        = errors.New("credential not found")
	ErrInvalidPlatform = errors.New("invalid platform")
	ErrInvalidLabel    = errors.New("invalid credential label")
	ErrMissingSecret   = errors.New("credential has no API key")
	ErrExists          = errors.New("credential already exists for this platform")
	ErrVerifyFailed    = errors.New("connection test failed")
)

// Manager handles business logic for stored connector credentials.
type Manager struct {
	ds        *Datastore
	encryptor *Encryptor
	registry  *connector.Registry
}

// NewManager creates a new credential manager.
func NewManager(ds *Datastore, encryptor *Encryptor, registry *connector.Registry) *Manager {
	return &Manager{
		ds:        ds,
		encryptor: encryptor,
		registry:  registry,
	}
}

// StoreInput holds the input for storing a credential.
type StoreInput struct {
	Platform string
	Label    string
	Payload  Payload
	Verify   bool // If true, run the connector's connection test first
}

// Store encrypts and persists a credential for one platform.
func (m *Manager) Store(ctx context.Context, input StoreInput) (*Credential, error) {
	input.Platform = strings.TrimSpace(strings.ToLower(input.Platform))
	conn, err := m.registry.New(input.Platform, m.config(input.Platform, input.Payload))
	if err != nil {
		return nil, ErrInvalidPlatform
	}

	input.Label = strings.TrimSpace(input.Label)
	if input.Label == "" {
		return nil, ErrInvalidLabel
	}

	if strings.TrimSpace(input.Payload.APIKey) == "" {
		return nil, ErrMissingSecret
	}

	if input.Verify {
		if err := conn.TestConnection(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVerifyFailed, err)
		}
	}

	plaintext, err := json.Marshal(input.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	env, err := m.encryptor.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}

	c := &Credential{
		Platform:     input.Platform,
		Label:        input.Label,
		Ciphertext:   env.Ciphertext,
		PayloadNonce: env.PayloadNonce,
		EncryptedDEK: env.EncryptedDEK,
		DEKNonce:     env.DEKNonce,
		IsActive:     true,
	}

	if err := m.ds.Create(ctx, c); err != nil {
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	return c, nil
}

// Config retrieves and decrypts the active credential for a platform,
// returning it as a ready-to-use connector config.
func (m *Manager) Config(ctx context.Context, platform string) (connector.Config, error) {
	c, err := m.ds.GetActiveByPlatform(ctx, platform)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return connector.Config{}, ErrNotFound
		}
		return connector.Config{}, fmt.Errorf("failed to get credential: %w", err)
	}

	plaintext, err := m.encryptor.Decrypt(&Envelope{
		Ciphertext:   c.Ciphertext,
		PayloadNonce: c.PayloadNonce,
		EncryptedDEK: c.EncryptedDEK,
		DEKNonce:     c.DEKNonce,
	})
	if err != nil {
		return connector.Config{}, fmt.Errorf("failed to decrypt credential: %w", err)
	}

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return connector.Config{}, fmt.Errorf("failed to decode payload: %w", err)
	}

	return m.config(platform, payload), nil
}

// List retrieves all stored credentials in their safe response shape.
func (m *Manager) List(ctx context.Context) ([]Response, error) {
	creds, err := m.ds.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	out := make([]Response, len(creds))
	for i, c := range creds {
		out[i] = c.ToResponse()
	}
	return out, nil
}

// Activate marks a credential active.
func (m *Manager) Activate(ctx context.Context, id uuid.UUID) error {
	return m.setActive(ctx, id, true)
}

// Deactivate marks a credential inactive.
func (m *Manager) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.setActive(ctx, id, false)
}

func (m *Manager) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	rowsAffected, err := m.ds.SetActive(ctx, id, active)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a credential.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	rowsAffected, err := m.ds.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Manager) config(platform string, p Payload) connector.Config {
	return connector.Config{
		APIKey:    p.APIKey,
		APISecret: p.APISecret,
		OrgID:     p.OrgID,
		Domain:    p.Domain,
		BaseURL:   p.BaseURL,
	}
}
