package credential

import (
	"time"

	"github.com/google/uuid"
)

// Credential is a stored set of connector secrets for one platform. The
// payload (API key, secret, org id, domain) is encrypted at rest; only one
// credential per platform is active at a time.
type Credential struct {
	ID           uuid.UUID `json:"id"`
	Platform     string    `json:"platform"`
	Label        string    `json:"label"`
	Ciphertext   []byte    `json:"-"` // Never expose
	PayloadNonce []byte    `json:"-"` // Never expose
	EncryptedDEK []byte    `json:"-"` // Data Encryption Key, encrypted with KEK
	DEKNonce     []byte    `json:"-"` // Nonce for DEK encryption
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Payload is the plaintext shape of the encrypted credential material. It
// mirrors the secret half of a connector config.
type Payload struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret,omitempty"`
	OrgID     string `json:"org_id,omitempty"`
	Domain    string `json:"domain,omitempty"`
	BaseURL   string `json:"base_url,omitempty"`
}

// Response is the safe API shape (no secrets).
type Response struct {
	ID        uuid.UUID `json:"id"`
	Platform  string    `json:"platform"`
	Label     string    `json:"label"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToResponse converts a Credential to its safe response format.
func (c *Credential) ToResponse() Response {
	return Response{
		ID:        c.ID,
		Platform:  c.Platform,
		Label:     c.Label,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
