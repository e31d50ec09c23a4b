package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Encryptor handles envelope encryption for stored connector credentials.
// Uses AES-256-GCM for both KEK→DEK and DEK→payload encryption.
type Encryptor struct {
	kek []byte // Key Encryption Key (from ENCRYPTION_KEY env var)
}

// NewEncryptor creates a new encryptor with the given Key Encryption Key.
// KEK must be exactly 32 bytes (256 bits).
func NewEncryptor(kek []byte) (*Encryptor, error) {
	if len(kek) != 32 {
		return nil, errors.New("KEK must be exactly 32 bytes")
	}
	return &Encryptor{kek: kek}, nil
}

// Envelope holds the encrypted components of one credential payload.
type Envelope struct {
	Ciphertext   []byte // The credential payload, encrypted with DEK
	PayloadNonce []byte // Nonce used for encrypting the payload
	EncryptedDEK []byte // The DEK, encrypted with KEK
	DEKNonce     []byte // Nonce used for encrypting the DEK
}

// Encrypt seals a credential payload with a fresh per-credential DEK, then
// seals the DEK under the KEK.
func (e *Encryptor) Encrypt(plaintext []byte) (*Envelope, error) {
	dek := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, fmt.Errorf("failed to generate DEK: %w", err)
	}

	ciphertext, payloadNonce, err := e.sealWithKey(dek, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}

	encryptedDEK, dekNonce, err := e.sealWithKey(e.kek, dek)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt DEK: %w", err)
	}

	return &Envelope{
		Ciphertext:   ciphertext,
		PayloadNonce: payloadNonce,
		EncryptedDEK: encryptedDEK,
		DEKNonce:     dekNonce,
	}, nil
}

// Decrypt recovers a credential payload: the DEK comes out from under the
// KEK first, then the payload from under the DEK.
func (e *Encryptor) Decrypt(env *Envelope) ([]byte, error) {
	dek, err := e.openWithKey(e.kek, env.EncryptedDEK, env.DEKNonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt DEK: %w", err)
	}

	plaintext, err := e.openWithKey(dek, env.Ciphertext, env.PayloadNonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}

	return plaintext, nil
}

// ReEncryptDEK re-encrypts a stored DEK under a new KEK for key rotation.
// The payload ciphertext itself never needs rewriting.
func (e *Encryptor) ReEncryptDEK(encryptedDEK, dekNonce, newKEK []byte) ([]byte, []byte, error) {
	dek, err := e.openWithKey(e.kek, encryptedDEK, dekNonce)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt DEK: %w", err)
	}

	newEncryptedDEK, newDEKNonce, err := e.sealWithKey(newKEK, dek)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to re-encrypt DEK: %w", err)
	}

	return newEncryptedDEK, newDEKNonce, nil
}

func (e *Encryptor) sealWithKey(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

func (e *Encryptor) openWithKey(key, ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}

	return plaintext, nil
}
