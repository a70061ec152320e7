// Package vault resolves and protects provider API credentials: user-supplied
// (BYOK) keys encrypted at rest, with platform-owned keys as the fallback.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/fixyhq/fixy/internal/catalog"
	"github.com/fixyhq/fixy/internal/models"
	"gorm.io/gorm"
)

// CredentialUnavailableError indicates no usable credential could be produced
// for a provider. It covers missing platform keys, corrupt ciphertexts, and
// key mismatches; the plaintext cause never leaves the vault.
type CredentialUnavailableError struct {
	Provider string
	Reason   string
}

// Error implements the error interface.
func (e *CredentialUnavailableError) Error() string {
	return fmt.Sprintf("vault: credential unavailable for %s: %s", e.Provider, e.Reason)
}

// Credential is a resolved provider secret. BYOK marks whether it came from
// the user's own key rather than the platform's.
type Credential struct {
	APIKey string
	BYOK   bool
}

// Vault encrypts, decrypts, and resolves provider credentials. A single
// static key underlies all ciphertexts; rotating it invalidates every stored
// BYOK secret.
type Vault struct {
	db       *gorm.DB
	key      []byte
	platform map[string]string
}

// New constructs a Vault from a 64-hex-character encryption key and the
// platform-owned provider keys.
func New(db *gorm.DB, hexKey string, platformKeys map[string]string) (*Vault, error) {
	key, errDecode := hex.DecodeString(strings.TrimSpace(hexKey))
	if errDecode != nil {
		return nil, fmt.Errorf("vault: decode encryption key: %w", errDecode)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("vault: encryption key must be 32 bytes, got %d", len(key))
	}
	platform := make(map[string]string, len(platformKeys))
	for provider, apiKey := range platformKeys {
		if strings.TrimSpace(apiKey) != "" {
			platform[provider] = strings.TrimSpace(apiKey)
		}
	}
	return &Vault{db: db, key: key, platform: platform}, nil
}

// Encrypt seals a plaintext secret with AES-256-GCM. The stored form is
// hex(nonce):hex(ciphertext); a fresh nonce makes repeated encryptions of the
// same input distinct.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("vault: empty secret")
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("vault: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, errRead := rand.Read(nonce); errRead != nil {
		return "", fmt.Errorf("vault: nonce: %w", errRead)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed), nil
}

// Decrypt opens a stored ciphertext produced by Encrypt.
func (v *Vault) Decrypt(stored string) (string, error) {
	parts := strings.SplitN(stored, ":", 2)
	if len(parts) != 2 {
		return "", errors.New("vault: malformed ciphertext")
	}
	nonce, errNonce := hex.DecodeString(parts[0])
	if errNonce != nil {
		return "", errors.New("vault: malformed ciphertext")
	}
	sealed, errSealed := hex.DecodeString(parts[1])
	if errSealed != nil {
		return "", errors.New("vault: malformed ciphertext")
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("vault: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: gcm: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", errors.New("vault: malformed ciphertext")
	}
	plaintext, errOpen := gcm.Open(nil, nonce, sealed, nil)
	if errOpen != nil {
		return "", errors.New("vault: decrypt failed")
	}
	return string(plaintext), nil
}

// Resolve returns the credential to use for a provider call: the user's
// active BYOK key when present, otherwise the platform key. The decrypted
// plaintext exists only for the duration of the call and must never be logged
// or returned to an API response.
func (v *Vault) Resolve(ctx context.Context, userID uint64, provider string) (Credential, error) {
	if v == nil || v.db == nil {
		return Credential{}, errors.New("vault: not initialized")
	}
	if !catalog.ValidProvider(provider) {
		return Credential{}, &CredentialUnavailableError{Provider: provider, Reason: "unknown provider"}
	}

	var row models.BYOKCredential
	errFind := v.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND is_active = ?", userID, provider, true).
		First(&row).Error
	switch {
	case errFind == nil:
		apiKey, errDecrypt := v.Decrypt(row.APIKeyEncrypted)
		if errDecrypt != nil {
			return Credential{}, &CredentialUnavailableError{Provider: provider, Reason: "stored key cannot be decrypted"}
		}
		return Credential{APIKey: apiKey, BYOK: true}, nil
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		// fall through to the platform key
	default:
		return Credential{}, fmt.Errorf("vault: lookup byok: %w", errFind)
	}

	if apiKey, ok := v.platform[provider]; ok {
		return Credential{APIKey: apiKey}, nil
	}
	return Credential{}, &CredentialUnavailableError{Provider: provider, Reason: "no platform key configured"}
}

// HasActiveBYOK reports whether the user holds an active key for the provider.
func (v *Vault) HasActiveBYOK(ctx context.Context, userID uint64, provider string) (bool, error) {
	var count int64
	if errCount := v.db.WithContext(ctx).
		Model(&models.BYOKCredential{}).
		Where("user_id = ? AND provider = ? AND is_active = ?", userID, provider, true).
		Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("vault: count byok: %w", errCount)
	}
	return count > 0, nil
}
