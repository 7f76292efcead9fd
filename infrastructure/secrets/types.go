package secrets

import (
	"context"
	"errors"
)

// MasterKeyEnv is the env var holding the 32-byte (or 64 hex char) master
// key used to envelope-encrypt account secrets, such as the local SQLCipher
// database passphrase.
const MasterKeyEnv = "SECRETS_MASTER_KEY"

var (
	// ErrNotFound indicates the secret does not exist for the given account/name.
	ErrNotFound = errors.New("secret not found")
	// ErrForbidden indicates the caller's service ID is not allowed to access the secret.
	ErrForbidden = errors.New("secret access forbidden")
	// ErrInvalidCiphertext indicates the stored secret cannot be decrypted.
	ErrInvalidCiphertext = errors.New("invalid secret ciphertext")
)

// Secret is a single account-scoped encrypted value, such as an escrowed
// SQLCipher database passphrase or a token-subsystem signing key.
type Secret struct {
	UserID         string
	Name           string
	EncryptedValue []byte
}

// AuditLog records one access attempt against a Secret for later review.
type AuditLog struct {
	UserID       string
	SecretName   string
	Action       string
	ServiceID    string
	Success      bool
	ErrorMessage string
}

// Provider resolves decrypted secret values for a given user.
//
// Implementations must enforce per-user ownership and any per-secret policy
// constraints (allowed services), because the enclave services treat the
// returned value as sensitive and must not fetch secrets they are not entitled
// to.
type Provider interface {
	GetSecret(ctx context.Context, userID, name string) (string, error)
}
