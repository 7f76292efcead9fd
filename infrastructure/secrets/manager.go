package secrets

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"

	envelope "github.com/pulsearc/agent-core/infrastructure/crypto"
	"github.com/pulsearc/agent-core/internal/crypto"
)

// Repository persists encrypted Secret rows and their access audit trail.
// A local SQLCipher-backed implementation is the production case; tests use
// an in-memory fake.
type Repository interface {
	GetSecretByName(ctx context.Context, userID, name string) (*Secret, error)
	PutSecret(ctx context.Context, secret *Secret) error
	GetAllowedServices(ctx context.Context, userID, secretName string) ([]string, error)
	CreateAuditLog(ctx context.Context, log *AuditLog) error
}

// databaseKeySecretName is the fixed Secret name under which an account's
// SQLCipher database passphrase is escrowed.
const databaseKeySecretName = "sqlcipher_database_key"

// databaseKeyServiceID identifies the local agent process as the caller in
// audit log rows produced by ResolveDatabaseKey.
const databaseKeyServiceID = "pulsearc-agent"

// secretKeyInfo scopes HKDF-derived per-account secret keys apart from any
// other subkey (e.g. a future session key) derived from the same master key.
const secretKeyInfo = "pulsearc.secrets.v1"

// databaseKeyEnvelopeInfo scopes the SQLCipher passphrase escrow separately
// from secretKeyInfo's generic per-account secret key.
const databaseKeyEnvelopeInfo = "pulsearc.secrets.dbkey.v1"

// Manager envelope-encrypts account secrets with an AES-256-GCM key derived
// per-account from MasterKeyEnv via HKDF, and records every access in the
// audit trail. Its primary use in this agent is escrowing the per-account
// SQLCipher database passphrase so it never touches disk in plaintext.
type Manager struct {
	repo      Repository
	masterKey []byte
}

func NewManager(repo Repository, rawKey []byte) (*Manager, error) {
	if repo == nil {
		return nil, fmt.Errorf("secrets: repository is required")
	}
	key, err := normalizeMasterKey(rawKey)
	if err != nil {
		return nil, err
	}
	return &Manager{repo: repo, masterKey: key}, nil
}

// accountKey derives the AES-256-GCM key used to encrypt userID's secrets,
// scoping every account to an independent key even though a single master
// key is provisioned.
func (m *Manager) accountKey(userID string) ([]byte, error) {
	return crypto.DeriveKey(m.masterKey, []byte(userID), secretKeyInfo, 32)
}

func (m *Manager) GetSecretForService(ctx context.Context, userID, name, serviceID string, strict bool) (string, error) {
	if userID == "" || name == "" {
		return "", fmt.Errorf("secrets: userID and name required")
	}
	if serviceID == "" {
		m.audit(ctx, userID, name, serviceID, false, ErrForbidden)
		return "", ErrForbidden
	}

	secret, err := m.repo.GetSecretByName(ctx, userID, name)
	if err != nil {
		m.audit(ctx, userID, name, serviceID, false, err)
		return "", err
	}
	if secret == nil {
		m.audit(ctx, userID, name, serviceID, false, ErrNotFound)
		return "", ErrNotFound
	}

	allowed, err := m.repo.GetAllowedServices(ctx, userID, name)
	if err != nil {
		m.audit(ctx, userID, name, serviceID, false, err)
		return "", err
	}
	if !serviceAllowed(serviceID, allowed) {
		if len(allowed) == 0 && !strict {
			// Non-strict mode allows secrets without explicit policies.
		} else {
			m.audit(ctx, userID, name, serviceID, false, ErrForbidden)
			return "", ErrForbidden
		}
	}

	var plaintext string
	if name == databaseKeySecretName {
		plaintext, err = m.decryptDatabaseKey(userID, secret.EncryptedValue)
	} else {
		plaintext, err = m.decryptSecretValue(userID, secret.EncryptedValue)
	}
	if err != nil {
		m.audit(ctx, userID, name, serviceID, false, err)
		return "", err
	}

	m.audit(ctx, userID, name, serviceID, true, nil)
	return plaintext, nil
}

// EscrowDatabaseKey envelope-encrypts passphrase under the master key and
// stores it for userID, for later retrieval by ResolveDatabaseKey. Called
// once, the first time an account's encrypted database is provisioned.
//
// Unlike the generic per-secret AES-256-GCM path (encryptSecretValue), this
// uses envelope.EncryptEnvelope: the user ID is bound into the AEAD's
// additional-authenticated-data alongside databaseKeyEnvelopeInfo, so a
// database-key ciphertext escrowed for one account fails to decrypt under
// another account's derived key even if the rows were swapped in storage.
func (m *Manager) EscrowDatabaseKey(ctx context.Context, userID, passphrase string) error {
	ciphertext, err := envelope.EncryptEnvelope(m.masterKey, []byte(userID), databaseKeyEnvelopeInfo, []byte(passphrase))
	if err != nil {
		return fmt.Errorf("secrets: encrypt database key: %w", err)
	}
	return m.repo.PutSecret(ctx, &Secret{
		UserID:         userID,
		Name:           databaseKeySecretName,
		EncryptedValue: ciphertext,
	})
}

// ResolveDatabaseKey decrypts and returns the SQLCipher passphrase escrowed
// for userID via EscrowDatabaseKey, for use as storage.PoolConfig's
// EncryptionKey.
func (m *Manager) ResolveDatabaseKey(ctx context.Context, userID string) (string, error) {
	return m.GetSecretForService(ctx, userID, databaseKeySecretName, databaseKeyServiceID, false)
}

func (m *Manager) audit(ctx context.Context, userID, name, serviceID string, success bool, err error) {
	if m.repo == nil {
		return
	}
	logEntry := &AuditLog{
		UserID:       userID,
		SecretName:   name,
		Action:       "read",
		ServiceID:    serviceID,
		Success:      success,
		ErrorMessage: "",
	}
	if err != nil {
		logEntry.ErrorMessage = err.Error()
	}
	_ = m.repo.CreateAuditLog(ctx, logEntry)
}

func (m *Manager) encryptSecretValue(userID, value string) ([]byte, error) {
	key, err := m.accountKey(userID)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(key)
	return crypto.Encrypt(key, []byte(value))
}

func (m *Manager) decryptSecretValue(userID string, raw []byte) (string, error) {
	if len(raw) < 13 {
		return "", ErrInvalidCiphertext
	}
	key, err := m.accountKey(userID)
	if err != nil {
		return "", err
	}
	defer crypto.ZeroBytes(key)
	plain, err := crypto.Decrypt(key, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return string(plain), nil
}

// decryptDatabaseKey reverses EscrowDatabaseKey's envelope encryption.
func (m *Manager) decryptDatabaseKey(userID string, raw []byte) (string, error) {
	plain, err := envelope.DecryptEnvelope(m.masterKey, []byte(userID), databaseKeyEnvelopeInfo, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return string(plain), nil
}

func normalizeMasterKey(raw []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" {
		return nil, fmt.Errorf("secrets: %s is required", MasterKeyEnv)
	}
	if isHex(trimmed) {
		decoded, err := hex.DecodeString(trimmed)
		if err == nil && len(decoded) == 32 {
			return decoded, nil
		}
	}

	if len(trimmed) == 32 {
		if !isDevEnv() {
			return nil, fmt.Errorf("secrets: %s must be 32 bytes (or 64 hex chars)", MasterKeyEnv)
		}
		log.Printf("[SECURITY WARNING] Using plaintext %s in development mode.", MasterKeyEnv)
		return []byte(trimmed), nil
	}
	return nil, fmt.Errorf("secrets: %s must be 32 bytes (or 64 hex chars)", MasterKeyEnv)
}

func isHex(value string) bool {
	if value == "" {
		return false
	}
	for _, c := range value {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isDevEnv() bool {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("DENO_ENV")))
	if env == "" {
		env = strings.ToLower(strings.TrimSpace(os.Getenv("NODE_ENV")))
	}
	if env == "" {
		env = strings.ToLower(strings.TrimSpace(os.Getenv("GO_ENV")))
	}
	return env == "development" || env == "dev" || env == "local"
}

func serviceAllowed(serviceID string, allowed []string) bool {
	if serviceID == "" {
		return false
	}
	for _, svc := range allowed {
		if svc == serviceID {
			return true
		}
	}
	return false
}
