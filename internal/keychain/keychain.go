// Package keychain wraps the OS-native credential store (macOS Keychain,
// Windows Credential Manager, Linux Secret Service) behind a small
// capability interface, used both for OAuth token storage and for the
// SQLCipher database encryption key.
package keychain

import (
	"crypto/rand"

	"github.com/99designs/keyring"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
)

const keyCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Trait is the capability interface the rest of PulseArc depends on,
// letting tests substitute an in-memory stub instead of touching the real
// OS credential store.
type Trait interface {
	SetSecret(key, value string) error
	GetSecret(key string) (string, error)
	DeleteSecret(key string) error
	SecretExists(key string) bool
	GetOrCreateKey(keyID string, keySize int) (string, error)
}

// Provider is a Trait backed by 99designs/keyring, scoped to one service
// name (e.g. "PulseArc.calendar", "PulseArc.sap", "PulseArc.database").
type Provider struct {
	serviceName string
	ring        keyring.Keyring
}

// NewProvider opens the platform keyring under serviceName.
func NewProvider(serviceName string) (*Provider, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
	})
	if err != nil {
		return nil, apperrors.AuthKeychainUnavailable(err)
	}
	return &Provider{serviceName: serviceName, ring: ring}, nil
}

// newProviderWithRing builds a Provider over an already-opened keyring,
// used by tests to substitute keyring.NewArrayKeyring instead of the real
// OS credential store.
func newProviderWithRing(serviceName string, ring keyring.Keyring) *Provider {
	return &Provider{serviceName: serviceName, ring: ring}
}

// SetSecret stores value under key.
func (p *Provider) SetSecret(key, value string) error {
	err := p.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: p.serviceName + "/" + key,
	})
	if err != nil {
		return apperrors.AuthKeychainUnavailable(err).WithField("key", key)
	}
	return nil
}

// GetSecret retrieves the value stored under key.
func (p *Provider) GetSecret(key string) (string, error) {
	item, err := p.ring.Get(key)
	if err != nil {
		if err == keyring.ErrKeyNotFound {
			return "", apperrors.NotFound("keychain_secret", key)
		}
		return "", apperrors.AuthKeychainUnavailable(err).WithField("key", key)
	}
	return string(item.Data), nil
}

// DeleteSecret removes key. Idempotent: deleting a missing key is not an
// error.
func (p *Provider) DeleteSecret(key string) error {
	err := p.ring.Remove(key)
	if err != nil && err != keyring.ErrKeyNotFound {
		return apperrors.AuthKeychainUnavailable(err).WithField("key", key)
	}
	return nil
}

// SecretExists reports whether key currently has a stored value.
func (p *Provider) SecretExists(key string) bool {
	_, err := p.ring.Get(key)
	return err == nil
}

// GetOrCreateKey returns the existing value for keyID, or generates,
// stores, and returns a fresh random alphanumeric string of keySize
// characters if none exists yet. Used to derive the SQLCipher database
// encryption key on first run.
func (p *Provider) GetOrCreateKey(keyID string, keySize int) (string, error) {
	existing, err := p.GetSecret(keyID)
	if err == nil {
		return existing, nil
	}
	if appErr, ok := apperrors.As(err); !ok || appErr.Kind != apperrors.KindNotFound {
		return "", err
	}

	key, err := randomAlphanumeric(keySize)
	if err != nil {
		return "", err
	}
	if err := p.SetSecret(keyID, key); err != nil {
		return "", err
	}
	return key, nil
}

func randomAlphanumeric(size int) (string, error) {
	if size <= 0 {
		size = 64
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", apperrors.Internal("failed to generate random key", err)
	}
	out := make([]byte, size)
	for i, b := range buf {
		out[i] = keyCharset[int(b)%len(keyCharset)]
	}
	return string(out), nil
}
