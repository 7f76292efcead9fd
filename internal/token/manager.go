// Package token manages the OAuth TokenSet lifecycle: keychain-backed
// persistence, proactive refresh before expiry, and a cooperative
// background refresh loop.
package token

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/infrastructure/logging"
	"github.com/pulsearc/agent-core/internal/domain"
)

const (
	defaultRefreshThreshold = 300 * time.Second
	idleRecheckInterval     = 60 * time.Second
	failureBackoff          = 60 * time.Second
)

// Refresher performs the refresh_token grant. *oauth.Client satisfies this
// interface structurally; this package does not import internal/oauth to
// avoid a cycle (oauth.Service depends on this package's Manager through
// its own local TokenManager interface).
type Refresher interface {
	RefreshAccessToken(ctx context.Context, userEmail, refreshToken string) (*domain.TokenSet, error)
}

// KeychainStore is the subset of keychain.Trait the token manager needs.
type KeychainStore interface {
	SetSecret(key, value string) error
	GetSecret(key string) (string, error)
	DeleteSecret(key string) error
}

// Manager owns the in-memory TokenSet, persists it to the keychain, and
// refreshes it proactively. Store/refresh/clear are serialized through an
// RWMutex so readers always see a consistent TokenSet.
type Manager struct {
	keychain    KeychainStore
	refresher   Refresher
	accountName string
	userEmail   string
	threshold   time.Duration
	logger      *logging.Logger

	mu      sync.RWMutex
	current *domain.TokenSet

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager creates a Manager. refreshThreshold is how long before expiry
// a token is proactively refreshed; zero selects the 300-second default.
func NewManager(keychain KeychainStore, refresher Refresher, accountName, userEmail string, refreshThreshold time.Duration, logger *logging.Logger) *Manager {
	if refreshThreshold <= 0 {
		refreshThreshold = defaultRefreshThreshold
	}
	return &Manager{
		keychain:    keychain,
		refresher:   refresher,
		accountName: accountName,
		userEmail:   userEmail,
		threshold:   refreshThreshold,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

// Store persists tokens to the keychain and updates the in-memory copy.
func (m *Manager) Store(ctx context.Context, tokens *domain.TokenSet) error {
	blob, err := json.Marshal(tokens)
	if err != nil {
		return apperrors.Internal("failed to serialize token set", err)
	}
	if err := m.keychain.SetSecret(m.accountName, string(blob)); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = tokens
	m.mu.Unlock()

	if m.logger != nil && tokens.IDToken != "" {
		logIDTokenExpiry(ctx, m.logger, tokens.IDToken)
	}
	return nil
}

// Current loads tokens from the keychain into memory on first call (or
// returns the in-memory copy thereafter) without triggering a refresh.
func (m *Manager) Current(ctx context.Context) (*domain.TokenSet, error) {
	m.mu.RLock()
	if m.current != nil {
		defer m.mu.RUnlock()
		return m.current, nil
	}
	m.mu.RUnlock()

	blob, err := m.keychain.GetSecret(m.accountName)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Kind == apperrors.KindNotFound {
			return nil, nil
		}
		return nil, err
	}

	var tokens domain.TokenSet
	if err := json.Unmarshal([]byte(blob), &tokens); err != nil {
		return nil, apperrors.Internal("failed to deserialize stored token set", err)
	}

	m.mu.Lock()
	m.current = &tokens
	m.mu.Unlock()

	return &tokens, nil
}

// GetAccessToken returns a valid access token, refreshing first if the
// current token is within the refresh threshold of expiry.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	tokens, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	if tokens == nil {
		return "", apperrors.AuthTokenExpired().WithField("reason", "not_authenticated")
	}

	if m.needsRefresh(tokens) {
		if err := m.refresh(ctx); err != nil {
			return "", err
		}
		tokens, err = m.Current(ctx)
		if err != nil {
			return "", err
		}
	}
	return tokens.AccessToken, nil
}

func (m *Manager) needsRefresh(tokens *domain.TokenSet) bool {
	return time.Until(tokens.ExpiresAt) <= m.threshold
}

func (m *Manager) refresh(ctx context.Context) error {
	m.mu.RLock()
	tokens := m.current
	m.mu.RUnlock()
	if tokens == nil {
		return apperrors.AuthTokenExpired().WithField("reason", "not_authenticated")
	}
	if tokens.RefreshToken == "" {
		return apperrors.InvalidInput("refresh_token", "no refresh token available")
	}

	refreshed, err := m.refresher.RefreshAccessToken(ctx, m.userEmail, tokens.RefreshToken)
	if err != nil {
		return err
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tokens.RefreshToken
	}
	return m.Store(ctx, refreshed)
}

// Clear removes tokens from both the keychain and memory (logout).
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.keychain.DeleteSecret(m.accountName); err != nil {
		return err
	}
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}

// StartAutoRefresh runs a background loop that sleeps until the next
// refresh is due (rather than polling), refreshing just before expiry.
// It stops when ctx is cancelled or Stop is called.
func (m *Manager) StartAutoRefresh(ctx context.Context) {
	go func() {
		for {
			wait := m.nextWakeInterval()

			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-time.After(wait):
			}

			m.mu.RLock()
			authenticated := m.current != nil
			m.mu.RUnlock()
			if !authenticated {
				continue
			}

			tokens, err := m.Current(ctx)
			if err != nil || tokens == nil {
				continue
			}
			if m.needsRefresh(tokens) {
				if err := m.refresh(ctx); err != nil {
					if m.logger != nil {
						m.logger.Warn(ctx, "token auto-refresh failed", map[string]interface{}{"error": err.Error()})
					}
					select {
					case <-ctx.Done():
						return
					case <-m.stopCh:
						return
					case <-time.After(failureBackoff):
					}
				}
			}
		}
	}()
}

func (m *Manager) nextWakeInterval() time.Duration {
	m.mu.RLock()
	tokens := m.current
	m.mu.RUnlock()

	if tokens == nil {
		return idleRecheckInterval
	}
	untilRefresh := time.Until(tokens.ExpiresAt) - m.threshold
	if untilRefresh <= 0 {
		return 0
	}
	return untilRefresh
}

// Stop halts the auto-refresh loop.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// logIDTokenExpiry parses (never verifies) the id_token's exp claim purely
// for a diagnostic consistency check against the token response's
// expires_in-derived ExpiresAt.
func logIDTokenExpiry(ctx context.Context, logger *logging.Logger, idToken string) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return
	}
	if exp, ok := claims["exp"]; ok {
		logger.Debug(ctx, "id_token exp claim", map[string]interface{}{"exp": exp})
	}
}
