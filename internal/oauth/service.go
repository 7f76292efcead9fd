package oauth

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/domain"
)

// TokenManager is the capability interface OAuthService delegates token
// storage, refresh, and lifetime management to. internal/token.Manager
// satisfies this; kept as a local interface (rather than importing
// internal/token directly) so the two packages can be wired together by
// the composition root without creating an import cycle.
type TokenManager interface {
	Store(ctx context.Context, tokens *domain.TokenSet) error
	Current(ctx context.Context) (*domain.TokenSet, error)
	GetAccessToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
	StartAutoRefresh(ctx context.Context)
	Stop()
}

// Service composes a Client, a TokenManager, and an in-flight login guard
// into the OAuth login lifecycle described by the calendar integration's
// OAuth manager.
type Service struct {
	client       *Client
	tokenManager TokenManager

	mu           sync.Mutex
	pendingState string
}

// NewService creates an OAuthService bound to client and tokenManager.
func NewService(client *Client, tokenManager TokenManager) *Service {
	return &Service{client: client, tokenManager: tokenManager}
}

// Initialize loads any previously-stored tokens so GetAccessToken can
// serve requests without a fresh login.
func (s *Service) Initialize(ctx context.Context) error {
	_, err := s.tokenManager.Current(ctx)
	return err
}

// StartLogin begins a login attempt, returning the authorization URL and
// state. Concurrent logins are rejected: only one pending_state may be
// in flight at a time.
func (s *Service) StartLogin() (url, state string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingState != "" {
		return "", "", apperrors.InvalidInput("pending_state", "a login is already in progress")
	}

	url, state, err = s.client.GenerateAuthorizationURL()
	if err != nil {
		return "", "", err
	}
	s.pendingState = state
	return url, state, nil
}

// CompleteLogin validates the pending state, exchanges code for tokens,
// persists them, and clears the pending state whether or not the exchange
// succeeds (a failed attempt should not block the next StartLogin).
func (s *Service) CompleteLogin(ctx context.Context, userEmail, code, state string) (*domain.TokenSet, error) {
	s.mu.Lock()
	pending := s.pendingState
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.pendingState = ""
		s.mu.Unlock()
	}()

	if pending == "" || pending != state {
		return nil, apperrors.InvalidInput("state", "no matching pending login for this state")
	}

	tokens, err := s.client.ExchangeCodeForTokens(ctx, userEmail, code, state)
	if err != nil {
		return nil, err
	}
	if err := s.tokenManager.Store(ctx, tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// GetAccessToken returns a valid access token, auto-refreshing through the
// token manager if the current one is near expiry.
func (s *Service) GetAccessToken(ctx context.Context) (string, error) {
	return s.tokenManager.GetAccessToken(ctx)
}

// StartAutoRefresh starts the token manager's background refresh loop.
// The loop stops when ctx is cancelled or Stop is called.
func (s *Service) StartAutoRefresh(ctx context.Context) {
	s.tokenManager.StartAutoRefresh(ctx)
}

// Stop halts the auto-refresh loop.
func (s *Service) Stop() {
	s.tokenManager.Stop()
}

// Logout clears stored tokens.
func (s *Service) Logout(ctx context.Context) error {
	return s.tokenManager.Clear(ctx)
}

// IsAuthenticated reports whether a token is currently stored.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	tokens, err := s.tokenManager.Current(ctx)
	return err == nil && tokens != nil
}

// SecondsUntilExpiry reports time remaining on the current token, if any.
func (s *Service) SecondsUntilExpiry(ctx context.Context) (int64, bool) {
	tokens, err := s.tokenManager.Current(ctx)
	if err != nil || tokens == nil {
		return 0, false
	}
	remaining := time.Until(tokens.ExpiresAt).Seconds()
	return int64(remaining), true
}
