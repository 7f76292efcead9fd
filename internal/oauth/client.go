package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/domain"
)

// Config describes an OAuth2/PKCE provider: the authorization and token
// endpoints, client identity, redirect target, and any extra params the
// provider requires (e.g. Google's access_type=offline).
type Config struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
	ClientID              string
	ClientSecret          string // optional
	RedirectURI           string
	Scopes                []string
	Audience              string // optional
	ExtraAuthorizeParams  map[string]string
	ExtraTokenParams      map[string]string
}

// Client drives the PKCE authorization-code flow against a single
// provider. DisableHTTP short-circuits token exchange/refresh for
// socket-less tests that only exercise URL building.
type Client struct {
	httpClient  *http.Client
	config      Config
	disableHTTP bool
	pending     *PKCEChallenge
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client (e.g. to inject a
// resilience-wrapped round tripper).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDisableHTTP puts the client in socket-less mode: ExchangeCode and
// Refresh return an error immediately instead of making a network call.
// Used for PULSEARC_OAUTH_DISABLE_HTTP test runs.
func WithDisableHTTP() Option {
	return func(c *Client) { c.disableHTTP = true }
}

// NewClient creates an OAuth client for config.
func NewClient(config Config, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     config,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateAuthorizationURL builds the authorization URL, generates and
// stores a PKCE challenge as the client's pending attempt, and returns the
// URL plus the state value the caller must echo back on completion.
func (c *Client) GenerateAuthorizationURL() (string, string, error) {
	challenge, err := NewPKCEChallenge()
	if err != nil {
		return "", "", err
	}
	c.pending = challenge

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.config.ClientID)
	q.Set("redirect_uri", c.config.RedirectURI)
	q.Set("scope", strings.Join(c.config.Scopes, " "))
	q.Set("state", challenge.State)
	q.Set("code_challenge", challenge.CodeChallenge)
	q.Set("code_challenge_method", challenge.CodeChallengeMethod)
	if c.config.Audience != "" {
		q.Set("audience", c.config.Audience)
	}
	for k, v := range c.config.ExtraAuthorizeParams {
		q.Set(k, v)
	}

	authURL := fmt.Sprintf("%s?%s", c.config.AuthorizationEndpoint, q.Encode())
	return authURL, challenge.State, nil
}

// tokenResponse mirrors the RFC 6749 token endpoint response body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope"`
}

// ExchangeCodeForTokens validates state against the pending challenge,
// posts the authorization_code grant, and returns the resulting TokenSet.
func (c *Client) ExchangeCodeForTokens(ctx context.Context, userEmail, code, state string) (*domain.TokenSet, error) {
	if c.pending == nil {
		return nil, apperrors.InvalidInput("state", "no pending authorization attempt")
	}
	if !ValidateState(c.pending.State, state) {
		return nil, apperrors.InvalidInput("state", "OAuth state mismatch").
			WithField("expected", c.pending.State).WithField("received", state)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.config.RedirectURI)
	form.Set("code_verifier", c.pending.CodeVerifier)
	form.Set("client_id", c.config.ClientID)
	if c.config.ClientSecret != "" {
		form.Set("client_secret", c.config.ClientSecret)
	}

	resp, err := c.postToken(ctx, form)
	if err != nil {
		return nil, err
	}

	return c.toTokenSet(userEmail, resp), nil
}

// RefreshAccessToken posts a refresh_token grant, returning the new
// TokenSet. An empty refreshToken fails immediately.
func (c *Client) RefreshAccessToken(ctx context.Context, userEmail, refreshToken string) (*domain.TokenSet, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh_token", "no refresh token available")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.config.ClientID)
	if c.config.ClientSecret != "" {
		form.Set("client_secret", c.config.ClientSecret)
	}

	resp, err := c.postToken(ctx, form)
	if err != nil {
		return nil, err
	}

	tokens := c.toTokenSet(userEmail, resp)
	if tokens.RefreshToken == "" {
		// Providers may omit refresh_token on refresh responses; keep the one we had.
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

func (c *Client) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	if c.disableHTTP {
		return nil, apperrors.Internal("OAuth client is in socket-less test mode", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.HTTPTimeout("oauth_token_exchange", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.HTTPTimeout("oauth_token_exchange", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.IOFailed("oauth_token_response_read", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.HTTPStatus(resp.StatusCode, "oauth_token_exchange").
			WithField("body", string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, apperrors.InvalidInput("token_response", "malformed token response: "+err.Error())
	}
	return &tr, nil
}

func (c *Client) toTokenSet(userEmail string, resp *tokenResponse) *domain.TokenSet {
	return &domain.TokenSet{
		UserEmail:    userEmail,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		IDToken:      resp.IDToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		Scope:        resp.Scope,
	}
}
