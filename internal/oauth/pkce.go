// Package oauth implements PulseArc's PKCE-based OAuth2 login flow: code
// verifier/challenge generation, authorization-URL building, code exchange
// and refresh, a loopback callback server, and the service that ties them
// together with the keychain-backed token manager.
package oauth

import (
	"encoding/base64"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/crypto"
)

const (
	verifierCharset  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	minVerifierLen   = 43
	maxVerifierLen   = 128
	defaultVerifierLen = 64
	stateByteLen     = 32 // >= 32 chars of high-entropy random once base64url-encoded
)

// PKCEChallenge bundles the verifier/challenge pair and CSRF state for a
// single login attempt.
type PKCEChallenge struct {
	CodeVerifier        string
	CodeChallenge        string
	CodeChallengeMethod string
	State                string
}

// NewPKCEChallenge generates a fresh verifier, its S256 challenge, and a
// random state value.
func NewPKCEChallenge() (*PKCEChallenge, error) {
	verifier, err := generateCodeVerifier(defaultVerifierLen)
	if err != nil {
		return nil, err
	}
	state, err := generateState()
	if err != nil {
		return nil, err
	}
	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:        generateCodeChallenge(verifier),
		CodeChallengeMethod: "S256",
		State:                state,
	}, nil
}

// generateCodeVerifier produces a random string of length chars (clamped to
// [43,128]) drawn from the RFC 7636 unreserved character set.
func generateCodeVerifier(length int) (string, error) {
	if length < minVerifierLen {
		length = minVerifierLen
	}
	if length > maxVerifierLen {
		length = maxVerifierLen
	}

	out := make([]byte, length)
	idx, err := crypto.GenerateRandomBytes(length)
	if err != nil {
		return "", apperrors.Internal("failed to generate PKCE code verifier", err)
	}
	for i, b := range idx {
		out[i] = verifierCharset[int(b)%len(verifierCharset)]
	}
	return string(out), nil
}

// generateCodeChallenge computes BASE64URL_NO_PAD(SHA256(verifier)).
func generateCodeChallenge(verifier string) string {
	sum := crypto.Hash256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum)
}

// generateState returns a fresh, high-entropy, base64url-encoded CSRF
// state token of at least 32 characters.
func generateState() (string, error) {
	buf, err := crypto.GenerateRandomBytes(stateByteLen)
	if err != nil {
		return "", apperrors.Internal("failed to generate OAuth state", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidateState reports whether two state values match exactly.
func ValidateState(expected, received string) bool {
	return expected != "" && expected == received
}
