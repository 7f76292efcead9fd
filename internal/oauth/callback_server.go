package oauth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/infrastructure/security"
)

const callbackPollInterval = 100 * time.Millisecond

type callbackData struct {
	code  string
	state string
}

// CallbackServer is a loopback HTTP server bound to an ephemeral port that
// receives a single OAuth redirect, validates the returned state against
// an expected value, and hands the authorization code to WaitForCode.
type CallbackServer struct {
	listener net.Listener
	server   *http.Server
	port     int
	replay   *security.ReplayProtection

	mu           sync.Mutex
	expected     string
	data         *callbackData
	shutdownOnce sync.Once
}

// StartCallbackServer binds 127.0.0.1:0 and serves GET /callback in the
// background until Shutdown is called.
func StartCallbackServer() (*CallbackServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, apperrors.IOFailed("oauth_callback_listen", err)
	}

	s := &CallbackServer{
		listener: ln,
		port:     ln.Addr().(*net.TCPAddr).Port,
		// A one-time loopback redirect URI can still be hit twice — by a
		// stale browser tab retrying the GET, or a local process replaying
		// a captured callback URL — so the same state value is only
		// honored once.
		replay: security.NewReplayProtection(5*time.Minute, nil),
	}

	router := mux.NewRouter()
	router.HandleFunc("/callback", s.handleCallback).Methods(http.MethodGet)
	s.server = &http.Server{Handler: router}

	go func() {
		_ = s.server.Serve(ln)
	}()

	return s, nil
}

// RedirectURI is the loopback URI to register as the OAuth redirect_uri.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d/callback", s.port)
}

// SetExpectedState configures the CSRF state this server will accept.
// Callbacks carrying any other state value are silently discarded.
func (s *CallbackServer) SetExpectedState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expected = state
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	s.mu.Lock()
	expected := s.expected
	accepted := expected != "" && state == expected && s.replay.ValidateAndMark(state)
	if accepted {
		s.data = &callbackData{code: code, state: state}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if accepted {
		fmt.Fprint(w, `<!DOCTYPE html><html><head><title>Authorization Complete</title></head>`+
			`<body><h1>Authorization Successful</h1><p>You can close this window.</p></body></html>`)
		return
	}
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprint(w, `<!DOCTYPE html><html><head><title>Authorization Failed</title></head>`+
		`<body><h1>Authorization Failed</h1><p>Invalid or unexpected callback parameters.</p></body></html>`)
}

// WaitForCode polls for a received authorization code until timeout
// elapses, returning a retryable timeout AppError if none arrives.
func (s *CallbackServer) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	s.mu.Lock()
	hasExpected := s.expected != ""
	s.mu.Unlock()
	if !hasExpected {
		return "", apperrors.InvalidInput("expected_state", "OAuth expected state not configured")
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(callbackPollInterval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		data := s.data
		s.mu.Unlock()
		if data != nil {
			return data.code, nil
		}
		if time.Now().After(deadline) {
			return "", apperrors.HTTPTimeout("oauth_callback_wait", fmt.Errorf("no authorization code received within %s", timeout))
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown gracefully stops the loopback server.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.server.Shutdown(ctx)
	})
	return err
}
