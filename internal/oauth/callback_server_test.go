package oauth

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestCallbackServerAcceptsMatchingState(t *testing.T) {
	srv, err := StartCallbackServer()
	if err != nil {
		t.Fatalf("StartCallbackServer() err = %v", err)
	}
	defer srv.Shutdown(context.Background())

	srv.SetExpectedState("expected-state")

	go func() {
		time.Sleep(20 * time.Millisecond)
		q := url.Values{"code": {"auth-code"}, "state": {"expected-state"}}
		http.Get(srv.RedirectURI() + "?" + q.Encode())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	code, err := srv.WaitForCode(ctx, time.Second)
	if err != nil {
		t.Fatalf("WaitForCode() err = %v", err)
	}
	if code != "auth-code" {
		t.Errorf("code = %q, want auth-code", code)
	}
}

func TestCallbackServerDiscardsMismatchedState(t *testing.T) {
	srv, err := StartCallbackServer()
	if err != nil {
		t.Fatalf("StartCallbackServer() err = %v", err)
	}
	defer srv.Shutdown(context.Background())

	srv.SetExpectedState("expected-state")

	q := url.Values{"code": {"auth-code"}, "state": {"wrong-state"}}
	resp, err := http.Get(srv.RedirectURI() + "?" + q.Encode())
	if err != nil {
		t.Fatalf("http.Get() err = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := srv.WaitForCode(ctx, 150*time.Millisecond); err == nil {
		t.Error("expected WaitForCode to time out after mismatched callback")
	}
}

func TestWaitForCodeRequiresExpectedState(t *testing.T) {
	srv, err := StartCallbackServer()
	if err != nil {
		t.Fatalf("StartCallbackServer() err = %v", err)
	}
	defer srv.Shutdown(context.Background())

	if _, err := srv.WaitForCode(context.Background(), time.Second); err == nil {
		t.Error("expected error when no expected state has been configured")
	}
}
