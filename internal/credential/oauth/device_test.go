package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRequestDeviceCodeParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(DeviceAuthResponse{
			DeviceCode:      "dev-123",
			UserCode:        "ABCD-EFGH",
			VerificationURI: "https://example.com/device",
			ExpiresIn:       900,
			Interval:        1,
		})
	}))
	defer srv.Close()

	auth, err := RequestDeviceCode(context.Background(), Config{DeviceAuthURL: srv.URL, ClientID: "client"})
	if err != nil {
		t.Fatalf("RequestDeviceCode() error = %v", err)
	}
	if auth.DeviceCode != "dev-123" || auth.UserCode != "ABCD-EFGH" {
		t.Fatalf("unexpected response: %+v", auth)
	}
}

func TestPollForTokenHonorsSlowDownThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errorResponse{Error: "authorization_pending"})
		case 2:
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errorResponse{Error: "slow_down"})
		default:
			json.NewEncoder(w).Encode(Token{AccessToken: "tok-abc", TokenType: "bearer", ExpiresIn: 3600})
		}
	}))
	defer srv.Close()

	auth := &DeviceAuthResponse{DeviceCode: "dev-123", Interval: 0}
	cfg := Config{TokenURL: srv.URL, ClientID: "client", Timeout: 10 * time.Second}

	tok, err := PollForToken(context.Background(), cfg, auth)
	if err != nil {
		t.Fatalf("PollForToken() error = %v", err)
	}
	if tok.AccessToken != "tok-abc" {
		t.Fatalf("AccessToken = %q, want tok-abc", tok.AccessToken)
	}
	if atomic.LoadInt32(&calls) < 3 {
		t.Fatalf("calls = %d, want at least 3 (pending, slow_down, success)", calls)
	}
}

func TestPollForTokenAccessDeniedIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "access_denied"})
	}))
	defer srv.Close()

	auth := &DeviceAuthResponse{DeviceCode: "dev-123", Interval: 0}
	cfg := Config{TokenURL: srv.URL, ClientID: "client", Timeout: 5 * time.Second}

	_, err := PollForToken(context.Background(), cfg, auth)
	if err != ErrAccessDenied {
		t.Fatalf("PollForToken() error = %v, want ErrAccessDenied", err)
	}
}

func TestPollForTokenTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "authorization_pending"})
	}))
	defer srv.Close()

	auth := &DeviceAuthResponse{DeviceCode: "dev-123", Interval: 0}
	cfg := Config{TokenURL: srv.URL, ClientID: "client", Timeout: 50 * time.Millisecond}

	_, err := PollForToken(context.Background(), cfg, auth)
	if err != ErrTimeout {
		t.Fatalf("PollForToken() error = %v, want ErrTimeout", err)
	}
}
