// Package oauth implements RFC 8628 OAuth 2.0 Device Authorization Grant,
// hand-rolled over net/http rather than golang.org/x/oauth2's client
// credentials helpers — the device flow's polling loop and slow_down
// backoff aren't modeled by that package's token-source abstractions, so
// this stays close to the wire (see DESIGN.md).
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DeviceAuthResponse is RFC 8628 §3.2's device authorization response.
type DeviceAuthResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// Token is the resolved access/refresh token pair.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ObtainedAt   time.Time `json:"-"`
}

// Expiry returns the absolute time the access token expires.
func (t Token) Expiry() time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return t.ObtainedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Config points the device flow at a provider's endpoints.
type Config struct {
	DeviceAuthURL string
	TokenURL      string
	ClientID      string
	Scopes        []string
	// Timeout bounds the overall poll loop; the default is 15 minutes
	// (spec.md §4.5's device-flow default timeout).
	Timeout time.Duration
}

var ErrExpired = fmt.Errorf("oauth: device code expired before authorization completed")
var ErrAccessDenied = fmt.Errorf("oauth: user denied the authorization request")
var ErrTimeout = fmt.Errorf("oauth: device authorization timed out")

// RequestDeviceCode starts the flow (RFC 8628 §3.1).
func RequestDeviceCode(ctx context.Context, cfg Config) (*DeviceAuthResponse, error) {
	form := url.Values{
		"client_id": {cfg.ClientID},
		"scope":     {strings.Join(cfg.Scopes, " ")},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.DeviceAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth: device authorization request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth: device authorization request returned %s", resp.Status)
	}

	var out DeviceAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("oauth: decode device authorization response: %w", err)
	}
	if out.Interval <= 0 {
		out.Interval = 5
	}
	return &out, nil
}

// errorResponse is RFC 6749 §5.2's error body shape.
type errorResponse struct {
	Error string `json:"error"`
}

// PollForToken polls the token endpoint until the user authorizes, the
// device code expires, access is denied, or cfg.Timeout elapses. It honors
// "slow_down" by adding 5s to the poll interval and "authorization_pending"
// by continuing to wait, per RFC 8628 §3.5.
func PollForToken(ctx context.Context, cfg Config, auth *DeviceAuthResponse) (*Token, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	deadline := time.Now().Add(timeout)
	interval := time.Duration(auth.Interval) * time.Second

	for {
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		tok, pollErr := requestToken(ctx, cfg, auth.DeviceCode)
		if pollErr == nil {
			return tok, nil
		}
		switch pollErr.Error {
		case "authorization_pending":
			continue
		case "slow_down":
			interval += 5 * time.Second
			continue
		case "expired_token":
			return nil, ErrExpired
		case "access_denied":
			return nil, ErrAccessDenied
		default:
			return nil, fmt.Errorf("oauth: device token poll failed: %s", pollErr.Error)
		}
	}
}

// pollError carries either a successful token or an OAuth error code; used
// internally so requestToken can distinguish "keep polling" from "fatal".
type pollError struct {
	Error string
}

func requestToken(ctx context.Context, cfg Config, deviceCode string) (*Token, *pollError) {
	form := url.Values{
		"client_id":   {cfg.ClientID},
		"device_code": {deviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &pollError{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &pollError{Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = "http_" + strconv.Itoa(resp.StatusCode)
		}
		return nil, &pollError{Error: e.Error}
	}

	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, &pollError{Error: err.Error()}
	}
	tok.ObtainedAt = time.Now()
	return &tok, nil
}

// RefreshToken exchanges a refresh token for a new access token.
func RefreshToken(ctx context.Context, cfg Config, refreshToken string) (*Token, error) {
	form := url.Values{
		"client_id":     {cfg.ClientID},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth: refresh request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth: refresh request returned %s", resp.Status)
	}
	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("oauth: decode refresh response: %w", err)
	}
	tok.ObtainedAt = time.Now()
	return &tok, nil
}
