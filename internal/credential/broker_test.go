package credential

import (
	"context"
	"testing"
	"time"

	"github.com/HaruHunab1320/parallax/internal/credential/tokenstore"
	"github.com/HaruHunab1320/parallax/internal/workspace"
)

func counterIDSeq(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + string(rune('0'+n))
	}
}

func TestBrokerResolveUsesCachedOAuthTokenBeforeDeviceFlow(t *testing.T) {
	store := tokenstore.NewMemory()
	_ = store.Put("github", "cached-token")
	b := NewBroker(store, time.Hour, counterIDSeq("grant"))

	cred, err := b.Resolve(context.Background(), workspace.CredentialRequest{
		Repo: "https://github.com/acme/repo.git",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.Token != "cached-token" {
		t.Fatalf("Token = %q, want cached-token", cred.Token)
	}
	if cred.Provider != "github" {
		t.Fatalf("Provider = %q, want github", cred.Provider)
	}
}

type stubAdapter struct {
	name  string
	token string
}

func (s stubAdapter) Name() string { return s.name }
func (s stubAdapter) Token(repo string) (string, int64, bool) {
	return s.token, 0, s.token != ""
}

func TestBrokerResolveFallsBackToProviderAdapter(t *testing.T) {
	store := tokenstore.NewMemory()
	b := NewBroker(store, time.Hour, counterIDSeq("grant"))
	b.RegisterProviderAdapter(stubAdapter{name: "github", token: "app-token"})

	cred, err := b.Resolve(context.Background(), workspace.CredentialRequest{
		Repo: "https://github.com/acme/repo.git",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.Token != "app-token" {
		t.Fatalf("Token = %q, want app-token", cred.Token)
	}
}

func TestBrokerResolveOptionalWithNoCredentialReturnsNil(t *testing.T) {
	store := tokenstore.NewMemory()
	b := NewBroker(store, time.Hour, counterIDSeq("grant"))

	cred, err := b.Resolve(context.Background(), workspace.CredentialRequest{
		Repo:     "https://github.com/acme/repo.git",
		Optional: true,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred != nil {
		t.Fatalf("cred = %+v, want nil", cred)
	}
}

func TestBrokerResolveRequiredWithNothingRegisteredErrors(t *testing.T) {
	store := tokenstore.NewMemory()
	b := NewBroker(store, time.Hour, counterIDSeq("grant"))

	_, err := b.Resolve(context.Background(), workspace.CredentialRequest{
		Repo:     "https://github.com/acme/repo.git",
		Optional: false,
	})
	if err == nil {
		t.Fatalf("Resolve() error = nil, want an error")
	}
}

func TestBrokerRevokeIsIdempotent(t *testing.T) {
	store := tokenstore.NewMemory()
	_ = store.Put("github", "cached-token")
	b := NewBroker(store, time.Hour, counterIDSeq("grant"))

	cred, err := b.Resolve(context.Background(), workspace.CredentialRequest{Repo: "https://github.com/acme/repo.git"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if err := b.Revoke(context.Background(), cred.GrantID); err != nil {
		t.Fatalf("first Revoke() error = %v", err)
	}
	if err := b.Revoke(context.Background(), cred.GrantID); err != nil {
		t.Fatalf("second Revoke() error = %v", err)
	}
	g, ok := b.Grant(cred.GrantID)
	if !ok {
		t.Fatalf("Grant(%s) not found", cred.GrantID)
	}
	if g.Valid(time.Now()) {
		t.Fatalf("grant is still valid after revoke")
	}
}

func TestBrokerTTLIsCappedAtMaxTTL(t *testing.T) {
	store := tokenstore.NewMemory()
	_ = store.Put("github", "cached-token")
	b := NewBroker(store, time.Hour, counterIDSeq("grant"))

	cred, err := b.Resolve(context.Background(), workspace.CredentialRequest{
		Repo: "https://github.com/acme/repo.git",
		TTL:  24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	g, ok := b.Grant(cred.GrantID)
	if !ok {
		t.Fatalf("Grant(%s) not found", cred.GrantID)
	}
	if g.ExpiresAt.Sub(g.IssuedAt) > time.Hour+time.Second {
		t.Fatalf("grant TTL = %s, want capped at 1h", g.ExpiresAt.Sub(g.IssuedAt))
	}
}
