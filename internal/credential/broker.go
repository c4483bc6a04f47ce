package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HaruHunab1320/parallax/internal/credential/oauth"
	"github.com/HaruHunab1320/parallax/internal/credential/tokenstore"
	"github.com/HaruHunab1320/parallax/internal/workspace"
)

const defaultMaxTTL = time.Hour

// Broker resolves credentials via the priority chain spec.md §4.5 defines:
// user-provided, cached OAuth, a registered provider adapter, then an
// interactive OAuth device flow. It implements workspace.CredentialResolver.
type Broker struct {
	store     tokenstore.Store
	adapters  map[string]ProviderAdapter
	oauthCfgs map[string]oauth.Config
	maxTTL    time.Duration
	idSeq     func() string

	mu     sync.Mutex
	grants map[string]*Grant
}

// NewBroker constructs a Broker. store may be tokenstore.NewMemory() for a
// broker that re-authenticates every restart.
func NewBroker(store tokenstore.Store, maxTTL time.Duration, idSeq func() string) *Broker {
	if maxTTL <= 0 {
		maxTTL = defaultMaxTTL
	}
	return &Broker{
		store:     store,
		adapters:  map[string]ProviderAdapter{},
		oauthCfgs: map[string]oauth.Config{},
		maxTTL:    maxTTL,
		idSeq:     idSeq,
		grants:    map[string]*Grant{},
	}
}

// RegisterProviderAdapter wires the broker's rung-3 (provider-issued
// token, e.g. a GitHub App installation) for the named provider.
func (b *Broker) RegisterProviderAdapter(a ProviderAdapter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adapters[a.Name()] = a
}

// RegisterOAuthConfig wires the broker's rung-4 (interactive device flow)
// for the named provider.
func (b *Broker) RegisterOAuthConfig(provider string, cfg oauth.Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.oauthCfgs[provider] = cfg
}

// Resolve implements workspace.CredentialResolver.
func (b *Broker) Resolve(ctx context.Context, req workspace.CredentialRequest) (*workspace.ResolvedCredential, error) {
	provider := DetectProvider(req.Repo)
	ttl := req.TTL
	if ttl <= 0 || ttl > b.maxTTL {
		ttl = b.maxTTL
	}

	if tok, ok, err := b.store.Get(provider); err == nil && ok {
		return b.issueGrant(req, provider, KindOAuth, tok, ttl), nil
	}

	b.mu.Lock()
	adapter, hasAdapter := b.adapters[provider]
	cfg, hasOAuth := b.oauthCfgs[provider]
	b.mu.Unlock()

	if hasAdapter {
		if tok, _, ok := adapter.Token(req.Repo); ok {
			return b.issueGrant(req, provider, KindGitHubApp, tok, ttl), nil
		}
	}

	if req.Optional {
		return nil, nil
	}

	if !hasOAuth {
		return nil, fmt.Errorf("credential: no provider adapter or oauth config registered for %s", provider)
	}

	auth, err := oauth.RequestDeviceCode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("credential: device authorization: %w", err)
	}
	tok, err := oauth.PollForToken(ctx, cfg, auth)
	if err != nil {
		return nil, fmt.Errorf("credential: device authorization: %w", err)
	}
	if tok.RefreshToken != "" {
		_ = b.store.Put(provider, tok.RefreshToken)
	}
	return b.issueGrant(req, provider, KindOAuth, tok.AccessToken, ttl), nil
}

func (b *Broker) issueGrant(req workspace.CredentialRequest, provider string, kind Kind, token string, ttl time.Duration) *workspace.ResolvedCredential {
	now := time.Now()
	g := &Grant{
		ID:          b.idSeq(),
		Repo:        req.Repo,
		Kind:        kind,
		Token:       token,
		Provider:    provider,
		ExecutionID: req.ExecutionID,
		TaskID:      req.TaskID,
		AgentID:     req.AgentID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}
	b.mu.Lock()
	b.grants[g.ID] = g
	b.mu.Unlock()
	return &workspace.ResolvedCredential{GrantID: g.ID, Kind: string(kind), Token: token, Provider: provider}
}

// Revoke implements workspace.CredentialResolver.
func (b *Broker) Revoke(ctx context.Context, grantID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.grants[grantID]
	if !ok {
		return nil
	}
	g.Revoke(time.Now())
	return nil
}

// Grant returns the tracked grant for id, if any — used by status
// endpoints and tests.
func (b *Broker) Grant(id string) (*Grant, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.grants[id]
	return g, ok
}
