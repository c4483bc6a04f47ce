package workspace

import (
	"context"
	"time"
)

// CredentialRequest is what the workspace service asks the broker for. It
// is defined here, not in internal/credential, so this package has no
// import dependency on the broker's implementation — only on this narrow
// interface (spec.md §9's "lazy require" guidance applied one layer up).
type CredentialRequest struct {
	Repo        string
	Access      string // "read" | "read_write"
	ExecutionID string
	TaskID      string
	AgentID     string
	TTL         time.Duration
	Optional    bool
}

// ResolvedCredential is what a successful CredentialResolver.Resolve
// returns. Token is empty for ssh_key grants.
type ResolvedCredential struct {
	GrantID  string
	Kind     string // pat | oauth | ssh_key | github_app | deploy_key
	Token    string
	Provider string
}

// CredentialResolver is the narrow slice of the credential broker the
// workspace service depends on.
type CredentialResolver interface {
	Resolve(ctx context.Context, req CredentialRequest) (*ResolvedCredential, error)
	Revoke(ctx context.Context, grantID string) error
}

// noCredentials is a CredentialResolver that never has anything to offer;
// it lets Service be constructed for unauthenticated-only workflows and
// tests without a broker.
type noCredentials struct{}

func (noCredentials) Resolve(ctx context.Context, req CredentialRequest) (*ResolvedCredential, error) {
	if req.Optional {
		return nil, nil
	}
	return nil, newErr(KindPrecondition, "no credential resolver configured")
}

func (noCredentials) Revoke(ctx context.Context, grantID string) error { return nil }
