// Package credential implements the credential broker: a priority chain
// that resolves short-lived Git credentials for workspace provisioning
// (spec.md §4.5) without ever persisting a caller-facing long-lived secret.
package credential

import "time"

// Kind is the shape of a resolved credential.
type Kind string

const (
	KindPAT       Kind = "pat"
	KindOAuth     Kind = "oauth"
	KindSSHKey    Kind = "ssh_key"
	KindGitHubApp Kind = "github_app"
	KindDeployKey Kind = "deploy_key"
)

// Grant is one issued, revocable credential (spec.md §3).
type Grant struct {
	ID          string
	Repo        string
	Kind        Kind
	Token       string
	Provider    string
	ExecutionID string
	TaskID      string
	AgentID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

// Valid reports whether g is usable right now: not revoked and not expired.
func (g *Grant) Valid(now time.Time) bool {
	if g.RevokedAt != nil {
		return false
	}
	return !now.After(g.ExpiresAt)
}

// Revoke marks g revoked. Idempotent: revoking an already-revoked grant is
// a no-op, matching spec.md §4.5's "revocation is idempotent".
func (g *Grant) Revoke(now time.Time) {
	if g.RevokedAt != nil {
		return
	}
	t := now
	g.RevokedAt = &t
}
