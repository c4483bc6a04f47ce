// Package gitprovider defines the interface the workspace service depends
// on for PR creation and branch queries. Concrete implementations for
// specific hosts (GitHub, GitLab, ...) live behind this interface and are
// injected by the caller; this package never imports a provider SDK
// (spec.md §9, "lazy require of Octokit-equivalents").
package gitprovider

import "context"

// PullRequest is the result of a successful CreatePR call.
type PullRequest struct {
	Number int
	URL    string
}

// CreatePRRequest carries everything a provider needs to open a PR.
type CreatePRRequest struct {
	Repo   string
	Head   string
	Base   string
	Title  string
	Body   string
	Token  string
	Draft  bool
}

// Provider is the minimal surface the workspace service's finalize step
// needs. No implementation ships in this module; callers inject one or use
// Nop for tests and for deployments that never create PRs.
type Provider interface {
	CreatePR(ctx context.Context, req CreatePRRequest) (PullRequest, error)
	BranchExists(ctx context.Context, repo, branch, token string) (bool, error)
	DefaultBranch(ctx context.Context, repo, token string) (string, error)
}

// Nop is a Provider that refuses every operation; it exists so the
// workspace service can be constructed and tested without a real provider
// wired in. Finalize calls that require PR creation fail clearly instead of
// silently no-opping.
type Nop struct{}

func (Nop) CreatePR(ctx context.Context, req CreatePRRequest) (PullRequest, error) {
	return PullRequest{}, errNoProvider
}

func (Nop) BranchExists(ctx context.Context, repo, branch, token string) (bool, error) {
	return false, errNoProvider
}

func (Nop) DefaultBranch(ctx context.Context, repo, token string) (string, error) {
	return "", errNoProvider
}

var errNoProvider = noProviderError{}

type noProviderError struct{}

func (noProviderError) Error() string {
	return "gitprovider: no provider registered for this host"
}
