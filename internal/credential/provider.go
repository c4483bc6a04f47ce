package credential

import "strings"

// DetectProvider classifies a repo URL by host substring, per spec.md §4.5.
// Anything unrecognized is self_hosted rather than an error — the broker
// still issues credentials for it, just without provider-specific adapter
// behavior.
func DetectProvider(repoURL string) string {
	low := strings.ToLower(repoURL)
	switch {
	case strings.Contains(low, "github.com") || strings.Contains(low, "github:"):
		return "github"
	case strings.Contains(low, "gitlab.com") || strings.Contains(low, "gitlab:"):
		return "gitlab"
	case strings.Contains(low, "bitbucket.org") || strings.Contains(low, "bitbucket:"):
		return "bitbucket"
	case strings.Contains(low, "dev.azure.com") || strings.Contains(low, "visualstudio.com"):
		return "azure_devops"
	default:
		return "self_hosted"
	}
}

// ProviderAdapter supplies a provider-registered credential (e.g. a GitHub
// App installation token) for a given repo, the third rung of the broker's
// priority chain. No concrete adapter ships in this module; callers
// register one per spec.md §9's "lazy require" guidance.
type ProviderAdapter interface {
	Name() string
	Token(repo string) (token string, expiresAtUnix int64, ok bool)
}
