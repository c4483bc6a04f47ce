package workspace

import (
	"regexp"
	"strings"
)

const defaultBranchPrefix = "parallax"

const maxSlugLength = 40

var slugInvalidRe = regexp.MustCompile(`[^a-z0-9-]+`)
var slugDashRunRe = regexp.MustCompile(`-{2,}`)

// NormalizeSlug lowercases s, replaces anything outside [a-z0-9-] with a
// dash, collapses dash runs, trims leading/trailing dashes, and truncates
// to maxSlugLength — spec.md §6's "lowercase alphanumerics + dashes,
// collapses runs of dashes, truncates to a conservative length".
func NormalizeSlug(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	lower = slugInvalidRe.ReplaceAllString(lower, "-")
	lower = slugDashRunRe.ReplaceAllString(lower, "-")
	lower = strings.Trim(lower, "-")
	if len(lower) > maxSlugLength {
		lower = strings.Trim(lower[:maxSlugLength], "-")
	}
	return lower
}

// BranchName builds the unique-by-construction name spec.md §6 requires:
// <prefix>/<executionId>/<role>[-<slug>]. An empty prefix falls back to the
// default "parallax".
func BranchName(prefix, executionID, role, slug string) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultBranchPrefix
	}
	role = strings.TrimSpace(role)
	parts := []string{prefix, executionID, role}
	name := strings.Join(parts, "/")
	if s := NormalizeSlug(slug); s != "" {
		name += "-" + s
	}
	return name
}
