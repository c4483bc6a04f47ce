package workspace

import "context"

// neutralIdentityName and neutralIdentityEmail are the stable, non-personal
// identity spec.md §4.4 step 5 requires ("configure user.name/user.email to
// stable neutral identities"). Adapted from the teacher's git_identity.go,
// which reads a *host* identity via `git config --global --get`; here the
// workspace always writes a fixed identity local to the clone instead,
// since the whole point is that the commit author is the orchestrator, not
// whichever human happens to run it.
const (
	neutralIdentityName  = "parallax-bot"
	neutralIdentityEmail = "parallax-bot@users.noreply.github.com"
)

// seedGitIdentity configures dir's local git identity, adapted from the
// teacher's seedGitIdentity to operate directly on a host directory via
// `git -C <dir> config` instead of indirecting through a container exec
// client — there is no container in this system's architecture.
func seedGitIdentity(ctx context.Context, dir string) error {
	if err := configSet(ctx, dir, "user.name", neutralIdentityName); err != nil {
		return err
	}
	return configSet(ctx, dir, "user.email", neutralIdentityEmail)
}
