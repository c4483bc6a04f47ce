package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// runGit executes git in dir, returning combined stdout+stderr on failure
// wrapped as a git_command_failed Error with tokens redacted. Grounded on
// the teacher's git_identity.go gitConfigGlobalGet/execGitConfig, which
// wraps exec.Command("git", ...).Output() the same way, generalized to run
// inside any workspace directory instead of the host's global config.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), wrapErr(KindGitCommand, redactTokens(out.String()), err)
	}
	return out.String(), nil
}

// isAuthError reports whether git's output looks like an authentication
// failure rather than a network or repo-not-found failure, per spec.md
// §4.4 step 2: only auth-class failures trigger a credentialed retry.
func isAuthError(output string) bool {
	low := strings.ToLower(output)
	switch {
	case strings.Contains(low, "401"):
		return true
	case strings.Contains(low, "403"):
		return true
	case strings.Contains(low, "authentication failed"):
		return true
	case strings.Contains(low, "terminal prompts disabled"):
		return true
	case strings.Contains(low, "could not read username"):
		return true
	case strings.Contains(low, "permission denied (publickey)"):
		return true
	default:
		return false
	}
}

// cloneShallow performs `git clone --depth 1 --branch <base> <url> <dir>`.
func cloneShallow(ctx context.Context, url, baseBranch, dir string) (string, error) {
	return runGit(ctx, "", "clone", "--depth", "1", "--branch", baseBranch, url, dir)
}

// checkoutNewBranch creates and checks out name inside dir (clone path).
func checkoutNewBranch(ctx context.Context, dir, name string) (string, error) {
	return runGit(ctx, dir, "checkout", "-b", name)
}

// fetchBaseBranch fetches origin/<base> into the parent clone, tolerating
// an already-fresh remote (spec.md §4.4 step 3: "ignore already-fresh
// failures").
func fetchBaseBranch(ctx context.Context, parentDir, base string) error {
	out, err := runGit(ctx, parentDir, "fetch", "origin", base)
	if err != nil && !strings.Contains(strings.ToLower(out), "up to date") && !strings.Contains(strings.ToLower(out), "up-to-date") {
		return err
	}
	return nil
}

// addWorktree runs `git worktree add -b <branch> <path> origin/<base>` from
// the parent clone's directory.
func addWorktree(ctx context.Context, parentDir, path, branch, base string) (string, error) {
	return runGit(ctx, parentDir, "worktree", "add", "-b", branch, path, "origin/"+base)
}

// removeWorktree runs `git worktree remove --force <path>` from the parent
// clone's directory.
func removeWorktree(ctx context.Context, parentDir, path string) (string, error) {
	return runGit(ctx, parentDir, "worktree", "remove", "--force", path)
}

// configSet sets a local git config key in dir.
func configSet(ctx context.Context, dir, key, value string) error {
	_, err := runGit(ctx, dir, "config", key, value)
	return err
}

// push runs `git push -u origin <branch>` in dir.
func push(ctx context.Context, dir, branch string) (string, error) {
	return runGit(ctx, dir, "push", "-u", "origin", branch)
}

func gitError(op string, err error) error {
	return wrapErr(KindGitCommand, fmt.Sprintf("%s: %v", op, err), err)
}
