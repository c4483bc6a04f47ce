package workspace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const credHelperDirName = ".git-workspace"
const credContextFileName = "credential-context.json"
const credHelperScriptName = "git-credential-helper"

// credentialContext is the JSON payload the helper script reads to answer
// git's credential protocol (spec.md §6).
type credentialContext struct {
	WorkspaceID string    `json:"workspaceId"`
	ExecutionID string    `json:"executionId"`
	Repo        string    `json:"repo"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// credHelperScript is the fixed shell script body spec.md §6 specifies: it
// reads the sibling JSON context file and emits the two lines git's
// credential.helper protocol expects, followed by a blank line.
const credHelperScript = `#!/bin/sh
dir=$(CDPATH= cd -- "$(dirname -- "$0")" && pwd)
token=$(sed -n 's/.*"token" *: *"\([^"]*\)".*/\1/p' "$dir/` + credContextFileName + `")
printf 'username=x-access-token\n'
printf 'password=%s\n\n' "$token"
`

// installCredentialHelper writes the owner-only .git-workspace directory,
// its credential-context.json (0600), and the git-credential-helper script
// (0700) inside dir, then points dir's local credential.helper at the
// script. Skipped entirely for SSH credentials or unauthenticated clones.
func installCredentialHelper(ctx context.Context, dir, workspaceID, executionID, repo, token string, expiresAt time.Time) error {
	helperDir := filepath.Join(dir, credHelperDirName)
	if err := os.MkdirAll(helperDir, 0o700); err != nil {
		return wrapErr(KindPrecondition, "create credential helper dir", err)
	}
	ctxPayload := credentialContext{
		WorkspaceID: workspaceID,
		ExecutionID: executionID,
		Repo:        repo,
		Token:       token,
		ExpiresAt:   expiresAt,
	}
	raw, err := json.Marshal(ctxPayload)
	if err != nil {
		return wrapErr(KindPrecondition, "marshal credential context", err)
	}
	contextPath := filepath.Join(helperDir, credContextFileName)
	if err := os.WriteFile(contextPath, raw, 0o600); err != nil {
		return wrapErr(KindPrecondition, "write credential context", err)
	}
	scriptPath := filepath.Join(helperDir, credHelperScriptName)
	if err := os.WriteFile(scriptPath, []byte(credHelperScript), 0o700); err != nil {
		return wrapErr(KindPrecondition, "write credential helper script", err)
	}
	if err := configSet(ctx, dir, "credential.helper", scriptPath); err != nil {
		return err
	}
	return nil
}

// removeCredentialHelper deletes .git-workspace/ unconditionally, best
// effort, tolerating a directory that is already gone.
func removeCredentialHelper(dir string) error {
	helperDir := filepath.Join(dir, credHelperDirName)
	if err := os.RemoveAll(helperDir); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
