package workspace

import (
	"strings"

	"github.com/HaruHunab1320/parallax/internal/config"
)

// ensureBaseDirDefault persists baseDir into settings as the workspace base
// directory the first time one is used, if none is already configured.
// Adapted from the teacher's workspace_defaults.go ensureWorkspaceDefault /
// setWorkspaceDefault ask-once-then-persist pattern: the daemon has no TTY
// to prompt a human through, so the "ask" step is dropped and the first
// concrete base dir a caller provisions against is simply adopted — once
// settings.Workspace.BaseDir is non-empty this is a no-op forever after.
func ensureBaseDirDefault(settingsPath string, baseDir string) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return
	}
	settings, err := config.Load(settingsPath)
	if err != nil {
		return
	}
	if strings.TrimSpace(settings.Workspace.BaseDir) != "" {
		return
	}
	settings.Workspace.BaseDir = baseDir
	_ = config.Save(settingsPath, settings)
}
