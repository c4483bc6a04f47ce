package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the on-disk configuration this module persists, grounded on
// tools/si/settings.go's toml.Marshal/Unmarshal round-trip and
// write-atomic-with-0700-dir pattern, trimmed to the fields this system's
// components actually read.
type Settings struct {
	Workspace  WorkspaceSettings  `toml:"workspace"`
	Credential CredentialSettings `toml:"credential"`
	Daemon     DaemonSettings     `toml:"daemon"`
}

type WorkspaceSettings struct {
	BaseDir string `toml:"base_dir"`
}

type CredentialSettings struct {
	TokenStoreDir  string `toml:"token_store_dir"`
	MaxTTLSeconds  int    `toml:"max_ttl_seconds"`
	OAuthClientID  string `toml:"oauth_client_id"`
	EncryptKeyFile string `toml:"encrypt_key_file"`
}

type DaemonSettings struct {
	ListenAddr string `toml:"listen_addr"`
}

// MaxTTL returns CredentialSettings.MaxTTLSeconds as a time.Duration,
// falling back to the 1-hour default spec.md §4.5 specifies.
func (c CredentialSettings) MaxTTL() time.Duration {
	if c.MaxTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.MaxTTLSeconds) * time.Second
}

// Default returns the baseline settings before env overrides or a loaded
// file are applied.
func Default() Settings {
	home, _ := os.UserHomeDir()
	return Settings{
		Workspace: WorkspaceSettings{
			BaseDir: filepath.Join(home, ".parallax", "workspaces"),
		},
		Credential: CredentialSettings{
			TokenStoreDir: filepath.Join(home, ".parallax", "tokens"),
			MaxTTLSeconds: 3600,
		},
		Daemon: DaemonSettings{
			ListenAddr: "127.0.0.1:8877",
		},
	}
}

// ApplyEnv overlays environment-variable overrides onto s, mirroring
// codex-monitor's envOr/boolEnv/durationEnv helpers: PARALLAX_WORKSPACE_DIR,
// PARALLAX_TOKEN_DIR, PARALLAX_MAX_TTL (duration), PARALLAX_LISTEN_ADDR.
func (s Settings) ApplyEnv() Settings {
	s.Workspace.BaseDir = envOr("PARALLAX_WORKSPACE_DIR", s.Workspace.BaseDir)
	s.Credential.TokenStoreDir = envOr("PARALLAX_TOKEN_DIR", s.Credential.TokenStoreDir)
	s.Daemon.ListenAddr = envOr("PARALLAX_LISTEN_ADDR", s.Daemon.ListenAddr)
	s.Credential.OAuthClientID = envOr("PARALLAX_OAUTH_CLIENT_ID", s.Credential.OAuthClientID)
	s.Credential.EncryptKeyFile = envOr("PARALLAX_TOKEN_ENCRYPT_KEY_FILE", s.Credential.EncryptKeyFile)
	if d := durationEnv("PARALLAX_MAX_TTL", s.Credential.MaxTTL()); d > 0 {
		s.Credential.MaxTTLSeconds = int(d.Seconds())
	}
	return s
}

// Load reads and decodes settings from path, falling back to Default()
// (with env overrides applied) if the file does not exist.
func Load(path string) (Settings, error) {
	base := Default().ApplyEnv()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &base); err != nil {
		return base, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return base.ApplyEnv(), nil
}

// Save atomically writes s to path, creating its parent directory at 0700.
func Save(path string, s Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings dir %s: %w", dir, err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings tmp file: %w", err)
	}
	return os.Rename(tmp, path)
}
