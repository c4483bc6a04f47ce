package config

import (
	"path/filepath"
	"testing"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	s := Default()
	s.Daemon.ListenAddr = "0.0.0.0:9999"
	s.Workspace.BaseDir = filepath.Join(dir, "workspaces")

	if err := Save(path, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Daemon.ListenAddr != s.Daemon.ListenAddr {
		t.Fatalf("Daemon.ListenAddr = %q, want %q", got.Daemon.ListenAddr, s.Daemon.ListenAddr)
	}
	if got.Workspace.BaseDir != s.Workspace.BaseDir {
		t.Fatalf("Workspace.BaseDir = %q, want %q", got.Workspace.BaseDir, s.Workspace.BaseDir)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.toml")
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Daemon.ListenAddr == "" {
		t.Fatalf("Daemon.ListenAddr empty, want a default")
	}
}

func TestApplyEnvOverridesListenAddr(t *testing.T) {
	t.Setenv("PARALLAX_LISTEN_ADDR", "10.0.0.1:1234")
	s := Default().ApplyEnv()
	if s.Daemon.ListenAddr != "10.0.0.1:1234" {
		t.Fatalf("Daemon.ListenAddr = %q, want %q", s.Daemon.ListenAddr, "10.0.0.1:1234")
	}
}

func TestCredentialMaxTTLDefaultsToOneHour(t *testing.T) {
	c := CredentialSettings{}
	if c.MaxTTL().Hours() != 1 {
		t.Fatalf("MaxTTL() = %s, want 1h", c.MaxTTL())
	}
}
