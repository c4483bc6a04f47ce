package tokenstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFileStore(t *testing.T) *File {
	t.Helper()
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("super-secret-passphrase"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	store, err := NewFile(filepath.Join(dir, "tokens"), keyFile)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	return store
}

func TestFileStorePutThenGetRoundTrips(t *testing.T) {
	store := newTestFileStore(t)
	if err := store.Put("github", "gho_abc123"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok, err := store.Get("github")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || got != "gho_abc123" {
		t.Fatalf("Get() = (%q, %v), want (gho_abc123, true)", got, ok)
	}
}

func TestFileStoreGetMissingProviderReturnsNotOK(t *testing.T) {
	store := newTestFileStore(t)
	_, ok, err := store.Get("gitlab")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Fatalf("Get() ok = true for missing provider, want false")
	}
}

func TestFileStoreOnDiskWireFormatIsIvColonCiphertext(t *testing.T) {
	store := newTestFileStore(t)
	if err := store.Put("github", "gho_abc123"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	raw, err := os.ReadFile(store.path("github"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	s := string(raw)
	if !strings.Contains(s, ":") {
		t.Fatalf("wire format %q does not contain ':'", s)
	}
	if strings.Contains(s, "gho_abc123") {
		t.Fatalf("wire format %q contains the cleartext token", s)
	}
}

func TestFileStoreDeleteIsIdempotent(t *testing.T) {
	store := newTestFileStore(t)
	if err := store.Put("github", "gho_abc123"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Delete("github"); err != nil {
		t.Fatalf("first Delete() error = %v", err)
	}
	if err := store.Delete("github"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
}
