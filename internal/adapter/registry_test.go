package adapter

import "testing"

func stubAdapter(typ string) Adapter {
	return Adapter{
		Type: typ,
		Launch: func(cfg LaunchConfig) (string, []string, []string, error) {
			return typ, nil, nil, nil
		},
		DetectReady:          func(string) bool { return false },
		DetectLogin:          func(string) LoginInfo { return LoginInfo{} },
		DetectBlockingPrompt: func(string) BlockingPromptInfo { return BlockingPromptInfo{} },
		DetectTaskComplete:   func(string) bool { return false },
		DetectExit:           func(string) ExitInfo { return ExitInfo{} },
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubAdapter("stub")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	got, ok := r.Get("stub")
	if !ok {
		t.Fatalf("Get() ok = false, want true")
	}
	if got.Type != "stub" {
		t.Fatalf("Get().Type = %q, want %q", got.Type, "stub")
	}
}

func TestRegistryGetMissingReturnsFalse(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Fatalf("Get() ok = true, want false")
	}
}

func TestRegistryRejectsEmptyType(t *testing.T) {
	r := NewRegistry()
	a := stubAdapter("")
	if err := r.Register(a); err == nil {
		t.Fatalf("Register() expected error for empty type")
	}
}

func TestRegistryRejectsMissingDetector(t *testing.T) {
	r := NewRegistry()
	a := stubAdapter("broken")
	a.DetectExit = nil
	if err := r.Register(a); err == nil {
		t.Fatalf("Register() expected error for missing detector")
	}
}

func TestRegistryTypesSorted(t *testing.T) {
	r := NewRegistry()
	for _, typ := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(stubAdapter(typ)); err != nil {
			t.Fatalf("Register(%q) error = %v", typ, err)
		}
	}
	got := r.Types()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Types() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Types() = %v, want %v", got, want)
		}
	}
}

func TestRegisterDefaultsPopulatesAllBuiltins(t *testing.T) {
	r := NewRegistry()
	if err := RegisterDefaults(r); err != nil {
		t.Fatalf("RegisterDefaults() error = %v", err)
	}
	for _, typ := range []string{"claude", "gemini", "aider", "codex"} {
		if _, ok := r.Get(typ); !ok {
			t.Fatalf("RegisterDefaults() missing adapter %q", typ)
		}
	}
}
