package session

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/HaruHunab1320/parallax/internal/adapter"
)

func writeExecutable(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const fakeAssistantScript = `#!/bin/bash
printf '\nHow can I help you today?\n> '
read -r line
printf 'bye\n'
`

func echoAdapter(executable string) adapter.Adapter {
	return adapter.Adapter{
		Type: "echo",
		Launch: func(cfg adapter.LaunchConfig) (string, []string, []string, error) {
			return executable, nil, os.Environ(), nil
		},
		DetectReady: func(tail string) bool {
			return adapter.LastLine(tail) == ">"
		},
		DetectLogin:          func(string) adapter.LoginInfo { return adapter.LoginInfo{} },
		DetectBlockingPrompt: func(string) adapter.BlockingPromptInfo { return adapter.BlockingPromptInfo{} },
		DetectTaskComplete:   func(string) bool { return false },
		DetectExit: func(tail string) adapter.ExitInfo {
			if adapter.LastLine(tail) == "bye" {
				return adapter.ExitInfo{Exited: true, Code: 0, Reason: "assistant said bye"}
			}
			return adapter.ExitInfo{}
		},
	}
}

func TestSupervisorSpawnAndReachesReady(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	fake := writeExecutable(t, "fake-assistant.sh", fakeAssistantScript)

	reg := adapter.NewRegistry()
	def := echoAdapter(fake)
	if err := reg.Register(def); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var seq int
	sv := NewSupervisor(reg, func() string {
		seq++
		return "sess-" + time.Now().Format("150405") + "-" + string(rune('a'+seq))
	})

	ch, unsub := sv.On(EventSessionStatus)
	defer unsub()

	h, err := sv.Spawn(SpawnConfig{Name: "t1", Type: "echo", Workdir: t.TempDir()})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	sawReady := false
	deadline := time.After(3 * time.Second)
	for !sawReady {
		select {
		case e := <-ch:
			if e.Status == LifecycleReady {
				sawReady = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for ready")
		}
	}

	if _, ok := sv.Get(h.ID); !ok {
		t.Fatalf("Get(%q) ok = false, want true", h.ID)
	}

	if err := sv.Stop(h.ID, StopOptions{Timeout: time.Second}); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSupervisorUnknownAdapterErrors(t *testing.T) {
	reg := adapter.NewRegistry()
	sv := NewSupervisor(reg, func() string { return "x" })
	if _, err := sv.Spawn(SpawnConfig{Name: "t", Type: "nope"}); err == nil {
		t.Fatalf("Spawn() expected error for unknown adapter type")
	}
}

func TestSupervisorStopAllClearsRegistry(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	fake := writeExecutable(t, "fake-assistant.sh", fakeAssistantScript)
	reg := adapter.NewRegistry()
	_ = reg.Register(echoAdapter(fake))

	n := 0
	sv := NewSupervisor(reg, func() string { n++; return "id" + string(rune('0'+n)) })

	for i := 0; i < 3; i++ {
		if _, err := sv.Spawn(SpawnConfig{Name: "t", Type: "echo", Workdir: t.TempDir()}); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}

	sv.StopAll(StopOptions{Force: true})

	if got := len(sv.List()); got != 0 {
		t.Fatalf("List() length = %d, want 0 after StopAll", got)
	}
}
