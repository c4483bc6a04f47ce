package session

import (
	"os"
	"testing"
	"time"

	"github.com/HaruHunab1320/parallax/internal/adapter"
)

// scriptedAdapter lets tests drive the detector pipeline without spawning a
// real child process: DetectReady etc. are simple substring checks against
// the tail text evaluate() computes from the scrollback.
func scriptedAdapter() adapter.Adapter {
	return adapter.Adapter{
		Type: "scripted",
		Rules: []adapter.AutoResponseRule{
			{
				Name:     "trust",
				Pattern:  `(?i)trust this folder\?`,
				Kind:     adapter.ResponseKeys,
				Response: "enter",
				Safe:     true,
				Once:     true,
			},
		},
		Launch: func(cfg adapter.LaunchConfig) (string, []string, []string, error) {
			return "true", nil, nil, nil
		},
		DetectReady: func(tail string) bool {
			return adapter.LastLine(tail) == "ready>"
		},
		DetectLogin: func(tail string) adapter.LoginInfo {
			return adapter.LoginInfo{}
		},
		DetectBlockingPrompt: func(tail string) adapter.BlockingPromptInfo {
			if contains(tail, "trust this folder?") {
				return adapter.BlockingPromptInfo{Detected: true, Kind: "trust", SuggestedResponse: "enter", CanAutoRespond: true, Instructions: "trust?"}
			}
			return adapter.BlockingPromptInfo{}
		},
		DetectTaskComplete: func(tail string) bool {
			return contains(tail, "all done")
		},
		DetectExit: func(tail string) adapter.ExitInfo {
			return adapter.ExitInfo{}
		},
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func newTestSession() (*Session, *Bus) {
	def := scriptedAdapter()
	s := New(def, Config{ID: "sess-1", Name: "test", Debounce: time.Millisecond})
	bus := NewBus()
	s.Attach(bus)
	return s, bus
}

func TestSessionReadyEmitsOncePerEdgeCrossing(t *testing.T) {
	s, bus := newTestSession()
	ch, unsub := bus.Subscribe()
	defer unsub()

	s.scrollback.Append([]byte("ready>"))
	s.evaluate()
	s.scrollback.Append([]byte("\nready>"))
	s.evaluate()

	readyCount := 0
	drainEvents(ch, func(e Event) {
		if e.Kind == EventSessionStatus && e.Status == LifecycleReady {
			readyCount++
		}
	})
	if readyCount != 1 {
		t.Fatalf("ready events = %d, want 1", readyCount)
	}
}

func TestSessionOnceRuleWritesAtMostOnce(t *testing.T) {
	s, _ := newTestSession()
	h, err := startFakeWriter(s)
	if err != nil {
		t.Fatalf("startFakeWriter: %v", err)
	}
	defer h.Close()

	s.scrollback.Append([]byte("trust this folder?"))
	s.evaluate()
	s.scrollback.Append([]byte("\ntrust this folder?"))
	s.evaluate()
	time.Sleep(50 * time.Millisecond)

	if h.writes != 1 {
		t.Fatalf("writes = %d, want 1", h.writes)
	}
}

func TestSessionUnsafePromptIsNeverAutoWritten(t *testing.T) {
	def := scriptedAdapter()
	def.Rules[0].Safe = false
	s := New(def, Config{ID: "sess-2", Debounce: time.Millisecond})
	bus := NewBus()
	s.Attach(bus)
	ch, unsub := bus.Subscribe()
	defer unsub()

	s.scrollback.Append([]byte("trust this folder?"))
	s.evaluate()

	blocked := false
	drainEvents(ch, func(e Event) {
		if e.Kind == EventSessionStatus && e.Status == LifecycleBlockingPrompt {
			blocked = true
		}
	})
	if !blocked {
		t.Fatalf("expected a blocking_prompt event for an unsafe rule")
	}
}

func TestSessionStateNeverLeavesTerminal(t *testing.T) {
	s, _ := newTestSession()
	s.setState(LifecycleStopped, "", "done")
	s.setState(LifecycleReady, "", "")
	if s.state != LifecycleStopped {
		t.Fatalf("state = %v, want %v (terminal states must not transition)", s.state, LifecycleStopped)
	}
}

func TestSessionNeverReturnsToSpawning(t *testing.T) {
	s, _ := newTestSession()
	s.setState(LifecycleReady, "", "")
	s.setState(LifecycleSpawning, "", "")
	if s.state != LifecycleReady {
		t.Fatalf("state = %v, want %v (must never return to spawning)", s.state, LifecycleReady)
	}
}

// drainEvents reads every currently buffered event off ch without blocking.
func drainEvents(ch <-chan Event, fn func(Event)) {
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			fn(e)
		case <-time.After(20 * time.Millisecond):
			return
		}
	}
}

// fakeWriter substitutes for a real ptyHandle so tryAutoRespond's Write call
// can be exercised without spawning a process: the session's Write method
// only requires s.pty to be non-nil and writable, so tests construct a real
// os.Pipe wrapped in the same ptyHandle shape.
type fakeWriter struct {
	writes int
	r, w   *os.File
}

func (f *fakeWriter) Close() error {
	_ = f.w.Close()
	return f.r.Close()
}

func startFakeWriter(s *Session) (*fakeWriter, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	fw := &fakeWriter{r: r, w: w}
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				fw.writes++
			}
			if err != nil {
				return
			}
		}
	}()
	s.pty = &ptyHandle{file: w, doneCh: make(chan error, 1)}
	return fw, nil
}
