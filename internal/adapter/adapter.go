// Package adapter describes the pure, data-driven contract that teaches the
// supervisor how one assistant CLI behaves: how to launch it and how to read
// its terminal output.
package adapter

import "time"

// LaunchConfig carries the caller-supplied spawn request down to an
// adapter's Launch function.
type LaunchConfig struct {
	Name        string
	Workdir     string
	EnvDelta    map[string]string
	Interactive bool
	Credentials map[string]string
	Config      map[string]any // adapter-specific fields, opaque to the core
}

// LoginInfo is the result of detecting a login/auth wall in the tail.
type LoginInfo struct {
	Required     bool
	Kind         string
	URL          string
	Instructions string
}

// BlockingPromptInfo is the result of detecting a prompt that needs a human
// or an auto-response rule to proceed.
type BlockingPromptInfo struct {
	Detected          bool
	Kind              string
	SuggestedResponse string
	CanAutoRespond    bool
	Instructions      string
}

// ExitInfo is the result of detecting that the child process has exited.
type ExitInfo struct {
	Exited bool
	Code   int
	Reason string
}

// ParsedOutput is a best-effort structured read of the current tail.
type ParsedOutput struct {
	Type       string
	Content    string
	Complete   bool
	IsQuestion bool
}

// ResponseKind selects how an AutoResponseRule's Response field is
// interpreted.
type ResponseKind string

const (
	ResponseText ResponseKind = "text"
	ResponseKeys ResponseKind = "keys"
)

// AutoResponseRule is one entry in an adapter's ordered auto-response
// catalog. Pattern is matched against the ANSI-stripped tail.
type AutoResponseRule struct {
	Name        string
	Pattern     string // regexp source, compiled once at registration
	Kind        ResponseKind
	Response    string // literal text, or a space-separated key-vocabulary sequence
	Safe        bool
	Once        bool
	Description string
}

// InstallDescriptor documents how to obtain/verify the underlying CLI. It is
// metadata only; the core never executes it automatically.
type InstallDescriptor struct {
	Executable   string
	CheckCommand []string
	InstallHint  string
}

// Adapter is a record of pure functions plus static metadata describing one
// assistant CLI. All Detect* functions must be pure, idempotent, and operate
// on at most the supplied tail — no I/O, no timers, no unbounded state.
type Adapter struct {
	Type    string
	Install InstallDescriptor
	Rules   []AutoResponseRule

	Launch func(cfg LaunchConfig) (executable string, argv []string, env []string, err error)

	DetectReady          func(tail string) bool
	DetectLogin          func(tail string) LoginInfo
	DetectBlockingPrompt func(tail string) BlockingPromptInfo
	DetectTaskComplete   func(tail string) bool
	DetectExit           func(tail string) ExitInfo
	ParseOutput          func(tail string) *ParsedOutput
}

// DefaultTailWindow is the size of the tail view handed to detectors when a
// caller does not specify one explicitly.
const DefaultTailWindow = 500

// DefaultScrollbackBudget is the default per-session scrollback character
// budget (spec.md §3 default ~200k).
const DefaultScrollbackBudget = 200_000

// DefaultDebounce is the minimum interval between repeated emissions of the
// same (session, event-kind) pair.
const DefaultDebounce = 150 * time.Millisecond
