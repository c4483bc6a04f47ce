package adapter

import (
	"os"
	"regexp"
	"strings"
)

var claudeReadyRe = regexp.MustCompile(`(?i)how can i help you today\??\s*$|^\s*[❯>]\s*$`)
var claudeLoginRe = regexp.MustCompile(`(?i)(please log in|visit.*to authenticate|login required|not authenticated)`)
var claudeExitRe = regexp.MustCompile(`(?i)^(goodbye|bye|exiting)\s*$`)

// Claude describes the Anthropic Claude Code CLI. Ready detection is
// grounded on spec.md §8 scenario 1: the literal string
// "\nHow can I help you today?\n❯ " must yield exactly one ready transition.
var Claude = Adapter{
	Type: "claude",
	Install: InstallDescriptor{
		Executable:   "claude",
		CheckCommand: []string{"claude", "--version"},
		InstallHint:  "npm install -g @anthropic-ai/claude-code",
	},
	Rules: []AutoResponseRule{
		{
			Name:        "trust-folder",
			Pattern:     `(?i)do you trust the files in this folder\??`,
			Kind:        ResponseKeys,
			Response:    "enter",
			Safe:        true,
			Once:        true,
			Description: "accept the default (trust) answer to the one-time folder-trust prompt",
		},
	},
	Launch: func(cfg LaunchConfig) (string, []string, []string, error) {
		argv := []string{}
		if v, ok := cfg.Config["approvalPreset"].(string); ok {
			switch v {
			case "autonomous":
				argv = append(argv, "--dangerously-skip-permissions")
			case "permissive":
				argv = append(argv, "--permission-mode", "acceptEdits")
			}
		}
		env := os.Environ()
		if key, ok := cfg.Config["anthropicKey"].(string); ok && key != "" {
			env = append(env, "ANTHROPIC_API_KEY="+key)
		}
		for k, v := range cfg.EnvDelta {
			env = append(env, k+"="+v)
		}
		return "claude", argv, env, nil
	},
	DetectReady: func(tail string) bool {
		return claudeReadyRe.MatchString(LastLine(tail)) || claudeReadyRe.MatchString(tail)
	},
	DetectLogin: func(tail string) LoginInfo {
		if claudeLoginRe.MatchString(tail) {
			return LoginInfo{Required: true, Kind: "oauth", Instructions: "run `claude login` or follow the printed URL"}
		}
		return LoginInfo{}
	},
	DetectBlockingPrompt: func(tail string) BlockingPromptInfo {
		if strings.Contains(strings.ToLower(tail), "do you trust the files in this folder") {
			return BlockingPromptInfo{Detected: true, Kind: "trust-folder", SuggestedResponse: "enter", CanAutoRespond: true}
		}
		return BlockingPromptInfo{}
	},
	DetectTaskComplete: func(tail string) bool {
		return regexp.MustCompile(`(?i)(task complete|done\.|finished\.)\s*$`).MatchString(LastLine(tail))
	},
	DetectExit: func(tail string) ExitInfo {
		if claudeExitRe.MatchString(LastLine(tail)) {
			return ExitInfo{Exited: true, Code: 0, Reason: "assistant exited"}
		}
		return ExitInfo{}
	},
}
