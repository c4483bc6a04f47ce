package adapter

import (
	"os"
	"regexp"
	"strings"
)

var aiderReadyRe = regexp.MustCompile(`(?i)^\s*>\s*$`)
var aiderLoginRe = regexp.MustCompile(`(?i)(no api key|set your .*_api_key|please provide an api key)`)
var aiderDestructiveRe = regexp.MustCompile(`(?i)\bdelete\b.*\[y/n\]\s*\??\s*$|\bremove\b.*\[y/n\]\s*\??\s*$|\boverwrite\b.*\[y/n\]\s*\??\s*$`)

// Aider describes the Aider pair-programming CLI. Grounded on spec.md §8
// scenario 3: "Delete file.txt? [y/n]" must never be auto-answered — it is
// reported as a session_status{kind: blocking_prompt} event with
// instructions and CanAutoRespond false, so no write is ever issued for it.
var Aider = Adapter{
	Type: "aider",
	Install: InstallDescriptor{
		Executable:   "aider",
		CheckCommand: []string{"aider", "--version"},
		InstallHint:  "pip install aider-chat",
	},
	// Deliberately no Rules entries: destructive y/n confirmations are the
	// only prompt shape this adapter recognizes, and they are unsafe by
	// definition, so there is nothing here for the auto-response path to do.
	Rules: nil,
	Launch: func(cfg LaunchConfig) (string, []string, []string, error) {
		argv := []string{"--no-pretty"}
		env := os.Environ()
		if key, ok := cfg.Config["openaiKey"].(string); ok && key != "" {
			env = append(env, "OPENAI_API_KEY="+key)
		}
		if key, ok := cfg.Config["anthropicKey"].(string); ok && key != "" {
			env = append(env, "ANTHROPIC_API_KEY="+key)
		}
		for k, v := range cfg.EnvDelta {
			env = append(env, k+"="+v)
		}
		return "aider", argv, env, nil
	},
	DetectReady: func(tail string) bool {
		return aiderReadyRe.MatchString(LastLine(tail))
	},
	DetectLogin: func(tail string) LoginInfo {
		if aiderLoginRe.MatchString(tail) {
			return LoginInfo{Required: true, Kind: "api_key", Instructions: "export the provider API key aider expects and restart"}
		}
		return LoginInfo{}
	},
	DetectBlockingPrompt: func(tail string) BlockingPromptInfo {
		line := LastLine(tail)
		if aiderDestructiveRe.MatchString(line) {
			return BlockingPromptInfo{
				Detected:          true,
				Kind:              "destructive-confirm",
				SuggestedResponse: "",
				CanAutoRespond:    false,
				Instructions:      "aider is asking to delete, remove, or overwrite a file; respond manually",
			}
		}
		return BlockingPromptInfo{}
	},
	DetectTaskComplete: func(tail string) bool {
		return strings.Contains(strings.ToLower(LastLine(tail)), "applied edit to")
	},
	DetectExit: func(tail string) ExitInfo {
		if regexp.MustCompile(`(?i)^(goodbye|exiting aider)\.?\s*$`).MatchString(LastLine(tail)) {
			return ExitInfo{Exited: true, Code: 0, Reason: "assistant exited"}
		}
		return ExitInfo{}
	},
}
