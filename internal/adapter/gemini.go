package adapter

import (
	"os"
	"regexp"
	"strings"
)

var geminiReadyRe = regexp.MustCompile(`(?i)^\s*(gemini>|>)\s*$`)
var geminiLoginRe = regexp.MustCompile(`(?i)(sign in with google|authenticate with google|login required)`)

// Gemini describes the Google Gemini CLI. Grounded on spec.md §8 scenario 2:
// "Apply this change?" must auto-respond with a single enter keystroke and
// must never surface as a blocking_prompt event, with once semantics
// preventing a second write if the string reappears.
var Gemini = Adapter{
	Type: "gemini",
	Install: InstallDescriptor{
		Executable:   "gemini",
		CheckCommand: []string{"gemini", "--version"},
		InstallHint:  "npm install -g @google/gemini-cli",
	},
	Rules: []AutoResponseRule{
		{
			Name:        "apply-change",
			Pattern:     `(?i)apply this change\??`,
			Kind:        ResponseKeys,
			Response:    "enter",
			Safe:        true,
			Once:        true,
			Description: "accept a proposed edit",
		},
	},
	Launch: func(cfg LaunchConfig) (string, []string, []string, error) {
		argv := []string{}
		env := os.Environ()
		if key, ok := cfg.Config["googleKey"].(string); ok && key != "" {
			env = append(env, "GOOGLE_API_KEY="+key)
		}
		for k, v := range cfg.EnvDelta {
			env = append(env, k+"="+v)
		}
		return "gemini", argv, env, nil
	},
	DetectReady: func(tail string) bool {
		return geminiReadyRe.MatchString(LastLine(tail))
	},
	DetectLogin: func(tail string) LoginInfo {
		if geminiLoginRe.MatchString(tail) {
			return LoginInfo{Required: true, Kind: "oauth", Instructions: "run `gemini auth login`"}
		}
		return LoginInfo{}
	},
	DetectBlockingPrompt: func(tail string) BlockingPromptInfo {
		if strings.Contains(strings.ToLower(tail), "apply this change") {
			return BlockingPromptInfo{Detected: true, Kind: "apply-change", SuggestedResponse: "enter", CanAutoRespond: true}
		}
		return BlockingPromptInfo{}
	},
	DetectTaskComplete: func(tail string) bool {
		return regexp.MustCompile(`(?i)all changes applied\.?\s*$`).MatchString(LastLine(tail))
	},
	DetectExit: func(tail string) ExitInfo {
		return ExitInfo{}
	},
}
