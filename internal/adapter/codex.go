package adapter

import (
	"os"
	"regexp"
)

// codexReadyRe mirrors codex-stdout-parser's default --ready-regex.
var codexReadyRe = regexp.MustCompile(`(?i)(context left|openai codex|>_)`)
var codexLoginRe = regexp.MustCompile(`(?i)(sign in to openai|login required|not signed in)`)

// Codex describes the OpenAI Codex CLI. Grounded on codex-monitor's
// promptHandlers table and codex-stdout-parser's ready-regex default.
var Codex = Adapter{
	Type: "codex",
	Install: InstallDescriptor{
		Executable:   "codex",
		CheckCommand: []string{"codex", "--version"},
		InstallHint:  "npm install -g @openai/codex",
	},
	Rules: []AutoResponseRule{
		{
			Name:        "allow-folder",
			Pattern:     `(?i)allow codex to work in this folder\??`,
			Kind:        ResponseText,
			Response:    "2",
			Safe:        true,
			Once:        true,
			Description: "grant codex write access to the current working folder",
		},
		{
			Name:        "press-enter",
			Pattern:     `(?i)press enter to continue`,
			Kind:        ResponseKeys,
			Response:    "enter",
			Safe:        true,
			Once:        false,
			Description: "dismiss a continue banner; may legitimately repeat",
		},
	},
	Launch: func(cfg LaunchConfig) (string, []string, []string, error) {
		argv := []string{}
		env := os.Environ()
		if key, ok := cfg.Config["openaiKey"].(string); ok && key != "" {
			env = append(env, "OPENAI_API_KEY="+key)
		}
		for k, v := range cfg.EnvDelta {
			env = append(env, k+"="+v)
		}
		return "codex", argv, env, nil
	},
	DetectReady: func(tail string) bool {
		return codexReadyRe.MatchString(LastLine(tail))
	},
	DetectLogin: func(tail string) LoginInfo {
		if codexLoginRe.MatchString(tail) {
			return LoginInfo{Required: true, Kind: "oauth", Instructions: "run `codex login`"}
		}
		return LoginInfo{}
	},
	DetectBlockingPrompt: func(tail string) BlockingPromptInfo {
		if regexp.MustCompile(`(?i)allow codex to work in this folder\??`).MatchString(tail) {
			return BlockingPromptInfo{Detected: true, Kind: "allow-folder", SuggestedResponse: "2", CanAutoRespond: true}
		}
		return BlockingPromptInfo{}
	},
	DetectTaskComplete: func(tail string) bool {
		return regexp.MustCompile(`(?i)^(task complete|done)\.?\s*$`).MatchString(LastLine(tail))
	},
	DetectExit: func(tail string) ExitInfo {
		return ExitInfo{}
	},
}
