package adapter

import "testing"

// TestClaudeReadyScenario grounds spec.md §8 scenario 1: feeding the literal
// greeting must yield a ready transition, and re-feeding the same tail must
// not toggle it a second time (idempotent detection on identical input).
func TestClaudeReadyScenario(t *testing.T) {
	tail := Tail("\nHow can I help you today?\n❯ ", DefaultTailWindow)
	if !Claude.DetectReady(tail) {
		t.Fatalf("Claude.DetectReady() = false, want true")
	}
	if !Claude.DetectReady(tail) {
		t.Fatalf("Claude.DetectReady() on repeat = false, want true")
	}
}

func TestClaudeDoesNotReportReadyMidstream(t *testing.T) {
	tail := Tail("Thinking about your request...\n", DefaultTailWindow)
	if Claude.DetectReady(tail) {
		t.Fatalf("Claude.DetectReady() = true, want false")
	}
}

// TestGeminiBlockingPromptIsAutoAnswerable grounds spec.md §8 scenario 2: the
// apply-change confirmation must be flagged auto-respondable with the
// expected key encoding, and the registered rule must be marked Once.
func TestGeminiBlockingPromptIsAutoAnswerable(t *testing.T) {
	tail := "Apply this change?"
	info := Gemini.DetectBlockingPrompt(tail)
	if !info.Detected || !info.CanAutoRespond {
		t.Fatalf("Gemini.DetectBlockingPrompt() = %+v, want Detected and CanAutoRespond", info)
	}
	var rule *AutoResponseRule
	for i := range Gemini.Rules {
		if Gemini.Rules[i].Name == "apply-change" {
			rule = &Gemini.Rules[i]
		}
	}
	if rule == nil {
		t.Fatalf("Gemini has no apply-change rule")
	}
	if !rule.Once || !rule.Safe {
		t.Fatalf("apply-change rule = %+v, want Once and Safe", rule)
	}
	encoded, err := EncodeResponse(*rule)
	if err != nil {
		t.Fatalf("EncodeResponse() error = %v", err)
	}
	if encoded != "\r" {
		t.Fatalf("EncodeResponse() = %q, want %q", encoded, "\r")
	}
}

// TestAiderDestructivePromptIsEscalatedNotAutoAnswered grounds spec.md §8
// scenario 3: a delete confirmation must surface as a non-auto-respondable
// blocking prompt, and aider must ship no rule that could answer it.
func TestAiderDestructivePromptIsEscalatedNotAutoAnswered(t *testing.T) {
	tail := "Delete file.txt? [y/n]"
	info := Aider.DetectBlockingPrompt(tail)
	if !info.Detected {
		t.Fatalf("Aider.DetectBlockingPrompt() Detected = false, want true")
	}
	if info.CanAutoRespond {
		t.Fatalf("Aider.DetectBlockingPrompt() CanAutoRespond = true, want false")
	}
	if info.Instructions == "" {
		t.Fatalf("Aider.DetectBlockingPrompt() Instructions empty, want guidance for a human")
	}
	if len(Aider.Rules) != 0 {
		t.Fatalf("Aider.Rules = %v, want no auto-response rules", Aider.Rules)
	}
}

func TestCodexAllowFolderRuleIsSafeAndOnce(t *testing.T) {
	var rule *AutoResponseRule
	for i := range Codex.Rules {
		if Codex.Rules[i].Name == "allow-folder" {
			rule = &Codex.Rules[i]
		}
	}
	if rule == nil {
		t.Fatalf("Codex has no allow-folder rule")
	}
	if !rule.Safe || !rule.Once {
		t.Fatalf("allow-folder rule = %+v, want Safe and Once", rule)
	}
	encoded, err := EncodeResponse(*rule)
	if err != nil {
		t.Fatalf("EncodeResponse() error = %v", err)
	}
	if encoded != "2\n" {
		t.Fatalf("EncodeResponse() = %q, want %q", encoded, "2\n")
	}
}
