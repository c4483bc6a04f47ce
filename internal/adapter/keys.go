package adapter

import (
	"fmt"
	"strings"
)

// keyEscapes maps the small key vocabulary spec.md §3 defines for
// AutoResponseRule.Kind == keys to their terminal escape encodings.
// Adapted from codex-interactive-driver's decodeKey.
var keyEscapes = map[string]string{
	"enter":  "\r",
	"tab":    "\t",
	"esc":    "\x1b",
	"up":     "\x1b[A",
	"down":   "\x1b[B",
	"left":   "\x1b[D",
	"right":  "\x1b[C",
	"space":  " ",
	"ctrl+c": "\x03",
}

// EncodeKeys translates a space-separated sequence drawn from the key
// vocabulary into the literal bytes to write to a child's PTY.
func EncodeKeys(sequence string) (string, error) {
	var b strings.Builder
	for _, name := range strings.Fields(sequence) {
		code, ok := keyEscapes[strings.ToLower(name)]
		if !ok {
			return "", fmt.Errorf("adapter: unsupported key %q", name)
		}
		b.WriteString(code)
	}
	return b.String(), nil
}

// EncodeResponse renders an AutoResponseRule's response payload as the bytes
// to write to the child: a keys sequence is decoded via EncodeKeys, a text
// literal gets a trailing newline appended.
func EncodeResponse(rule AutoResponseRule) (string, error) {
	switch rule.Kind {
	case ResponseKeys:
		return EncodeKeys(rule.Response)
	case ResponseText:
		return rule.Response + "\n", nil
	default:
		return "", fmt.Errorf("adapter: unknown response kind %q", rule.Kind)
	}
}
