package adapter

import "strings"

// StripANSI removes ANSI escape sequences (CSI and OSC forms) from s,
// converting cursor-forward movement into spaces first so that, e.g., a
// spinner frame redrawn in place reads as whitespace rather than vanishing
// entirely. Adapted from codex-interactive-driver's stripANSI, extended with
// the cursor-forward-to-space pass spec.md §4.1 requires before any
// detector regex runs.
func StripANSI(s string) string {
	if s == "" {
		return ""
	}
	s = cursorForwardToSpaces(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == 0x1b && i+1 < len(s) {
			switch s[i+1] {
			case '[':
				i += 2
				for i < len(s) {
					c := s[i]
					if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
						i++
						break
					}
					i++
				}
				continue
			case ']':
				i += 2
				for i < len(s) {
					if s[i] == 0x07 {
						i++
						break
					}
					if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '\\' {
						i += 2
						break
					}
					i++
				}
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// cursorForwardToSpaces rewrites "ESC [ <n> C" cursor-forward sequences into
// n literal spaces, preserving the horizontal offset a redrawn TUI line
// implies instead of silently dropping it.
func cursorForwardToSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == 0x1b && i+2 < len(s) && s[i+1] == '[' {
			j := i + 2
			digitsStart := j
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			if j < len(s) && s[j] == 'C' {
				n := 1
				if j > digitsStart {
					n = 0
					for _, c := range s[digitsStart:j] {
						n = n*10 + int(c-'0')
					}
					if n == 0 {
						n = 1
					}
				}
				if n > 4096 {
					n = 4096
				}
				for k := 0; k < n; k++ {
					b.WriteByte(' ')
				}
				i = j + 1
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// Tail returns the last n bytes of s, the ANSI-stripped view that spec.md
// §3 calls the "tail": the only input every detector is allowed to read.
func Tail(s string, n int) string {
	if n <= 0 {
		n = DefaultTailWindow
	}
	stripped := StripANSI(s)
	if len(stripped) <= n {
		return stripped
	}
	return stripped[len(stripped)-n:]
}

// LastLine returns the trimmed final non-empty line of text, used by
// prompt-shape detectors that key off of a trailing prompt glyph.
func LastLine(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	parts := strings.Split(text, "\n")
	for i := len(parts) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(parts[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
