package session

import (
	"strings"
	"sync"
	"time"

	"github.com/HaruHunab1320/parallax/internal/adapter"
)

// Chunk is one append to a session's scrollback, tagged with the byte offset
// of its first byte in the logical (unbounded) output stream and the time it
// was appended. Offset keeps meaning even after older chunks are evicted.
type Chunk struct {
	Offset int64
	Data   []byte
	At     time.Time
}

// Scrollback is a single-writer, many-reader ring buffer of output chunks
// capped at a character budget, adapted from codex-interactive-driver's
// runner.appendOutput/outputString/tail (a flat []byte buffer trimmed from
// the front on overflow). This version keeps chunk boundaries and offsets so
// callers can request "everything since offset X" without rescanning.
type Scrollback struct {
	mu     sync.Mutex
	chunks []Chunk
	total  int // bytes currently held across all chunks
	budget int
	next   int64 // offset the next appended byte will receive
}

// NewScrollback returns a buffer capped at budget characters. A non-positive
// budget falls back to adapter.DefaultScrollbackBudget.
func NewScrollback(budget int) *Scrollback {
	if budget <= 0 {
		budget = adapter.DefaultScrollbackBudget
	}
	return &Scrollback{budget: budget}
}

// Append adds data to the buffer, evicting the oldest chunks until the
// budget is satisfied, and returns the Chunk recording its offset.
func (s *Scrollback) Append(data []byte) Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Chunk{Offset: s.next, Data: append([]byte(nil), data...), At: time.Now()}
	s.next += int64(len(data))
	s.chunks = append(s.chunks, c)
	s.total += len(data)
	for s.total > s.budget && len(s.chunks) > 1 {
		evicted := s.chunks[0]
		s.chunks = s.chunks[1:]
		s.total -= len(evicted.Data)
	}
	if s.total > s.budget && len(s.chunks) == 1 {
		only := s.chunks[0]
		if len(only.Data) > s.budget {
			trimmed := only.Data[len(only.Data)-s.budget:]
			s.chunks[0] = Chunk{
				Offset: only.Offset + int64(len(only.Data)-len(trimmed)),
				Data:   trimmed,
				At:     only.At,
			}
			s.total = len(trimmed)
		}
	}
	return c
}

// String returns a copy of the full retained buffer as text.
func (s *Scrollback) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	b.Grow(s.total)
	for _, c := range s.chunks {
		b.Write(c.Data)
	}
	return b.String()
}

// Tail returns the ANSI-stripped last n bytes of the retained buffer — the
// only view spec.md §4.1 permits detectors to read.
func (s *Scrollback) Tail(n int) string {
	if n <= 0 {
		n = adapter.DefaultTailWindow
	}
	return adapter.Tail(s.String(), n)
}

// Len reports the number of bytes currently retained (post-eviction).
func (s *Scrollback) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// NextOffset reports the logical offset the next appended byte will carry.
func (s *Scrollback) NextOffset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
