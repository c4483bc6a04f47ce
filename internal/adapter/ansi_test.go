package adapter

import "testing"

func TestStripANSIRemovesCSIAndOSC(t *testing.T) {
	in := "\x1b[2J\x1b[1;1Hhello\x1b]0;title\x07 world\x1b[0m"
	got := StripANSI(in)
	want := "hello world"
	if got != want {
		t.Fatalf("StripANSI() = %q, want %q", got, want)
	}
}

func TestCursorForwardBecomesSpaces(t *testing.T) {
	in := "a\x1b[3Cb"
	got := StripANSI(in)
	want := "a   b"
	if got != want {
		t.Fatalf("StripANSI() = %q, want %q", got, want)
	}
}

func TestCursorForwardNoDigitsDefaultsToOne(t *testing.T) {
	in := "a\x1b[Cb"
	got := StripANSI(in)
	want := "a b"
	if got != want {
		t.Fatalf("StripANSI() = %q, want %q", got, want)
	}
}

func TestTailReturnsLastNBytes(t *testing.T) {
	in := "0123456789"
	got := Tail(in, 4)
	if got != "6789" {
		t.Fatalf("Tail() = %q, want %q", got, "6789")
	}
}

func TestTailShorterThanWindowReturnsAll(t *testing.T) {
	in := "abc"
	if got := Tail(in, 500); got != "abc" {
		t.Fatalf("Tail() = %q, want %q", got, "abc")
	}
}

func TestLastLineSkipsBlankTrailingLines(t *testing.T) {
	in := "first\nsecond\n\n   \n"
	got := LastLine(in)
	if got != "second" {
		t.Fatalf("LastLine() = %q, want %q", got, "second")
	}
}

func TestLastLineStripsCarriageReturns(t *testing.T) {
	in := "hello\r\nworld\r"
	got := LastLine(in)
	if got != "world" {
		t.Fatalf("LastLine() = %q, want %q", got, "world")
	}
}
