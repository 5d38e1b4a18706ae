package notification

import (
	"strings"
	"testing"
)

func TestDisplayName(t *testing.T) {
	if got := displayName("Jamie", "+15551234567"); got != "Jamie" {
		t.Fatalf("expected name, got %q", got)
	}
	if got := displayName("", "+15551234567"); got != "+15551234567" {
		t.Fatalf("expected phone fallback, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 160); got != "short" {
		t.Fatalf("short string must pass through, got %q", got)
	}

	long := strings.Repeat("abcd", 50)
	got := truncate(long, 20)
	if len([]rune(got)) != 20 {
		t.Fatalf("expected 20 runes, got %d (%q)", len([]rune(got)), got)
	}
	if got[:19] != long[:19] {
		t.Fatalf("truncated prefix mismatch: %q", got)
	}

	// Multi-byte runes must not be split mid-sequence.
	got = truncate("héllo wörld, this is a nötification body", 10)
	if len([]rune(got)) != 10 {
		t.Fatalf("expected 10 runes, got %d (%q)", len([]rune(got)), got)
	}
}
