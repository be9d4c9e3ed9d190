package tagger

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate_ShortStringUntouched(t *testing.T) {
	if got := truncate("short", 60); got != "short" {
		t.Errorf("Expected %q, got %q", "short", got)
	}
}

func TestTruncate_CapsAtLimit(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := truncate(long, 60)
	if len(got) != 60 {
		t.Errorf("Expected 60 bytes, got %d", len(got))
	}
}

func TestTruncate_DoesNotSplitRunes(t *testing.T) {
	// Each ü is two bytes, so a byte limit of 5 lands mid-rune.
	got := truncate("üüüüü", 5)
	if !utf8.ValidString(got) {
		t.Errorf("Expected valid UTF-8, got %q", got)
	}
	if got != "üü" {
		t.Errorf("Expected %q, got %q", "üü", got)
	}
}
