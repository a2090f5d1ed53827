package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateForPlatformShortContentUntouched(t *testing.T) {
	content := "Short post about shipping."
	if got := TruncateForPlatform(content, 3000); got != content {
		t.Fatalf("expected content unchanged, got %q", got)
	}
}

func TestTruncateForPlatformEnforcesLimit(t *testing.T) {
	content := strings.Repeat("insight ", 500)
	got := TruncateForPlatform(content, 100)
	if n := utf8.RuneCountInString(got); n > 100 {
		t.Fatalf("expected at most 100 runes, got %d", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestTruncateForPlatformDeterministic(t *testing.T) {
	content := strings.Repeat("Publishing pipelines deserve tests. ", 200)
	first := TruncateForPlatform(content, 280)
	second := TruncateForPlatform(content, 280)
	if first != second {
		t.Fatalf("truncation not deterministic:\n%q\n%q", first, second)
	}
}

func TestTruncateForPlatformNormalizesBeforeCounting(t *testing.T) {
	// "é" precomposed vs decomposed must truncate identically.
	precomposed := strings.Repeat("é", 50)
	decomposed := strings.Repeat("é", 50)
	if TruncateForPlatform(precomposed, 20) != TruncateForPlatform(decomposed, 20) {
		t.Fatal("NFC-equivalent inputs truncated differently")
	}
}

func TestTruncateForPlatformPrefersWordBoundary(t *testing.T) {
	content := "alpha beta gamma delta epsilon zeta eta theta"
	got := TruncateForPlatform(content, 20)
	if got != "alpha beta gamma…" {
		t.Fatalf("expected cut at word boundary, got %q", got)
	}
}

func TestTruncateForPlatformDegenerateLimits(t *testing.T) {
	if got := TruncateForPlatform("anything", 0); got != "" {
		t.Fatalf("limit 0 should yield empty, got %q", got)
	}
	if got := TruncateForPlatform("anything", 1); got != "…" {
		t.Fatalf("limit 1 should yield ellipsis, got %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := map[string]string{
		"LinkedIn":   "linkedin",
		"  X / Post": "x___post",
		"":           "unknown",
		"---":        "unknown",
	}
	for in, want := range cases {
		if got := SanitizeToken(in); got != want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", in, got, want)
		}
	}
}
