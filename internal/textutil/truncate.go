package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const ellipsis = "…"

// wordBreakWindow bounds how far TruncateForPlatform backtracks looking for a
// word boundary before giving up and cutting mid-word.
const wordBreakWindow = 30

// TruncateForPlatform normalizes content and enforces a platform character
// limit. The result is deterministic: identical input always yields identical
// output. Counting is in runes over NFC-normalized text so a decomposed and a
// precomposed spelling of the same content truncate identically. When content
// is cut, the last rune inside the limit becomes an ellipsis and the cut
// prefers the nearest preceding word boundary within a fixed window.
func TruncateForPlatform(content string, limit int) string {
	normalized := strings.TrimSpace(norm.NFC.String(content))
	if limit <= 0 {
		return ""
	}

	runes := []rune(normalized)
	if len(runes) <= limit {
		return normalized
	}
	if limit == 1 {
		return ellipsis
	}

	cut := limit - 1
	for i := cut; i > cut-wordBreakWindow && i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}

	truncated := strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace)
	return truncated + ellipsis
}
