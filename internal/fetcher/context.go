package fetcher

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

// HasText reports whether any result carries body text.
func HasText(results []sentinel.SearchResult) bool {
	for _, r := range results {
		if strings.TrimSpace(r.Content) != "" {
			return true
		}
	}
	return false
}

// BuildContext renders results as labeled sources for the extraction prompt.
// Each body is truncated to maxChars runes when maxChars > 0. Results without
// text are skipped.
func BuildContext(results []sentinel.SearchResult, maxChars int) string {
	var b strings.Builder
	for _, r := range results {
		text := strings.TrimSpace(r.Content)
		if text == "" {
			continue
		}
		if maxChars > 0 {
			if runes := []rune(text); len(runes) > maxChars {
				text = string(runes[:maxChars]) + "…"
			}
		}
		published := r.PublishedDate
		if published == "" {
			published = "unknown"
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source %d] %s\nURL: %s\nPublished: %s\n%s", r.Index, r.Title, r.URL, published, text)
	}
	return b.String()
}
