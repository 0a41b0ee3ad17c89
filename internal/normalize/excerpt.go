package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxExcerptRunes = 500

// CleanExcerpt strips markup from a feed description, collapses
// whitespace and truncates to a readable length.
func CleanExcerpt(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	text := s
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			text = doc.Text()
		}
	}
	return truncate(strings.Join(strings.Fields(text), " "), maxExcerptRunes)
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
