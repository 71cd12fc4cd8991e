package collab

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// PreviewLength is the maximum preview size in runes
const PreviewLength = 120

var (
	htmlTagRe  = regexp.MustCompile(`<[^>]*>`)
	deadlineRe = regexp.MustCompile(`(?i)\b(deadline|due|asap|eod|eow|cob|urgent|by (today|tonight|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday|end of (day|week)))\b`)
	questionRe = regexp.MustCompile(`(?i)^\s*(can|could|would|will|should|do|does|did|is|are|was|were|have|has|any|what|when|where|who|why|how|which|please|thoughts)\b`)
)

// PlainText strips HTML tags and entities and collapses whitespace
func PlainText(s string) string {
	if strings.ContainsRune(s, '<') {
		s = htmlTagRe.ReplaceAllString(s, " ")
	}
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// Preview returns at most PreviewLength runes of plain text
func Preview(s string) string {
	s = PlainText(s)
	if utf8.RuneCountInString(s) <= PreviewLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:PreviewLength-1])) + "…"
}

// IsQuestion reports whether text asks something of the reader
func IsQuestion(text string) bool {
	text = PlainText(text)
	if strings.Contains(text, "?") {
		return true
	}
	return questionRe.MatchString(text)
}

// HasDeadlineMention reports whether text carries deadline vocabulary
func HasDeadlineMention(text string) bool {
	return deadlineRe.MatchString(PlainText(text))
}
