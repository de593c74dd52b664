package pdftext

import (
	"regexp"
	"strings"
)

var (
	// pageFooterPattern matches "Page 3 of 12" footers.
	pageFooterPattern = regexp.MustCompile(`(?i)^page\s+\d+\s+of\s+\d+$`)

	// standalonePageNumberPattern matches lines containing only a page number.
	standalonePageNumberPattern = regexp.MustCompile(`^\d{1,4}$`)
)

// Clean normalizes extracted page text: line endings become "\n", form
// feeds and non-breaking spaces are removed, page footers are dropped and
// trailing whitespace is trimmed. A bare number is dropped only as the first
// or last line of the page; elsewhere it is a column value.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	first, last := contentBounds(lines)

	cleaned := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if pageFooterPattern.MatchString(trimmed) {
			continue
		}
		if (i == first || i == last) && standalonePageNumberPattern.MatchString(trimmed) {
			continue
		}
		cleaned = append(cleaned, line)
	}

	return strings.Trim(strings.Join(cleaned, "\n"), "\n")
}

// contentBounds returns the indexes of the first and last lines that are
// neither blank nor a page footer, or -1 when there are none.
func contentBounds(lines []string) (int, int) {
	first, last := -1, -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || pageFooterPattern.MatchString(trimmed) {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last
}
