package fields

import (
	"regexp"
	"strings"
)

// SectionSpan is the raw text of one section, from the end of its caption
// to the start of the next caption line (or end of text).
type SectionSpan struct {
	Name  string
	Start int
	End   int
	Text  string
}

// SplitSections locates every caption in text and returns the spans in
// document order. Text without any caption yields no spans.
func SplitSections(text string, caption, captionLine *regexp.Regexp) []SectionSpan {
	matches := caption.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	group := caption.SubexpIndex("name")
	if group < 0 {
		group = 1
	}

	lineStarts := captionLine.FindAllStringIndex(text, -1)
	spans := make([]SectionSpan, 0, len(matches))

	for i, m := range matches {
		start := m[1]
		end := len(text)

		// Next caption line after this caption ends the span
		for _, ls := range lineStarts {
			if ls[0] >= start {
				end = ls[0]
				break
			}
		}
		if i+1 < len(matches) && matches[i+1][0] < end {
			end = matches[i+1][0]
		}

		name := ""
		if 2*group+1 < len(m) && m[2*group] >= 0 {
			name = strings.Join(strings.Fields(text[m[2*group]:m[2*group+1]]), " ")
		}

		spans = append(spans, SectionSpan{
			Name:  name,
			Start: start,
			End:   end,
			Text:  text[start:end],
		})
	}

	return spans
}

// LocateHeader finds the column header inside a span. It returns the body
// that follows the header and whether a header was found. When no header is
// found the body is empty.
func LocateHeader(span string, header *regexp.Regexp) (string, bool) {
	loc := header.FindStringIndex(span)
	if loc == nil {
		return "", false
	}
	return span[loc[1]:], true
}
