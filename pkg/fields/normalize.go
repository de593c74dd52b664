package fields

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalizer canonicalizes field names and descriptions.
type Normalizer struct {
	nameCase NameCase
	vocab    Vocabulary
}

// NewNormalizer creates a normalizer for the given case mode.
func NewNormalizer(nameCase NameCase, vocab Vocabulary) Normalizer {
	return Normalizer{nameCase: nameCase, vocab: vocab}
}

// FieldName returns the canonical form of a raw field-name token. It is
// idempotent: FieldName(FieldName(x)) == FieldName(x).
func (n Normalizer) FieldName(raw string) string {
	name := strings.TrimSpace(norm.NFKC.String(raw))
	if name == "" {
		return ""
	}

	// Drop a trailing parenthetical qualifier: NAME(Primary Issuer) -> NAME
	if i := strings.IndexByte(name, '('); i > 0 {
		name = strings.TrimSpace(name[:i])
	}

	// Drop trailing footnote digits, underscores and the spaces between them
	// unless nothing would remain
	if trimmed := strings.TrimRightFunc(name, isNameSuffix); trimmed != "" {
		name = trimmed
	}

	if n.vocab.IsAcronym(name) || n.nameCase == NameCasePreserve {
		return name
	}
	return toUpperSnake(name)
}

// Key returns the deduplication key of an already-normalized name. Names
// that differ only in casing convention share a key.
func (n Normalizer) Key(name string) string {
	return strings.ToUpper(splitCamel(name))
}

// Description joins description fragments into one normalized string.
func (n Normalizer) Description(parts ...string) string {
	return NormalizeDescription(parts...)
}

// NormalizeDescription joins fragments with single spaces, applies NFKC,
// collapses whitespace and drops spaces before closing punctuation. A hyphen
// ending a fragment is kept as printed.
func NormalizeDescription(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		part = strings.TrimSpace(norm.NFKC.String(part))
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(part)
	}

	return tidyPunctuation(strings.Join(strings.Fields(b.String()), " "))
}

// tidyPunctuation removes the space in "word ." and "word ," when the mark
// ends a word. Input must already have single spaces.
func tidyPunctuation(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if r == ' ' && i+1 < len(runes) && isClosingPunct(runes[i+1]) &&
			(i+2 == len(runes) || runes[i+2] == ' ') {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func isClosingPunct(r rune) bool {
	switch r {
	case '.', ',', ';', ':':
		return true
	}
	return false
}

// toUpperSnake converts camelCase and PascalCase to UPPER_SNAKE. Names that
// carry no lower-case letters are returned unchanged.
func toUpperSnake(name string) string {
	hasLower := false
	for _, r := range name {
		if unicode.IsLower(r) {
			hasLower = true
			break
		}
	}
	if !hasLower {
		return name
	}
	return strings.ToUpper(splitCamel(name))
}

// splitCamel inserts underscores at lower-to-upper transitions and at the
// end of an upper-case run: xmlFieldName -> xml_Field_Name, XMLField -> XML_Field.
func splitCamel(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && runes[i-1] != '_' {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func startsLower(s string) bool {
	for _, r := range s {
		return unicode.IsLower(r)
	}
	return false
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

func isNameSuffix(r rune) bool {
	return (r >= '0' && r <= '9') || r == '_' || unicode.IsSpace(r)
}
