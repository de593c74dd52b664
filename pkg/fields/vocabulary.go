package fields

import (
	"sort"
	"strings"
)

// VocabularySpec is the plain-data form of a Vocabulary, suitable for
// loading from profile files.
type VocabularySpec struct {
	FormatKeywords      []string `yaml:"format_keywords" json:"format_keywords"`
	OtherColumnKeywords []string `yaml:"other_column_keywords" json:"other_column_keywords"`
	DescriptionStarters []string `yaml:"description_starters" json:"description_starters"`
	Acronyms            []string `yaml:"acronyms" json:"acronyms"`
}

// Vocabulary holds the keyword sets used to classify lines. It is immutable
// once built and safe for concurrent use.
type Vocabulary struct {
	formatKeywords map[string]struct{}
	otherColumn    map[string]struct{}
	starters       map[string]struct{}
	acronyms       map[string]struct{}
}

// DefaultVocabularySpec returns the vocabulary for "Field Name | Field
// Description | Format | Max Size | May be NULL | Key" data guides.
func DefaultVocabularySpec() VocabularySpec {
	return VocabularySpec{
		FormatKeywords: []string{
			"ALPHANUMERIC", "NUMERIC", "DATE", "CHARACTER", "CHAR", "VARCHAR", "VARCHAR2",
			"INTEGER", "BIGINT", "TEXT", "BOOLEAN", "DECIMAL", "FLOAT", "TIMESTAMP", "DATETIME",
		},
		OtherColumnKeywords: []string{"YES", "NO", "*", "NULL"},
		DescriptionStarters: []string{
			"THE", "A", "AN", "FOR", "FIELD", "MAX", "SIZE", "FORMAT", "DESCRIPTION",
			"LENGTH", "NULLABLE", "COMMENTS", "THIS", "THAT", "THESE", "IF", "IN", "OF",
			"TO", "AND", "OR", "IS", "ARE", "WAS", "WHEN", "WHERE", "WHICH", "EACH", "ALL",
			"ANY", "SEE", "NOTE", "MAY", "BE", "WITH", "FROM", "BY", "ON", "AS", "AT",
			"NOT", "ONLY", "INDICATES", "DENOTES", "FIGURE", "TABLE", "PAGE", "DATA",
		},
		Acronyms: []string{
			"CIK", "XBRL", "EDGAR", "SEC", "SIC", "EIN", "CRD", "LEI", "NAICS", "URL",
			"XML", "HTML", "PDF", "CSV", "JSON", "API", "ISO", "USA",
		},
	}
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(DefaultVocabularySpec())
}

// NewVocabulary builds an immutable Vocabulary. Entries are matched
// case-insensitively; blank entries are ignored.
func NewVocabulary(spec VocabularySpec) Vocabulary {
	return Vocabulary{
		formatKeywords: toSet(spec.FormatKeywords),
		otherColumn:    toSet(spec.OtherColumnKeywords),
		starters:       toSet(spec.DescriptionStarters),
		acronyms:       toSet(spec.Acronyms),
	}
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		word = strings.ToUpper(strings.TrimSpace(word))
		if word != "" {
			set[word] = struct{}{}
		}
	}
	return set
}

func inSet(set map[string]struct{}, token string) bool {
	_, ok := set[strings.ToUpper(token)]
	return ok
}

// IsFormatKeyword reports whether token names a Format column value.
func (v Vocabulary) IsFormatKeyword(token string) bool {
	return inSet(v.formatKeywords, token)
}

// IsOtherColumnKeyword reports whether token is a YES/NO/key-marker style value.
func (v Vocabulary) IsOtherColumnKeyword(token string) bool {
	return inSet(v.otherColumn, token)
}

// IsColumnKeyword reports whether token belongs to a column other than the
// description, in any letter case.
func (v Vocabulary) IsColumnKeyword(token string) bool {
	return v.IsFormatKeyword(token) || v.IsOtherColumnKeyword(token)
}

// IsColumnKeywordExact is IsColumnKeyword restricted to tokens written in
// upper case, the way the column values are printed. Prose such as "date"
// or "No" does not match.
func (v Vocabulary) IsColumnKeywordExact(token string) bool {
	return token == strings.ToUpper(token) && v.IsColumnKeyword(token)
}

// IsColumnToken reports whether token is an upper-case column keyword or a
// bare number (a Max Size value).
func (v Vocabulary) IsColumnToken(token string) bool {
	return v.IsColumnKeywordExact(token) || isDigits(token)
}

// IsLeadingColumnToken is IsColumnToken in any letter case. It applies to
// the first token of a line, where "Yes" or "No" can only be column data.
func (v Vocabulary) IsLeadingColumnToken(token string) bool {
	return v.IsColumnKeyword(token) || isDigits(token)
}

// IsStarter reports whether token is a common description-starter word.
func (v Vocabulary) IsStarter(token string) bool {
	return inSet(v.starters, token)
}

// IsAcronym reports whether token is a known case-sensitive acronym.
func (v Vocabulary) IsAcronym(token string) bool {
	return inSet(v.acronyms, token)
}

// Spec returns the vocabulary as sorted plain data.
func (v Vocabulary) Spec() VocabularySpec {
	return VocabularySpec{
		FormatKeywords:      sortedKeys(v.formatKeywords),
		OtherColumnKeywords: sortedKeys(v.otherColumn),
		DescriptionStarters: sortedKeys(v.starters),
		Acronyms:            sortedKeys(v.acronyms),
	}
}

// Merge returns a vocabulary holding the union of v and extra.
func (v Vocabulary) Merge(extra VocabularySpec) Vocabulary {
	spec := v.Spec()
	spec.FormatKeywords = append(spec.FormatKeywords, extra.FormatKeywords...)
	spec.OtherColumnKeywords = append(spec.OtherColumnKeywords, extra.OtherColumnKeywords...)
	spec.DescriptionStarters = append(spec.DescriptionStarters, extra.DescriptionStarters...)
	spec.Acronyms = append(spec.Acronyms, extra.Acronyms...)
	return NewVocabulary(spec)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
