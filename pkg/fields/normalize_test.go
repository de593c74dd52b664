package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizer_FieldName(t *testing.T) {
	vocab := DefaultVocabulary()

	tests := []struct {
		name     string
		nameCase NameCase
		input    string
		want     string
	}{
		{"camel to snake", NameCaseUpperSnake, "xmlFieldName", "XML_FIELD_NAME"},
		{"acronym run", NameCaseUpperSnake, "XMLField", "XML_FIELD"},
		{"compound", NameCaseUpperSnake, "negatedTerse", "NEGATED_TERSE"},
		{"parenthetical", NameCaseUpperSnake, "NAME(Primary Issuer)", "NAME"},
		{"trailing digit", NameCaseUpperSnake, "NAME1", "NAME"},
		{"trailing underscore digit", NameCaseUpperSnake, "FIELD_2", "FIELD"},
		{"already upper", NameCaseUpperSnake, "ISSUER_SEQ_KEY", "ISSUER_SEQ_KEY"},
		{"acronym kept", NameCaseUpperSnake, "CIK", "CIK"},
		{"digits only", NameCaseUpperSnake, "123", "123"},
		{"empty", NameCaseUpperSnake, "", ""},
		{"fullwidth", NameCaseUpperSnake, "ＦＩＥＬＤ", "FIELD"},
		{"preserve lowercase", NameCasePreserve, "verbose", "verbose"},
		{"preserve camel", NameCasePreserve, "negatedTerse", "negatedTerse"},
		{"preserve strips digits", NameCasePreserve, "series2", "series"},
		{"spaced footnote digit", NameCaseUpperSnake, "abc 1", "ABC"},
		{"spaced footnote digits preserve", NameCasePreserve, "abc 1_ 2", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(tt.nameCase, vocab)
			assert.Equal(t, tt.want, n.FieldName(tt.input))
		})
	}
}

func TestNormalizer_FieldNameIdempotent(t *testing.T) {
	inputs := []string{
		"xmlFieldName", "XMLField", "NAME(Primary Issuer)", "NAME1", "FIELD_2", "__x__",
		"(x)", "A(", "a_B", "x1y2", "éCole", "CIK", "Cik2", "123", "", "  spaced  ",
		"ip4Addr", "ACCESSIONNUMBER", "verbose", "ＦＩＥＬＤ", "abc 1", "x 1_ 2", "a\t9",
	}

	for _, nameCase := range []NameCase{NameCaseUpperSnake, NameCasePreserve} {
		n := NewNormalizer(nameCase, DefaultVocabulary())
		for _, input := range inputs {
			once := n.FieldName(input)
			assert.Equal(t, once, n.FieldName(once), "mode %s input %q", nameCase, input)
		}
	}
}

func TestNormalizer_Key(t *testing.T) {
	n := NewNormalizer(NameCasePreserve, DefaultVocabulary())

	assert.Equal(t, n.Key("NEGATED_TERSE"), n.Key("negatedTerse"))
	assert.Equal(t, "VERBOSE", n.Key("verbose"))
}

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"join and collapse", []string{"The number ", "  assigned to the", "filing ."}, "The number assigned to the filing."},
		{"comma spacing", []string{"a , b"}, "a, b"},
		{"hyphen at wrap kept", []string{"a three-", "month period"}, "a three- month period"},
		{"hyphen before capital kept", []string{"non-", "US issuer"}, "non- US issuer"},
		{"nbsp", []string{"\u00a0text\u00a0"}, "text"},
		{"dotnet untouched", []string{"see .NET docs"}, "see .NET docs"},
		{"empty", nil, ""},
		{"blank parts", []string{"  ", ""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDescription(tt.parts...))
		})
	}
}
