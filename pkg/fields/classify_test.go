package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(DefaultVocabulary(), nil)

	active := State{Active: true, HasDescription: true}

	tests := []struct {
		name     string
		state    State
		line     string
		wantKind VerdictKind
		wantName string
		wantDesc string
		wantTerm bool
		wantRule string
	}{
		{name: "blank", line: "   ", wantKind: VerdictSkip, wantRule: "blank"},
		{name: "dash rule", line: "-----------", wantKind: VerdictSkip, wantRule: "blank"},
		{name: "dot leader", line: "Field names ........ 5", wantKind: VerdictSkip, wantRule: "blank"},
		{name: "caption", line: "Figure 4. Something else", wantKind: VerdictSectionEnd, wantRule: "caption"},
		{
			name: "new field with keyword", line: "FIELD_ONE Some text. ALPHANUMERIC",
			wantKind: VerdictNewField, wantName: "FIELD_ONE", wantDesc: "Some text.", wantTerm: true, wantRule: "new-field",
		},
		{
			name: "new field open", line: "FILE_NUM The number assigned",
			wantKind: VerdictNewField, wantName: "FILE_NUM", wantDesc: "The number assigned", wantRule: "new-field",
		},
		{
			name: "no description", line: "FIELD_EMPTY NUMERIC 10",
			wantKind: VerdictNewFieldNoDescription, wantName: "FIELD_EMPTY", wantTerm: true, wantRule: "new-field-no-description",
		},
		{
			name: "no description size only", line: "FIELD_SIZE 25",
			wantKind: VerdictNewFieldNoDescription, wantName: "FIELD_SIZE", wantTerm: true, wantRule: "new-field-no-description",
		},
		{
			name: "two column lowercase", line: "verbose Enables verbose output.",
			wantKind: VerdictNewField, wantName: "verbose", wantDesc: "Enables verbose output.", wantRule: "two-column",
		},
		{
			name: "parenthetical token", line: "NAME(Primary Issuer) The issuer name.",
			wantKind: VerdictNewField, wantName: "NAME(Primary Issuer)", wantDesc: "The issuer name.", wantRule: "new-field",
		},
		{
			name: "continuation", state: active, line: "that spans multiple",
			wantKind: VerdictContinuation, wantDesc: "that spans multiple", wantRule: "continuation",
		},
		{
			name: "continuation with keyword", state: active, line: "filing. ALPHANUMERIC 30 Yes",
			wantKind: VerdictContinuation, wantDesc: "filing.", wantTerm: true, wantRule: "continuation",
		},
		{
			name: "prose keyword not a column", state: active, line: "the date of the filing",
			wantKind: VerdictContinuation, wantDesc: "the date of the filing", wantRule: "continuation",
		},
		{
			name: "terminator", state: active, line: "ALPHANUMERIC 25 Yes",
			wantKind: VerdictTerminator, wantTerm: true, wantRule: "continuation",
		},
		{
			name: "terminator digits", state: active, line: "25",
			wantKind: VerdictTerminator, wantTerm: true, wantRule: "continuation",
		},
		{
			name: "mixed case terminator", state: active, line: "Yes",
			wantKind: VerdictTerminator, wantTerm: true, wantRule: "continuation",
		},
		{
			name: "mixed case terminator with key marker", state: active, line: "No *",
			wantKind: VerdictTerminator, wantTerm: true, wantRule: "continuation",
		},
		{
			name: "no description mixed case columns", line: "FIELD_FLAG Yes",
			wantKind: VerdictNewFieldNoDescription, wantName: "FIELD_FLAG", wantTerm: true, wantRule: "new-field-no-description",
		},
		{
			name: "description opening with keyword word", line: "FIELD_DATE Date the filing was made.",
			wantKind: VerdictNewField, wantName: "FIELD_DATE", wantDesc: "Date the filing was made.", wantRule: "new-field",
		},
		{
			name: "capitalized name with no active field", line: "Issuer Name of the issuer. TEXT",
			wantKind: VerdictNewField, wantName: "Issuer", wantDesc: "Name of the issuer.", wantTerm: true, wantRule: "new-field",
		},
		{
			name: "capitalized word while field active", state: active, line: "Issuer name follows",
			wantKind: VerdictContinuation, wantDesc: "Issuer name follows", wantRule: "continuation",
		},
		{
			name: "bare word inside sentence", state: active, line: "lines",
			wantKind: VerdictContinuation, wantDesc: "lines", wantRule: "continuation",
		},
		{
			name: "bare word after sentence", state: State{Active: true, HasDescription: true, DescriptionComplete: true}, line: "series",
			wantKind: VerdictNewField, wantName: "series", wantRule: "new-field",
		},
		{
			name: "compound merge", state: State{Active: true, MergeBase: "negated"}, line: "Terse Suppresses headers. BOOLEAN",
			wantKind: VerdictCompoundNameMerge, wantName: "negatedTerse", wantDesc: "Suppresses headers.", wantTerm: true, wantRule: "compound-name-merge",
		},
		{
			name: "no merge onto upper name", state: State{Active: true, MergeBase: "FIELD_A"}, line: "Terse Suppresses headers.",
			wantKind: VerdictContinuation, wantDesc: "Terse Suppresses headers.", wantRule: "continuation",
		},
		{
			name: "no merge with starter", state: State{Active: true, MergeBase: "negated"}, line: "The flag.",
			wantKind: VerdictContinuation, wantDesc: "The flag.", wantRule: "continuation",
		},
		{name: "orphan prose", line: "of random prose words", wantKind: VerdictOrphan, wantRule: "orphan"},
		{
			name: "plain word with text and no active field", line: "series number of the filing.",
			wantKind: VerdictNewField, wantName: "series", wantDesc: "number of the filing.", wantRule: "new-field",
		},
		{
			name: "plain word with text while field active", state: State{Active: true, HasDescription: true, DescriptionComplete: true}, line: "series number",
			wantKind: VerdictContinuation, wantDesc: "series number", wantRule: "continuation",
		},
		{name: "orphan keyword row", line: "NUMERIC 10 Yes", wantKind: VerdictOrphan, wantRule: "orphan"},
		{name: "starter is not a name", line: "THE END", wantKind: VerdictOrphan, wantRule: "orphan"},
		{name: "leftover header columns", line: "Data Type Length Nullable", wantKind: VerdictOrphan, wantRule: "orphan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.state, tt.line)
			assert.Equal(t, tt.wantKind, got.Kind, "kind %s", got.Kind)
			assert.Equal(t, tt.wantRule, got.Rule)
			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, tt.wantDesc, got.Description)
			assert.Equal(t, tt.wantTerm, got.Terminated)
		})
	}
}

func TestClassifier_Shapes(t *testing.T) {
	c := NewClassifier(DefaultVocabulary(), nil)

	tests := []struct {
		token string
		want  nameShape
	}{
		{"ACCESSIONNUMBER", shapeIdentifier},
		{"FIELD_X", shapeIdentifier},
		{"isPrimary", shapeIdentifier},
		{"is_primary", shapeIdentifier},
		{"XmlField", shapeIdentifier},
		{"NAME(Primary Issuer)", shapeIdentifier},
		{"verbose", shapeWord},
		{"ID", shapeNone},
		{"123", shapeNone},
		{"NUMERIC", shapeNone},
		{"THE", shapeNone},
		{"Description", shapeNone},
		{"Suppresses", shapeLoose},
		{"Issuer", shapeLoose},
		{"Yes", shapeNone},
		{"filing.", shapeNone},
		{"___", shapeNone},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, c.shapeOf(tt.token))
		})
	}
}

func TestVerdictKind_String(t *testing.T) {
	assert.Equal(t, "compound-name-merge", VerdictCompoundNameMerge.String())
	assert.Equal(t, "unknown", VerdictKind(99).String())
}
