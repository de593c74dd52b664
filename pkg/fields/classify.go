package fields

import (
	"regexp"
	"strings"
)

// VerdictKind is the classification of one body line.
type VerdictKind int

const (
	VerdictSkip VerdictKind = iota
	VerdictSectionEnd
	VerdictCompoundNameMerge
	VerdictNewField
	VerdictNewFieldNoDescription
	VerdictTerminator
	VerdictContinuation
	VerdictOrphan
)

var verdictNames = map[VerdictKind]string{
	VerdictSkip:                  "skip",
	VerdictSectionEnd:            "section-end",
	VerdictCompoundNameMerge:     "compound-name-merge",
	VerdictNewField:              "new-field",
	VerdictNewFieldNoDescription: "new-field-no-description",
	VerdictTerminator:            "terminator",
	VerdictContinuation:          "continuation",
	VerdictOrphan:                "orphan",
}

func (k VerdictKind) String() string {
	if name, ok := verdictNames[k]; ok {
		return name
	}
	return "unknown"
}

// Verdict is the outcome of classifying a line against the accumulator state.
type Verdict struct {
	Kind VerdictKind
	// Rule names the rule that fired.
	Rule string
	// Name is the raw field-name token, or the merged name for a compound merge.
	Name string
	// Description is the description text this line contributes, already cut
	// at the first column keyword.
	Description string
	// Terminated is set when a column keyword ended the description on this line.
	Terminated bool
}

// State is the accumulator state a line is classified against.
type State struct {
	// Active is true while a field is accumulating a description.
	Active bool
	// HasDescription reports whether the active field has description text.
	HasDescription bool
	// DescriptionComplete reports whether that text ends a sentence.
	DescriptionComplete bool
	// MergeBase is the raw name a compound-name merge would extend: the most
	// recent active field without description, or failing that the last
	// emitted record if its description is empty. Empty when neither applies.
	MergeBase string
}

type nameShape int

const (
	shapeNone nameShape = iota
	// shapeWord is a plain lower-case word. While a field is active it starts
	// a new one only when it stands alone where a new row is plausible.
	shapeWord
	// shapeIdentifier is an all-caps, camelCase or PascalCase identifier.
	shapeIdentifier
	// shapeLoose is any other letter-initial token of length >= 3, such as
	// "Issuer". It starts a field only while no field is active.
	shapeLoose
)

var (
	upperIdent       = regexp.MustCompile(`^[A-Z0-9_]{3,}$`)
	camelIdent       = regexp.MustCompile(`^[a-z][a-z0-9]*[A-Z0-9_][A-Za-z0-9_]*$`)
	pascalIdent      = regexp.MustCompile(`^[A-Z][a-z0-9]+[A-Z][A-Za-z0-9_]*$`)
	plainWord        = regexp.MustCompile(`^[a-z]{3,}$`)
	looseName        = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{2,}$`)
	lowerInitialName = regexp.MustCompile(`^[a-z][A-Za-z0-9]*$`)
	capitalizedWord  = regexp.MustCompile(`^[A-Z][a-z][A-Za-z0-9]*$`)
	separatorLine    = regexp.MustCompile(`^(?:[-.=_]\s*){3,}$`)
	dotLeader        = regexp.MustCompile(`\.{4,}`)
)

// line is a body line split into its first token and the remainder.
type line struct {
	text  string
	first string
	rest  []string
	shape nameShape
}

type rule struct {
	name  string
	apply func(c *Classifier, st State, ln line) (Verdict, bool)
}

// Classifier assigns a Verdict to each body line. Rules are evaluated in a
// fixed order and the first match wins.
type Classifier struct {
	vocab       Vocabulary
	captionLine *regexp.Regexp
	rules       []rule
}

// NewClassifier creates a classifier. A nil captionLine uses the default.
func NewClassifier(vocab Vocabulary, captionLine *regexp.Regexp) *Classifier {
	if captionLine == nil {
		captionLine = defaultCaptionLinePattern
	}
	return &Classifier{
		vocab:       vocab,
		captionLine: captionLine,
		rules: []rule{
			{name: "compound-name-merge", apply: (*Classifier).matchCompoundMerge},
			{name: "two-column", apply: (*Classifier).matchTwoColumn},
			{name: "new-field-no-description", apply: (*Classifier).matchNoDescription},
			{name: "new-field", apply: (*Classifier).matchNewField},
			{name: "continuation", apply: (*Classifier).matchContinuation},
		},
	}
}

// Classify returns the verdict for one raw body line.
func (c *Classifier) Classify(st State, raw string) Verdict {
	text := strings.TrimSpace(raw)
	if text == "" || separatorLine.MatchString(text) || dotLeader.MatchString(text) {
		return Verdict{Kind: VerdictSkip, Rule: "blank"}
	}
	if c.captionLine.MatchString(text) {
		return Verdict{Kind: VerdictSectionEnd, Rule: "caption"}
	}

	ln := c.split(text)
	for _, r := range c.rules {
		if v, ok := r.apply(c, st, ln); ok {
			v.Rule = r.name
			return v
		}
	}
	return Verdict{Kind: VerdictOrphan, Rule: "orphan"}
}

// split separates the first token from the rest of the line. A first token
// that opens a parenthesis absorbs tokens up to the closing one, so
// "NAME(Primary Issuer)" stays one token.
func (c *Classifier) split(text string) line {
	tokens := strings.Fields(text)
	first := tokens[0]
	next := 1

	if strings.Contains(first, "(") && !strings.Contains(first, ")") {
		joined := first
		closed := false
		for i := 1; i < len(tokens); i++ {
			joined += " " + tokens[i]
			if strings.Contains(tokens[i], ")") {
				first, next, closed = joined, i+1, true
				break
			}
		}
		if !closed {
			first, next = tokens[0], 1
		}
	}

	return line{
		text:  text,
		first: first,
		rest:  tokens[next:],
		shape: c.shapeOf(first),
	}
}

// shapeOf decides whether token looks like a field name.
func (c *Classifier) shapeOf(token string) nameShape {
	base := token
	if i := strings.IndexByte(token, '('); i > 0 {
		if !strings.HasSuffix(token, ")") {
			return shapeNone
		}
		base = token[:i]
	}

	if len(base) < 3 || isDigits(base) {
		return shapeNone
	}
	if c.vocab.IsColumnKeyword(base) || c.vocab.IsStarter(base) {
		return shapeNone
	}

	switch {
	case upperIdent.MatchString(base) && strings.ContainsAny(base, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"):
		return shapeIdentifier
	case camelIdent.MatchString(base), pascalIdent.MatchString(base):
		return shapeIdentifier
	case plainWord.MatchString(base):
		return shapeWord
	case looseName.MatchString(base):
		return shapeLoose
	}
	return shapeNone
}

// admits reports whether the first token of ln may start a field in st.
func (ln line) admits(st State) bool {
	switch ln.shape {
	case shapeNone:
		return false
	case shapeLoose:
		return !st.Active
	}
	return true
}

// onlyColumnTokens reports whether every token is column data in any case,
// as in "Yes" or "No *".
func (c *Classifier) onlyColumnTokens(tokens []string) bool {
	for _, tok := range tokens {
		if !c.vocab.IsLeadingColumnToken(tok) {
			return false
		}
	}
	return len(tokens) > 0
}

// truncate joins tokens up to the first upper-case column keyword.
func (c *Classifier) truncate(tokens []string) (string, bool) {
	for i, tok := range tokens {
		if c.vocab.IsColumnKeywordExact(tok) {
			return strings.Join(tokens[:i], " "), true
		}
	}
	return strings.Join(tokens, " "), false
}

// matchCompoundMerge joins a lower-case name with a capitalized word on the
// following line: "negated" + "Terse ..." -> "negatedTerse".
func (c *Classifier) matchCompoundMerge(st State, ln line) (Verdict, bool) {
	if st.MergeBase == "" || !lowerInitialName.MatchString(st.MergeBase) {
		return Verdict{}, false
	}
	if !capitalizedWord.MatchString(ln.first) {
		return Verdict{}, false
	}
	if c.vocab.IsColumnKeyword(ln.first) || c.vocab.IsStarter(ln.first) {
		return Verdict{}, false
	}

	desc, term := c.truncate(ln.rest)
	return Verdict{
		Kind:        VerdictCompoundNameMerge,
		Name:        st.MergeBase + ln.first,
		Description: desc,
		Terminated:  term,
	}, true
}

// matchTwoColumn handles a lower-case name followed by a capitalized
// description on the same line.
func (c *Classifier) matchTwoColumn(st State, ln line) (Verdict, bool) {
	if !ln.admits(st) || !startsLower(ln.first) || len(ln.rest) == 0 {
		return Verdict{}, false
	}
	next := ln.rest[0]
	if !startsUpper(next) || c.vocab.IsColumnKeyword(next) {
		return Verdict{}, false
	}

	desc, term := c.truncate(ln.rest)
	return Verdict{Kind: VerdictNewField, Name: ln.first, Description: desc, Terminated: term}, true
}

// matchNoDescription handles a name followed directly by a Format or Size
// value. A lower-case keyword counts only when the whole remainder is column
// data, so "FIELD_A Date of filing" keeps its description.
func (c *Classifier) matchNoDescription(st State, ln line) (Verdict, bool) {
	if !ln.admits(st) || len(ln.rest) == 0 {
		return Verdict{}, false
	}
	if !c.vocab.IsColumnToken(ln.rest[0]) && !c.onlyColumnTokens(ln.rest) {
		return Verdict{}, false
	}
	return Verdict{Kind: VerdictNewFieldNoDescription, Name: ln.first, Terminated: true}, true
}

func (c *Classifier) matchNewField(st State, ln line) (Verdict, bool) {
	switch ln.shape {
	case shapeIdentifier:
	case shapeWord:
		// While a field is active a plain word only opens a row when it stands
		// alone where the previous description could have ended
		if st.Active && (len(ln.rest) > 0 || (st.HasDescription && !st.DescriptionComplete)) {
			return Verdict{}, false
		}
	case shapeLoose:
		if st.Active {
			return Verdict{}, false
		}
	default:
		return Verdict{}, false
	}

	desc, term := c.truncate(ln.rest)
	return Verdict{Kind: VerdictNewField, Name: ln.first, Description: desc, Terminated: term}, true
}

func (c *Classifier) matchContinuation(st State, ln line) (Verdict, bool) {
	if !st.Active {
		return Verdict{}, false
	}
	if c.vocab.IsLeadingColumnToken(ln.first) {
		return Verdict{Kind: VerdictTerminator, Terminated: true}, true
	}

	tokens := append([]string{ln.first}, ln.rest...)
	desc, term := c.truncate(tokens)
	return Verdict{Kind: VerdictContinuation, Description: desc, Terminated: term}, true
}

// endsSentence reports whether description text ends a sentence or clause.
func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ')':
		return true
	}
	return false
}
