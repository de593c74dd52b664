// Package fields extracts (section, field name, field description) records
// from the linearized text of PDF data-dictionary guides, where each table
// is introduced by a "Figure N. Fields in the <NAME> data file" caption.
//
// The package works on plain text only. Turning a PDF into text is the job
// of package pdftext.
package fields

import (
	"strings"
	"sync"
)

// Parser extracts field records from linearized text. It holds no mutable
// state and is safe for concurrent use.
type Parser struct {
	cfg        Config
	classifier *Classifier
	normalizer Normalizer
}

// NewParser creates a parser from DefaultConfig with the given options applied.
func NewParser(opts ...Option) *Parser {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewParserWithConfig(cfg)
}

// NewParserWithConfig creates a parser from an explicit configuration.
// Unset fields fall back to their defaults.
func NewParserWithConfig(cfg Config) *Parser {
	cfg = cfg.withDefaults()
	return &Parser{
		cfg:        cfg,
		classifier: NewClassifier(cfg.Vocabulary, cfg.CaptionLinePattern),
		normalizer: NewNormalizer(cfg.NameCase, cfg.Vocabulary),
	}
}

// Config returns the effective configuration.
func (p *Parser) Config() Config {
	return p.cfg
}

// Normalizer returns the name normalizer in use.
func (p *Parser) Normalizer() Normalizer {
	return p.normalizer
}

// ExtractFields parses text with the default configuration and returns the
// flat record list.
func ExtractFields(text string) []FieldRecord {
	return NewParser().Parse(text).Records()
}

// Parse splits text into sections and extracts the records of each one.
// Text without any caption produces an empty, unsupported Document.
func (p *Parser) Parse(text string) *Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	spans := SplitSections(text, p.cfg.CaptionPattern, p.cfg.CaptionLinePattern)
	results := make([]*SectionResult, len(spans))

	if p.cfg.Workers <= 1 || len(spans) < 2 {
		for i, span := range spans {
			results[i] = p.parseSection(i, span)
		}
		return &Document{Sections: results}
	}

	// Sections are independent; results land at their own index
	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := p.cfg.Workers
	if workers > len(spans) {
		workers = len(spans)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.parseSection(i, spans[i])
			}
		}()
	}
	for i := range spans {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return &Document{Sections: results}
}

// parseSection runs the line state machine over one section span.
func (p *Parser) parseSection(index int, span SectionSpan) *SectionResult {
	result := &SectionResult{
		Section: Section{Name: span.Name},
		Index:   index,
		Records: []FieldRecord{},
	}

	body, found := LocateHeader(span.Text, p.cfg.HeaderPattern)
	result.HeaderFound = found
	if !found {
		if p.cfg.HeaderMode == HeaderStrict {
			result.Skipped = true
			return result
		}
		body = span.Text
	}

	acc := newAccumulator(span.Name, p.cfg.Accumulation, p.normalizer)

lines:
	for _, raw := range strings.Split(body, "\n") {
		verdict := p.classifier.Classify(acc.State(), raw)

		switch verdict.Kind {
		case VerdictSkip:
			continue
		case VerdictSectionEnd:
			break lines
		case VerdictOrphan:
			result.Orphans++
		case VerdictCompoundNameMerge:
			result.Merges++
		}

		result.Lines++
		acc.Apply(verdict)
	}

	// Save last field
	acc.flush()

	result.Records = append(result.Records, acc.Records()...)
	result.Duplicates = acc.duplicates
	result.Retractions = acc.retractions
	return result
}

// ParseSection parses a single span with a known section name. The span
// must start at or before the table header.
func (p *Parser) ParseSection(name, span string) *SectionResult {
	return p.parseSection(0, SectionSpan{Name: name, Text: span, End: len(span)})
}
