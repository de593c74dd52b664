// Package profile provides YAML-defined extraction profiles. A profile holds
// the keyword vocabularies and matching choices for one family of data
// guides, so the parser can be retargeted without code changes.
package profile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/coolbeans/fieldmap/pkg/fields"
)

// ErrProfileNotFound is returned when a profile ID is not registered.
var ErrProfileNotFound = errors.New("profile not found")

// Profile defines how to extract fields from one family of documents.
type Profile struct {
	// Metadata
	Name        string `yaml:"name" json:"name" validate:"required"`
	ID          string `yaml:"id" json:"id" validate:"required"`
	Version     string `yaml:"version" json:"version" validate:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Extends names a profile whose vocabulary is merged under this one.
	// Only "default" (the built-in vocabulary) is supported.
	Extends string `yaml:"extends,omitempty" json:"extends,omitempty" validate:"omitempty,oneof=default"`

	Vocabulary fields.VocabularySpec `yaml:"vocabulary" json:"vocabulary"`
	Matching   MatchingConfig        `yaml:"matching" json:"matching"`

	source   string
	compiled *compiledProfile
}

// MatchingConfig holds the structural choices of a profile.
type MatchingConfig struct {
	HeaderMode   string `yaml:"header_mode,omitempty" json:"header_mode,omitempty" validate:"omitempty,oneof=strict permissive"`
	NameCase     string `yaml:"name_case,omitempty" json:"name_case,omitempty" validate:"omitempty,oneof=upper-snake preserve"`
	Accumulation string `yaml:"accumulation,omitempty" json:"accumulation,omitempty" validate:"omitempty,oneof=single queue"`

	// Regex overrides; empty means the parser default.
	CaptionPattern     string `yaml:"caption_pattern,omitempty" json:"caption_pattern,omitempty"`
	CaptionLinePattern string `yaml:"caption_line_pattern,omitempty" json:"caption_line_pattern,omitempty"`
	HeaderPattern      string `yaml:"header_pattern,omitempty" json:"header_pattern,omitempty"`
}

type compiledProfile struct {
	vocabulary   fields.Vocabulary
	caption      *regexp.Regexp
	captionLine  *regexp.Regexp
	header       *regexp.Regexp
	headerMode   fields.HeaderMode
	nameCase     fields.NameCase
	accumulation fields.Accumulation
}

var validate = validator.New()

// Parse decodes a profile from YAML. The profile is not validated.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &p, nil
}

// Validate checks that the profile has all required fields.
func (p *Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("profile %q: %w", p.ID, err)
	}
	if strings.ContainsAny(p.ID, " /\\") {
		return fmt.Errorf("profile id %q must not contain spaces or path separators", p.ID)
	}
	if p.Extends == "" && len(p.Vocabulary.FormatKeywords) == 0 {
		return fmt.Errorf("profile %q: at least one format keyword is needed when not extending the default vocabulary", p.ID)
	}
	return nil
}

// Compile builds the vocabulary and compiles the regex overrides.
func (p *Profile) Compile() error {
	c := &compiledProfile{}

	if p.Extends == "default" {
		c.vocabulary = fields.DefaultVocabulary().Merge(p.Vocabulary)
	} else {
		c.vocabulary = fields.NewVocabulary(p.Vocabulary)
	}

	var err error
	if c.caption, err = compileOptional(p.Matching.CaptionPattern); err != nil {
		return fmt.Errorf("compiling caption pattern: %w", err)
	}
	if c.caption != nil {
		if err := fields.ValidateCaptionPattern(c.caption); err != nil {
			return err
		}
	}
	if c.captionLine, err = compileOptional(p.Matching.CaptionLinePattern); err != nil {
		return fmt.Errorf("compiling caption line pattern: %w", err)
	}
	if c.header, err = compileOptional(p.Matching.HeaderPattern); err != nil {
		return fmt.Errorf("compiling header pattern: %w", err)
	}

	if p.Matching.HeaderMode != "" {
		if c.headerMode, err = fields.ParseHeaderMode(p.Matching.HeaderMode); err != nil {
			return err
		}
	}
	if p.Matching.NameCase != "" {
		if c.nameCase, err = fields.ParseNameCase(p.Matching.NameCase); err != nil {
			return err
		}
	}
	if p.Matching.Accumulation != "" {
		if c.accumulation, err = fields.ParseAccumulation(p.Matching.Accumulation); err != nil {
			return err
		}
	}

	p.compiled = c
	return nil
}

func compileOptional(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	return regexp.Compile(expr)
}

// IsCompiled returns true if the profile has been compiled.
func (p *Profile) IsCompiled() bool {
	return p.compiled != nil
}

// Source returns the file the profile was loaded from, or "builtin".
func (p *Profile) Source() string {
	if p.source == "" {
		return "builtin"
	}
	return p.source
}

// CompiledVocabulary returns the vocabulary the profile resolves to.
func (p *Profile) CompiledVocabulary() (fields.Vocabulary, error) {
	if !p.IsCompiled() {
		if err := p.Compile(); err != nil {
			return fields.Vocabulary{}, err
		}
	}
	return p.compiled.vocabulary, nil
}

// Config returns the parser configuration described by the profile. Options
// are applied last, so callers can override profile choices.
func (p *Profile) Config(opts ...fields.Option) (fields.Config, error) {
	if !p.IsCompiled() {
		if err := p.Compile(); err != nil {
			return fields.Config{}, err
		}
	}

	c := p.compiled
	cfg := fields.DefaultConfig()
	cfg.Vocabulary = c.vocabulary
	if c.headerMode != "" {
		cfg.HeaderMode = c.headerMode
	}
	if c.nameCase != "" {
		cfg.NameCase = c.nameCase
	}
	if c.accumulation != "" {
		cfg.Accumulation = c.accumulation
	}
	if c.caption != nil {
		cfg.CaptionPattern = c.caption
	}
	if c.captionLine != nil {
		cfg.CaptionLinePattern = c.captionLine
	}
	if c.header != nil {
		cfg.HeaderPattern = c.header
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg, nil
}

// Marshal encodes the profile as YAML.
func (p *Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
