package fields

import (
	"fmt"
	"regexp"
	"strings"
)

// HeaderMode controls what happens to a section whose table header is absent.
type HeaderMode string

const (
	// HeaderStrict skips sections without a header.
	HeaderStrict HeaderMode = "strict"
	// HeaderPermissive parses the whole span as table body.
	HeaderPermissive HeaderMode = "permissive"
)

// NameCase selects how field names are canonicalized.
type NameCase string

const (
	NameCaseUpperSnake NameCase = "upper-snake"
	NameCasePreserve   NameCase = "preserve"
)

// Accumulation selects how pending field names wait for description lines.
type Accumulation string

const (
	// AccumulateSingle keeps one active field at a time.
	AccumulateSingle Accumulation = "single"
	// AccumulateQueue keeps consecutive bare names in a FIFO and fills them
	// in order as description lines and terminators arrive.
	AccumulateQueue Accumulation = "queue"
)

// Config holds everything the parser needs. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	Vocabulary   Vocabulary
	HeaderMode   HeaderMode
	NameCase     NameCase
	Accumulation Accumulation

	// Workers > 1 parses sections in parallel. Output order never changes.
	Workers int

	// CaptionPattern must capture the section name, either in a group named
	// "name" or in group 1.
	CaptionPattern *regexp.Regexp
	// CaptionLinePattern matches the start of any caption line; it bounds
	// section spans.
	CaptionLinePattern *regexp.Regexp
	HeaderPattern      *regexp.Regexp
}

var (
	defaultCaptionPattern = regexp.MustCompile(
		`(?i)Figure\s+\d+\s*\.\s*(?:[^\n]*\s)??Fields\s+in\s+the\s+([^\n]+?(?:\n[^\n]+?)?)\s+data\s+file`)

	defaultCaptionLinePattern = regexp.MustCompile(`(?im)^[ \t]*Figure\s+\d+\s*\.`)

	defaultHeaderPattern = regexp.MustCompile(
		`(?i)Field\s+Name\s+(?:[^\n]*?\s)??Field\s+Description` +
			`(?:\s+Format\s+Max\s+Size\s+May\s+be\s+NULL\s+Key|\s+Data\s+Type\s+Length\s+Nullable\s+Comments)?`)
)

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Vocabulary:         DefaultVocabulary(),
		HeaderMode:         HeaderStrict,
		NameCase:           NameCaseUpperSnake,
		Accumulation:       AccumulateSingle,
		Workers:            1,
		CaptionPattern:     defaultCaptionPattern,
		CaptionLinePattern: defaultCaptionLinePattern,
		HeaderPattern:      defaultHeaderPattern,
	}
}

// Option modifies a Config.
type Option func(*Config)

func WithVocabulary(v Vocabulary) Option {
	return func(c *Config) { c.Vocabulary = v }
}

func WithHeaderMode(mode HeaderMode) Option {
	return func(c *Config) { c.HeaderMode = mode }
}

func WithNameCase(nc NameCase) Option {
	return func(c *Config) { c.NameCase = nc }
}

func WithAccumulation(a Accumulation) Option {
	return func(c *Config) { c.Accumulation = a }
}

func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithCaptionPattern overrides the section caption pattern.
func WithCaptionPattern(re *regexp.Regexp) Option {
	return func(c *Config) { c.CaptionPattern = re }
}

// WithHeaderPattern overrides the table header pattern.
func WithHeaderPattern(re *regexp.Regexp) Option {
	return func(c *Config) { c.HeaderPattern = re }
}

// withDefaults fills unset fields so a partially built Config still works.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Vocabulary.formatKeywords == nil {
		c.Vocabulary = def.Vocabulary
	}
	if c.HeaderMode == "" {
		c.HeaderMode = def.HeaderMode
	}
	if c.NameCase == "" {
		c.NameCase = def.NameCase
	}
	if c.Accumulation == "" {
		c.Accumulation = def.Accumulation
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.CaptionPattern == nil {
		c.CaptionPattern = def.CaptionPattern
	}
	if c.CaptionLinePattern == nil {
		c.CaptionLinePattern = def.CaptionLinePattern
	}
	if c.HeaderPattern == nil {
		c.HeaderPattern = def.HeaderPattern
	}
	return c
}

// ValidateCaptionPattern checks that re can yield a section name.
func ValidateCaptionPattern(re *regexp.Regexp) error {
	if re.SubexpIndex("name") < 0 && re.NumSubexp() < 1 {
		return fmt.Errorf("caption pattern %q has no capture group for the section name", re.String())
	}
	return nil
}

// ParseHeaderMode parses "strict" or "permissive".
func ParseHeaderMode(s string) (HeaderMode, error) {
	switch HeaderMode(strings.ToLower(strings.TrimSpace(s))) {
	case HeaderStrict:
		return HeaderStrict, nil
	case HeaderPermissive:
		return HeaderPermissive, nil
	}
	return "", fmt.Errorf("unknown header mode %q (want strict or permissive)", s)
}

// ParseNameCase parses "upper-snake" or "preserve".
func ParseNameCase(s string) (NameCase, error) {
	switch NameCase(strings.ToLower(strings.TrimSpace(s))) {
	case NameCaseUpperSnake, "upper_snake", "upper":
		return NameCaseUpperSnake, nil
	case NameCasePreserve:
		return NameCasePreserve, nil
	}
	return "", fmt.Errorf("unknown name case %q (want upper-snake or preserve)", s)
}

// ParseAccumulation parses "single" or "queue".
func ParseAccumulation(s string) (Accumulation, error) {
	switch Accumulation(strings.ToLower(strings.TrimSpace(s))) {
	case AccumulateSingle:
		return AccumulateSingle, nil
	case AccumulateQueue:
		return AccumulateQueue, nil
	}
	return "", fmt.Errorf("unknown accumulation policy %q (want single or queue)", s)
}
