// Package pipeline connects the pieces of an extraction run: it loads the
// source text (through the PDF cache when the source is a PDF), resolves the
// vocabulary profile, runs the field parser and reports soft warnings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/coolbeans/fieldmap/pkg/cache"
	"github.com/coolbeans/fieldmap/pkg/fields"
	"github.com/coolbeans/fieldmap/pkg/logging"
	"github.com/coolbeans/fieldmap/pkg/pdftext"
	"github.com/coolbeans/fieldmap/pkg/profile"
)

// ErrTextExtraction marks failures to obtain text from a source. The CLI
// exits with status 1 on it.
var ErrTextExtraction = errors.New("text extraction failed")

// Request describes one extraction.
type Request struct {
	// Source is the path of a .pdf or text file. With Data set it only
	// names the input in logs and results.
	Source string
	// Data holds the raw source when it did not come from disk.
	Data []byte

	ProfileID string
	Options   []fields.Option
	PDF       pdftext.Options
	NoCache   bool
}

// Outcome is the result of a run.
type Outcome struct {
	RunID     string               `json:"run_id"`
	Source    string               `json:"source"`
	Profile   string               `json:"profile"`
	PageCount int                  `json:"page_count,omitempty"`
	FromCache bool                 `json:"from_cache"`
	Records   []fields.FieldRecord `json:"records"`
	Warnings  []string             `json:"warnings,omitempty"`
	Stats     fields.Statistics    `json:"statistics"`
	Duration  time.Duration        `json:"duration_ns"`

	Text     string           `json:"-"`
	Document *fields.Document `json:"-"`
}

// Pipeline runs extractions. It is safe for concurrent use.
type Pipeline struct {
	registry *profile.Registry
	cache    *cache.TextCache
	logger   *log.Logger
}

// New creates a pipeline. textCache may be nil to disable caching.
func New(registry *profile.Registry, textCache *cache.TextCache, logger *log.Logger) *Pipeline {
	if registry == nil {
		registry = profile.NewRegistry(logger)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{registry: registry, cache: textCache, logger: logger}
}

// Registry returns the profile registry in use.
func (p *Pipeline) Registry() *profile.Registry {
	return p.registry
}

// Run loads the source text, parses it and logs structural misses.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{RunID: uuid.NewString(), Source: req.Source}
	logger := p.logger

	prof, err := p.registry.Lookup(req.ProfileID)
	if err != nil {
		return nil, err
	}
	outcome.Profile = prof.ID

	cfg, err := prof.Config(req.Options...)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", prof.ID, err)
	}

	loaded, err := p.LoadText(ctx, req)
	if err != nil {
		return nil, err
	}
	outcome.Text = loaded.Text
	outcome.PageCount = loaded.PageCount
	outcome.FromCache = loaded.FromCache
	outcome.Warnings = append(outcome.Warnings, loaded.Warnings...)

	doc := fields.NewParserWithConfig(cfg).Parse(loaded.Text)
	outcome.Document = doc
	outcome.Records = doc.Records()
	outcome.Stats = doc.Statistics()
	outcome.Warnings = append(outcome.Warnings, doc.Warnings()...)
	outcome.Duration = time.Since(start)

	for _, w := range outcome.Warnings {
		logger.Warn().Str("run_id", outcome.RunID).Str("source", req.Source).Msg(w)
	}
	logger.Info().
		Str("run_id", outcome.RunID).
		Str("source", req.Source).
		Str("profile", prof.ID).
		Int("sections", outcome.Stats.Sections).
		Int("records", outcome.Stats.Records).
		Int("orphans", outcome.Stats.Orphans).
		Bool("from_cache", outcome.FromCache).
		Dur("duration", outcome.Duration).
		Msg("extraction finished")

	return outcome, nil
}

// Loaded is the text recovered from a source.
type Loaded struct {
	Text      string
	PageCount int
	FromCache bool
	Warnings  []string
}

// LoadText returns the linearized text of the request's source. PDFs go
// through the cache; anything else is read as UTF-8 text.
func (p *Pipeline) LoadText(ctx context.Context, req Request) (*Loaded, error) {
	data := req.Data
	if data == nil {
		var err error
		data, err = os.ReadFile(req.Source)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTextExtraction, err)
		}
	}

	if !pdftext.IsPDF(data) {
		if strings.EqualFold(filepath.Ext(req.Source), ".pdf") {
			return nil, fmt.Errorf("%w: %w: %s", ErrTextExtraction, pdftext.ErrNotPDF, req.Source)
		}
		return &Loaded{Text: string(data)}, nil
	}

	opts := req.PDF
	key := cache.Key(data, string(opts.Backend), opts.Pages, strconv.FormatFloat(opts.RowTolerance, 'f', -1, 64))
	useCache := p.cache != nil && !req.NoCache

	if useCache {
		entry, ok, err := p.cache.Get(key)
		if err != nil {
			p.logger.Warn().Err(err).Msg("text cache read failed")
		} else if ok {
			p.logger.Debug().Str("source", req.Source).Msg("text cache hit")
			return &Loaded{Text: entry.Text, PageCount: entry.PageCount, FromCache: true, Warnings: entry.Warnings}, nil
		}
	}

	path := req.Source
	if req.Data != nil {
		tmp, err := writeTemp(req.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTextExtraction, err)
		}
		defer os.Remove(tmp)
		path = tmp
	}

	result, err := pdftext.Extract(ctx, path, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTextExtraction, err)
	}
	loaded := &Loaded{Text: result.Text(), PageCount: result.PageCount, Warnings: result.Warnings}

	if useCache {
		entry := &cache.Entry{Text: loaded.Text, PageCount: loaded.PageCount, Warnings: loaded.Warnings, Source: req.Source}
		if err := p.cache.Put(key, entry); err != nil {
			p.logger.Warn().Err(err).Msg("text cache write failed")
		}
	}
	return loaded, nil
}

func writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp("", "fieldmap-*.pdf")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
