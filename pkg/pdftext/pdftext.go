// Package pdftext recovers linearized page text from PDF data guides.
//
// Two backends are available. The rows backend (default) rebuilds visual
// rows from positioned glyphs, which keeps every cell of a table row on one
// line. The content backend decodes text operators straight from the page
// content streams and is useful when glyph positioning is unreliable.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrNotPDF is returned when a file does not start with the %PDF- magic.
	ErrNotPDF = errors.New("not a PDF file")

	// ErrInvalidPageRange is returned for malformed or out-of-bounds page selections.
	ErrInvalidPageRange = errors.New("invalid page range")

	// ErrNoText is returned when none of the selected pages yielded text.
	ErrNoText = errors.New("no text content found in PDF")
)

// Backend selects the text recovery strategy.
type Backend string

const (
	BackendRows    Backend = "rows"
	BackendContent Backend = "content"
)

// ParseBackend converts a configuration string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendRows:
		return BackendRows, nil
	case BackendContent:
		return BackendContent, nil
	}
	return "", fmt.Errorf("unknown PDF backend %q (want rows or content)", s)
}

// DefaultRowTolerance is the vertical distance, in points, within which
// glyphs belong to the same row.
const DefaultRowTolerance = 2.0

// Options controls extraction.
type Options struct {
	Backend      Backend
	RowTolerance float64
	// Pages is a page selection such as "1-5" or "2,4-6". Empty selects all pages.
	Pages string
}

func (o Options) withDefaults() Options {
	if o.Backend == "" {
		o.Backend = BackendRows
	}
	if o.RowTolerance <= 0 {
		o.RowTolerance = DefaultRowTolerance
	}
	return o
}

// Page is the cleaned text of one page.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Result holds the text of the selected pages.
type Result struct {
	Pages     []Page   `json:"pages"`
	PageCount int      `json:"page_count"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Text joins the page texts in page order.
func (r *Result) Text() string {
	var sb strings.Builder
	for _, p := range r.Pages {
		if p.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// document is one opened PDF as seen by a backend.
type document interface {
	PageCount() int
	PageText(n int) (string, error)
	Close() error
}

func openDocument(path string, opts Options) (document, error) {
	switch opts.Backend {
	case BackendRows:
		return openRowsDocument(path, opts.RowTolerance)
	case BackendContent:
		return openContentDocument(path)
	}
	return nil, fmt.Errorf("unknown PDF backend %q", opts.Backend)
}

// Extract reads the text of the selected pages of the PDF at path.
func Extract(ctx context.Context, path string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	if err := CheckFile(path); err != nil {
		return nil, err
	}

	doc, err := openDocument(path, opts)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer doc.Close()

	count := doc.PageCount()
	selected, err := ParsePageRange(opts.Pages, count)
	if err != nil {
		return nil, err
	}

	result := &Result{PageCount: count}
	for _, n := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := doc.PageText(n)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d: %v", n, err))
			continue
		}
		text = Clean(text)
		if text == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d: no text", n))
		}
		result.Pages = append(result.Pages, Page{Number: n, Text: text})
	}

	if strings.TrimSpace(result.Text()) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoText, path)
	}
	return result, nil
}

var pdfMagic = []byte("%PDF-")

// CheckFile reports ErrNotPDF unless path starts with the PDF header.
func CheckFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	if !IsPDF(head) {
		return fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	return nil
}

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}
