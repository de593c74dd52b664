// Package export writes extracted field records to CSV, JSON, SQLite, PDF
// and plain-text table sinks.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/coolbeans/fieldmap/pkg/fields"
)

// ErrUnknownFormat is returned for output formats that have no writer.
var ErrUnknownFormat = errors.New("unknown output format")

// Format identifies a record sink.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
	FormatPDF    Format = "pdf"
	FormatTable  Format = "table"
)

// CSVHeader is the fixed header row of CSV output.
var CSVHeader = []string{"Section", "Field Name", "Field Description"}

// ParseFormat converts a flag or config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatSQLite, FormatPDF, FormatTable:
		return f, nil
	case "db", "sqlite3":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath infers the format from a file extension, defaulting to CSV.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	case ".pdf":
		return FormatPDF
	case ".txt":
		return FormatTable
	}
	return FormatCSV
}

// Extension returns the file extension written for a format.
func (f Format) Extension() string {
	switch f {
	case FormatSQLite:
		return ".db"
	case FormatTable:
		return ".txt"
	}
	return "." + string(f)
}

// Write streams records to w. SQLite needs a file and is only available
// through WriteFile.
func Write(w io.Writer, format Format, records []fields.FieldRecord) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatTable:
		return WriteTable(w, records)
	case FormatPDF:
		return WritePDF(w, records, "Extracted fields")
	case FormatSQLite:
		return fmt.Errorf("%w: sqlite output requires a file path", ErrUnknownFormat)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteFile writes records to path, creating the parent directory.
func WriteFile(path string, format Format, records []fields.FieldRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory %s: %w", dir, err)
		}
	}

	if format == FormatSQLite {
		return WriteSQLite(path, records)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, format, records); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// WriteCSV writes the fixed header followed by one row per record.
func WriteCSV(w io.Writer, records []fields.FieldRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write([]string{r.Section, r.FieldName, r.FieldDescription}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []fields.FieldRecord) error {
	if records == nil {
		records = []fields.FieldRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteTable writes records as an ASCII table for terminal output.
func WriteTable(w io.Writer, records []fields.FieldRecord) error {
	widths := make([]int, len(CSVHeader))
	for i, h := range CSVHeader {
		widths[i] = len(h)
	}
	for _, r := range records {
		for i, v := range []string{r.Section, r.FieldName, r.FieldDescription} {
			widths[i] = max(widths[i], len(v))
		}
	}

	var sep strings.Builder
	sep.WriteString("+")
	for _, width := range widths {
		sep.WriteString(strings.Repeat("-", width+2))
		sep.WriteString("+")
	}
	sep.WriteString("\n")

	var sb strings.Builder
	row := func(values ...string) {
		sb.WriteString("|")
		for i, v := range values {
			sb.WriteString(fmt.Sprintf(" %-*s |", widths[i], v))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(sep.String())
	row(CSVHeader...)
	sb.WriteString(sep.String())
	for _, r := range records {
		row(r.Section, r.FieldName, r.FieldDescription)
	}
	sb.WriteString(sep.String())
	sb.WriteString(fmt.Sprintf("%d rows\n", len(records)))

	_, err := io.WriteString(w, sb.String())
	return err
}
