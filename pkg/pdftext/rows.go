package pdftext

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// spaceGapRatio is the horizontal gap, as a fraction of the font size, that
// separates two glyphs with a space.
const spaceGapRatio = 0.3

type rowsDocument struct {
	file      *os.File
	reader    *pdf.Reader
	tolerance float64
}

func openRowsDocument(path string, tolerance float64) (*rowsDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	return &rowsDocument{file: f, reader: r, tolerance: tolerance}, nil
}

func (d *rowsDocument) PageCount() int {
	return d.reader.NumPage()
}

func (d *rowsDocument) PageText(n int) (text string, err error) {
	// The reader panics on malformed content streams
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("reading page content: %v", r)
		}
	}()

	page := d.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return assembleRows(page.Content().Text, d.tolerance), nil
}

func (d *rowsDocument) Close() error {
	return d.file.Close()
}

type glyphRow struct {
	y      float64
	glyphs []pdf.Text
}

// assembleRows groups glyphs whose baselines lie within tolerance of each
// other, orders rows top to bottom and glyphs left to right, and inserts a
// space wherever two neighbouring glyphs are visibly apart.
func assembleRows(texts []pdf.Text, tolerance float64) string {
	var rows []*glyphRow
	for _, t := range texts {
		if t.S == "" {
			continue
		}

		var row *glyphRow
		for i := len(rows) - 1; i >= 0; i-- {
			if math.Abs(rows[i].y-t.Y) <= tolerance {
				row = rows[i]
				break
			}
		}
		if row == nil {
			row = &glyphRow{y: t.Y}
			rows = append(rows, row)
		}
		row.glyphs = append(row.glyphs, t)
	}

	// PDF y grows upwards
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		sort.SliceStable(row.glyphs, func(i, j int) bool { return row.glyphs[i].X < row.glyphs[j].X })
		if line := joinGlyphs(row.glyphs); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func joinGlyphs(glyphs []pdf.Text) string {
	var sb strings.Builder
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			gap := g.X - (prev.X + prev.W)
			size := math.Max(prev.FontSize, 1)
			if gap > spaceGapRatio*size && !strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(g.S, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
