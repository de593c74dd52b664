package export

import (
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/coolbeans/fieldmap/pkg/fields"
)

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Section", 45},
	{"Field Name", 60},
	{"Field Description", 172},
}

// WritePDF renders records as a landscape table report.
func WritePDF(w io.Writer, records []fields.FieldRecord, title string) error {
	doc := fpdf.New("L", "mm", "A4", "")
	doc.SetMargins(10, 10, 10)
	doc.SetAutoPageBreak(true, 10)
	doc.SetTitle(title, true)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	header := func() {
		doc.SetFont("Helvetica", "B", 9)
		doc.SetFillColor(220, 220, 220)
		for _, c := range pdfColumns {
			doc.CellFormat(c.width, 7, c.title, "1", 0, "L", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont("Helvetica", "", 8)
	}
	doc.SetHeaderFunc(func() {
		doc.SetFont("Helvetica", "B", 12)
		doc.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
		header()
	})

	doc.AddPage()
	for _, r := range records {
		lines := doc.SplitText(latin1(r.FieldDescription), pdfColumns[2].width)
		height := 5 * float64(max(len(lines), 1))

		_, pageHeight := doc.GetPageSize()
		if doc.GetY()+height > pageHeight-10 {
			doc.AddPage()
		}

		x, y := doc.GetXY()
		doc.CellFormat(pdfColumns[0].width, height, tr(r.Section), "1", 0, "L", false, 0, "")
		doc.CellFormat(pdfColumns[1].width, height, tr(r.FieldName), "1", 0, "L", false, 0, "")
		doc.MultiCell(pdfColumns[2].width, 5, tr(r.FieldDescription), "1", "L", false)
		doc.SetXY(x, y+height)
	}

	if len(records) == 0 {
		doc.CellFormat(0, 7, "No fields extracted.", "", 1, "L", false, 0, "")
	}

	return doc.Output(w)
}

// latin1 replaces runes outside Latin-1 so SplitText can measure them with
// the core font width tables.
func latin1(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xff {
			return '?'
		}
		return r
	}, s)
}
