package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth   = 277.0 // A4 landscape minus margins
	headerRowH  = 8.0
	bodyRowH    = 7.0
	alertStatus = "ALERT"
)

// PDFExporter renders datasets into a landscape tabular PDF. The column
// header is repeated on every page and rows whose Status is ALERT are red.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	colWidth := pageWidth / float64(len(data.Headers))

	first := true
	pdf.SetHeaderFunc(func() {
		if first && title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
			pdf.Ln(5)
		}
		first = false
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(220, 220, 220)
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, headerRowH, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.AddPage()

	for _, row := range data.Rows {
		if row["Status"] == alertStatus {
			pdf.SetTextColor(180, 0, 0)
		}
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, bodyRowH, tr(row[header]), "1", 0, "", false, 0, "")
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
