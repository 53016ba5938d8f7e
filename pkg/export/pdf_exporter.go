package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth  = 190.0
	rowHeight  = 7.0
	headHeight = 8.0
)

// Section is one titled table inside a PDF document.
type Section struct {
	Title string
	Data  Dataset
	// Widths are relative column weights; equal widths when empty.
	Widths []float64
}

// PDFExporter renders sections as consecutive tables in an A4 document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ContentType of rendered documents.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

// Render creates a PDF document with a heading followed by every section.
// Sections without rows still print their header line.
func (e *PDFExporter) Render(title string, sections ...Section) ([]byte, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("pdf requires at least one section")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	for i, section := range sections {
		if len(section.Data.Headers) == 0 {
			return nil, fmt.Errorf("pdf section %d has no headers", i)
		}
		if i > 0 {
			pdf.Ln(6)
		}
		writeSection(pdf, section)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gofpdf.Fpdf, section Section) {
	if section.Title != "" {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, section.Title, "", 1, "L", false, 0, "")
	}
	widths := columnWidths(section)

	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range section.Data.Headers {
			pdf.CellFormat(widths[i], headHeight, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range section.Data.Rows {
		// Repeat the header when the row would cross the page break.
		if pdf.GetY()+rowHeight > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for i, value := range section.Data.Record(row) {
			pdf.CellFormat(widths[i], rowHeight, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func columnWidths(section Section) []float64 {
	n := len(section.Data.Headers)
	widths := make([]float64, n)
	if len(section.Widths) != n {
		for i := range widths {
			widths[i] = pageWidth / float64(n)
		}
		return widths
	}
	total := 0.0
	for _, w := range section.Widths {
		total += w
	}
	for i, w := range section.Widths {
		widths[i] = pageWidth * w / total
	}
	return widths
}
