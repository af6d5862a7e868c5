package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth  = 277.0 // A4 landscape minus margins, in mm
	lineHeight = 5.0
)

func renderPDF(table Table) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	// Core fonts are cp1252; comment text is UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	widths := columnWidths(table)

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, column := range table.Columns {
			pdf.CellFormat(widths[i], 7, tr(column), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if table.Title != "" {
			pdf.SetFont("Arial", "B", 12)
			pdf.CellFormat(0, 8, tr(table.Title), "", 1, "L", false, 0, "")
		}
		header()
	})
	pdf.AddPage()

	_, pageHeight := pdf.GetPageSize()
	left, _, _, bottom := pdf.GetMargins()
	for _, row := range table.Rows {
		lines := make([][][]byte, len(table.Columns))
		height := 1
		for i := range table.Columns {
			lines[i] = pdf.SplitLines([]byte(tr(cell(row, i))), widths[i]-2)
			if len(lines[i]) > height {
				height = len(lines[i])
			}
		}
		rowHeight := float64(height) * lineHeight
		if pdf.GetY()+rowHeight > pageHeight-bottom {
			pdf.AddPage()
		}
		x, y := left, pdf.GetY()
		for i := range table.Columns {
			pdf.Rect(x, y, widths[i], rowHeight, "D")
			for j, line := range lines[i] {
				pdf.SetXY(x+1, y+float64(j)*lineHeight)
				pdf.CellFormat(widths[i]-2, lineHeight, string(line), "", 0, "L", false, 0, "")
			}
			x += widths[i]
		}
		pdf.SetXY(left, y+rowHeight)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(table Table) []float64 {
	var total float64
	weights := make([]float64, len(table.Columns))
	for i := range weights {
		weights[i] = 1
		if i < len(table.Widths) && table.Widths[i] > 0 {
			weights[i] = table.Widths[i]
		}
		total += weights[i]
	}
	for i := range weights {
		weights[i] = pageWidth * weights[i] / total
	}
	return weights
}
