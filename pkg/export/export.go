package export

import "fmt"

// Format names a rendered export encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts csv or pdf. An empty value means csv.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Table is rendered row by row in column order. Rows shorter than Columns
// are padded with empty cells.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
	// Widths are relative column widths used by the PDF renderer. Missing
	// entries default to 1.
	Widths []float64
}

// Render encodes table in the given format.
func Render(format Format, table Table) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("export requires at least one column")
	}
	switch format {
	case FormatCSV:
		return renderCSV(table)
	case FormatPDF:
		return renderPDF(table)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
