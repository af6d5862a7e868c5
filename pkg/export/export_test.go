package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:   "CS101 comments",
		Columns: []string{"id", "giver", "comment"},
		Rows: [][]string{
			{"1", "prof@uni.edu", "Well done, see \"notes\""},
			{"2", "ta@uni.edu"},
		},
		Widths: []float64{1, 2},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)

	format, err = ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", format.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestRenderCSVPadsShortRows(t *testing.T) {
	out, err := Render(FormatCSV, sampleTable())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,giver,comment", lines[0])
	assert.Equal(t, `1,prof@uni.edu,"Well done, see ""notes"""`, lines[1])
	assert.Equal(t, "2,ta@uni.edu,", lines[2])
}

func TestRenderPDF(t *testing.T) {
	table := sampleTable()
	for i := 0; i < 80; i++ {
		table.Rows = append(table.Rows, []string{"3", "prof@uni.edu", strings.Repeat("Très bien ", 40)})
	}

	out, err := Render(FormatPDF, table)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderRequiresColumns(t *testing.T) {
	_, err := Render(FormatCSV, Table{})
	assert.Error(t, err)

	_, err = Render(Format("xml"), sampleTable())
	assert.Error(t, err)
}
