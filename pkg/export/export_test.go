package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Date", "Trainer", "Distance", "Status"},
		Rows: []map[string]string{
			{"Date": "2024-05-01", "Trainer": "Asha", "Distance": "90", "Status": "OK"},
			{"Date": "2024-05-02", "Trainer": "Ravi", "Distance": "126", "Status": "ALERT"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Trainer,Distance,Status", lines[0])
	assert.Equal(t, "2024-05-02,Ravi,126,ALERT", lines[2])
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "x")
	assert.Error(t, err)
	_, err = NewXLSXExporter().Render(Dataset{}, "x")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Mileage")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterSpansPages(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 120; i++ {
		data.Rows = append(data.Rows, map[string]string{"Date": "2024-05-03", "Trainer": "Zoë Müller", "Distance": "42", "Status": "OK"})
	}

	single, err := NewPDFExporter().Render(sampleDataset(), "Mileage")
	require.NoError(t, err)
	multi, err := NewPDFExporter().Render(data, "Mileage")
	require.NoError(t, err)
	assert.Greater(t, len(multi), len(single))
}

func TestXLSXExporterRender(t *testing.T) {
	exporter := NewXLSXExporter()
	exporter.now = func() time.Time { return time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC) }

	out, err := exporter.Render(sampleDataset(), "Mileage report")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	title, err := f.GetCellValue(xlsxSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Mileage report", title)
	stamp, _ := f.GetCellValue(xlsxSheet, "A2")
	assert.Equal(t, "Generated: 2024-05-03 09:00:00", stamp)
	header, _ := f.GetCellValue(xlsxSheet, "C4")
	assert.Equal(t, "Distance", header)
	status, _ := f.GetCellValue(xlsxSheet, "D6")
	assert.Equal(t, "ALERT", status)
}

func TestCSVExporterNeutralisesFormulas(t *testing.T) {
	data := Dataset{
		Headers: []string{"Trainer", "Distance"},
		Rows:    []map[string]string{{"Trainer": "=HYPERLINK(\"x\")", "Distance": "-5"}, {"Trainer": "@sum", "Distance": "-"}},
	}

	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter().Write(&buf, data))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"'=HYPERLINK(""x"")",-5`, lines[1])
	assert.Equal(t, "'@sum,'-", lines[2])
}
