package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Mileage"

// XLSXExporter renders datasets into a styled spreadsheet.
type XLSXExporter struct {
	now func() time.Time
}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{now: time.Now}
}

// Render writes the title on row 1, a timestamp on row 2 and the table from row 4.
func (e *XLSXExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, fmt.Errorf("title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    borders("000000"),
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	dataStyle, err := f.NewStyle(&excelize.Style{Border: borders("CCCCCC")})
	if err != nil {
		return nil, fmt.Errorf("data style: %w", err)
	}

	if title != "" {
		_ = f.SetCellValue(xlsxSheet, "A1", title)
		_ = f.SetCellStyle(xlsxSheet, "A1", "A1", titleStyle)
	}
	_ = f.SetCellValue(xlsxSheet, "A2", fmt.Sprintf("Generated: %s", e.now().Format("2006-01-02 15:04:05")))

	for col, header := range data.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 4)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(xlsxSheet, cell, header)
		_ = f.SetCellStyle(xlsxSheet, cell, cell, headerStyle)
		colName, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetColWidth(xlsxSheet, colName, colName, 18)
	}

	for rowIdx, row := range data.Rows {
		for col, header := range data.Headers {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+5)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(xlsxSheet, cell, row[header])
			_ = f.SetCellStyle(xlsxSheet, cell, cell, dataStyle)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func borders(color string) []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: color, Style: 1},
		{Type: "right", Color: color, Style: 1},
		{Type: "top", Color: color, Style: 1},
		{Type: "bottom", Color: color, Style: 1},
	}
}
