package apitest

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Workbook builds an xlsx file whose first sheet holds headers and rows.
func Workbook(t *testing.T, headers []string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		t.Fatalf("write headers: %v", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		row := r
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("write row %d: %v", i, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// StudentRows returns n rows of sample student data.
func StudentRows(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{i + 1, "student" + string(rune('A'+i%26)), 80 + i%20}
	}
	return rows
}

// StudentHeaders are the column names used with StudentRows.
var StudentHeaders = []string{"no", "name", "score"}
