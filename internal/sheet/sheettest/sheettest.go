// Package sheettest собирает xlsx для тестов.
package sheettest

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

// Link ячейка с гиперссылкой
type Link struct {
	Text   string
	Target string
}

// Build создаёт книгу с одним листом: header и строки rows.
// Значение типа Link пишется как текст с внешней гиперссылкой.
func Build(t testing.TB, header []string, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			t.Fatalf("заголовок: %v", err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if link, ok := v.(Link); ok {
				if err := f.SetCellValue(sheet, cell, link.Text); err != nil {
					t.Fatalf("ячейка %s: %v", cell, err)
				}
				linkType := "External"
				if len(link.Target) > 0 && link.Target[0] == '#' {
					linkType = "Location"
				}
				if err := f.SetCellHyperLink(sheet, cell, link.Target, linkType); err != nil {
					t.Fatalf("гиперссылка %s: %v", cell, err)
				}
				continue
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("ячейка %s: %v", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("запись xlsx: %v", err)
	}
	return buf.Bytes()
}
