// Package sheet читает таблицу ссылок из xlsx.
package sheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/xuri/excelize/v2"
)

// Имена колонок в заголовке
const (
	ColumnURL         = "url"
	ColumnDescription = "description"
	ColumnTags        = "tags"
	ColumnName        = "name"
)

// Row строка данных. Index - номер строки в листе, начиная с 1 (1 - заголовок).
type Row struct {
	Index       int
	URL         string
	Description string
	Tags        string
	Name        string
}

// Table активный лист книги с разобранным заголовком
type Table struct {
	file    *excelize.File
	sheet   string
	rows    [][]string
	columns map[string]int
}

// Open разбирает книгу и заголовок активного листа.
// Если нет колонки url, возвращает ValidationError.
func Open(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, model.NewValidationError("file", fmt.Sprintf("не удалось прочитать xlsx: %v", err))
	}

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка чтения листа %q: %w", sheet, err)
	}

	t := &Table{file: f, sheet: sheet, rows: rows, columns: map[string]int{}}
	if len(rows) > 0 {
		for i, h := range rows[0] {
			h = strings.TrimSpace(h)
			if _, dup := t.columns[h]; h != "" && !dup {
				t.columns[h] = i
			}
		}
	}
	if _, ok := t.columns[ColumnURL]; !ok {
		f.Close()
		return nil, model.NewValidationError(ColumnURL, "missing required column")
	}
	if err := t.padLinkRows(); err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка чтения листа %q: %w", sheet, err)
	}
	return t, nil
}

// padLinkRows добавляет хвостовые строки, где в колонке url только гиперссылка.
// GetRows обрезает строки без значений, а такие ссылки тоже нужно импортировать.
func (t *Table) padLinkRows() error {
	last, err := t.lastRow()
	if err != nil {
		return err
	}
	for last > len(t.rows) && !t.hasLink(last-1) {
		last--
	}
	for len(t.rows) < last {
		t.rows = append(t.rows, nil)
	}
	return nil
}

// lastRow число строк листа с учётом пустых: по итератору строк и размеру листа
func (t *Table) lastRow() (int, error) {
	it, err := t.file.Rows(t.sheet)
	if err != nil {
		return 0, err
	}
	last := 0
	for it.Next() {
		last++
	}
	if err := it.Error(); err != nil {
		it.Close()
		return 0, err
	}
	if err := it.Close(); err != nil {
		return 0, err
	}

	if dim, err := t.file.GetSheetDimension(t.sheet); err == nil {
		ref := dim
		if i := strings.LastIndex(dim, ":"); i >= 0 {
			ref = dim[i+1:]
		}
		if _, row, err := excelize.CellNameToCoordinates(ref); err == nil && row > last {
			last = row
		}
	}
	return last, nil
}

// hasLink есть ли гиперссылка в колонке url строки row (с нуля)
func (t *Table) hasLink(row int) bool {
	cell, err := excelize.CoordinatesToCellName(t.columns[ColumnURL]+1, row+1)
	if err != nil {
		return false
	}
	ok, target, err := t.file.GetCellHyperLink(t.sheet, cell)
	return err == nil && ok && target != ""
}

// Total число строк данных без заголовка
func (t *Table) Total() int {
	if len(t.rows) == 0 {
		return 0
	}
	return len(t.rows) - 1
}

// HasColumn есть ли колонка в заголовке
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Each обходит строки данных по порядку. Ошибка fn останавливает обход.
func (t *Table) Each(fn func(Row) error) error {
	for i := 1; i < len(t.rows); i++ {
		row := Row{
			Index:       i + 1,
			URL:         t.url(i),
			Description: t.value(i, ColumnDescription),
			Tags:        t.value(i, ColumnTags),
			Name:        t.value(i, ColumnName),
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) value(row int, column string) string {
	col, ok := t.columns[column]
	if !ok || col >= len(t.rows[row]) {
		return ""
	}
	return t.rows[row][col]
}

func (t *Table) url(row int) string {
	cell, err := excelize.CoordinatesToCellName(t.columns[ColumnURL]+1, row+1)
	if err != nil {
		return t.value(row, ColumnURL)
	}
	hasLink, target, err := t.file.GetCellHyperLink(t.sheet, cell)
	if err != nil {
		hasLink = false
	}
	return ExtractURL(hasLink, target, t.value(row, ColumnURL))
}

// Close освобождает книгу
func (t *Table) Close() error {
	return t.file.Close()
}

// ExtractURL выбирает адрес из ячейки: внешняя гиперссылка важнее текста.
// Значение ячейки excelize уже отдаёт строкой, числа и даты тоже.
func ExtractURL(hasLink bool, target, value string) string {
	if hasLink && target != "" && !isInternalTarget(target) {
		return target
	}
	return strings.TrimSpace(value)
}

// isInternalTarget ссылка внутри книги: "#Лист2!A1" или "Лист2!A1"
func isInternalTarget(target string) bool {
	if strings.HasPrefix(target, "#") {
		return true
	}
	return strings.Contains(target, "!") && !strings.Contains(target, "://")
}
