// Package source reads tabular inputs (CSV, XLSX, Google Sheets) into
// labelled rows for the normalizer.
package source

import (
	"strings"

	"github.com/Bighabz/HorizonAI/internal/core"
)

// Table is an in-memory tabular source. It satisfies core.TabularSource.
type Table struct {
	Name   string
	labels []string
	rows   []core.RawRow
}

// Labels returns the header labels in column order.
func (t *Table) Labels() []string { return t.labels }

// Rows returns the data rows in source order.
func (t *Table) Rows() []core.RawRow { return t.rows }

// NewTable builds a Table from a grid of cells. The first non-empty row is
// the header; later empty rows are dropped. Lines are 1-based grid rows.
// Duplicate labels keep the first column.
func NewTable(name string, grid [][]any) (*Table, error) {
	return buildTable(name, grid, func(i int) int { return i + 1 })
}

func buildTable(name string, grid [][]any, line func(int) int) (*Table, error) {
	header := -1
	for i, cells := range grid {
		if !isEmptyRow(cells) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, errNoHeader
	}

	t := &Table{Name: name}
	index := make(map[string]int)
	for col, cell := range grid[header] {
		label := core.CellText(cell)
		if label == "" {
			continue
		}
		if _, dup := index[label]; dup {
			continue
		}
		index[label] = col
		t.labels = append(t.labels, label)
	}

	for i := header + 1; i < len(grid); i++ {
		cells := grid[i]
		if isEmptyRow(cells) {
			continue
		}
		values := make(map[string]any, len(t.labels))
		for _, label := range t.labels {
			if col := index[label]; col < len(cells) {
				values[label] = cells[col]
			}
		}
		t.rows = append(t.rows, core.RawRow{Line: line(i), Values: values})
	}

	return t, nil
}

func fromStrings(name string, grid [][]string) (*Table, error) {
	cells := make([][]any, len(grid))
	for i, row := range grid {
		cells[i] = make([]any, len(row))
		for j, v := range row {
			cells[i][j] = v
		}
	}
	return NewTable(name, cells)
}

func isEmptyRow(cells []any) bool {
	for _, c := range cells {
		if strings.TrimSpace(core.CellText(c)) != "" {
			return false
		}
	}
	return true
}
