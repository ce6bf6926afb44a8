package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var errNoHeader = errors.New("no header row")

// ReadCSV parses CSV data into a Table. Quotes are parsed leniently and rows
// may have any number of fields. Row lines are file lines.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(NewCleanReader(r))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var grid [][]any
	var lines []int
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv %s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)
		cells := make([]any, len(rec))
		for i, v := range rec {
			cells[i] = v
		}
		grid = append(grid, cells)
		lines = append(lines, line)
	}

	t, err := buildTable(name, grid, func(i int) int { return lines[i] })
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", name, err)
	}
	return t, nil
}

// OpenCSV reads the CSV file at path.
func OpenCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadCSV(filepath.Base(path), f)
}
