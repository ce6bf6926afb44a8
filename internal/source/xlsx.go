package source

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/xuri/excelize/v2"
)

// SheetChooser picks one sheet out of a workbook's sheets.
type SheetChooser func(sheets []string) (string, error)

// XLSXOptions select the worksheet to read.
type XLSXOptions struct {
	Sheet     string       // Explicit sheet; must exist
	Preferred string       // Used when present in the workbook
	Choose    SheetChooser // Asked when several sheets remain
}

// OpenXLSX reads one worksheet of the workbook at path. Sheet selection order:
// explicit, preferred, chooser (only with more than one sheet), first sheet.
func OpenXLSX(path string, opts XLSXOptions) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sheet, err := pickSheet(f.GetSheetList(), opts)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filepath.Base(path), err)
	}

	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	t, err := fromStrings(filepath.Base(path)+"#"+sheet, grid)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return t, nil
}

// SheetNames lists the worksheets of the workbook at path.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func pickSheet(sheets []string, opts XLSXOptions) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	switch {
	case opts.Sheet != "":
		if !slices.Contains(sheets, opts.Sheet) {
			return "", fmt.Errorf("sheet not found: %q (sheets: %v)", opts.Sheet, sheets)
		}
		return opts.Sheet, nil
	case opts.Preferred != "" && slices.Contains(sheets, opts.Preferred):
		return opts.Preferred, nil
	case opts.Choose != nil && len(sheets) > 1:
		return opts.Choose(sheets)
	}
	return sheets[0], nil
}
