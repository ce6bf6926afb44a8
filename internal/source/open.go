package source

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// Options configure Open.
type Options struct {
	Sheet     string
	Preferred string
	Choose    SheetChooser

	// Sheets returns an authorized HTTP client; only called for sheet URLs.
	Sheets func(ctx context.Context) (*http.Client, error)
}

// Open reads a CSV file, an XLSX workbook or a Google Sheets URL.
func Open(ctx context.Context, location string, opts Options) (*Table, error) {
	xopts := XLSXOptions{Sheet: opts.Sheet, Preferred: opts.Preferred, Choose: opts.Choose}

	if IsSheetURL(location) {
		if opts.Sheets == nil {
			return nil, fmt.Errorf("google sheets source needs GOOGLE_CREDENTIALS_FILE")
		}
		client, err := opts.Sheets(ctx)
		if err != nil {
			return nil, err
		}
		sc, err := NewSheetsClient(ctx, client)
		if err != nil {
			return nil, err
		}
		return sc.Open(ctx, location, xopts)
	}

	switch strings.ToLower(filepath.Ext(location)) {
	case ".csv", ".txt":
		return OpenCSV(location)
	case ".xlsx", ".xlsm":
		return OpenXLSX(location, xopts)
	}
	return nil, fmt.Errorf("unsupported source %q: expected .csv, .xlsx or a Google Sheets URL", location)
}
