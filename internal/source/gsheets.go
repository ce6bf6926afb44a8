package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const sheetsScope = "https://www.googleapis.com/auth/spreadsheets.readonly"

var sheetURL = regexp.MustCompile(`^https://docs.google.com/spreadsheets/d/(.*?)(?:/.*)?$`)

// IsSheetURL reports whether s looks like a Google Sheets URL.
func IsSheetURL(s string) bool {
	return sheetURL.MatchString(strings.TrimSpace(s))
}

// SpreadsheetID extracts the spreadsheet id from a Google Sheets URL.
func SpreadsheetID(url string) (string, error) {
	match := sheetURL.FindStringSubmatch(strings.TrimSpace(url))
	if len(match) < 2 || match[1] == "" {
		return "", fmt.Errorf("invalid spreadsheet URL %q: expected https://docs.google.com/spreadsheets/d/<id>", url)
	}
	return match[1], nil
}

// Authorize returns an HTTP client for the Sheets API. A service-account key
// is used directly; an installed-app client secret needs a cached token,
// read from tokenFile or from "<credentials>.tokens" next to it.
func Authorize(ctx context.Context, credentials, tokenFile string) (*http.Client, error) {
	b, err := os.ReadFile(credentials)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}

	if jwt, err := google.JWTConfigFromJSON(b, sheetsScope); err == nil {
		return jwt.Client(ctx), nil
	}

	config, err := google.ConfigFromJSON(b, sheetsScope)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}

	if tokenFile == "" {
		dir, file := filepath.Split(credentials)
		tokenFile = filepath.Join(dir, strings.TrimSuffix(file, filepath.Ext(file))+".tokens")
	}
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("google token %s: %w", tokenFile, err)
	}
	return config.Client(ctx, token), nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// SheetsClient reads worksheets through the Sheets API.
type SheetsClient struct {
	svc *sheets.Service
}

// NewSheetsClient creates a client using httpClient for every request.
func NewSheetsClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*SheetsClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &SheetsClient{svc: svc}, nil
}

// Open reads one worksheet of the spreadsheet at url. Values are fetched
// unformatted so numeric cells arrive as numbers.
func (c *SheetsClient) Open(ctx context.Context, url string, opts XLSXOptions) (*Table, error) {
	id, err := SpreadsheetID(url)
	if err != nil {
		return nil, err
	}

	meta, err := c.svc.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet %s: %w", id, err)
	}
	titles := make([]string, 0, len(meta.Sheets))
	for _, s := range meta.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}

	sheet, err := pickSheet(titles, opts)
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet %s: %w", id, err)
	}

	resp, err := c.svc.Spreadsheets.Values.Get(id, quoteSheet(sheet)).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	t, err := NewTable(id+"#"+sheet, resp.Values)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return t, nil
}

// quoteSheet turns a sheet title into an A1 range covering the whole sheet.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
