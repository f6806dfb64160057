package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"kcal/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const DefaultDiarySheet = "Diary"

// Ensure interface conformance
var _ sheets.Diary = (*Client)(nil)

type Config struct {
	SpreadsheetID   string
	DiarySheet      string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	diarySheet    string

	// upserts serialize so two writes for a new day cannot both append.
	mu sync.Mutex
}

// New creates a Sheets client authenticated with service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg.SpreadsheetID, cfg.DiarySheet,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions builds a client from explicit API options.
func NewWithOptions(ctx context.Context, spreadsheetID, diarySheet string, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	diarySheet = strings.TrimSpace(diarySheet)
	if diarySheet == "" {
		diarySheet = DefaultDiarySheet
	}
	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet", spreadsheetID, "sheet", diarySheet)
	return &Client{svc: svc, spreadsheetID: spreadsheetID, diarySheet: diarySheet}, nil
}

func credentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// WriteDay updates the row whose column A holds the date, or appends one.
func (c *Client) WriteDay(ctx context.Context, row sheets.DiaryRow) (string, error) {
	if !row.Date.Valid() {
		return "", fmt.Errorf("invalid diary date %q", row.Date)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	colRange := fmt.Sprintf("%s!A:A", c.diarySheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, colRange).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read dates from %s: %w", c.diarySheet, err)
	}

	if len(resp.Values) == 0 {
		if err := c.writeHeader(ctx); err != nil {
			return "", err
		}
		resp.Values = [][]any{sheets.DiaryHeader[:1]}
	}

	rowNum := findDateRow(resp.Values, string(row.Date))
	if rowNum == 0 {
		rowNum = len(resp.Values) + 1
	}

	rng := fmt.Sprintf("%s!A%d:F%d", c.diarySheet, rowNum, rowNum)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	return rng, nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:F1", c.diarySheet)
	vr := &gsheet.ValueRange{Values: [][]any{sheets.DiaryHeader}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", c.diarySheet, err)
	}
	return nil
}

// ListDays reads every parseable day row.
func (c *Client) ListDays(ctx context.Context) ([]sheets.DiaryRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:F", c.diarySheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseDiary(resp.Values), nil
}
