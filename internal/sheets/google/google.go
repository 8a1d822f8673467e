package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fanliga/internal/sheets"
)

// Values are written RAW so reasons starting with "=" stay text.
const valueInputOption = "RAW"

type Config struct {
	SpreadsheetID      string
	ServiceAccountFile string
	ServiceAccountJSON string
	LedgerSheet        string
	TotalsSheet        string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
	totalsSheet   string

	mu      sync.Mutex
	ensured bool
}

var _ sheets.Mirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
// Inline JSON credentials win over the file; GOOGLE_APPLICATION_CREDENTIALS
// is the last fallback.
func New(ctx context.Context, cfg Config) (*Client, error) {
	credentialsJSON, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newClient(ctx, cfg,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func newClient(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	ledger := strings.TrimSpace(cfg.LedgerSheet)
	if ledger == "" {
		ledger = "Ledger"
	}
	totals := strings.TrimSpace(cfg.TotalsSheet)
	if totals == "" {
		totals = "Totals"
	}
	if ledger == totals {
		return nil, fmt.Errorf("ledger and totals sheets must differ (both %q)", ledger)
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", id,
		"ledger_sheet", ledger,
		"totals_sheet", totals)

	return &Client{
		svc:           svc,
		spreadsheetID: id,
		ledgerSheet:   ledger,
		totalsSheet:   totals,
	}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	path := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		return []byte(inline), nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", path, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set FANLIGA_GOOGLE_SERVICE_ACCOUNT_JSON, FANLIGA_GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Replace clears both tabs and writes the snapshot in a single batch.
// Missing tabs are created on the first call.
func (c *Client) Replace(ctx context.Context, snap sheets.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := c.ensureSheets(ctx); err != nil {
		return err
	}

	clearReq := &gsheet.BatchClearValuesRequest{
		Ranges: []string{a1(c.ledgerSheet, "A:Z"), a1(c.totalsSheet, "A:Z")},
	}
	if _, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, clearReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear mirrored sheets: %w", err)
	}

	update := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: valueInputOption,
		Data: []*gsheet.ValueRange{
			{Range: a1(c.ledgerSheet, "A1"), Values: sheets.LedgerValues(snap)},
			{Range: a1(c.totalsSheet, "A1"), Values: sheets.TotalsValues(snap)},
		},
	}
	resp, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, update).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write mirrored sheets: %w", err)
	}

	slog.InfoContext(ctx, "Mirror written",
		"ledger_rows", len(snap.Ledger),
		"totals_rows", len(snap.Totals),
		"updated_cells", resp.TotalUpdatedCells)
	return nil
}

// ensureSheets adds the ledger and totals tabs when the spreadsheet lacks them.
func (c *Client) ensureSheets(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ensured {
		return nil
	}

	doc, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	existing := make(map[string]bool, len(doc.Sheets))
	for _, s := range doc.Sheets {
		if s.Properties != nil {
			existing[s.Properties.Title] = true
		}
	}

	var requests []*gsheet.Request
	for _, title := range []string{c.ledgerSheet, c.totalsSheet} {
		if existing[title] {
			continue
		}
		requests = append(requests, &gsheet.Request{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		})
	}
	if len(requests) > 0 {
		batch := &gsheet.BatchUpdateSpreadsheetRequest{Requests: requests}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, batch).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add mirrored sheets: %w", err)
		}
		slog.InfoContext(ctx, "Created mirrored sheets", "count", len(requests))
	}

	c.ensured = true
	return nil
}

// a1 builds an A1 range, quoting sheet names that need it.
func a1(sheet, cells string) string {
	if strings.ContainsAny(sheet, " '!:") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet + "!" + cells
}
