// Package google exports reports to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"financify/internal/core"
	ports "financify/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Header is the first row written to an empty reports sheet.
var Header = []any{"id", "user_id", "month", "asset_ids", "liability_ids", "net_worth", "asset_total", "liability_total", "exported_at"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportsSheet  string
	now           func() time.Time
}

var _ ports.ReportExporter = (*Client)(nil)

// Config names the target spreadsheet and sheet.
type Config struct {
	SpreadsheetID string
	ReportsSheet  string
}

// New creates an exporter. Without options the credentials come from the
// environment (see credentialOptions).
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.ReportsSheet == "" {
		cfg.ReportsSheet = "Reports"
	}

	if len(opts) == 0 {
		creds, err := credentialOptions(ctx)
		if err != nil {
			return nil, err
		}
		opts = creds
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.ReportsSheet)

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		reportsSheet:  cfg.ReportsSheet,
		now:           time.Now,
	}, nil
}

// NewFromEnv creates an exporter from GOOGLE_SPREADSHEET_ID and
// GOOGLE_REPORTS_SHEET_NAME.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Config{
		SpreadsheetID: strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		ReportsSheet:  strings.TrimSpace(os.Getenv("GOOGLE_REPORTS_SHEET_NAME")),
	})
}

// credentialOptions reads service account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func credentialOptions(ctx context.Context) ([]goption.ClientOption, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// ExportReports appends one row per report below the existing data,
// writing the header first when the sheet is empty.
func (c *Client) ExportReports(ctx context.Context, reports []core.Report) error {
	if len(reports) == 0 {
		return nil
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	existing, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.reportsSheet+"!A1:A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s header: %w", c.reportsSheet, err)
	}

	values := make([][]any, 0, len(reports)+1)
	if len(existing.Values) == 0 {
		values = append(values, Header)
	}
	exportedAt := c.now().UTC().Format(time.RFC3339)
	for _, r := range reports {
		values = append(values, Row(r, exportedAt))
	}

	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.reportsSheet+"!A1", &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.reportsSheet, err)
	}

	slog.InfoContext(ctx, "Reports exported to sheet",
		"sheet", c.reportsSheet,
		"count", len(reports))
	return nil
}

// Row renders a report as a sheet row. Amounts are fixed two-decimal
// strings.
func Row(r core.Report, exportedAt string) []any {
	total := func(m *core.Money) string {
		if m == nil {
			return ""
		}
		return m.Amount.StringFixed(2)
	}
	return []any{
		r.ID,
		r.UserID,
		string(r.Date),
		core.JoinIDs(r.AssetIDs),
		core.JoinIDs(r.LiabilityIDs),
		r.NetWorth.Amount.StringFixed(2),
		total(r.AssetTotal),
		total(r.LiabilityTotal),
		exportedAt,
	}
}
