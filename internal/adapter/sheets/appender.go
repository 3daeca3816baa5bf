package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/OIYJJ/weather-data-automation/internal/config"
	"github.com/OIYJJ/weather-data-automation/internal/domain"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// spreadsheetIDRe extracts the document id from a sheet URL,
// e.g. ".../spreadsheets/d/<id>/edit" -> "<id>".
var spreadsheetIDRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// Appender writes normalized records to a Google Sheets worksheet.
// It implements pipeline.Appender.
type Appender struct {
	values        *gsheets.SpreadsheetsValuesService
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger
}

// NewAppender authenticates with the service-account JSON in
// cfg.SheetCredentials and binds to the configured worksheet. Extra client
// options are appended after the credential option.
func NewAppender(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...option.ClientOption) (*Appender, error) {
	id, err := SpreadsheetID(cfg.SpreadsheetURL)
	if err != nil {
		return nil, err
	}
	if cfg.SheetName == "" {
		return nil, errors.New("SHEET_NAME is required")
	}

	creds := strings.TrimSpace(cfg.SheetCredentials)
	if creds == "" {
		return nil, errors.New("GOOGLE_SHEET_KEY is required")
	}
	if !json.Valid([]byte(creds)) {
		return nil, errors.New("GOOGLE_SHEET_KEY is not valid JSON")
	}

	clientOpts := append([]option.ClientOption{
		option.WithCredentialsJSON([]byte(creds)),
		option.WithScopes(gsheets.SpreadsheetsScope),
	}, opts...)

	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	return newAppender(svc, id, cfg.SheetName, logger), nil
}

func newAppender(svc *gsheets.Service, spreadsheetID, sheetName string, logger *slog.Logger) *Appender {
	return &Appender{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}
}

// Append adds all records below the sheet's existing data in one
// values.append call.
func (a *Appender) Append(ctx context.Context, records []domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]any, len(records))
	for i := range records {
		rows[i] = records[i].Row()
	}

	resp, err := a.values.Append(a.spreadsheetID, a.appendRange(), &gsheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %d rows to %q: %w", len(rows), a.sheetName, err)
	}

	if resp.Updates != nil {
		a.logger.Debug("sheet updated", "range", resp.Updates.UpdatedRange, "rows", resp.Updates.UpdatedRows)
	}
	return nil
}

// Close is a no-op; the Sheets client holds no open resources.
func (a *Appender) Close() error {
	return nil
}

// appendRange quotes the sheet name so names with spaces or dots resolve.
func (a *Appender) appendRange() string {
	return "'" + strings.ReplaceAll(a.sheetName, "'", "''") + "'!A1"
}

// SpreadsheetID returns the document id from a Google Sheets URL. A bare id
// is returned unchanged.
func SpreadsheetID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if m := spreadsheetIDRe.FindStringSubmatch(ref); len(m) == 2 {
		return m[1], nil
	}
	if ref != "" && !strings.ContainsAny(ref, "/:?") {
		return ref, nil
	}
	return "", fmt.Errorf("invalid SPREADSHEET_URL %q", ref)
}
