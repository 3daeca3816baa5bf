package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/OIYJJ/weather-data-automation/internal/config"
	"github.com/OIYJJ/weather-data-automation/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Appender writes normalized records to a local .xlsx workbook, one row per
// record below the last used row. It implements pipeline.Appender.
type Appender struct {
	path      string
	sheetName string
	logger    *slog.Logger
}

// NewAppender checks that the workbook at cfg.XLSXPath is readable, or that
// it does not exist yet.
func NewAppender(cfg *config.Config, logger *slog.Logger) (*Appender, error) {
	if cfg.XLSXPath == "" {
		return nil, errors.New("XLSX_PATH is required")
	}
	if cfg.SheetName == "" {
		return nil, errors.New("SHEET_NAME is required")
	}
	if _, err := os.Stat(cfg.XLSXPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat workbook: %w", err)
	}
	return &Appender{path: cfg.XLSXPath, sheetName: cfg.SheetName, logger: logger}, nil
}

// Append opens the workbook, writes every record and saves it once.
func (a *Appender) Append(_ context.Context, records []domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	f, err := a.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(a.sheetName)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", a.sheetName, err)
	}
	next := len(rows) + 1

	for i := range records {
		row := records[i].Row()
		cell, err := excelize.CoordinatesToCellName(1, next+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(a.sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", next+i, err)
		}
	}

	if err := f.SaveAs(a.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	a.logger.Debug("workbook updated", "path", a.path, "first_row", next, "rows", len(records))
	return nil
}

// Close is a no-op; the workbook is saved on every Append.
func (a *Appender) Close() error {
	return nil
}

// open loads the workbook, creating it with the target sheet when missing.
func (a *Appender) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", a.sheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %q: %w", a.sheetName, err)
		}
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	idx, err := f.GetSheetIndex(a.sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("find sheet %q: %w", a.sheetName, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(a.sheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %q: %w", a.sheetName, err)
		}
	}
	return f, nil
}
