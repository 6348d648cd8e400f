package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"

	"github.com/docgrid/docgrid/internal/entity"
	"github.com/docgrid/docgrid/internal/repository"
)

// Service is a tiny façade over repositories that renders a table's
// extracted grid as XLSX and its processing status as CSV.
type Service struct {
	rows   repository.RowRepository
	tables repository.TableRepository
	logger *slog.Logger
}

func NewService(rows repository.RowRepository, tables repository.TableRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{rows: rows, tables: tables, logger: logger}
}

// ExportGridXLSX returns an XLSX workbook with one column per schema key
// (plus the source file name) and one row per document.
func (s *Service) ExportGridXLSX(ctx context.Context, tableID uuid.UUID) ([]byte, error) {
	start := time.Now()

	columns, err := s.tables.ListColumns(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("load columns: %w", err)
	}
	rows, err := s.rows.ListByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Sheet1"

	write := func(col, rowIdx int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, 1, "Document")
	for i, c := range columns {
		write(i+2, 1, c.Key)
	}

	rowIdx := 2
	for _, r := range rows {
		write(1, rowIdx, r.FileName)
		for i, c := range columns {
			if v, ok := r.Data[c.Key]; ok && v != nil {
				write(i+2, rowIdx, fmt.Sprintf("%v", v))
			}
		}
		rowIdx++
	}

	_ = f.SetColWidth(sheet, "A", "A", 36)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"table_id", tableID.String(),
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

type statusRecord struct {
	Document  string `csv:"document"`
	Status    string `csv:"status"`
	Error     string `csv:"error"`
	UpdatedAt string `csv:"updated_at"`
}

// ExportStatusCSV returns a fixed-shape processing report: one line per row
// with its lifecycle status and last error.
func (s *Service) ExportStatusCSV(ctx context.Context, tableID uuid.UUID) ([]byte, error) {
	rows, err := s.rows.ListByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}

	records := make([]statusRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, statusRecord{
			Document:  r.FileName,
			Status:    string(r.Status),
			Error:     errOrEmpty(r),
			UpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	b, err := csvutil.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("csv marshal: %w", err)
	}

	s.logger.Info("export.csv.ok", "table_id", tableID.String(), "rows", len(records))
	return b, nil
}

func errOrEmpty(r *entity.Row) string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}
