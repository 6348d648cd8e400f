package export_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/docgrid/docgrid/constants"
	"github.com/docgrid/docgrid/internal/entity"
	"github.com/docgrid/docgrid/internal/export"
	"github.com/docgrid/docgrid/internal/repository"
)

type fakeRowRepo struct {
	repository.RowRepository
	rows []*entity.Row
}

func (f *fakeRowRepo) ListByTable(_ context.Context, _ uuid.UUID) ([]*entity.Row, error) {
	return f.rows, nil
}

type fakeTableRepo struct {
	repository.TableRepository
	columns []entity.Column
}

func (f *fakeTableRepo) ListColumns(_ context.Context, _ uuid.UUID) ([]entity.Column, error) {
	return f.columns, nil
}

func strPtr(s string) *string { return &s }

func testRows() []*entity.Row {
	updated := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return []*entity.Row{
		{
			FileName:  "invoice-001.pdf",
			Status:    constants.RowStatusExtracted,
			Data:      map[string]any{"total": "42.50", "vendor": "Acme"},
			UpdatedAt: updated,
		},
		{
			FileName:  "invoice-002.pdf",
			Status:    constants.RowStatusFailed,
			Error:     strPtr("could not read model response"),
			Data:      map[string]any{},
			UpdatedAt: updated,
		},
	}
}

func testColumns() []entity.Column {
	return []entity.Column{
		{Key: "total", Description: "grand total", Position: 0},
		{Key: "vendor", Description: "vendor name", Position: 1},
	}
}

func TestExportGridXLSX(t *testing.T) {
	t.Parallel()

	svc := export.NewService(
		&fakeRowRepo{rows: testRows()},
		&fakeTableRepo{columns: testColumns()},
		slog.New(slog.DiscardHandler),
	)

	b, err := svc.ExportGridXLSX(context.Background(), uuid.New())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Document", "total", "vendor"}, rows[0])
	assert.Equal(t, []string{"invoice-001.pdf", "42.50", "Acme"}, rows[1])
	// Failed row: file name only, value cells stay empty.
	assert.Equal(t, "invoice-002.pdf", rows[2][0])
}

func TestExportStatusCSV(t *testing.T) {
	t.Parallel()

	svc := export.NewService(
		&fakeRowRepo{rows: testRows()},
		&fakeTableRepo{columns: testColumns()},
		slog.New(slog.DiscardHandler),
	)

	b, err := svc.ExportStatusCSV(context.Background(), uuid.New())
	require.NoError(t, err)

	out := string(b)
	assert.Contains(t, out, "document,status,error,updated_at")
	assert.Contains(t, out, "invoice-001.pdf,extracted,,2026-01-15T12:00:00Z")
	assert.Contains(t, out, "invoice-002.pdf,failed,could not read model response,2026-01-15T12:00:00Z")
}

func TestExportStatusCSV_Empty(t *testing.T) {
	t.Parallel()

	svc := export.NewService(
		&fakeRowRepo{},
		&fakeTableRepo{},
		slog.New(slog.DiscardHandler),
	)

	b, err := svc.ExportStatusCSV(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "document,status,error,updated_at\n", string(b))
}
