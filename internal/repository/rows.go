package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/docgrid/docgrid/constants"
	"github.com/docgrid/docgrid/internal/common"
	"github.com/docgrid/docgrid/internal/entity"
)

const TableRows = "doc_rows"

// RowRepository is the row collaborator: reads scoped by table, the atomic
// claim transition, and the final commit/failure writes.
type RowRepository interface {
	Create(ctx context.Context, row *entity.Row) error
	GetByID(ctx context.Context, tableID, rowID uuid.UUID) (*entity.Row, error)
	ListByTable(ctx context.Context, tableID uuid.UUID) ([]*entity.Row, error)
	ListPending(ctx context.Context, tableID uuid.UUID) ([]uuid.UUID, error)
	Claim(ctx context.Context, rowID uuid.UUID, now, staleBefore time.Time) (bool, error)
	MarkExtracted(ctx context.Context, rowID uuid.UUID, data map[string]any, rawResponse string, now time.Time) error
	MarkFailed(ctx context.Context, rowID uuid.UUID, message string, rawResponse *string, now time.Time) error
	Delete(ctx context.Context, tableID, rowID uuid.UUID) error
}

type rowRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRowRepository(db *DB, log *slog.Logger) RowRepository {
	if log == nil {
		log = slog.Default()
	}
	return &rowRepo{db: db, log: log}
}

var rowColumns = []string{
	"id", "table_id", "file_path", "file_name", "status",
	"data", "error_message", "raw_response", "created_at", "updated_at",
}

func (r *rowRepo) Create(ctx context.Context, row *entity.Row) error {
	data, err := json.Marshal(row.Data)
	if err != nil {
		return fmt.Errorf("encode row data: %w", err)
	}
	query, args, err := r.db.QB.
		Insert(TableRows).
		Columns(rowColumns...).
		Values(
			row.ID.String(), row.TableID.String(), row.FilePath, row.FileName,
			string(row.Status), string(data), row.Error, row.RawResponse,
			row.CreatedAt.UTC(), row.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("row create failed", "row_id", row.ID, "err", err)
		return common.WrapError(err, "insert row")
	}
	r.log.Info("row created", "row_id", row.ID, "table_id", row.TableID, "file", row.FileName)
	return nil
}

func (r *rowRepo) GetByID(ctx context.Context, tableID, rowID uuid.UUID) (*entity.Row, error) {
	query, args, err := r.db.QB.
		Select(rowColumns...).
		From(TableRows).
		Where(sq.Eq{"id": rowID.String(), "table_id": tableID.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	row, err := scanRow(r.db.SQL.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrRowNotFound
		}
		return nil, common.WrapError(err, "query row")
	}
	return row, nil
}

func (r *rowRepo) ListByTable(ctx context.Context, tableID uuid.UUID) ([]*entity.Row, error) {
	query, args, err := r.db.QB.
		Select(rowColumns...).
		From(TableRows).
		Where(sq.Eq{"table_id": tableID.String()}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "query rows")
	}
	defer rows.Close()

	var out []*entity.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan row")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *rowRepo) ListPending(ctx context.Context, tableID uuid.UUID) ([]uuid.UUID, error) {
	query, args, err := r.db.QB.
		Select("id").
		From(TableRows).
		Where(sq.Eq{
			"table_id": tableID.String(),
			"status":   constants.ClaimableStatuses(),
		}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "query pending rows")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse row id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Claim is the one true concurrency hazard of the pipeline: a conditional
// update that moves the row into "extracting" only if it is claimable (or
// stuck past the staleness cutoff). Exactly one of any set of concurrent
// callers sees rows-affected = 1; everyone else backs off.
func (r *rowRepo) Claim(ctx context.Context, rowID uuid.UUID, now, staleBefore time.Time) (bool, error) {
	query, args, err := r.db.QB.
		Update(TableRows).
		Set("status", string(constants.RowStatusExtracting)).
		Set("error_message", nil).
		Set("updated_at", now.UTC()).
		Where(sq.And{
			sq.Eq{"id": rowID.String()},
			sq.Or{
				sq.Eq{"status": constants.ClaimableStatuses()},
				sq.And{
					sq.Eq{"status": string(constants.RowStatusExtracting)},
					sq.Lt{"updated_at": staleBefore.UTC()},
				},
			},
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim update: %w", err)
	}

	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("row claim failed", "row_id", rowID, "err", err)
		return false, common.WrapError(err, "claim row")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, common.WrapError(err, "claim rows affected")
	}
	r.log.Info("row claim attempted", "row_id", rowID, "claimed", affected == 1)
	return affected == 1, nil
}

func (r *rowRepo) MarkExtracted(ctx context.Context, rowID uuid.UUID, data map[string]any, rawResponse string, now time.Time) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode row data: %w", err)
	}
	query, args, err := r.db.QB.
		Update(TableRows).
		Set("status", string(constants.RowStatusExtracted)).
		Set("data", string(encoded)).
		Set("error_message", nil).
		Set("raw_response", llmTruncate(rawResponse)).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{
			"id":     rowID.String(),
			"status": string(constants.RowStatusExtracting),
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build commit update: %w", err)
	}
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("row commit failed", "row_id", rowID, "err", err)
		return common.WrapError(err, "commit row")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// The row left "extracting" under us (e.g. a stale reclaim won).
		return fmt.Errorf("row %s no longer claimed", rowID)
	}
	r.log.Info("row extracted", "row_id", rowID)
	return nil
}

func (r *rowRepo) MarkFailed(ctx context.Context, rowID uuid.UUID, message string, rawResponse *string, now time.Time) error {
	upd := r.db.QB.
		Update(TableRows).
		Set("status", string(constants.RowStatusFailed)).
		Set("error_message", message).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": rowID.String()})
	if rawResponse != nil {
		upd = upd.Set("raw_response", llmTruncate(*rawResponse))
	}
	query, args, err := upd.ToSql()
	if err != nil {
		return fmt.Errorf("build failure update: %w", err)
	}
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("row failure write failed", "row_id", rowID, "err", err)
		return common.WrapError(err, "mark row failed")
	}
	r.log.Warn("row failed", "row_id", rowID, "error", message)
	return nil
}

func (r *rowRepo) Delete(ctx context.Context, tableID, rowID uuid.UUID) error {
	query, args, err := r.db.QB.
		Delete(TableRows).
		Where(sq.Eq{"id": rowID.String(), "table_id": tableID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return common.WrapError(err, "delete row")
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRow(s scannable) (*entity.Row, error) {
	var (
		row     entity.Row
		id, tid string
		status  string
		data    string
		errMsg  sql.NullString
		rawResp sql.NullString
	)
	if err := s.Scan(&id, &tid, &row.FilePath, &row.FileName, &status,
		&data, &errMsg, &rawResp, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if row.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse row id: %w", err)
	}
	if row.TableID, err = uuid.Parse(tid); err != nil {
		return nil, fmt.Errorf("parse table id: %w", err)
	}
	row.Status = constants.RowStatus(status)
	if data != "" {
		if err := json.Unmarshal([]byte(data), &row.Data); err != nil {
			return nil, fmt.Errorf("decode row data: %w", err)
		}
	}
	if row.Data == nil {
		row.Data = map[string]any{}
	}
	if errMsg.Valid {
		row.Error = &errMsg.String
	}
	if rawResp.Valid {
		row.RawResponse = &rawResp.String
	}
	return &row, nil
}

func llmTruncate(s string) string {
	if len(s) <= constants.MaxRawResponseLen {
		return s
	}
	return s[:constants.MaxRawResponseLen]
}
