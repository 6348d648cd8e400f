package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/docgrid/docgrid/internal/common"
	"github.com/docgrid/docgrid/internal/entity"
)

const (
	TableTables  = "doc_tables"
	TableColumns = "doc_columns"
)

// TableRepository is the schema collaborator: tables and their ordered
// column lists. The extraction pipeline only ever reads columns; the CRUD
// side stays thin.
type TableRepository interface {
	Create(ctx context.Context, t *entity.Table) error
	GetByID(ctx context.Context, accountID, tableID uuid.UUID) (*entity.Table, error)
	Rename(ctx context.Context, accountID, tableID uuid.UUID, name string) error
	Delete(ctx context.Context, accountID, tableID uuid.UUID) error

	AddColumn(ctx context.Context, c *entity.Column) error
	DeleteColumn(ctx context.Context, tableID, columnID uuid.UUID) error
	ListColumns(ctx context.Context, tableID uuid.UUID) ([]entity.Column, error)
}

type tableRepo struct {
	db  *DB
	log *slog.Logger
}

func NewTableRepository(db *DB, log *slog.Logger) TableRepository {
	if log == nil {
		log = slog.Default()
	}
	return &tableRepo{db: db, log: log}
}

func (r *tableRepo) Create(ctx context.Context, t *entity.Table) error {
	query, args, err := r.db.QB.
		Insert(TableTables).
		Columns("id", "account_id", "name", "created_at", "updated_at").
		Values(t.ID.String(), t.AccountID.String(), t.Name, t.CreatedAt.UTC(), t.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return common.WrapError(err, "insert table")
	}
	r.log.Info("table created", "table_id", t.ID, "name", t.Name)
	return nil
}

func (r *tableRepo) GetByID(ctx context.Context, accountID, tableID uuid.UUID) (*entity.Table, error) {
	query, args, err := r.db.QB.
		Select("id", "account_id", "name", "created_at", "updated_at").
		From(TableTables).
		Where(sq.Eq{"id": tableID.String(), "account_id": accountID.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		t       entity.Table
		id, aid string
	)
	err = r.db.SQL.QueryRowContext(ctx, query, args...).
		Scan(&id, &aid, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrTableNotFound
		}
		return nil, common.WrapError(err, "query table")
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse table id: %w", err)
	}
	if t.AccountID, err = uuid.Parse(aid); err != nil {
		return nil, fmt.Errorf("parse account id: %w", err)
	}
	return &t, nil
}

func (r *tableRepo) Rename(ctx context.Context, accountID, tableID uuid.UUID, name string) error {
	query, args, err := r.db.QB.
		Update(TableTables).
		Set("name", name).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": tableID.String(), "account_id": accountID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		return common.WrapError(err, "rename table")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrTableNotFound
	}
	return nil
}

func (r *tableRepo) Delete(ctx context.Context, accountID, tableID uuid.UUID) error {
	// Rows and columns first; FKs have no cascade so this stays portable.
	for _, child := range []string{TableRows, TableColumns} {
		query, args, err := r.db.QB.
			Delete(child).
			Where(sq.Eq{"table_id": tableID.String()}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
			return common.WrapError(err, "delete table children")
		}
	}
	query, args, err := r.db.QB.
		Delete(TableTables).
		Where(sq.Eq{"id": tableID.String(), "account_id": accountID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return common.WrapError(err, "delete table")
	}
	r.log.Info("table deleted", "table_id", tableID)
	return nil
}

func (r *tableRepo) AddColumn(ctx context.Context, c *entity.Column) error {
	query, args, err := r.db.QB.
		Insert(TableColumns).
		Columns("id", "table_id", "col_key", "description", "position").
		Values(c.ID.String(), c.TableID.String(), c.Key, c.Description, c.Position).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return common.WrapError(err, "insert column")
	}
	return nil
}

func (r *tableRepo) DeleteColumn(ctx context.Context, tableID, columnID uuid.UUID) error {
	query, args, err := r.db.QB.
		Delete(TableColumns).
		Where(sq.Eq{"id": columnID.String(), "table_id": tableID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return common.WrapError(err, "delete column")
	}
	return nil
}

func (r *tableRepo) ListColumns(ctx context.Context, tableID uuid.UUID) ([]entity.Column, error) {
	query, args, err := r.db.QB.
		Select("id", "table_id", "col_key", "description", "position").
		From(TableColumns).
		Where(sq.Eq{"table_id": tableID.String()}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "query columns")
	}
	defer rows.Close()

	var out []entity.Column
	for rows.Next() {
		var (
			c       entity.Column
			id, tid string
		)
		if err := rows.Scan(&id, &tid, &c.Key, &c.Description, &c.Position); err != nil {
			return nil, err
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse column id: %w", err)
		}
		if c.TableID, err = uuid.Parse(tid); err != nil {
			return nil, fmt.Errorf("parse table id: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
