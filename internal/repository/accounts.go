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

const TableAccounts = "accounts"

// AccountRepository backs the quota gate: entitlement fields and usage
// counters.
type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*entity.Account, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	SetEntitlement(ctx context.Context, id uuid.UUID, tier entity.PlanTier, status entity.SubscriptionStatus) error
}

type accountRepo struct {
	db  *DB
	log *slog.Logger
}

func NewAccountRepository(db *DB, log *slog.Logger) AccountRepository {
	if log == nil {
		log = slog.Default()
	}
	return &accountRepo{db: db, log: log}
}

func (r *accountRepo) Create(ctx context.Context, a *entity.Account) error {
	query, args, err := r.db.QB.
		Insert(TableAccounts).
		Columns("id", "email", "plan_tier", "subscription_status", "trial_ends_at",
			"docs_this_month", "docs_total", "created_at", "updated_at").
		Values(a.ID.String(), a.Email, string(a.PlanTier), string(a.SubscriptionStatus),
			a.TrialEndsAt, a.DocsThisMonth, a.DocsTotal, a.CreatedAt.UTC(), a.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return common.WrapError(err, "insert account")
	}
	r.log.Info("account created", "account_id", a.ID, "tier", a.PlanTier)
	return nil
}

func (r *accountRepo) GetAccount(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	query, args, err := r.db.QB.
		Select("id", "email", "plan_tier", "subscription_status", "trial_ends_at",
			"docs_this_month", "docs_total", "created_at", "updated_at").
		From(TableAccounts).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		a            entity.Account
		aid          string
		tier, status string
		trialEnds    sql.NullTime
	)
	err = r.db.SQL.QueryRowContext(ctx, query, args...).Scan(
		&aid, &a.Email, &tier, &status, &trialEnds,
		&a.DocsThisMonth, &a.DocsTotal, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrAccountNotFound
		}
		return nil, common.WrapError(err, "query account")
	}
	if a.ID, err = uuid.Parse(aid); err != nil {
		return nil, fmt.Errorf("parse account id: %w", err)
	}
	a.PlanTier = entity.PlanTier(tier)
	a.SubscriptionStatus = entity.SubscriptionStatus(status)
	if trialEnds.Valid {
		t := trialEnds.Time
		a.TrialEndsAt = &t
	}
	return &a, nil
}

func (r *accountRepo) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	query, args, err := r.db.QB.
		Update(TableAccounts).
		Set("docs_this_month", sq.Expr("docs_this_month + 1")).
		Set("docs_total", sq.Expr("docs_total + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		return common.WrapError(err, "increment usage")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepo) SetEntitlement(ctx context.Context, id uuid.UUID, tier entity.PlanTier, status entity.SubscriptionStatus) error {
	query, args, err := r.db.QB.
		Update(TableAccounts).
		Set("plan_tier", string(tier)).
		Set("subscription_status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		return common.WrapError(err, "set entitlement")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrAccountNotFound
	}
	r.log.Info("entitlement updated", "account_id", id, "tier", tier, "status", status)
	return nil
}
