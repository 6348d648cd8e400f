package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docgrid/docgrid/internal/entity"
)

// Plan limits. Trial accounts get a hard document cap for the life of the
// trial; paid accounts get a monthly cap.
const (
	TrialDocCap   = 10
	ProMonthlyCap = 500
)

// Decision is the outcome of a quota check. Reason is user-facing and names
// the specific limit that was hit.
type Decision struct {
	Allowed bool
	Reason  string
}

// AccountSource is the slice of the account store the gate needs.
type AccountSource interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*entity.Account, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	SetEntitlement(ctx context.Context, id uuid.UUID, tier entity.PlanTier, status entity.SubscriptionStatus) error
}

// Gate decides whether an account may start another extraction and records
// usage once one commits.
type Gate struct {
	accounts AccountSource
	logger   *slog.Logger
	now      func() time.Time
}

func NewGate(accounts AccountSource, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{accounts: accounts, logger: logger, now: time.Now}
}

// CanExtract is consulted after the idempotency short-circuits and before
// the claim transition. A denial never reaches a provider.
func (g *Gate) CanExtract(ctx context.Context, accountID uuid.UUID) (Decision, error) {
	acct, err := g.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return Decision{}, fmt.Errorf("load account: %w", err)
	}
	return g.decide(acct), nil
}

func (g *Gate) decide(acct *entity.Account) Decision {
	switch acct.PlanTier {
	case entity.PlanPro:
		if acct.DocsThisMonth >= ProMonthlyCap {
			return Decision{Reason: fmt.Sprintf(
				"Monthly limit of %d documents reached. Your quota resets at the start of the next billing cycle.", ProMonthlyCap)}
		}
	default: // trial
		if acct.TrialEndsAt != nil && g.now().After(*acct.TrialEndsAt) {
			return Decision{Reason: "Your free trial has expired. Upgrade to keep extracting documents."}
		}
		if acct.DocsTotal >= TrialDocCap {
			return Decision{Reason: fmt.Sprintf(
				"Free trial limit of %d documents reached. Upgrade to keep extracting documents.", TrialDocCap)}
		}
	}
	return Decision{Allowed: true}
}

// RecordExtraction bumps the usage counters after a successful commit.
func (g *Gate) RecordExtraction(ctx context.Context, accountID uuid.UUID) error {
	if err := g.accounts.IncrementUsage(ctx, accountID); err != nil {
		return fmt.Errorf("record extraction: %w", err)
	}
	return nil
}

// ApplySubscriptionState reconciles a billing-provider subscription state
// onto the account. Deliberately asymmetric: only active/trialing grant the
// paid tier, only canceled/incomplete_expired revoke it. Intermediate states
// (incomplete, past_due, paused) never downgrade automatically — payment
// trouble gets a grace period rather than an instant lockout.
func (g *Gate) ApplySubscriptionState(ctx context.Context, accountID uuid.UUID, state entity.SubscriptionStatus) error {
	switch state {
	case entity.SubActive, entity.SubTrialing:
		g.logger.Info("quota.entitlement.grant", "account_id", accountID, "state", state)
		return g.accounts.SetEntitlement(ctx, accountID, entity.PlanPro, state)
	case entity.SubCanceled, entity.SubIncompleteExpired:
		g.logger.Info("quota.entitlement.revoke", "account_id", accountID, "state", state)
		return g.accounts.SetEntitlement(ctx, accountID, entity.PlanTrial, state)
	default:
		g.logger.Info("quota.entitlement.unchanged", "account_id", accountID, "state", state)
		return nil
	}
}
