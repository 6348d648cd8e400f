package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgrid/docgrid/internal/common"
	"github.com/docgrid/docgrid/internal/entity"
)

func TestAccountRepository_Usage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, env.accounts.IncrementUsage(ctx, env.accountID))
	}

	got, err := env.accounts.GetAccount(ctx, env.accountID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.DocsThisMonth)
	assert.Equal(t, 3, got.DocsTotal)

	require.ErrorIs(t, env.accounts.IncrementUsage(ctx, uuid.New()), common.ErrAccountNotFound)
}

func TestAccountRepository_SetEntitlement(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.accounts.SetEntitlement(ctx, env.accountID, entity.PlanPro, entity.SubActive))

	got, err := env.accounts.GetAccount(ctx, env.accountID)
	require.NoError(t, err)
	assert.Equal(t, entity.PlanPro, got.PlanTier)
	assert.Equal(t, entity.SubActive, got.SubscriptionStatus)

	require.ErrorIs(t,
		env.accounts.SetEntitlement(ctx, uuid.New(), entity.PlanPro, entity.SubActive),
		common.ErrAccountNotFound)
}

func TestAccountRepository_GetAccount_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.accounts.GetAccount(context.Background(), uuid.New())
	require.ErrorIs(t, err, common.ErrAccountNotFound)
}
