package service

import (
	"context"
	"testing"

	"license-market/internal/model"
	"license-market/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveInsufficientSupply(t *testing.T) {
	db := newTestDB(t)
	pool := NewTokenPool(repository.NewLicenseAccountRepository(db))
	ctx := context.Background()

	tool := seedTool(t, db, model.IssuanceToken, 10)
	plan := seedPlan(t, db, tool.ID, 30, 150000)
	seedToken(t, db, plan.ID, "111111")

	_, err := pool.Reserve(ctx, db, plan.ID, 2, nil)
	assert.ErrorIs(t, err, ErrInsufficientSupply)
}

func TestReserveAndCommitBindsOrder(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewLicenseAccountRepository(db)
	pool := NewTokenPool(repo)
	ctx := context.Background()

	tool := seedTool(t, db, model.IssuanceToken, 10)
	plan := seedPlan(t, db, tool.ID, 30, 150000)
	seedToken(t, db, plan.ID, "111111")
	seedToken(t, db, plan.ID, "222222")

	reserved, err := pool.Reserve(ctx, db, plan.ID, 2, nil)
	require.NoError(t, err)
	require.Len(t, reserved, 2)

	ids := []uint{reserved[0].ID, reserved[1].ID}
	require.NoError(t, pool.Commit(ctx, db, ids, 42))

	rows, err := repo.FindByIDs(ctx, db, ids)
	require.NoError(t, err)
	for _, row := range rows {
		require.NotNil(t, row.OrderID)
		assert.Equal(t, uint(42), *row.OrderID)
		assert.False(t, row.Used, "reservation must not consume the token")
	}
}

func TestNoDoubleIssuance(t *testing.T) {
	db := newTestDB(t)
	pool := NewTokenPool(repository.NewLicenseAccountRepository(db))
	ctx := context.Background()

	tool := seedTool(t, db, model.IssuanceToken, 10)
	plan := seedPlan(t, db, tool.ID, 30, 150000)
	seedToken(t, db, plan.ID, "111111")
	seedToken(t, db, plan.ID, "222222")
	seedToken(t, db, plan.ID, "333333")

	// First buyer takes two of the three tokens.
	first, err := pool.Reserve(ctx, db, plan.ID, 2, nil)
	require.NoError(t, err)
	require.NoError(t, pool.Commit(ctx, db, []uint{first[0].ID, first[1].ID}, 1))

	// Second buyer of two cannot be satisfied by the one token left.
	_, err = pool.Reserve(ctx, db, plan.ID, 2, nil)
	assert.ErrorIs(t, err, ErrInsufficientSupply)

	remaining, err := pool.Reserve(ctx, db, plan.ID, 1, nil)
	require.NoError(t, err)
	assert.NotEqual(t, *first[0].Token, *remaining[0].Token)
	assert.NotEqual(t, *first[1].Token, *remaining[0].Token)
}

func TestCommitReplayIsNoOp(t *testing.T) {
	db := newTestDB(t)
	pool := NewTokenPool(repository.NewLicenseAccountRepository(db))
	ctx := context.Background()

	tool := seedTool(t, db, model.IssuanceToken, 10)
	plan := seedPlan(t, db, tool.ID, 30, 150000)
	account := seedToken(t, db, plan.ID, "111111")

	require.NoError(t, pool.Commit(ctx, db, []uint{account.ID}, 7))
	assert.NoError(t, pool.Commit(ctx, db, []uint{account.ID}, 7))
}

func TestCommitContestedToken(t *testing.T) {
	db := newTestDB(t)
	pool := NewTokenPool(repository.NewLicenseAccountRepository(db))
	ctx := context.Background()

	tool := seedTool(t, db, model.IssuanceToken, 10)
	plan := seedPlan(t, db, tool.ID, 30, 150000)
	account := seedToken(t, db, plan.ID, "111111")

	require.NoError(t, pool.Commit(ctx, db, []uint{account.ID}, 7))

	err := pool.Commit(ctx, db, []uint{account.ID}, 8)
	assert.ErrorIs(t, err, ErrTokenConflict)
}

func TestReserveSkipsExcludedTokens(t *testing.T) {
	db := newTestDB(t)
	pool := NewTokenPool(repository.NewLicenseAccountRepository(db))
	ctx := context.Background()

	tool := seedTool(t, db, model.IssuanceToken, 10)
	plan := seedPlan(t, db, tool.ID, 30, 150000)
	seedToken(t, db, plan.ID, "111111")
	seedToken(t, db, plan.ID, "222222")

	reserved, err := pool.Reserve(ctx, db, plan.ID, 1, []string{"111111"})
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	assert.Equal(t, "222222", *reserved[0].Token)
}

func TestReleaseReturnsTokensToPool(t *testing.T) {
	db := newTestDB(t)
	pool := NewTokenPool(repository.NewLicenseAccountRepository(db))
	ctx := context.Background()

	tool := seedTool(t, db, model.IssuanceToken, 10)
	plan := seedPlan(t, db, tool.ID, 30, 150000)
	account := seedToken(t, db, plan.ID, "111111")

	require.NoError(t, pool.Commit(ctx, db, []uint{account.ID}, 7))
	_, err := pool.Reserve(ctx, db, plan.ID, 1, nil)
	require.ErrorIs(t, err, ErrInsufficientSupply)

	require.NoError(t, pool.Release(ctx, db, []uint{account.ID}))

	reserved, err := pool.Reserve(ctx, db, plan.ID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, account.ID, reserved[0].ID)
}

func TestGenerateBatchDistinctTokens(t *testing.T) {
	db := newTestDB(t)
	pool := NewTokenPool(repository.NewLicenseAccountRepository(db))

	tokens, err := pool.GenerateBatch(context.Background(), 20, nil)
	require.NoError(t, err)
	require.Len(t, tokens, 20)

	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		assert.Len(t, token, 6)
		_, dup := seen[token]
		assert.False(t, dup, "token %s generated twice", token)
		seen[token] = struct{}{}
	}
}

func TestGenerateCandidateAvoidsStoredTokens(t *testing.T) {
	db := newTestDB(t)
	pool := NewTokenPool(repository.NewLicenseAccountRepository(db))
	ctx := context.Background()

	tool := seedTool(t, db, model.IssuanceToken, 10)
	plan := seedPlan(t, db, tool.ID, 30, 150000)
	seedToken(t, db, plan.ID, "424242")

	for i := 0; i < 50; i++ {
		token, err := pool.GenerateCandidate(ctx, nil)
		require.NoError(t, err)
		assert.NotEqual(t, "424242", token)
	}
}
