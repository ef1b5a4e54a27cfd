package service

import (
	"context"
	"testing"

	"license-market/internal/model"
	"license-market/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fulfillmentFixture struct {
	db          *gorm.DB
	coordinator FulfillmentCoordinator
	orderRepo   repository.OrderRepository
	accountRepo repository.LicenseAccountRepository
	toolRepo    repository.ToolRepository
}

func newFulfillmentFixture(t *testing.T) *fulfillmentFixture {
	db := newTestDB(t)
	orderRepo := repository.NewOrderRepository(db)
	toolRepo := repository.NewToolRepository(db)
	accountRepo := repository.NewLicenseAccountRepository(db)
	pool := NewTokenPool(accountRepo)

	return &fulfillmentFixture{
		db: db,
		coordinator: NewFulfillmentCoordinator(
			db, orderRepo, toolRepo, accountRepo, pool, NewCredentialIssuer(accountRepo), newTestLogger(),
		),
		orderRepo:   orderRepo,
		accountRepo: accountRepo,
		toolRepo:    toolRepo,
	}
}

func TestProcessOutcomeIssuesTokens(t *testing.T) {
	f := newFulfillmentFixture(t)
	ctx := context.Background()

	tool := seedTool(t, f.db, model.IssuanceToken, 5)
	plan := seedPlan(t, f.db, tool.ID, 30, 150000)
	seedToken(t, f.db, plan.ID, "111111")
	seedToken(t, f.db, plan.ID, "222222")

	txn := seedTransaction(t, f.db, model.PurposeOrderPayment, model.TxnSuccess, 300000)
	order := seedOrder(t, f.db, txn.ID, tool.ID, "buyer-1", map[uint]int{plan.ID: 2})

	require.NoError(t, f.coordinator.ProcessOutcome(ctx, txn, model.TxnSuccess))

	stored, err := f.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderSuccess, stored.Status)

	accounts, err := f.accountRepo.FindByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
	for _, account := range accounts {
		assert.False(t, account.Used, "paid tokens start their clock only on activation")
		assert.Nil(t, account.StartDate)
	}

	storedTool, err := f.toolRepo.FindByID(ctx, f.db, tool.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, storedTool.AvailableQty)
}

func TestProcessOutcomeIssuesCredentials(t *testing.T) {
	f := newFulfillmentFixture(t)
	ctx := context.Background()

	tool := seedTool(t, f.db, model.IssuanceCredential, 5)
	plan := seedPlan(t, f.db, tool.ID, 30, 150000)

	txn := seedTransaction(t, f.db, model.PurposeOrderPayment, model.TxnSuccess, 300000)
	order := seedOrder(t, f.db, txn.ID, tool.ID, "buyer-1", map[uint]int{plan.ID: 2})

	require.NoError(t, f.coordinator.ProcessOutcome(ctx, txn, model.TxnSuccess))

	accounts, err := f.accountRepo.FindByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	usernames := map[string]struct{}{}
	for _, account := range accounts {
		require.NotNil(t, account.Username)
		require.NotNil(t, account.Password)
		assert.Nil(t, account.Token)
		usernames[*account.Username] = struct{}{}
	}
	assert.Len(t, usernames, 2, "credential usernames must be distinct")
}

func TestProcessOutcomeIdempotent(t *testing.T) {
	f := newFulfillmentFixture(t)
	ctx := context.Background()

	tool := seedTool(t, f.db, model.IssuanceCredential, 5)
	plan := seedPlan(t, f.db, tool.ID, 30, 150000)

	txn := seedTransaction(t, f.db, model.PurposeOrderPayment, model.TxnSuccess, 150000)
	order := seedOrder(t, f.db, txn.ID, tool.ID, "buyer-1", map[uint]int{plan.ID: 1})

	require.NoError(t, f.coordinator.ProcessOutcome(ctx, txn, model.TxnSuccess))
	require.NoError(t, f.coordinator.ProcessOutcome(ctx, txn, model.TxnSuccess))

	accounts, err := f.accountRepo.FindByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 1, "duplicate delivery must not provision twice")

	storedTool, err := f.toolRepo.FindByID(ctx, f.db, tool.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, storedTool.AvailableQty)
}

func TestInsufficientSupplyFailsOrderAtomically(t *testing.T) {
	f := newFulfillmentFixture(t)
	ctx := context.Background()

	tool := seedTool(t, f.db, model.IssuanceToken, 5)
	plan := seedPlan(t, f.db, tool.ID, 30, 150000)
	account := seedToken(t, f.db, plan.ID, "111111")

	txn := seedTransaction(t, f.db, model.PurposeOrderPayment, model.TxnSuccess, 300000)
	order := seedOrder(t, f.db, txn.ID, tool.ID, "buyer-1", map[uint]int{plan.ID: 2})

	require.NoError(t, f.coordinator.ProcessOutcome(ctx, txn, model.TxnSuccess))

	stored, err := f.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderFailed, stored.Status)
	assert.NotEmpty(t, stored.FailReason)

	// The rollback undid every partial effect: token unbound, stock intact.
	row, err := f.accountRepo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, row.OrderID)

	storedTool, err := f.toolRepo.FindByID(ctx, f.db, tool.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, storedTool.AvailableQty)
}

func TestSupplyExhaustionFailsOnlyAffectedOrder(t *testing.T) {
	f := newFulfillmentFixture(t)
	ctx := context.Background()

	tokenTool := seedTool(t, f.db, model.IssuanceToken, 5)
	tokenPlan := seedPlan(t, f.db, tokenTool.ID, 30, 150000)

	credTool := seedTool(t, f.db, model.IssuanceCredential, 5)
	credPlan := seedPlan(t, f.db, credTool.ID, 30, 200000)

	txn := seedTransaction(t, f.db, model.PurposeOrderPayment, model.TxnSuccess, 350000)
	starved := seedOrder(t, f.db, txn.ID, tokenTool.ID, "buyer-1", map[uint]int{tokenPlan.ID: 1})
	healthy := seedOrder(t, f.db, txn.ID, credTool.ID, "buyer-1", map[uint]int{credPlan.ID: 1})

	require.NoError(t, f.coordinator.ProcessOutcome(ctx, txn, model.TxnSuccess))

	storedStarved, err := f.orderRepo.FindByID(ctx, starved.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderFailed, storedStarved.Status)

	storedHealthy, err := f.orderRepo.FindByID(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderSuccess, storedHealthy.Status)
}

func TestFailedPaymentReleasesBoundTokens(t *testing.T) {
	f := newFulfillmentFixture(t)
	ctx := context.Background()

	tool := seedTool(t, f.db, model.IssuanceToken, 5)
	plan := seedPlan(t, f.db, tool.ID, 30, 150000)
	account := seedToken(t, f.db, plan.ID, "111111")

	txn := seedTransaction(t, f.db, model.PurposeOrderPayment, model.TxnFailed, 150000)
	txn.ResponseCode = "24"
	order := seedOrder(t, f.db, txn.ID, tool.ID, "buyer-1", map[uint]int{plan.ID: 1})

	// Simulate a binding left behind before the payment failed.
	require.NoError(t, f.db.Model(&model.LicenseAccount{}).
		Where("id = ?", account.ID).
		Update("order_id", order.ID).Error)

	require.NoError(t, f.coordinator.ProcessOutcome(ctx, txn, model.TxnFailed))

	stored, err := f.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderFailed, stored.Status)
	assert.Contains(t, stored.FailReason, "24")

	row, err := f.accountRepo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, row.OrderID)
}

func TestProcessOutcomeNoOrders(t *testing.T) {
	f := newFulfillmentFixture(t)

	txn := seedTransaction(t, f.db, model.PurposeOrderPayment, model.TxnSuccess, 150000)

	err := f.coordinator.ProcessOutcome(context.Background(), txn, model.TxnSuccess)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInventoryFloorsAtZero(t *testing.T) {
	f := newFulfillmentFixture(t)
	ctx := context.Background()

	tool := seedTool(t, f.db, model.IssuanceCredential, 1)
	plan := seedPlan(t, f.db, tool.ID, 30, 150000)

	txn := seedTransaction(t, f.db, model.PurposeOrderPayment, model.TxnSuccess, 300000)
	seedOrder(t, f.db, txn.ID, tool.ID, "buyer-1", map[uint]int{plan.ID: 2})

	require.NoError(t, f.coordinator.ProcessOutcome(ctx, txn, model.TxnSuccess))

	storedTool, err := f.toolRepo.FindByID(ctx, f.db, tool.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, storedTool.AvailableQty)
}
