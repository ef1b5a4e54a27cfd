package service

import (
	"io"
	"testing"
	"time"

	"license-market/internal/client"
	"license-market/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens a private in-memory database per test. cache=shared keeps
// the database alive across the pooled connections gorm opens.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, client.Migrate(db))

	return db
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func seedTool(t *testing.T, db *gorm.DB, mode model.IssuanceMode, qty int) *model.Tool {
	t.Helper()

	tool := &model.Tool{
		Name:         "Design Studio Pro",
		SellerID:     "seller-1",
		IssuanceMode: mode,
		AvailableQty: qty,
	}
	require.NoError(t, db.Create(tool).Error)
	return tool
}

func seedPlan(t *testing.T, db *gorm.DB, toolID uint, days int, price int64) *model.LicensePlan {
	t.Helper()

	plan := &model.LicensePlan{
		ToolID:       toolID,
		Name:         "monthly",
		DurationDays: days,
		Price:        price,
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func seedToken(t *testing.T, db *gorm.DB, planID uint, token string) *model.LicenseAccount {
	t.Helper()

	account := &model.LicenseAccount{
		PlanID: planID,
		Token:  &token,
		Status: model.LicenseActive,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func seedTransaction(t *testing.T, db *gorm.DB, purpose model.TransactionPurpose, status model.TransactionStatus, amount int64) *model.PaymentTransaction {
	t.Helper()

	txn := &model.PaymentTransaction{
		TxnRef:      uuid.NewString(),
		RequesterID: "buyer-1",
		Purpose:     purpose,
		Status:      status,
		Amount:      amount,
	}
	require.NoError(t, db.Create(txn).Error)
	return txn
}

func seedOrder(t *testing.T, db *gorm.DB, txnID, toolID uint, buyerID string, lines map[uint]int) *model.Order {
	t.Helper()

	order := &model.Order{
		TransactionID: txnID,
		BuyerID:       buyerID,
		ToolID:        toolID,
		Status:        model.OrderPending,
	}
	require.NoError(t, db.Create(order).Error)

	for planID, qty := range lines {
		require.NoError(t, db.Create(&model.OrderLineItem{
			OrderID:  order.ID,
			PlanID:   planID,
			Quantity: qty,
		}).Error)
	}

	return order
}

func seedOwnedAccount(t *testing.T, db *gorm.DB, planID uint, buyerID string, status model.LicenseStatus, used bool, end *time.Time) (*model.LicenseAccount, *model.Order) {
	t.Helper()

	txn := seedTransaction(t, db, model.PurposeOrderPayment, model.TxnSuccess, 0)
	order := &model.Order{
		TransactionID: txn.ID,
		BuyerID:       buyerID,
		ToolID:        1,
		Status:        model.OrderSuccess,
	}
	require.NoError(t, db.Create(order).Error)

	account := &model.LicenseAccount{
		PlanID:  planID,
		OrderID: &order.ID,
		Used:    used,
		Status:  status,
		EndDate: end,
	}
	require.NoError(t, db.Create(account).Error)

	return account, order
}
