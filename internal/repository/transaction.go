package repository

import (
	"context"
	"time"

	"license-market/internal/model"

	"gorm.io/gorm"
)

// CallbackMeta is the gateway metadata persisted when a transaction is
// finalized from a callback.
type CallbackMeta struct {
	ResponseCode string
	GatewayTxnNo string
	BankCode     string
	CardType     string
	PayDate      string
	BankTranNo   string
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, txn *model.PaymentTransaction) error
	FindByTxnRef(ctx context.Context, txnRef string) (*model.PaymentTransaction, error)
	MarkProcessing(ctx context.Context, txnRef string) error
	// FinalizeIfOpen flips a non-terminal transaction to the given terminal
	// status and stamps completion. Returns false when the row was already
	// terminal, in which case nothing was written.
	FinalizeIfOpen(ctx context.Context, tx *gorm.DB, txnRef string, status model.TransactionStatus, meta CallbackMeta) (bool, error)
}

type transactionRepoImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepoImpl{db: db}
}

func (r *transactionRepoImpl) Create(ctx context.Context, tx *gorm.DB, txn *model.PaymentTransaction) error {
	return tx.WithContext(ctx).Create(txn).Error
}

func (r *transactionRepoImpl) FindByTxnRef(ctx context.Context, txnRef string) (*model.PaymentTransaction, error) {
	var txn model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("txn_ref = ?", txnRef).
		First(&txn).Error

	if err != nil {
		return nil, err
	}

	return &txn, nil
}

func (r *transactionRepoImpl) MarkProcessing(ctx context.Context, txnRef string) error {
	return r.db.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where("txn_ref = ? AND status = ?", txnRef, model.TxnPending).
		Updates(map[string]interface{}{
			"status":     model.TxnProcessing,
			"updated_at": time.Now(),
		}).Error
}

func (r *transactionRepoImpl) FinalizeIfOpen(ctx context.Context, tx *gorm.DB, txnRef string, status model.TransactionStatus, meta CallbackMeta) (bool, error) {
	now := time.Now()
	result := tx.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where(`
			txn_ref = ?
			AND status IN ?
		`,
			txnRef,
			[]model.TransactionStatus{model.TxnPending, model.TxnProcessing},
		).
		Updates(map[string]interface{}{
			"status":         status,
			"response_code":  meta.ResponseCode,
			"gateway_txn_no": meta.GatewayTxnNo,
			"bank_code":      meta.BankCode,
			"card_type":      meta.CardType,
			"pay_date":       meta.PayDate,
			"bank_tran_no":   meta.BankTranNo,
			"completed_at":   now,
			"updated_at":     now,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}
