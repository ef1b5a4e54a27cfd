package service

import (
	"context"
	"errors"
	"fmt"

	"license-market/internal/gateway"
	"license-market/internal/model"
	"license-market/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FinalizeResult is what Finalize hands back for downstream dispatch.
// AlreadyFinal marks a replayed callback: the stored outcome is returned and
// no side effects may run again.
type FinalizeResult struct {
	Transaction  *model.PaymentTransaction
	Outcome      model.TransactionStatus
	AlreadyFinal bool
}

type TransactionLedger interface {
	Create(ctx context.Context, txn *model.PaymentTransaction) error
	MarkProcessing(ctx context.Context, txnRef string) error
	Finalize(ctx context.Context, txnRef string, params map[string]string) (*FinalizeResult, error)
}

type ledgerImpl struct {
	db      *gorm.DB
	txnRepo repository.TransactionRepository
	logger  *logrus.Logger
}

func NewTransactionLedger(db *gorm.DB, txnRepo repository.TransactionRepository, logger *logrus.Logger) TransactionLedger {
	return &ledgerImpl{
		db:      db,
		txnRepo: txnRepo,
		logger:  logger,
	}
}

func (l *ledgerImpl) Create(ctx context.Context, txn *model.PaymentTransaction) error {
	txn.Status = model.TxnPending
	return l.txnRepo.Create(ctx, l.db, txn)
}

func (l *ledgerImpl) MarkProcessing(ctx context.Context, txnRef string) error {
	return l.txnRepo.MarkProcessing(ctx, txnRef)
}

// Finalize settles a transaction from callback parameters exactly once. A
// response code of "00" means SUCCESS, anything else FAILED. Replays return
// the stored outcome without re-executing the write.
func (l *ledgerImpl) Finalize(ctx context.Context, txnRef string, params map[string]string) (*FinalizeResult, error) {
	txn, err := l.txnRepo.FindByTxnRef(ctx, txnRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("transaction %q: %w", txnRef, ErrNotFound)
		}
		return nil, fmt.Errorf("look up transaction %q: %w", txnRef, err)
	}

	if txn.Status.Terminal() {
		l.logger.WithFields(logrus.Fields{
			"txn_ref": txnRef,
			"status":  txn.Status,
		}).Info("callback replay, transaction already terminal")

		return &FinalizeResult{
			Transaction:  txn,
			Outcome:      txn.Status,
			AlreadyFinal: true,
		}, nil
	}

	responseCode := params[gateway.FieldResponseCode]
	outcome := model.TxnFailed
	if responseCode == gateway.ResponseSuccess {
		outcome = model.TxnSuccess
	}

	meta := repository.CallbackMeta{
		ResponseCode: responseCode,
		GatewayTxnNo: params[gateway.FieldGatewayTxnNo],
		BankCode:     params[gateway.FieldBankCode],
		CardType:     params[gateway.FieldCardType],
		PayDate:      params[gateway.FieldPayDate],
		BankTranNo:   params[gateway.FieldBankTranNo],
	}

	flipped, err := l.txnRepo.FinalizeIfOpen(ctx, l.db, txnRef, outcome, meta)
	if err != nil {
		return nil, fmt.Errorf("finalize transaction %q: %w", txnRef, err)
	}

	// Another callback delivery won the conditional write; return what it
	// stored.
	if !flipped {
		stored, err := l.txnRepo.FindByTxnRef(ctx, txnRef)
		if err != nil {
			return nil, fmt.Errorf("reload transaction %q: %w", txnRef, err)
		}
		return &FinalizeResult{
			Transaction:  stored,
			Outcome:      stored.Status,
			AlreadyFinal: true,
		}, nil
	}

	stored, err := l.txnRepo.FindByTxnRef(ctx, txnRef)
	if err != nil {
		return nil, fmt.Errorf("reload transaction %q: %w", txnRef, err)
	}

	l.logger.WithFields(logrus.Fields{
		"txn_ref":       txnRef,
		"purpose":       stored.Purpose,
		"response_code": responseCode,
		"outcome":       outcome,
	}).Info("transaction finalized")

	return &FinalizeResult{
		Transaction: stored,
		Outcome:     outcome,
	}, nil
}
