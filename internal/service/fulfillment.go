package service

import (
	"context"
	"errors"
	"fmt"

	"license-market/internal/model"
	"license-market/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FulfillmentCoordinator turns a settled payment into issued license
// accounts. Each order is one atomic unit of work: the status flip, the
// inventory decrement and all provisioning either land together or not at
// all. The conditional PENDING flip is the idempotency guard against
// duplicate callback deliveries.
type FulfillmentCoordinator interface {
	ProcessOutcome(ctx context.Context, txn *model.PaymentTransaction, outcome model.TransactionStatus) error
}

type fulfillmentImpl struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	toolRepo    repository.ToolRepository
	accountRepo repository.LicenseAccountRepository
	tokenPool   TokenPool
	credIssuer  CredentialIssuer
	logger      *logrus.Logger
}

func NewFulfillmentCoordinator(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	toolRepo repository.ToolRepository,
	accountRepo repository.LicenseAccountRepository,
	tokenPool TokenPool,
	credIssuer CredentialIssuer,
	logger *logrus.Logger,
) FulfillmentCoordinator {
	return &fulfillmentImpl{
		db:          db,
		orderRepo:   orderRepo,
		toolRepo:    toolRepo,
		accountRepo: accountRepo,
		tokenPool:   tokenPool,
		credIssuer:  credIssuer,
		logger:      logger,
	}
}

func (f *fulfillmentImpl) ProcessOutcome(ctx context.Context, txn *model.PaymentTransaction, outcome model.TransactionStatus) error {
	orders, err := f.orderRepo.FindByTransactionID(ctx, txn.ID)
	if err != nil {
		return fmt.Errorf("load orders of transaction %d: %w", txn.ID, err)
	}
	if len(orders) == 0 {
		return fmt.Errorf("transaction %d has no orders: %w", txn.ID, ErrNotFound)
	}

	if outcome != model.TxnSuccess {
		return f.failOrders(ctx, orders, txn)
	}

	// Supply exhaustion fails only the affected order; sibling orders on the
	// same transaction still fulfill.
	var firstErr error
	for _, order := range orders {
		if err := f.fulfillOrder(ctx, order); err != nil {
			if errors.Is(err, ErrInsufficientSupply) {
				f.logger.WithFields(logrus.Fields{
					"order_id": order.ID,
					"txn_ref":  txn.TxnRef,
					"error":    err.Error(),
				}).Error("provisioning failed, marking order failed")

				if _, markErr := f.orderRepo.MarkFailed(ctx, f.db, order.ID, err.Error()); markErr != nil {
					return fmt.Errorf("mark order %d failed: %w", order.ID, markErr)
				}
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (f *fulfillmentImpl) fulfillOrder(ctx context.Context, order *model.Order) error {
	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flipped, err := f.orderRepo.MarkSuccess(ctx, tx, order.ID)
		if err != nil {
			return fmt.Errorf("flip order %d to success: %w", order.ID, err)
		}
		// Already terminal: a previous delivery provisioned this order.
		if !flipped {
			f.logger.WithField("order_id", order.ID).Info("order already terminal, skipping provisioning")
			return nil
		}

		tool, err := f.toolRepo.FindByID(ctx, tx, order.ToolID)
		if err != nil {
			return fmt.Errorf("load tool %d: %w", order.ToolID, err)
		}

		items, err := f.orderRepo.GetLineItems(ctx, tx, order.ID)
		if err != nil {
			return fmt.Errorf("load line items of order %d: %w", order.ID, err)
		}

		totalQty := 0
		for _, item := range items {
			totalQty += item.Quantity
		}
		if err := f.toolRepo.DecrementAvailable(ctx, tx, tool.ID, totalQty); err != nil {
			return fmt.Errorf("decrement inventory of tool %d: %w", tool.ID, err)
		}

		for _, item := range items {
			if err := f.provisionLineItem(ctx, tx, order, tool, item); err != nil {
				return err
			}
		}

		return nil
	})
}

func (f *fulfillmentImpl) provisionLineItem(ctx context.Context, tx *gorm.DB, order *model.Order, tool *model.Tool, item *model.OrderLineItem) error {
	switch tool.IssuanceMode {
	case model.IssuanceToken:
		reserved, err := f.tokenPool.Reserve(ctx, tx, item.PlanID, item.Quantity, nil)
		if err != nil {
			return err
		}

		ids := make([]uint, len(reserved))
		for i, account := range reserved {
			ids[i] = account.ID
		}

		return f.tokenPool.Commit(ctx, tx, ids, order.ID)

	case model.IssuanceCredential:
		for i := 0; i < item.Quantity; i++ {
			if _, err := f.credIssuer.Issue(ctx, tx, item.PlanID, order.ID, tool.Name); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("tool %d has unknown issuance mode %q: %w", tool.ID, tool.IssuanceMode, ErrInvalidState)
	}
}

// failOrders marks every order of a failed or cancelled payment FAILED and
// releases any token still bound to them. No inventory is touched.
func (f *fulfillmentImpl) failOrders(ctx context.Context, orders []*model.Order, txn *model.PaymentTransaction) error {
	reason := "payment " + string(txn.Status)
	if txn.ResponseCode != "" {
		reason = fmt.Sprintf("payment failed (gateway code %s)", txn.ResponseCode)
	}

	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderIDs := make([]uint, 0, len(orders))
		for _, order := range orders {
			flipped, err := f.orderRepo.MarkFailed(ctx, tx, order.ID, reason)
			if err != nil {
				return fmt.Errorf("mark order %d failed: %w", order.ID, err)
			}
			if flipped {
				orderIDs = append(orderIDs, order.ID)
			}
		}

		if len(orderIDs) == 0 {
			return nil
		}

		return f.accountRepo.ReleaseByOrderIDs(ctx, tx, orderIDs)
	})
}
