package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"license-market/internal/dto"
	"license-market/internal/gateway"
	"license-market/internal/model"
	"license-market/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	renewDescriptorPrefix  = "RENEW_LICENSE_"
	sellerDescriptorPrefix = "SELLER_"
)

// CheckoutService is the entry point the web layer calls into: it opens
// payment attempts (checkout, renewal, seller subscription) and settles the
// gateway callback, dispatching the outcome to the right downstream.
type CheckoutService interface {
	StartCheckout(ctx context.Context, buyerID, clientIP string, lines []dto.CheckoutLine) (*dto.CheckoutResponse, error)
	StartRenewal(ctx context.Context, requesterID, clientIP string, accountID, planID uint) (*dto.CheckoutResponse, error)
	StartSellerSubscription(ctx context.Context, sellerID, clientIP string, packageID uint) (*dto.CheckoutResponse, error)
	CompleteCallback(ctx context.Context, params map[string]string) (*dto.CallbackResult, error)
}

type checkoutImpl struct {
	db           *gorm.DB
	adapter      *gateway.Adapter
	ledger       TransactionLedger
	coordinator  FulfillmentCoordinator
	lifecycle    LifecycleManager
	subscription SellerSubscriptionService
	txnRepo      repository.TransactionRepository
	orderRepo    repository.OrderRepository
	planRepo     repository.PlanRepository
	subRepo      repository.SubscriptionRepository
	returnURL    string
	logger       *logrus.Logger
}

func NewCheckoutService(
	db *gorm.DB,
	adapter *gateway.Adapter,
	ledger TransactionLedger,
	coordinator FulfillmentCoordinator,
	lifecycle LifecycleManager,
	subscription SellerSubscriptionService,
	txnRepo repository.TransactionRepository,
	orderRepo repository.OrderRepository,
	planRepo repository.PlanRepository,
	subRepo repository.SubscriptionRepository,
	returnURL string,
	logger *logrus.Logger,
) CheckoutService {
	return &checkoutImpl{
		db:           db,
		adapter:      adapter,
		ledger:       ledger,
		coordinator:  coordinator,
		lifecycle:    lifecycle,
		subscription: subscription,
		txnRepo:      txnRepo,
		orderRepo:    orderRepo,
		planRepo:     planRepo,
		subRepo:      subRepo,
		returnURL:    returnURL,
		logger:       logger,
	}
}

func (s *checkoutImpl) StartCheckout(ctx context.Context, buyerID, clientIP string, lines []dto.CheckoutLine) (*dto.CheckoutResponse, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("checkout needs at least one line")
	}

	planIDs := make([]uint, len(lines))
	quantityByPlan := make(map[uint]int, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("line quantity must be positive")
		}
		planIDs[i] = line.PlanID
		quantityByPlan[line.PlanID] += line.Quantity
	}

	plans, err := s.planRepo.FindMany(ctx, planIDs)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	if len(plans) != len(quantityByPlan) {
		return nil, fmt.Errorf("some plans do not exist: %w", ErrNotFound)
	}

	// One order per tool; a transaction may carry several orders.
	plansByTool := make(map[uint][]*model.LicensePlan)
	for _, plan := range plans {
		plansByTool[plan.ToolID] = append(plansByTool[plan.ToolID], plan)
	}

	var total int64
	for _, plan := range plans {
		total += plan.Price * int64(quantityByPlan[plan.ID])
	}

	txnRef := uuid.NewString()
	txn := &model.PaymentTransaction{
		TxnRef:      txnRef,
		RequesterID: buyerID,
		Purpose:     model.PurposeOrderPayment,
		Amount:      total,
		Description: "ORDER_" + txnRef,
		ClientIP:    clientIP,
	}

	var orderIDs []uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn.Status = model.TxnPending
		if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("store transaction: %w", err)
		}

		for toolID, toolPlans := range plansByTool {
			var orderTotal int64
			for _, plan := range toolPlans {
				orderTotal += plan.Price * int64(quantityByPlan[plan.ID])
			}

			order := &model.Order{
				TransactionID: txn.ID,
				BuyerID:       buyerID,
				ToolID:        toolID,
				TotalPrice:    orderTotal,
				Status:        model.OrderPending,
			}
			if err := s.orderRepo.Create(ctx, tx, order); err != nil {
				return fmt.Errorf("store order: %w", err)
			}
			orderIDs = append(orderIDs, order.ID)

			items := make([]*model.OrderLineItem, len(toolPlans))
			for i, plan := range toolPlans {
				items[i] = &model.OrderLineItem{
					OrderID:   order.ID,
					PlanID:    plan.ID,
					Quantity:  quantityByPlan[plan.ID],
					UnitPrice: plan.Price,
				}
			}
			if err := s.orderRepo.CreateLineItems(ctx, tx, items); err != nil {
				return fmt.Errorf("store order line items: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.redirect(ctx, txn, clientIP, orderIDs)
}

func (s *checkoutImpl) StartRenewal(ctx context.Context, requesterID, clientIP string, accountID, planID uint) (*dto.CheckoutResponse, error) {
	account, err := s.lifecycle.GetDetail(ctx, requesterID, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status == model.LicenseRevoked {
		return nil, fmt.Errorf("license account %d is revoked: %w", accountID, ErrInvalidState)
	}

	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan %d: %w", planID, ErrNotFound)
		}
		return nil, fmt.Errorf("load plan %d: %w", planID, err)
	}

	currentPlan, err := s.planRepo.FindByID(ctx, account.PlanID)
	if err != nil {
		return nil, fmt.Errorf("load plan %d: %w", account.PlanID, err)
	}
	if currentPlan.ToolID != plan.ToolID {
		return nil, fmt.Errorf("plan %d belongs to another tool: %w", planID, ErrInvalidState)
	}

	txn := &model.PaymentTransaction{
		TxnRef:      uuid.NewString(),
		RequesterID: requesterID,
		Purpose:     model.PurposeLicenseRenewal,
		Amount:      plan.Price,
		Description: fmt.Sprintf("%s%d_%d", renewDescriptorPrefix, accountID, planID),
		ClientIP:    clientIP,
	}
	if err := s.ledger.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("store renewal transaction: %w", err)
	}

	return s.redirect(ctx, txn, clientIP, nil)
}

func (s *checkoutImpl) StartSellerSubscription(ctx context.Context, sellerID, clientIP string, packageID uint) (*dto.CheckoutResponse, error) {
	pkg, err := s.subRepo.FindPackageByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("seller package %d: %w", packageID, ErrNotFound)
		}
		return nil, fmt.Errorf("load seller package %d: %w", packageID, err)
	}

	txn := &model.PaymentTransaction{
		TxnRef:      uuid.NewString(),
		RequesterID: sellerID,
		Purpose:     model.PurposeSellerSubscription,
		Amount:      pkg.Price,
		Description: fmt.Sprintf("%s%d_%s", sellerDescriptorPrefix, packageID, sellerID),
		ClientIP:    clientIP,
	}
	if err := s.ledger.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("store subscription transaction: %w", err)
	}

	return s.redirect(ctx, txn, clientIP, nil)
}

func (s *checkoutImpl) redirect(ctx context.Context, txn *model.PaymentTransaction, clientIP string, orderIDs []uint) (*dto.CheckoutResponse, error) {
	redirectURL := s.adapter.BuildRedirect(txn.Amount, txn.Description, txn.TxnRef, s.returnURL, clientIP)

	if err := s.ledger.MarkProcessing(ctx, txn.TxnRef); err != nil {
		return nil, fmt.Errorf("mark transaction processing: %w", err)
	}

	return &dto.CheckoutResponse{
		TxnRef:      txn.TxnRef,
		RedirectURL: redirectURL,
		OrderIDs:    orderIDs,
		Amount:      txn.Amount,
	}, nil
}

// CompleteCallback is the one path a callback delivery takes: verify the
// signature, settle the ledger, dispatch side effects by purpose. Replays
// stop after the ledger lookup and run no side effects.
func (s *checkoutImpl) CompleteCallback(ctx context.Context, params map[string]string) (*dto.CallbackResult, error) {
	if !s.adapter.VerifyCallback(params) {
		s.logger.WithField("txn_ref", params[gateway.FieldTxnRef]).Error("callback signature mismatch")
		return nil, ErrInvalidSignature
	}

	txnRef := params[gateway.FieldTxnRef]
	result, err := s.ledger.Finalize(ctx, txnRef, params)
	if err != nil {
		return nil, err
	}

	callbackResult := &dto.CallbackResult{
		TxnRef:       txnRef,
		Purpose:      result.Transaction.Purpose,
		Outcome:      result.Outcome,
		Message:      s.adapter.ErrorMessageFor(result.Transaction.ResponseCode),
		AlreadyFinal: result.AlreadyFinal,
	}

	if result.AlreadyFinal {
		return callbackResult, nil
	}

	if err := s.dispatch(ctx, result); err != nil {
		// Money already moved; the caller surfaces "payment received,
		// issuance pending" instead of a silent failure.
		s.logger.WithFields(logrus.Fields{
			"txn_ref": txnRef,
			"purpose": result.Transaction.Purpose,
			"error":   err.Error(),
		}).Error("post-payment dispatch failed")
		return callbackResult, err
	}

	return callbackResult, nil
}

func (s *checkoutImpl) dispatch(ctx context.Context, result *FinalizeResult) error {
	txn := result.Transaction

	switch txn.Purpose {
	case model.PurposeOrderPayment:
		return s.coordinator.ProcessOutcome(ctx, txn, result.Outcome)

	case model.PurposeLicenseRenewal:
		if result.Outcome != model.TxnSuccess {
			return nil
		}
		accountID, planID, err := parseRenewDescriptor(txn.Description)
		if err != nil {
			return err
		}
		_, err = s.lifecycle.Renew(ctx, txn.RequesterID, accountID, planID, txn)
		return err

	case model.PurposeSellerSubscription:
		if result.Outcome != model.TxnSuccess {
			return nil
		}
		packageID, sellerID, err := parseSellerDescriptor(txn.Description)
		if err != nil {
			return err
		}
		return s.subscription.Extend(ctx, txn, packageID, sellerID)

	default:
		return fmt.Errorf("transaction %q has unknown purpose %q: %w", txn.TxnRef, txn.Purpose, ErrInvalidState)
	}
}

// parseRenewDescriptor reads "RENEW_LICENSE_<accountID>_<planID>".
func parseRenewDescriptor(desc string) (accountID, planID uint, err error) {
	if !strings.HasPrefix(desc, renewDescriptorPrefix) {
		return 0, 0, fmt.Errorf("malformed renewal descriptor %q", desc)
	}
	parts := strings.Split(strings.TrimPrefix(desc, renewDescriptorPrefix), "_")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed renewal descriptor %q", desc)
	}

	acct, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed renewal descriptor %q: %w", desc, err)
	}
	plan, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed renewal descriptor %q: %w", desc, err)
	}

	return uint(acct), uint(plan), nil
}

// parseSellerDescriptor reads "SELLER_<packageID>_<sellerID>".
func parseSellerDescriptor(desc string) (packageID uint, sellerID string, err error) {
	if !strings.HasPrefix(desc, sellerDescriptorPrefix) {
		return 0, "", fmt.Errorf("malformed seller descriptor %q", desc)
	}
	parts := strings.SplitN(strings.TrimPrefix(desc, sellerDescriptorPrefix), "_", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("malformed seller descriptor %q", desc)
	}

	pkg, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed seller descriptor %q: %w", desc, err)
	}

	return uint(pkg), parts[1], nil
}
