package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"license-market/internal/model"
	"license-market/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LifecycleManager owns activation, renewal and expiry of issued license
// accounts, independent of how they were provisioned. Expiry is evaluated
// lazily on read access, not by a background sweep.
type LifecycleManager interface {
	// GetDetail returns the requester's account, applying the lazy expiry
	// check first.
	GetDetail(ctx context.Context, requesterID string, accountID uint) (*model.LicenseAccount, error)
	// Activate starts the clock of an issued, not yet used account.
	Activate(ctx context.Context, requesterID string, accountID uint) (*model.LicenseAccount, error)
	// ActivateOrder activates every eligible account of a successful order
	// and returns how many were started.
	ActivateOrder(ctx context.Context, requesterID string, orderID uint) (int, error)
	// Renew extends the account from max(now, current end): renewing early
	// keeps the unused time, renewing late starts from now.
	Renew(ctx context.Context, requesterID string, accountID, planID uint, txn *model.PaymentTransaction) (time.Time, error)
	// CheckExpiry flips an ACTIVE account with a passed end date to EXPIRED.
	CheckExpiry(ctx context.Context, accountID uint) (*model.LicenseAccount, error)
	// Revoke is terminal and blocks any later renewal.
	Revoke(ctx context.Context, accountID uint) error
	History(ctx context.Context, requesterID string, accountID uint) ([]*model.RenewalLog, error)
}

type lifecycleImpl struct {
	db          *gorm.DB
	accountRepo repository.LicenseAccountRepository
	planRepo    repository.PlanRepository
	orderRepo   repository.OrderRepository
	renewRepo   repository.RenewalLogRepository
	notifier    Notifier
	logger      *logrus.Logger
	now         func() time.Time
}

func NewLifecycleManager(
	db *gorm.DB,
	accountRepo repository.LicenseAccountRepository,
	planRepo repository.PlanRepository,
	orderRepo repository.OrderRepository,
	renewRepo repository.RenewalLogRepository,
	notifier Notifier,
	logger *logrus.Logger,
) LifecycleManager {
	return &lifecycleImpl{
		db:          db,
		accountRepo: accountRepo,
		planRepo:    planRepo,
		orderRepo:   orderRepo,
		renewRepo:   renewRepo,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// ownedAccount loads an account and verifies it belongs to the requester
// through its order. Unsold pool stock has no order and is never owned.
func (m *lifecycleImpl) ownedAccount(ctx context.Context, requesterID string, accountID uint) (*model.LicenseAccount, error) {
	account, err := m.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("license account %d: %w", accountID, ErrNotFound)
		}
		return nil, fmt.Errorf("load license account %d: %w", accountID, err)
	}

	if account.OrderID == nil {
		return nil, fmt.Errorf("license account %d is not owned by %q: %w", accountID, requesterID, ErrNotFound)
	}

	order, err := m.orderRepo.FindByID(ctx, *account.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", *account.OrderID, err)
	}
	if order.BuyerID != requesterID {
		return nil, fmt.Errorf("license account %d is not owned by %q: %w", accountID, requesterID, ErrNotFound)
	}

	return account, nil
}

func (m *lifecycleImpl) GetDetail(ctx context.Context, requesterID string, accountID uint) (*model.LicenseAccount, error) {
	if _, err := m.ownedAccount(ctx, requesterID, accountID); err != nil {
		return nil, err
	}
	return m.CheckExpiry(ctx, accountID)
}

func (m *lifecycleImpl) Activate(ctx context.Context, requesterID string, accountID uint) (*model.LicenseAccount, error) {
	account, err := m.ownedAccount(ctx, requesterID, accountID)
	if err != nil {
		return nil, err
	}

	if err := m.activateAccount(ctx, m.db, account); err != nil {
		return nil, err
	}

	return m.accountRepo.FindByID(ctx, accountID)
}

func (m *lifecycleImpl) activateAccount(ctx context.Context, tx *gorm.DB, account *model.LicenseAccount) error {
	if account.Status == model.LicenseRevoked {
		return fmt.Errorf("license account %d is revoked: %w", account.ID, ErrInvalidState)
	}
	if account.Status != model.LicenseActive {
		return fmt.Errorf("license account %d is %s: %w", account.ID, account.Status, ErrInvalidState)
	}
	if account.Used {
		return fmt.Errorf("license account %d is already activated: %w", account.ID, ErrInvalidState)
	}

	plan, err := m.planRepo.FindByID(ctx, account.PlanID)
	if err != nil {
		return fmt.Errorf("load plan %d: %w", account.PlanID, err)
	}
	if plan.DurationDays <= 0 {
		return fmt.Errorf("plan %d has no duration: %w", plan.ID, ErrInvalidState)
	}

	start := m.now()
	end := start.AddDate(0, 0, plan.DurationDays)

	activated, err := m.accountRepo.Activate(ctx, tx, account.ID, start, end)
	if err != nil {
		return fmt.Errorf("activate license account %d: %w", account.ID, err)
	}
	if !activated {
		return fmt.Errorf("license account %d changed state during activation: %w", account.ID, ErrInvalidState)
	}

	return nil
}

func (m *lifecycleImpl) ActivateOrder(ctx context.Context, requesterID string, orderID uint) (int, error) {
	order, err := m.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return 0, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if order.BuyerID != requesterID {
		return 0, fmt.Errorf("order %d is not owned by %q: %w", orderID, requesterID, ErrNotFound)
	}
	if order.Status != model.OrderSuccess {
		return 0, fmt.Errorf("order %d is %s, only successful orders activate: %w", orderID, order.Status, ErrInvalidState)
	}

	accounts, err := m.accountRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("load accounts of order %d: %w", orderID, err)
	}
	if len(accounts) == 0 {
		return 0, fmt.Errorf("order %d has no license accounts: %w", orderID, ErrNotFound)
	}

	activated := 0
	var lastErr error
	for _, account := range accounts {
		if account.Used {
			continue
		}
		if err := m.activateAccount(ctx, m.db, account); err != nil {
			lastErr = err
			continue
		}
		activated++
	}

	if activated == 0 && lastErr != nil {
		return 0, lastErr
	}

	return activated, nil
}

func (m *lifecycleImpl) Renew(ctx context.Context, requesterID string, accountID, planID uint, txn *model.PaymentTransaction) (time.Time, error) {
	account, err := m.ownedAccount(ctx, requesterID, accountID)
	if err != nil {
		return time.Time{}, err
	}

	if account.Status == model.LicenseRevoked {
		return time.Time{}, fmt.Errorf("license account %d is revoked and cannot renew: %w", accountID, ErrInvalidState)
	}

	plan, err := m.planRepo.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, fmt.Errorf("plan %d: %w", planID, ErrNotFound)
		}
		return time.Time{}, fmt.Errorf("load plan %d: %w", planID, err)
	}
	if plan.DurationDays <= 0 {
		return time.Time{}, fmt.Errorf("plan %d has no duration: %w", planID, ErrInvalidState)
	}

	currentPlan, err := m.planRepo.FindByID(ctx, account.PlanID)
	if err != nil {
		return time.Time{}, fmt.Errorf("load plan %d: %w", account.PlanID, err)
	}
	if currentPlan.ToolID != plan.ToolID {
		return time.Time{}, fmt.Errorf("plan %d belongs to another tool: %w", planID, ErrInvalidState)
	}

	// Renewing early extends from the current expiry, renewing late from
	// now. Unused time is never lost and the end date never moves backward.
	now := m.now()
	base := now
	if account.EndDate != nil && account.EndDate.After(now) {
		base = *account.EndDate
	}
	newEnd := base.AddDate(0, 0, plan.DurationDays)

	amountPaid := plan.Price
	var txnID *uint
	if txn != nil {
		amountPaid = txn.Amount
		txnID = &txn.ID
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := m.accountRepo.Renew(ctx, tx, accountID, planID, newEnd); err != nil {
			return fmt.Errorf("renew license account %d: %w", accountID, err)
		}

		return m.renewRepo.Create(ctx, tx, &model.RenewalLog{
			LicenseAccountID: accountID,
			TransactionID:    txnID,
			RenewDate:        now,
			NewEndDate:       newEnd,
			AmountPaid:       amountPaid,
		})
	})
	if err != nil {
		return time.Time{}, err
	}

	m.notifier.RenewalCompleted(ctx, accountID, newEnd)

	return newEnd, nil
}

func (m *lifecycleImpl) CheckExpiry(ctx context.Context, accountID uint) (*model.LicenseAccount, error) {
	account, err := m.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("license account %d: %w", accountID, ErrNotFound)
		}
		return nil, fmt.Errorf("load license account %d: %w", accountID, err)
	}

	if account.Status == model.LicenseActive && account.EndDate != nil && account.EndDate.Before(m.now()) {
		if err := m.accountRepo.UpdateStatus(ctx, accountID, model.LicenseExpired); err != nil {
			return nil, fmt.Errorf("expire license account %d: %w", accountID, err)
		}
		account.Status = model.LicenseExpired
	}

	return account, nil
}

func (m *lifecycleImpl) Revoke(ctx context.Context, accountID uint) error {
	account, err := m.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("license account %d: %w", accountID, ErrNotFound)
		}
		return fmt.Errorf("load license account %d: %w", accountID, err)
	}
	if account.Status == model.LicenseRevoked {
		return nil
	}

	m.logger.WithField("license_account_id", accountID).Warn("revoking license account")

	return m.accountRepo.UpdateStatus(ctx, accountID, model.LicenseRevoked)
}

func (m *lifecycleImpl) History(ctx context.Context, requesterID string, accountID uint) ([]*model.RenewalLog, error) {
	if _, err := m.ownedAccount(ctx, requesterID, accountID); err != nil {
		return nil, err
	}
	return m.renewRepo.FindByAccountID(ctx, accountID)
}
