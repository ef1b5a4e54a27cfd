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

// SellerSubscriptionService records paid seller platform access. Extend is
// called from the payment callback path and must tolerate replays.
type SellerSubscriptionService interface {
	Extend(ctx context.Context, txn *model.PaymentTransaction, packageID uint, sellerID string) error
}

type subscriptionImpl struct {
	db      *gorm.DB
	subRepo repository.SubscriptionRepository
	logger  *logrus.Logger
	now     func() time.Time
}

func NewSellerSubscriptionService(db *gorm.DB, subRepo repository.SubscriptionRepository, logger *logrus.Logger) SellerSubscriptionService {
	return &subscriptionImpl{
		db:      db,
		subRepo: subRepo,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *subscriptionImpl) Extend(ctx context.Context, txn *model.PaymentTransaction, packageID uint, sellerID string) error {
	pkg, err := s.subRepo.FindPackageByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("seller package %d: %w", packageID, ErrNotFound)
		}
		return fmt.Errorf("load seller package %d: %w", packageID, err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.subRepo.ExistsByTransactionID(ctx, tx, txn.ID)
		if err != nil {
			return fmt.Errorf("check subscription for transaction %d: %w", txn.ID, err)
		}
		if exists {
			s.logger.WithField("txn_ref", txn.TxnRef).Info("subscription already recorded, skipping replay")
			return nil
		}

		// Stacking a package on a running subscription extends from its
		// current end, never from now.
		start := s.now()
		latest, err := s.subRepo.FindLatestBySeller(ctx, tx, sellerID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load subscriptions of seller %q: %w", sellerID, err)
		}
		if latest != nil && latest.EndDate.After(start) {
			start = latest.EndDate
		}

		sub := &model.SellerSubscription{
			SellerID:        sellerID,
			PackageID:       packageID,
			TransactionID:   txn.ID,
			PriceAtPurchase: txn.Amount,
			StartDate:       start,
			EndDate:         start.AddDate(0, 0, pkg.DurationDays),
			Active:          true,
		}
		if err := s.subRepo.Create(ctx, tx, sub); err != nil {
			return fmt.Errorf("store subscription: %w", err)
		}

		s.logger.WithFields(logrus.Fields{
			"seller_id":  sellerID,
			"package_id": packageID,
			"end_date":   sub.EndDate,
		}).Info("seller subscription extended")

		return nil
	})
}
