package repository

import (
	"context"

	"license-market/internal/model"

	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	FindPackageByID(ctx context.Context, packageID uint) (*model.SellerPackage, error)
	FindLatestBySeller(ctx context.Context, tx *gorm.DB, sellerID string) (*model.SellerSubscription, error)
	Create(ctx context.Context, tx *gorm.DB, sub *model.SellerSubscription) error
	ExistsByTransactionID(ctx context.Context, tx *gorm.DB, transactionID uint) (bool, error)
}

type subscriptionRepoImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepoImpl{db: db}
}

func (r *subscriptionRepoImpl) FindPackageByID(ctx context.Context, packageID uint) (*model.SellerPackage, error) {
	var pkg model.SellerPackage
	err := r.db.WithContext(ctx).
		Where("id = ?", packageID).
		First(&pkg).Error

	if err != nil {
		return nil, err
	}

	return &pkg, nil
}

func (r *subscriptionRepoImpl) FindLatestBySeller(ctx context.Context, tx *gorm.DB, sellerID string) (*model.SellerSubscription, error) {
	var sub model.SellerSubscription
	err := tx.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("end_date DESC").
		First(&sub).Error

	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *subscriptionRepoImpl) Create(ctx context.Context, tx *gorm.DB, sub *model.SellerSubscription) error {
	return tx.WithContext(ctx).Create(sub).Error
}

func (r *subscriptionRepoImpl) ExistsByTransactionID(ctx context.Context, tx *gorm.DB, transactionID uint) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.SellerSubscription{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error

	return count > 0, err
}
