package repository

import (
	"context"

	"license-market/internal/model"

	"gorm.io/gorm"
)

type RenewalLogRepository interface {
	Create(ctx context.Context, tx *gorm.DB, entry *model.RenewalLog) error
	FindByAccountID(ctx context.Context, accountID uint) ([]*model.RenewalLog, error)
}

type renewalLogRepoImpl struct {
	db *gorm.DB
}

func NewRenewalLogRepository(db *gorm.DB) RenewalLogRepository {
	return &renewalLogRepoImpl{db: db}
}

func (r *renewalLogRepoImpl) Create(ctx context.Context, tx *gorm.DB, entry *model.RenewalLog) error {
	return tx.WithContext(ctx).Create(entry).Error
}

func (r *renewalLogRepoImpl) FindByAccountID(ctx context.Context, accountID uint) ([]*model.RenewalLog, error) {
	var entries []*model.RenewalLog
	err := r.db.WithContext(ctx).
		Where("license_account_id = ?", accountID).
		Order("renew_date DESC").
		Find(&entries).Error

	if err != nil {
		return nil, err
	}

	return entries, nil
}
