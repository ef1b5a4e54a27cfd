package repository

import (
	"context"
	"time"

	"license-market/internal/model"

	"gorm.io/gorm"
)

type LicenseAccountRepository interface {
	Create(ctx context.Context, tx *gorm.DB, account *model.LicenseAccount) error
	CreateBatch(ctx context.Context, tx *gorm.DB, accounts []*model.LicenseAccount) error
	FindByID(ctx context.Context, accountID uint) (*model.LicenseAccount, error)
	FindByIDs(ctx context.Context, tx *gorm.DB, accountIDs []uint) ([]*model.LicenseAccount, error)
	FindByOrderID(ctx context.Context, orderID uint) ([]*model.LicenseAccount, error)

	// SelectClaimable lists token accounts of a plan that are unused, not
	// bound to any order and not held by a staged reservation.
	SelectClaimable(ctx context.Context, tx *gorm.DB, planID uint, limit int, excludeTokens []string) ([]*model.LicenseAccount, error)
	// ClaimForOrder conditionally binds the rows to the order. The WHERE
	// re-checks that each row is still unbound, so the returned row count is
	// the number of tokens actually won under this transaction.
	ClaimForOrder(ctx context.Context, tx *gorm.DB, accountIDs []uint, orderID uint) (int64, error)
	ReleaseOrderBinding(ctx context.Context, tx *gorm.DB, accountIDs []uint) error
	ReleaseByOrderIDs(ctx context.Context, tx *gorm.DB, orderIDs []uint) error

	UsernameExists(ctx context.Context, tx *gorm.DB, username string) (bool, error)
	TokenExists(ctx context.Context, token string) (bool, error)

	// Activate stamps the clock onto an unused account.
	Activate(ctx context.Context, tx *gorm.DB, accountID uint, start, end time.Time) (bool, error)
	Renew(ctx context.Context, tx *gorm.DB, accountID uint, planID uint, newEnd time.Time) error
	UpdateStatus(ctx context.Context, accountID uint, status model.LicenseStatus) error

	DeleteByReservationID(ctx context.Context, tx *gorm.DB, reservationID uint) error
	ClearReservation(ctx context.Context, tx *gorm.DB, reservationID uint) error
}

type licenseAccountRepoImpl struct {
	db *gorm.DB
}

func NewLicenseAccountRepository(db *gorm.DB) LicenseAccountRepository {
	return &licenseAccountRepoImpl{db: db}
}

func (r *licenseAccountRepoImpl) Create(ctx context.Context, tx *gorm.DB, account *model.LicenseAccount) error {
	return tx.WithContext(ctx).Create(account).Error
}

func (r *licenseAccountRepoImpl) CreateBatch(ctx context.Context, tx *gorm.DB, accounts []*model.LicenseAccount) error {
	return tx.WithContext(ctx).Create(&accounts).Error
}

func (r *licenseAccountRepoImpl) FindByID(ctx context.Context, accountID uint) (*model.LicenseAccount, error) {
	var account model.LicenseAccount
	err := r.db.WithContext(ctx).
		Where("id = ?", accountID).
		First(&account).Error

	if err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *licenseAccountRepoImpl) FindByIDs(ctx context.Context, tx *gorm.DB, accountIDs []uint) ([]*model.LicenseAccount, error) {
	var accounts []*model.LicenseAccount
	err := tx.WithContext(ctx).
		Where("id IN ?", accountIDs).
		Find(&accounts).Error

	if err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *licenseAccountRepoImpl) FindByOrderID(ctx context.Context, orderID uint) ([]*model.LicenseAccount, error) {
	var accounts []*model.LicenseAccount
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&accounts).Error

	if err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *licenseAccountRepoImpl) SelectClaimable(ctx context.Context, tx *gorm.DB, planID uint, limit int, excludeTokens []string) ([]*model.LicenseAccount, error) {
	query := tx.WithContext(ctx).
		Where("plan_id = ?", planID).
		Where("token IS NOT NULL").
		Where("used = ?", false).
		Where("order_id IS NULL").
		Where("reservation_id IS NULL")

	if len(excludeTokens) > 0 {
		query = query.Where("token NOT IN ?", excludeTokens)
	}

	var accounts []*model.LicenseAccount
	err := query.Order("id").Limit(limit).Find(&accounts).Error
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *licenseAccountRepoImpl) ClaimForOrder(ctx context.Context, tx *gorm.DB, accountIDs []uint, orderID uint) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.LicenseAccount{}).
		Where("id IN ?", accountIDs).
		Where("order_id IS NULL").
		Where("used = ?", false).
		Updates(map[string]interface{}{
			"order_id":   orderID,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (r *licenseAccountRepoImpl) ReleaseOrderBinding(ctx context.Context, tx *gorm.DB, accountIDs []uint) error {
	return tx.WithContext(ctx).Model(&model.LicenseAccount{}).
		Where("id IN ?", accountIDs).
		Where("used = ?", false).
		Updates(map[string]interface{}{
			"order_id":   nil,
			"updated_at": time.Now(),
		}).Error
}

func (r *licenseAccountRepoImpl) ReleaseByOrderIDs(ctx context.Context, tx *gorm.DB, orderIDs []uint) error {
	return tx.WithContext(ctx).Model(&model.LicenseAccount{}).
		Where("order_id IN ?", orderIDs).
		Where("used = ?", false).
		Where("token IS NOT NULL").
		Updates(map[string]interface{}{
			"order_id":   nil,
			"updated_at": time.Now(),
		}).Error
}

func (r *licenseAccountRepoImpl) UsernameExists(ctx context.Context, tx *gorm.DB, username string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.LicenseAccount{}).
		Where("username = ?", username).
		Count(&count).Error

	return count > 0, err
}

func (r *licenseAccountRepoImpl) TokenExists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.LicenseAccount{}).
		Where("token = ?", token).
		Count(&count).Error

	return count > 0, err
}

func (r *licenseAccountRepoImpl) Activate(ctx context.Context, tx *gorm.DB, accountID uint, start, end time.Time) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.LicenseAccount{}).
		Where("id = ?", accountID).
		Where("used = ?", false).
		Where("status = ?", model.LicenseActive).
		Updates(map[string]interface{}{
			"used":       true,
			"start_date": start,
			"end_date":   end,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *licenseAccountRepoImpl) Renew(ctx context.Context, tx *gorm.DB, accountID uint, planID uint, newEnd time.Time) error {
	return tx.WithContext(ctx).Model(&model.LicenseAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"plan_id":    planID,
			"end_date":   newEnd,
			"status":     model.LicenseActive,
			"updated_at": time.Now(),
		}).Error
}

func (r *licenseAccountRepoImpl) UpdateStatus(ctx context.Context, accountID uint, status model.LicenseStatus) error {
	return r.db.WithContext(ctx).Model(&model.LicenseAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *licenseAccountRepoImpl) DeleteByReservationID(ctx context.Context, tx *gorm.DB, reservationID uint) error {
	return tx.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Delete(&model.LicenseAccount{}).Error
}

func (r *licenseAccountRepoImpl) ClearReservation(ctx context.Context, tx *gorm.DB, reservationID uint) error {
	return tx.WithContext(ctx).Model(&model.LicenseAccount{}).
		Where("reservation_id = ?", reservationID).
		Updates(map[string]interface{}{
			"reservation_id": nil,
			"updated_at":     time.Now(),
		}).Error
}
