package repository

import (
	"context"
	"time"

	"license-market/internal/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateLineItems(ctx context.Context, tx *gorm.DB, items []*model.OrderLineItem) error
	FindByID(ctx context.Context, orderID uint) (*model.Order, error)
	FindByTransactionID(ctx context.Context, transactionID uint) ([]*model.Order, error)
	GetLineItems(ctx context.Context, tx *gorm.DB, orderID uint) ([]*model.OrderLineItem, error)
	// MarkSuccess flips PENDING to SUCCESS. Returns false when the order was
	// already terminal, which is the coordinator's idempotency signal.
	MarkSuccess(ctx context.Context, tx *gorm.DB, orderID uint) (bool, error)
	MarkFailed(ctx context.Context, tx *gorm.DB, orderID uint, reason string) (bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{db: db}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) CreateLineItems(ctx context.Context, tx *gorm.DB, items []*model.OrderLineItem) error {
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID uint) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByTransactionID(ctx context.Context, transactionID uint) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) GetLineItems(ctx context.Context, tx *gorm.DB, orderID uint) ([]*model.OrderLineItem, error) {
	var items []*model.OrderLineItem
	err := tx.WithContext(ctx).Where("order_id = ?", orderID).
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *orderRepoImpl) MarkSuccess(ctx context.Context, tx *gorm.DB, orderID uint) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderPending).
		Updates(map[string]interface{}{
			"status":     model.OrderSuccess,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *orderRepoImpl) MarkFailed(ctx context.Context, tx *gorm.DB, orderID uint, reason string) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderPending).
		Updates(map[string]interface{}{
			"status":      model.OrderFailed,
			"fail_reason": reason,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}
