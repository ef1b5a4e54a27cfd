package repository

import (
	"context"
	"time"

	"license-market/internal/model"

	"gorm.io/gorm"
)

type ToolRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, toolID uint) (*model.Tool, error)
	// DecrementAvailable lowers the tool's stock by amount, flooring at zero.
	DecrementAvailable(ctx context.Context, tx *gorm.DB, toolID uint, amount int) error
}

type toolRepoImpl struct {
	db *gorm.DB
}

func NewToolRepository(db *gorm.DB) ToolRepository {
	return &toolRepoImpl{db: db}
}

func (r *toolRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, toolID uint) (*model.Tool, error) {
	var tool model.Tool
	err := tx.WithContext(ctx).
		Where("id = ?", toolID).
		First(&tool).Error

	if err != nil {
		return nil, err
	}

	return &tool, nil
}

func (r *toolRepoImpl) DecrementAvailable(ctx context.Context, tx *gorm.DB, toolID uint, amount int) error {
	result := tx.WithContext(ctx).Model(&model.Tool{}).
		Where("id = ? AND available_qty >= ?", toolID, amount).
		Updates(map[string]interface{}{
			"available_qty": gorm.Expr("available_qty - ?", amount),
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Less stock than the decrement: floor at zero, never go negative.
	return tx.WithContext(ctx).Model(&model.Tool{}).
		Where("id = ?", toolID).
		Updates(map[string]interface{}{
			"available_qty": 0,
			"updated_at":    time.Now(),
		}).Error
}
