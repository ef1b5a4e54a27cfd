package repository

import (
	"context"

	"license-market/internal/model"

	"gorm.io/gorm"
)

type PlanRepository interface {
	FindByID(ctx context.Context, planID uint) (*model.LicensePlan, error)
	FindMany(ctx context.Context, planIDs []uint) ([]*model.LicensePlan, error)
	FindByToolID(ctx context.Context, toolID uint) ([]*model.LicensePlan, error)
}

type planRepoImpl struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepoImpl{db: db}
}

func (r *planRepoImpl) FindByID(ctx context.Context, planID uint) (*model.LicensePlan, error) {
	var plan model.LicensePlan
	err := r.db.WithContext(ctx).
		Where("id = ?", planID).
		First(&plan).Error

	if err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *planRepoImpl) FindMany(ctx context.Context, planIDs []uint) ([]*model.LicensePlan, error) {
	var plans []*model.LicensePlan
	err := r.db.WithContext(ctx).
		Where("id IN ?", planIDs).
		Find(&plans).Error

	if err != nil {
		return nil, err
	}

	return plans, nil
}

func (r *planRepoImpl) FindByToolID(ctx context.Context, toolID uint) ([]*model.LicensePlan, error) {
	var plans []*model.LicensePlan
	err := r.db.WithContext(ctx).
		Where("tool_id = ?", toolID).
		Order("duration_days").
		Find(&plans).Error

	if err != nil {
		return nil, err
	}

	return plans, nil
}
