package repository

import (
	"context"
	"time"

	"license-market/internal/model"

	"gorm.io/gorm"
)

type ReservationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, reservation *model.TokenReservation) error
	FindByHandle(ctx context.Context, handle string) (*model.TokenReservation, error)
	// TransitionFromStaged flips a STAGED reservation to the given status.
	// Returns false when the reservation already left the staged state.
	TransitionFromStaged(ctx context.Context, tx *gorm.DB, reservationID uint, status model.ReservationStatus) (bool, error)
}

type reservationRepoImpl struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepoImpl{db: db}
}

func (r *reservationRepoImpl) Create(ctx context.Context, tx *gorm.DB, reservation *model.TokenReservation) error {
	return tx.WithContext(ctx).Create(reservation).Error
}

func (r *reservationRepoImpl) FindByHandle(ctx context.Context, handle string) (*model.TokenReservation, error) {
	var reservation model.TokenReservation
	err := r.db.WithContext(ctx).
		Where("handle = ?", handle).
		First(&reservation).Error

	if err != nil {
		return nil, err
	}

	return &reservation, nil
}

func (r *reservationRepoImpl) TransitionFromStaged(ctx context.Context, tx *gorm.DB, reservationID uint, status model.ReservationStatus) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.TokenReservation{}).
		Where("id = ? AND status = ?", reservationID, model.ReservationStaged).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}
