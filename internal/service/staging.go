package service

import (
	"context"
	"errors"
	"fmt"

	"license-market/internal/model"
	"license-market/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StagingService manages a seller's provisional token batches during tool
// setup. A batch lives as a server-side reservation record keyed by an
// opaque handle; staged tokens are invisible to the sales pool until the
// batch is committed. Reclamation is an explicit caller action, there is no
// automatic timeout.
type StagingService interface {
	StageTokenBatch(ctx context.Context, sellerID string, planID uint, quantity int) (*model.TokenReservation, []string, error)
	CommitStagedBatch(ctx context.Context, sellerID, handle string) error
	AbandonStagedBatch(ctx context.Context, sellerID, handle string) error
}

type stagingImpl struct {
	db              *gorm.DB
	reservationRepo repository.ReservationRepository
	accountRepo     repository.LicenseAccountRepository
	planRepo        repository.PlanRepository
	tokenPool       TokenPool
	logger          *logrus.Logger
}

func NewStagingService(
	db *gorm.DB,
	reservationRepo repository.ReservationRepository,
	accountRepo repository.LicenseAccountRepository,
	planRepo repository.PlanRepository,
	tokenPool TokenPool,
	logger *logrus.Logger,
) StagingService {
	return &stagingImpl{
		db:              db,
		reservationRepo: reservationRepo,
		accountRepo:     accountRepo,
		planRepo:        planRepo,
		tokenPool:       tokenPool,
		logger:          logger,
	}
}

func (s *stagingImpl) StageTokenBatch(ctx context.Context, sellerID string, planID uint, quantity int) (*model.TokenReservation, []string, error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("batch quantity must be positive")
	}

	if _, err := s.planRepo.FindByID(ctx, planID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("plan %d: %w", planID, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("load plan %d: %w", planID, err)
	}

	tokens, err := s.tokenPool.GenerateBatch(ctx, quantity, nil)
	if err != nil {
		return nil, nil, err
	}

	reservation := &model.TokenReservation{
		Handle:   uuid.NewString(),
		PlanID:   planID,
		SellerID: sellerID,
		Status:   model.ReservationStaged,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.reservationRepo.Create(ctx, tx, reservation); err != nil {
			return fmt.Errorf("store reservation: %w", err)
		}

		accounts := make([]*model.LicenseAccount, len(tokens))
		for i := range tokens {
			accounts[i] = &model.LicenseAccount{
				PlanID:        planID,
				ReservationID: &reservation.ID,
				Token:         &tokens[i],
				Used:          false,
				Status:        model.LicenseActive,
			}
		}

		return s.accountRepo.CreateBatch(ctx, tx, accounts)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"handle":   reservation.Handle,
		"plan_id":  planID,
		"quantity": quantity,
	}).Info("token batch staged")

	return reservation, tokens, nil
}

func (s *stagingImpl) CommitStagedBatch(ctx context.Context, sellerID, handle string) error {
	reservation, err := s.loadOwnedReservation(ctx, sellerID, handle)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flipped, err := s.reservationRepo.TransitionFromStaged(ctx, tx, reservation.ID, model.ReservationCommitted)
		if err != nil {
			return fmt.Errorf("commit reservation %q: %w", handle, err)
		}
		if !flipped {
			return fmt.Errorf("reservation %q is no longer staged: %w", handle, ErrInvalidState)
		}

		// Clearing the reservation binding makes the tokens sellable stock.
		return s.accountRepo.ClearReservation(ctx, tx, reservation.ID)
	})
}

func (s *stagingImpl) AbandonStagedBatch(ctx context.Context, sellerID, handle string) error {
	reservation, err := s.loadOwnedReservation(ctx, sellerID, handle)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flipped, err := s.reservationRepo.TransitionFromStaged(ctx, tx, reservation.ID, model.ReservationAbandoned)
		if err != nil {
			return fmt.Errorf("abandon reservation %q: %w", handle, err)
		}
		if !flipped {
			return fmt.Errorf("reservation %q is no longer staged: %w", handle, ErrInvalidState)
		}

		return s.accountRepo.DeleteByReservationID(ctx, tx, reservation.ID)
	})
}

func (s *stagingImpl) loadOwnedReservation(ctx context.Context, sellerID, handle string) (*model.TokenReservation, error) {
	reservation, err := s.reservationRepo.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reservation %q: %w", handle, ErrNotFound)
		}
		return nil, fmt.Errorf("load reservation %q: %w", handle, err)
	}

	if reservation.SellerID != sellerID {
		return nil, fmt.Errorf("reservation %q: %w", handle, ErrNotFound)
	}

	return reservation, nil
}
