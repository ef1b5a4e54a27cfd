package service

import (
	"context"
	"fmt"
	"math/rand"

	"license-market/internal/model"
	"license-market/internal/repository"

	"gorm.io/gorm"
)

const (
	tokenDigits          = 6
	tokenGenerateRetries = 1000
)

// TokenPool manages the finite, pre-loaded token stock of token-based tools.
// Reservation is expressed by binding an order onto the token row with a
// conditional write, so two concurrent checkouts can never both win the same
// token; the used flag stays untouched until the buyer activates.
type TokenPool interface {
	// Reserve picks up to quantity claimable tokens of the plan, skipping
	// excludeTokens. Fails with ErrInsufficientSupply when the pool cannot
	// cover the full quantity; no partial result is returned.
	Reserve(ctx context.Context, tx *gorm.DB, planID uint, quantity int, excludeTokens []string) ([]*model.LicenseAccount, error)
	// Commit binds the reserved tokens to the order. Re-committing a token
	// already bound to the same order is a no-op; a token bound to a
	// different order is ErrTokenConflict.
	Commit(ctx context.Context, tx *gorm.DB, accountIDs []uint, orderID uint) error
	// Release clears order bindings of unused tokens, returning them to the
	// pool.
	Release(ctx context.Context, tx *gorm.DB, accountIDs []uint) error
	// GenerateCandidate produces a fresh random token colliding neither with
	// the given set nor with any token already stored.
	GenerateCandidate(ctx context.Context, existing map[string]struct{}) (string, error)
	// GenerateBatch produces quantity distinct fresh tokens.
	GenerateBatch(ctx context.Context, quantity int, existing map[string]struct{}) ([]string, error)
}

type tokenPoolImpl struct {
	accountRepo repository.LicenseAccountRepository
}

func NewTokenPool(accountRepo repository.LicenseAccountRepository) TokenPool {
	return &tokenPoolImpl{accountRepo: accountRepo}
}

func (p *tokenPoolImpl) Reserve(ctx context.Context, tx *gorm.DB, planID uint, quantity int, excludeTokens []string) ([]*model.LicenseAccount, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("reserve quantity must be positive")
	}

	candidates, err := p.accountRepo.SelectClaimable(ctx, tx, planID, quantity, excludeTokens)
	if err != nil {
		return nil, fmt.Errorf("select claimable tokens for plan %d: %w", planID, err)
	}

	if len(candidates) < quantity {
		return nil, fmt.Errorf("plan %d has %d of %d tokens available: %w",
			planID, len(candidates), quantity, ErrInsufficientSupply)
	}

	return candidates, nil
}

func (p *tokenPoolImpl) Commit(ctx context.Context, tx *gorm.DB, accountIDs []uint, orderID uint) error {
	claimed, err := p.accountRepo.ClaimForOrder(ctx, tx, accountIDs, orderID)
	if err != nil {
		return fmt.Errorf("claim tokens for order %d: %w", orderID, err)
	}
	if claimed == int64(len(accountIDs)) {
		return nil
	}

	// Some rows were not claimable. Distinguish a replay (already bound to
	// this order, fine) from a conflict (bound elsewhere, hard failure).
	rows, err := p.accountRepo.FindByIDs(ctx, tx, accountIDs)
	if err != nil {
		return fmt.Errorf("inspect contested tokens: %w", err)
	}
	if len(rows) != len(accountIDs) {
		return fmt.Errorf("token rows missing for order %d: %w", orderID, ErrNotFound)
	}

	for _, row := range rows {
		if row.OrderID == nil || *row.OrderID != orderID {
			return fmt.Errorf("token account %d contested during commit for order %d: %w",
				row.ID, orderID, ErrTokenConflict)
		}
	}

	return nil
}

func (p *tokenPoolImpl) Release(ctx context.Context, tx *gorm.DB, accountIDs []uint) error {
	if len(accountIDs) == 0 {
		return nil
	}
	return p.accountRepo.ReleaseOrderBinding(ctx, tx, accountIDs)
}

func (p *tokenPoolImpl) GenerateCandidate(ctx context.Context, existing map[string]struct{}) (string, error) {
	for i := 0; i < tokenGenerateRetries; i++ {
		token := fmt.Sprintf("%0*d", tokenDigits, rand.Intn(1_000_000))
		if _, taken := existing[token]; taken {
			continue
		}

		stored, err := p.accountRepo.TokenExists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("check token uniqueness: %w", err)
		}
		if !stored {
			return token, nil
		}
	}

	return "", fmt.Errorf("could not generate a unique token after %d attempts", tokenGenerateRetries)
}

func (p *tokenPoolImpl) GenerateBatch(ctx context.Context, quantity int, existing map[string]struct{}) ([]string, error) {
	if existing == nil {
		existing = make(map[string]struct{}, quantity)
	}

	tokens := make([]string, 0, quantity)
	for i := 0; i < quantity; i++ {
		token, err := p.GenerateCandidate(ctx, existing)
		if err != nil {
			return nil, err
		}
		existing[token] = struct{}{}
		tokens = append(tokens, token)
	}

	return tokens, nil
}
