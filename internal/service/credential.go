package service

import (
	"context"
	"fmt"
	"strings"

	"license-market/internal/model"
	"license-market/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const usernameRetries = 5

// CredentialIssuer synthesizes fresh username/password accounts for
// credential-based tools. There is no pool contention, only a uniqueness
// check with bounded retries.
type CredentialIssuer interface {
	Issue(ctx context.Context, tx *gorm.DB, planID, orderID uint, toolName string) (*model.LicenseAccount, error)
}

type credentialIssuerImpl struct {
	accountRepo repository.LicenseAccountRepository
}

func NewCredentialIssuer(accountRepo repository.LicenseAccountRepository) CredentialIssuer {
	return &credentialIssuerImpl{accountRepo: accountRepo}
}

func (i *credentialIssuerImpl) Issue(ctx context.Context, tx *gorm.DB, planID, orderID uint, toolName string) (*model.LicenseAccount, error) {
	username, err := i.uniqueUsername(ctx, tx, toolName)
	if err != nil {
		return nil, err
	}
	password := generatePassword()

	account := &model.LicenseAccount{
		PlanID:   planID,
		OrderID:  &orderID,
		Username: &username,
		Password: &password,
		Used:     false,
		Status:   model.LicenseActive,
	}

	if err := i.accountRepo.Create(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("store credential account for order %d: %w", orderID, err)
	}

	return account, nil
}

func (i *credentialIssuerImpl) uniqueUsername(ctx context.Context, tx *gorm.DB, toolName string) (string, error) {
	for attempt := 0; attempt < usernameRetries; attempt++ {
		candidate := generateUsername(toolName)

		taken, err := i.accountRepo.UsernameExists(ctx, tx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username uniqueness: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("could not generate a unique username after %d attempts", usernameRetries)
}

// generateUsername derives a sanitized tool-name prefix plus a random suffix.
func generateUsername(toolName string) string {
	var prefix strings.Builder
	for _, r := range strings.ToLower(toolName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			prefix.WriteRune(r)
		}
	}

	p := prefix.String()
	if p == "" {
		p = "tool"
	}
	if len(p) > 10 {
		p = p[:10]
	}

	return p + "_" + uuid.NewString()[:8]
}

func generatePassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
