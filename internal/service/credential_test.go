package service

import (
	"context"
	"strings"
	"testing"

	"license-market/internal/model"
	"license-market/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueCreatesDormantAccount(t *testing.T) {
	db := newTestDB(t)
	issuer := NewCredentialIssuer(repository.NewLicenseAccountRepository(db))
	ctx := context.Background()

	tool := seedTool(t, db, model.IssuanceCredential, 5)
	plan := seedPlan(t, db, tool.ID, 30, 150000)

	account, err := issuer.Issue(ctx, db, plan.ID, 42, tool.Name)
	require.NoError(t, err)

	require.NotNil(t, account.Username)
	require.NotNil(t, account.Password)
	assert.Len(t, *account.Password, 12)
	assert.False(t, account.Used)
	assert.Nil(t, account.StartDate, "clock starts at activation, not issuance")
	require.NotNil(t, account.OrderID)
	assert.Equal(t, uint(42), *account.OrderID)
}

func TestGenerateUsernameSanitizesToolName(t *testing.T) {
	username := generateUsername("Design Studio Pro!")
	assert.True(t, strings.HasPrefix(username, "designstud_"), "got %s", username)

	username = generateUsername("???")
	assert.True(t, strings.HasPrefix(username, "tool_"), "got %s", username)

	username = generateUsername("Vim")
	assert.True(t, strings.HasPrefix(username, "vim_"), "got %s", username)
}
