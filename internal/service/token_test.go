package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/freelance-market-backend/internal/models"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	manager := NewTokenManager("test-secret")
	userID := uuid.New()

	token, err := manager.IssueAccess(userID, models.RoleFreelancer, time.Hour)
	assert.NoError(t, err)

	parsedID, role, err := manager.ParseAccess(token)
	assert.NoError(t, err)
	assert.Equal(t, userID, parsedID)
	assert.Equal(t, models.RoleFreelancer, role)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a")
	verifier := NewTokenManager("secret-b")

	token, err := issuer.IssueAccess(uuid.New(), models.RoleClient, time.Hour)
	assert.NoError(t, err)

	_, _, err = verifier.ParseAccess(token)
	assert.Error(t, err)
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	manager := NewTokenManager("test-secret")

	token, err := manager.IssueAccess(uuid.New(), models.RoleClient, -time.Minute)
	assert.NoError(t, err)

	_, _, err = manager.ParseAccess(token)
	assert.Error(t, err)
}

func TestTokenManager_Garbage(t *testing.T) {
	manager := NewTokenManager("test-secret")

	_, _, err := manager.ParseAccess("definitely.not.a-token")
	assert.Error(t, err)
}
