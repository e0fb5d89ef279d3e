package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-portal/internal/config"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	cfg := config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenTTLMinutes = 60
	cfg.Auth.BcryptCost = 4 // min cost keeps hashing fast in tests
	return NewAuthService(cfg, AuthDependencies{UserRepo: users}), users
}

func TestRegisterAndLogin(t *testing.T) {
	service, _ := newAuthFixture(t)
	ctx := context.Background()

	user, session, err := service.Register(ctx, "Sam", "  SAM@Example.com ", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEmpty(t, session.Token)
	assert.False(t, session.ExpiresAt.IsZero())
	assert.NotEqual(t, "hunter2hunter2", user.PasswordHash)

	_, _, err = service.Login(ctx, "sam@example.com", "hunter2hunter2")
	assert.NoError(t, err)

	_, _, err = service.Login(ctx, "sam@example.com", "wrong-password")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	_, _, err = service.Login(ctx, "nobody@example.com", "hunter2hunter2")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
}

func TestRegisterValidation(t *testing.T) {
	service, _ := newAuthFixture(t)
	ctx := context.Background()

	_, _, err := service.Register(ctx, "", "sam@example.com", "hunter2hunter2")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, _, err = service.Register(ctx, "Sam", "sam@example.com", "short")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service, _ := newAuthFixture(t)
	ctx := context.Background()

	_, _, err := service.Register(ctx, "Sam", "sam@example.com", "hunter2hunter2")
	require.NoError(t, err)

	_, _, err = service.Register(ctx, "Sam Again", "Sam@Example.com", "hunter2hunter2")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestLoginDisabledAccount(t *testing.T) {
	service, users := newAuthFixture(t)
	ctx := context.Background()

	user, _, err := service.Register(ctx, "Sam", "sam@example.com", "hunter2hunter2")
	require.NoError(t, err)
	users.users[user.ID].IsActive = false

	_, _, err = service.Login(ctx, "sam@example.com", "hunter2hunter2")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
}

func TestCreateStaff(t *testing.T) {
	service, _ := newAuthFixture(t)
	ctx := context.Background()
	admin := domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
	agent := domain.Principal{UserID: "agent-1", Role: domain.RoleAgent}

	created, err := service.CreateStaff(ctx, admin, "Dana", "dana@example.com", "hunter2hunter2", domain.RoleAgent)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAgent, created.Role)

	_, err = service.CreateStaff(ctx, agent, "Eve", "eve@example.com", "hunter2hunter2", domain.RoleAgent)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = service.CreateStaff(ctx, admin, "Eve", "eve@example.com", "hunter2hunter2", domain.RoleUser)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = service.CreateStaff(ctx, admin, "Dana Again", "dana@example.com", "hunter2hunter2", domain.RoleAgent)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}
