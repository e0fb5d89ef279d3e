package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/config"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

// Session is an issued access token with its expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	timeout    time.Duration
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		timeout:    cfg.App.PersistTimeout(),
	}
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates a new end-user account and logs it in. Staff accounts
// are provisioned by admins, never through self-registration.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, Session, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, Session{}, apperrors.NewValidationError("name and email required", nil)
	}
	if len(password) < 8 {
		return nil, Session{}, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, Session{}, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, Session{}, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, Session{}, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, Session{}, apperrors.MapError(err)
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, Session{}, err
	}
	return user, session, nil
}

// Login authenticates any account by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, Session, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Session{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, Session{}, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, Session{}, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, Session{}, apperrors.NewUnauthorized("invalid credentials")
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, Session{}, err
	}
	return user, session, nil
}

// CreateStaff provisions an agent or admin account. Admin only.
func (s *AuthService) CreateStaff(ctx context.Context, principal domain.Principal, name, email, password string, role domain.Role) (*domain.User, error) {
	if !principal.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if role != domain.RoleAgent && role != domain.RoleAdmin {
		return nil, apperrors.NewValidationError("role must be agent or admin",
			map[string]any{"role": string(role)})
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (Session, error) {
	token, expiresAt, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return Session{}, apperrors.MapError(err)
	}
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}
