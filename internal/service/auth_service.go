package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/uniticket/internal/auth"
	"github.com/spec-kit/uniticket/internal/config"
	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/repository"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

const invalidCredentials = "Invalid email or password"

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Name        string      `json:"name" validate:"required,min=2,max=50"`
	Email       string      `json:"email" validate:"required,email,max=255"`
	Password    string      `json:"password" validate:"required,min=6,max=72"`
	Role        domain.Role `json:"role" validate:"omitempty,user_role"`
	Department  string      `json:"department" validate:"max=100"`
	StudentID   string      `json:"studentId" validate:"max=50"`
	StaffID     string      `json:"staffId" validate:"max=50"`
	PhoneNumber string      `json:"phoneNumber" validate:"max=30"`
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Profile   domain.UserProfile
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates an account and signs the caller in. Admin accounts are
// provisioned out of band and cannot be self-registered.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.StudentID = strings.TrimSpace(input.StudentID)
	input.StaffID = strings.TrimSpace(input.StaffID)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.Role == "" {
		input.Role = domain.RoleStudent
	}
	if input.Role == domain.RoleAdmin {
		return nil, apperrors.NewForbidden("Admin accounts cannot be self-registered")
	}

	if err := s.ensureUnique(ctx, input); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		Department:   strings.TrimSpace(input.Department),
		StudentID:    input.StudentID,
		StaffID:      input.StaffID,
		PhoneNumber:  strings.TrimSpace(input.PhoneNumber),
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("User already exists", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return s.issue(user)
}

func (s *AuthService) ensureUnique(ctx context.Context, input RegisterInput) error {
	checks := []struct {
		value   string
		lookup  func(context.Context, string) (*domain.User, error)
		message string
	}{
		{input.Email, s.users.GetByEmail, "User already exists with this email"},
		{input.StudentID, s.users.GetByStudentID, "User already exists with this student ID"},
		{input.StaffID, s.users.GetByStaffID, "User already exists with this staff ID"},
	}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		_, err := check.lookup(ctx, check.value)
		switch {
		case err == nil:
			return apperrors.NewConflict(check.message, nil)
		case !errors.Is(err, repository.ErrNotFound):
			return apperrors.NewInternalError(err)
		}
	}
	return nil
}

// Login authenticates a user and issues a token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	user, err := s.CheckCredentials(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CheckCredentials resolves the user owning email and verifies password.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) CheckCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized(invalidCredentials)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}
	if !user.Active {
		return nil, apperrors.NewUnauthorized("User account is deactivated")
	}
	return user, nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.UserProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "User")
	}
	profile := user.Profile()
	return &profile, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{Profile: user.Profile(), Token: token, ExpiresAt: exp}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
