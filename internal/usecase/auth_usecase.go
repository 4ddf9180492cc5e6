package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-client/internal/domain"
	"storefront-client/pkg/logger"
	"storefront-client/pkg/utils"
)

type AuthUsecase struct {
	userRepo          domain.UserRepository
	accessTokenExpiry time.Duration
}

func NewAuthUsecase(userRepo domain.UserRepository, atExpiry time.Duration) *AuthUsecase {
	return &AuthUsecase{
		userRepo:          userRepo,
		accessTokenExpiry: atExpiry,
	}
}

// Register creates a buyer or seller account and signs it in.
func (u *AuthUsecase) Register(ctx context.Context, req domain.RegisterRequest) (string, *domain.User, error) {
	if req.Role == "" {
		req.Role = domain.RoleBuyer
	}
	if req.Role == domain.RoleAdmin {
		return "", nil, fmt.Errorf("%w: admin accounts cannot self-register", domain.ErrInvalidInput)
	}
	user, err := u.createUser(ctx, req)
	if err != nil {
		return "", nil, err
	}
	logger.WithContext(ctx).Info().Str("user_id", user.ID).Str("role", user.Role).Msg("User registered")
	return u.issue(user)
}

// EnsureAdmin creates the admin account unless the email is already registered.
func (u *AuthUsecase) EnsureAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	existing, err := u.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return u.createUser(ctx, domain.RegisterRequest{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
}

func (u *AuthUsecase) createUser(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err)
	}

	existing, err := u.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &domain.User{
		ID:           utils.GenerateUUID(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the password and returns a fresh access token.
func (u *AuthUsecase) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := u.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	ok, err := utils.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		logger.WithContext(ctx).Error().Err(err).Str("user_id", user.ID).Msg("Stored password hash is unreadable")
		return "", nil, domain.ErrInvalidCredentials
	}
	if !ok {
		return "", nil, domain.ErrInvalidCredentials
	}
	logger.WithContext(ctx).Info().Str("user_id", user.ID).Msg("User logged in")
	return u.issue(user)
}

func (u *AuthUsecase) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := u.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (u *AuthUsecase) issue(user *domain.User) (string, *domain.User, error) {
	token, err := utils.GenerateJWT(user.ID, user.Email, user.Role, user.Name, u.accessTokenExpiry)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
