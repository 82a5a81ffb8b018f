package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shoe-market/internal/domain"
	"shoe-market/internal/repository"
	"shoe-market/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 10

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("%w: token has expired", ErrUnauthorized)
)

// RegisterInput carries the signup fields. Location and PhoneNumber seed the profile.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Location    string
	PhoneNumber *string
}

// AccountService handles signup, token issuance and account removal.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Account, *domain.Profile, error)
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, account *domain.Account, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, *domain.Profile, error)
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error
}

// Claims represents the JWT claims
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	jwt.RegisteredClaims
}

// TokenConfig controls token lifetimes.
type TokenConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type accountService struct {
	accountRepo      repository.AccountRepository
	profileRepo      repository.ProfileRepository
	refreshTokenRepo repository.RefreshTokenRepository
	pipeline         *ProvisioningPipeline
	blobs            storage.ObjectStorage
	tokens           TokenConfig
	logger           *zap.Logger
}

// NewAccountService creates a new instance of AccountService
func NewAccountService(
	accountRepo repository.AccountRepository,
	profileRepo repository.ProfileRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	pipeline *ProvisioningPipeline,
	blobs storage.ObjectStorage,
	tokens TokenConfig,
	logger *zap.Logger,
) AccountService {
	if tokens.AccessExpiry <= 0 {
		tokens.AccessExpiry = time.Hour
	}
	if tokens.RefreshExpiry <= 0 {
		tokens.RefreshExpiry = 7 * 24 * time.Hour
	}
	return &accountService{
		accountRepo:      accountRepo,
		profileRepo:      profileRepo,
		refreshTokenRepo: refreshTokenRepo,
		pipeline:         pipeline,
		blobs:            blobs,
		tokens:           tokens,
		logger:           logger.Named("accounts"),
	}
}

// Register validates the signup, hashes the password and hands off to the provisioning pipeline.
func (s *accountService) Register(ctx context.Context, in RegisterInput) (*domain.Account, *domain.Profile, error) {
	phone := normalizePhone(in.PhoneNumber)
	if phone != nil && len(*phone) > 20 {
		return nil, nil, NewValidationError("phone_number", "Ensure this field has no more than 20 characters.")
	}

	hashedPassword, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		ID:           uuid.New(),
		Username:     in.Username,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hashedPassword,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    time.Now().UTC(),
	}
	profile := &domain.Profile{
		Location:    in.Location,
		PhoneNumber: phone,
	}

	if err := s.pipeline.Provision(ctx, account, profile); err != nil {
		return nil, nil, err
	}
	return account, profile, nil
}

// Login authenticates an account and returns JWT tokens
func (s *accountService) Login(ctx context.Context, username, password string) (accessToken, refreshToken string, account *domain.Account, err error) {
	account, err = s.accountRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.generateAccessToken(account)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(ctx, account)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, account, nil
}

// Logout invalidates the refresh token
func (s *accountService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// Unknown token: already logged out.
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RefreshToken generates a new access token using a valid refresh token
func (s *accountService) RefreshToken(ctx context.Context, refreshTokenString string) (string, error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	account, err := s.accountRepo.FindByID(ctx, refreshToken.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find account: %w", err)
	}

	newAccessToken, err := s.generateAccessToken(account)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *accountService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.tokens.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetAccount returns the account with its profile, repairing a missing profile row.
func (s *accountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, *domain.Profile, error) {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, nil, notFound("account")
		}
		return nil, nil, fmt.Errorf("failed to get account: %w", err)
	}

	profile, err := s.profileRepo.GetOrCreate(ctx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return account, profile, nil
}

// DeleteAccount removes the account with everything it owns, then its stored blobs.
func (s *accountService) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	keys, err := s.accountRepo.Delete(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return notFound("account")
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}

	s.logger.Info("Account deleted", zap.String("account_id", accountID.String()), zap.Int("blobs", len(keys)))
	removeBlobs(ctx, s.blobs, keys, s.logger)
	return nil
}

func (s *accountService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *accountService) generateAccessToken(account *domain.Account) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   account.ID,
		Username: account.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokens.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.tokens.Secret))
}

func (s *accountService) generateRefreshToken(ctx context.Context, account *domain.Account) (string, error) {
	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(s.tokens.RefreshExpiry),
		CreatedAt: time.Now(),
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}
	return refreshToken.Token, nil
}

// normalizePhone trims the number; blank numbers are absent.
func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// removeBlobs deletes stored objects best-effort; failures are only logged.
func removeBlobs(ctx context.Context, blobs storage.ObjectStorage, keys []string, logger *zap.Logger) {
	if blobs == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := blobs.Delete(ctx, key); err != nil {
			logger.Warn("Failed to delete stored object", zap.String("key", key), zap.Error(err))
		}
	}
}
