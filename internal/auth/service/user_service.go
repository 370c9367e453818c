package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/StanlySGY/auth-service/config"
	"github.com/StanlySGY/auth-service/internal/auth/domain"
	"github.com/StanlySGY/auth-service/internal/auth/dto"
	autherror "github.com/StanlySGY/auth-service/internal/errors"
)

type UserService struct {
	repo         domain.UserRepository
	refreshRepo  domain.RefreshTokenRepository
	tokenService TokenGenerator
	bcryptCost   int
	logger       *zap.Logger
	now          func() time.Time
}

func NewUserService(repo domain.UserRepository, refreshRepo domain.RefreshTokenRepository,
	tokenService TokenGenerator, cfg *config.Config, logger *zap.Logger) *UserService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &UserService{
		repo:         repo,
		refreshRepo:  refreshRepo,
		tokenService: tokenService,
		bcryptCost:   cost,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *UserService) Register(ctx context.Context, input dto.RegisterInput) (*domain.User, error) {
	existing, err := s.repo.GetByEmailOrUsername(ctx, input.Email, input.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, autherror.ErrAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: string(hashedPassword),
		Active:       true,
		CreatedAt:    s.now(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login authenticates by username or email and issues a fresh token pair.
func (s *UserService) Login(ctx context.Context, input dto.LoginInput) (*dto.TokenResponse, error) {
	user, err := s.repo.GetByIdentifier(ctx, input.Identifier)
	if err != nil {
		return nil, err
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return nil, autherror.ErrInvalidCredentials
	}

	if !user.Active {
		return nil, autherror.ErrInactiveAccount
	}

	return s.issuePair(ctx, user.ID)
}

// issuePair mints an access+refresh pair and persists the refresh token's
// ledger record keyed by its jti. Only the sha256 hash of the raw token is
// stored.
func (s *UserService) issuePair(ctx context.Context, userID string) (*dto.TokenResponse, error) {
	accessToken, err := s.tokenService.GenerateAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, jti, expiresAt, err := s.tokenService.GenerateRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	record := &domain.RefreshToken{
		JTI:       jti,
		UserID:    userID,
		TokenHash: HashToken(refreshToken),
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
		Revoked:   false,
	}

	if err := s.refreshRepo.Store(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokenService.GetAccessTokenExpiry().Seconds()),
	}, nil
}

// Refresh rotates a refresh token: the presented token is checked against its
// ledger record, revoked, and replaced with a new pair. A token whose claims
// verify but whose hash does not match its record is treated as a reuse
// signal: the record is revoked before the call fails.
func (s *UserService) Refresh(ctx context.Context, rawRefreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.tokenService.Verify(rawRefreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, autherror.ErrInvalidToken
	}

	if claims.ID == "" {
		return nil, autherror.ErrInvalidToken
	}

	record, err := s.refreshRepo.GetByJTI(ctx, claims.ID, claims.Subject)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, autherror.ErrRefreshTokenNotFound
	}

	if record.Revoked {
		return nil, autherror.ErrRefreshTokenRevoked
	}

	if s.now().After(record.ExpiresAt) {
		return nil, autherror.ErrRefreshTokenExpired
	}

	if record.TokenHash != HashToken(rawRefreshToken) {
		// Claims decoded fine but the ledger binding does not match: kill the
		// lineage rather than ignore it.
		if _, revokeErr := s.refreshRepo.Revoke(ctx, record.JTI); revokeErr != nil {
			s.logger.Warn("failed to revoke mismatched refresh token",
				zap.String("jti", record.JTI), zap.Error(revokeErr))
		}
		return nil, autherror.ErrInvalidToken
	}

	// Revoke is a compare-and-swap on the revoked flag; of two concurrent
	// rotations only one can win, the other observes an already-revoked
	// record.
	revoked, err := s.refreshRepo.Revoke(ctx, record.JTI)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke token: %w", err)
	}
	if !revoked {
		return nil, autherror.ErrRefreshTokenRevoked
	}

	return s.issuePair(ctx, record.UserID)
}

// Logout revokes the refresh token's record if one exists. A garbage, expired
// or already-revoked token means the session is effectively over, so logout
// never surfaces an error to the caller.
func (s *UserService) Logout(ctx context.Context, rawRefreshToken string) {
	claims, err := s.tokenService.Verify(rawRefreshToken, TokenTypeRefresh)
	if err != nil || claims.ID == "" {
		return
	}

	record, err := s.refreshRepo.GetByJTI(ctx, claims.ID, claims.Subject)
	if err != nil || record == nil {
		if err != nil {
			s.logger.Warn("logout ledger lookup failed", zap.Error(err))
		}
		return
	}

	if record.Revoked {
		return
	}

	if _, err := s.refreshRepo.Revoke(ctx, record.JTI); err != nil {
		s.logger.Warn("logout revoke failed", zap.String("jti", record.JTI), zap.Error(err))
	}
}

// CurrentUser resolves an access token to an active account. Access tokens
// are stateless: no ledger lookup happens here, only signature/expiry checks
// and an account fetch.
func (s *UserService) CurrentUser(ctx context.Context, rawAccessToken string) (*domain.User, error) {
	claims, err := s.tokenService.Verify(rawAccessToken, TokenTypeAccess)
	if err != nil {
		return nil, autherror.ErrUnauthenticated
	}

	if claims.Subject == "" {
		return nil, autherror.ErrUnauthenticated
	}

	user, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, autherror.ErrUnauthenticated
	}

	return user, nil
}
