package domain

import "context"

//go:generate mockgen -destination=../../mocks/mock_user_repository.go -package=mocks github.com/StanlySGY/auth-service/internal/auth/domain UserRepository
//go:generate mockgen -destination=../../mocks/mock_refresh_token_repository.go -package=mocks github.com/StanlySGY/auth-service/internal/auth/domain RefreshTokenRepository

type UserRepository interface {
	// GetByIdentifier matches either the email or the username.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	GetByEmailOrUsername(ctx context.Context, email, username string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	SetActive(ctx context.Context, id string, active bool) error
}

type RefreshTokenRepository interface {
	Store(ctx context.Context, rt *RefreshToken) error
	GetByJTI(ctx context.Context, jti, userID string) (*RefreshToken, error)
	// Revoke flips revoked false->true for the given jti and reports whether
	// this call performed the transition. Exactly one caller can win.
	Revoke(ctx context.Context, jti string) (bool, error)
}
