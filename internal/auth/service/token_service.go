package service

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks github.com/StanlySGY/auth-service/internal/auth/service TokenGenerator

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	autherror "github.com/StanlySGY/auth-service/internal/errors"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type TokenGenerator interface {
	GenerateAccessToken(userID string) (string, error)
	GenerateRefreshToken(userID string) (token, jti string, expiresAt time.Time, err error)
	Verify(tokenString, wantType string) (*JWTCustomClaims, error)
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

// TokenService signs and verifies both token kinds with a single HS256
// secret. The kind lives in the "type" claim so an access token can never be
// presented where a refresh token is expected, and vice versa.
type TokenService struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	// Now is the clock used for iat/nbf/exp; replaceable in tests.
	Now func() time.Time
}

type JWTCustomClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}

func NewTokenService(secret string, accessMinutes, refreshDays int) *TokenService {
	return &TokenService{
		Secret:             secret,
		AccessTokenExpiry:  time.Duration(accessMinutes) * time.Minute,
		RefreshTokenExpiry: time.Duration(refreshDays) * 24 * time.Hour,
		Now:                time.Now,
	}
}

func (ts *TokenService) GenerateAccessToken(userID string) (string, error) {
	now := ts.Now().UTC()

	claims := JWTCustomClaims{
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.AccessTokenExpiry)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.Secret))
}

// GenerateRefreshToken mints a refresh token carrying a fresh random jti and
// returns the jti and expiry alongside so the caller can persist the ledger
// record keyed by them.
func (ts *TokenService) GenerateRefreshToken(userID string) (string, string, time.Time, error) {
	now := ts.Now().UTC()
	expiresAt := now.Add(ts.RefreshTokenExpiry)
	jti := uuid.New().String()

	claims := JWTCustomClaims{
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.RefreshTokenExpiry)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.Secret))
	if err != nil {
		return "", "", time.Time{}, err
	}

	return token, jti, expiresAt, nil
}

// Verify parses and validates the given token string and requires its "type"
// claim to equal wantType. Expiry, bad signature and malformed input map to
// distinct sentinel errors.
func (ts *TokenService) Verify(tokenString, wantType string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Ensure the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(ts.Secret), nil
	}, jwt.WithTimeFunc(func() time.Time { return ts.Now() }))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, autherror.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, autherror.ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, autherror.ErrMalformedToken
		default:
			return nil, autherror.ErrInvalidToken
		}
	}

	if !token.Valid {
		return nil, autherror.ErrInvalidToken
	}

	if claims.TokenType != wantType {
		return nil, autherror.ErrInvalidToken
	}

	return claims, nil
}

func (ts *TokenService) GetAccessTokenExpiry() time.Duration {
	return ts.AccessTokenExpiry
}

func (ts *TokenService) GetRefreshTokenExpiry() time.Duration {
	return ts.RefreshTokenExpiry
}

// HashToken returns the hex sha256 digest stored in the ledger in place of
// the raw refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
