package errors

import (
	"errors"
)

var (
	ErrAlreadyExists        = errors.New("email or username already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInactiveAccount      = errors.New("inactive account")
	ErrMalformedToken       = errors.New("malformed token")
	ErrInvalidSignature     = errors.New("invalid token signature")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrUnauthenticated      = errors.New("unauthenticated")
)
