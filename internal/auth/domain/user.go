package domain

import "time"

type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// RefreshToken is the ledger entry backing an issued refresh token. The raw
// token is never stored; TokenHash holds a sha256 digest used to check that a
// presented token matches the record its jti points at.
type RefreshToken struct {
	JTI       string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}
