package dto

import (
	"time"

	"github.com/StanlySGY/auth-service/internal/auth/domain"
)

type UserOutput struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserOutput(u *domain.User) UserOutput {
	return UserOutput{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}
