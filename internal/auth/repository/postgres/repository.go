package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/StanlySGY/auth-service/internal/auth/domain"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	query := `
		SELECT id, email, username, password_hash, active, created_at
		FROM users
		WHERE email = $1 OR username = $1
		LIMIT 1;
	`
	return r.scanUser(r.db.QueryRow(ctx, query, identifier))
}

func (r *PostgresRepository) GetByEmailOrUsername(ctx context.Context, email, username string) (*domain.User, error) {
	query := `
		SELECT id, email, username, password_hash, active, created_at
		FROM users
		WHERE email = $1 OR username = $2
		LIMIT 1;
	`
	return r.scanUser(r.db.QueryRow(ctx, query, email, username))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, username, password_hash, active, created_at
		FROM users
		WHERE id = $1
		LIMIT 1;
	`
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO users (id, email, username, password_hash, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, user.ID, user.Email, user.Username, user.PasswordHash, user.Active, user.CreatedAt)

	return err
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET active = $2 WHERE id = $1
	`, id, active)

	return err
}

func (r *PostgresRepository) Store(ctx context.Context, rt *domain.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (jti, user_id, token_hash, expires_at, created_at, revoked)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query,
		rt.JTI, rt.UserID, rt.TokenHash, rt.ExpiresAt, rt.CreatedAt, rt.Revoked)

	return err
}

func (r *PostgresRepository) GetByJTI(ctx context.Context, jti, userID string) (*domain.RefreshToken, error) {
	query := `
		SELECT jti, user_id, token_hash, expires_at, created_at, revoked
		FROM refresh_tokens
		WHERE jti = $1 AND user_id = $2
		LIMIT 1;
	`
	row := r.db.QueryRow(ctx, query, jti, userID)

	var rt domain.RefreshToken
	err := row.Scan(&rt.JTI, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.CreatedAt, &rt.Revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return &rt, nil
}

// Revoke flips the revoked flag for the given jti. The WHERE clause makes it
// a compare-and-swap: of two concurrent callers only one sees a row affected.
func (r *PostgresRepository) Revoke(ctx context.Context, jti string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE WHERE jti = $1 AND revoked = FALSE
	`, jti)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
