package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, role, created_at`

type UserRepository struct {
	db dbtx
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail matches the address ignoring case.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, normalizeEmail(email))
}

// EmailExists ignores the row with exceptID, so a user can keep their own address.
func (r *UserRepository) EmailExists(ctx context.Context, email string, exceptID int64) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM users WHERE LOWER(email) = $1 AND id <> $2`, normalizeEmail(email), exceptID)
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string, exceptID int64) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM users WHERE username = $1 AND id <> $2`, username, exceptID)
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User, password string) (int64, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, err
	}

	role := u.Role
	if role == "" {
		role = domain.RoleCustomer
	}

	query := `INSERT INTO users (username, email, password_hash, first_name, last_name, role)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		u.Username,
		normalizeEmail(u.Email),
		hash,
		u.FirstName,
		u.LastName,
		string(role),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	query := `UPDATE users SET username = $1, email = $2, first_name = $3, last_name = $4 WHERE id = $5`

	res, err := r.db.ExecContext(ctx, query,
		u.Username,
		normalizeEmail(u.Email),
		u.FirstName,
		u.LastName,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectRow(res, ErrUserNotFound)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectRow(res, ErrUserNotFound)
}

// Delete removes the user; their orders go with them via ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectRow(res, ErrUserNotFound)
}

// VerifyCredentials returns ErrInvalidCredentials for both an unknown email
// and a wrong password.
func (r *UserRepository) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := r.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		auth.SimulateVerify(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&role,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func (r *UserRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("query user exists: %w", err)
	}
	return n > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
