package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/cvewatch/cve-dashboard/internal/model"
	"github.com/cvewatch/cve-dashboard/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password, inserts a verified ANALYST user and returns
// its ID.  A duplicate email surfaces as ErrEmailExists via the unique key,
// so concurrent signups for one address cannot both succeed.
func (r *UserRepo) Create(ctx context.Context, email, password string, cost int) (uint64, error) {
	email = strings.TrimSpace(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, pw_hash, role, verified, created_at) VALUES (?, ?, ?, 1, NOW())",
		email, hash, model.DefaultRole)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by email.  ErrNotFound when absent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.TrimSpace(email)
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, email, pw_hash, role, verified, created_at FROM users WHERE email = ? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Verified, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}
