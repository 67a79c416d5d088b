package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sautihub/core-api/internal/user/entity"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email CITEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  is_creator BOOLEAN NOT NULL DEFAULT false,
  creator_name TEXT,
  phone_number TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  deactivated_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_users_is_creator ON users(is_creator);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const userColumns = `id, username, email, password_hash, is_creator, creator_name,
	phone_number, status, created_at, updated_at, deactivated_at`

// Create inserts a new user row and returns the new ID.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	const q = `INSERT INTO users (username,email,password_hash,is_creator,creator_name,phone_number,status)
		  VALUES (:username,:email,:password_hash,:is_creator,:creator_name,:phone_number,:status) RETURNING id`
	stmt, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	if stmt.Next() {
		if err := stmt.Scan(&u.ID); err != nil {
			return 0, err
		}
		return u.ID, nil
	}
	return 0, errors.New("no id returned")
}

// GetByUsername fetches by username or returns sql.ErrNoRows.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, username); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByEmail returns a user matched by email (case-insensitive due to citext)
// or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// Deactivate marks a user as disabled. Rows stay for payment audit history.
func (r *UserRepo) Deactivate(ctx context.Context, id int64) error {
	const q = `UPDATE users SET status='disabled', deactivated_at=NOW(), updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique violation on the
// named constraint (any constraint when empty).
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}
