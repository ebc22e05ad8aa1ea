package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, full_name, role, pwd_hash, salt_auth, skills, created_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, full_name, role, pwd_hash, salt_auth, skills)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Username, u.FullName, string(u.Role), u.PwdHash, u.SaltAuth, nonNil(u.Skills))
	if isUniqueViolation(err, "") {
		return errs.ErrUsernameTaken
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.Pool.QueryRow(ctx, q, arg).
		Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.PwdHash, &u.SaltAuth, &u.Skills, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// SetSkills replaces the skill list of a user.
func (r *UserRepo) SetSkills(ctx context.Context, id uuid.UUID, skills []string) error {
	const q = `UPDATE users SET skills=$2 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, nonNil(skills))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
