// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/placement/internal/model"
)

// UserRepository stores accounts.
type UserRepository interface {
	// Create inserts a new user; errs.ErrUsernameTaken on a duplicate username.
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// SetSkills replaces the user's skill list.
	SetSkills(ctx context.Context, id uuid.UUID, skills []string) error
}

// JobRepository stores job postings.
type JobRepository interface {
	Create(ctx context.Context, j *model.Job) error
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	// ListOpen returns the postings accepting applications at now.
	ListOpen(ctx context.Context, now time.Time) ([]model.Job, error)
}
