package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/placement/internal/model"
)

// ApplicationFilter narrows List. Zero fields match everything.
type ApplicationFilter struct {
	StudentID uuid.UUID
	JobID     uuid.UUID
}

// DecideFunc inspects the locked application and returns the change to commit.
// Returning an error aborts the update without writing anything.
type DecideFunc func(app *model.Application) (model.Transition, error)

// ApplicationRepository stores applications and their timelines.
type ApplicationRepository interface {
	// Submit creates app in status applied, records its first timeline event
	// and increments the job's application counter, all in one transaction.
	// The counter only moves when the job accepts applications at now.
	// Errors: errs.ErrNotFound (no such job), errs.ErrNotAcceptingApplications,
	// errs.ErrDuplicateApplication.
	Submit(ctx context.Context, app *model.Application, now time.Time) error

	// Get loads an application with its full timeline.
	Get(ctx context.Context, id uuid.UUID) (*model.Application, error)

	// Update locks the application, passes it to decide and commits the
	// returned transition atomically. Concurrent updates to one application
	// serialize.
	Update(ctx context.Context, id uuid.UUID, decide DecideFunc) (*model.Application, error)

	// List returns applications without timelines, newest first.
	List(ctx context.Context, f ApplicationFilter) ([]model.Application, error)
}
