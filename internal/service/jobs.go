package service

import (
	"context"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
	"github.com/and161185/placement/internal/repository"
)

// JobService manages job postings.
type JobService struct {
	jobs       repository.JobRepository
	defaultCap int
	now        func() time.Time
}

// NewJobService constructs JobService. defaultCap applies to postings
// created without a MaxApplications value.
func NewJobService(jobs repository.JobRepository, defaultCap int) *JobService {
	if defaultCap <= 0 {
		defaultCap = 100
	}
	return &JobService{jobs: jobs, defaultCap: defaultCap, now: time.Now}
}

// CreateJob validates and stores a posting on behalf of staff.
func (s *JobService) CreateJob(ctx context.Context, actor model.Actor, j model.Job) (*model.Job, error) {
	switch actor.Role {
	case model.RolePlacement, model.RoleRecruiter, model.RoleAdmin:
	default:
		return nil, errs.ErrForbidden
	}
	j.Title = strings.TrimSpace(j.Title)
	j.Company = strings.TrimSpace(j.Company)
	if j.Title == "" {
		return nil, errs.Invalid("title", "required")
	}
	if j.Company == "" {
		return nil, errs.Invalid("company", "required")
	}
	if j.Deadline.IsZero() {
		return nil, errs.Invalid("deadline", "required")
	}
	if j.ExpiresAt.IsZero() {
		j.ExpiresAt = j.Deadline
	}
	if j.ExpiresAt.Before(j.Deadline) {
		return nil, errs.Invalid("expiresAt", "must not precede the deadline")
	}
	if j.MaxApplications < 0 {
		return nil, errs.Invalid("maxApplications", "must not be negative")
	}
	if j.MaxApplications == 0 {
		j.MaxApplications = s.defaultCap
	}
	switch j.Status {
	case "":
		j.Status = model.JobPublished
	case model.JobDraft, model.JobPublished, model.JobClosed:
	default:
		return nil, errs.Invalid("status", "unknown status %q", j.Status)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	j.ID = id
	j.IsActive = true
	j.ApplicationsCount = 0
	j.PostedBy = actor.ID
	j.RequiredSkills = NormalizeSkills(j.RequiredSkills)
	j.PreferredSkills = NormalizeSkills(j.PreferredSkills)
	j.CreatedAt = s.now().UTC()
	if err := s.jobs.Create(ctx, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// GetJob returns one posting.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	return s.jobs.Get(ctx, id)
}

// ListOpen returns postings currently accepting applications.
func (s *JobService) ListOpen(ctx context.Context) ([]model.Job, error) {
	return s.jobs.ListOpen(ctx, s.now())
}
