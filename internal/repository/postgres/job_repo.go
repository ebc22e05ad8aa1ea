package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
)

// JobRepo implements JobRepository using PostgreSQL.
type JobRepo struct{ db *DB }

// NewJobRepo constructs a job repository.
func NewJobRepo(db *DB) *JobRepo { return &JobRepo{db: db} }

const jobColumns = `id, title, company, description, location, job_type, required_skills, preferred_skills,
status, is_active, deadline, expires_at, max_applications, applications_count, posted_by, created_at`

// Create inserts a job posting.
func (r *JobRepo) Create(ctx context.Context, j *model.Job) error {
	const q = `
INSERT INTO jobs (id, title, company, description, location, job_type, required_skills, preferred_skills,
                  status, is_active, deadline, expires_at, max_applications, posted_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.db.Pool.Exec(ctx, q,
		j.ID, j.Title, j.Company, j.Description, j.Location, j.JobType,
		nonNil(j.RequiredSkills), nonNil(j.PreferredSkills),
		string(j.Status), j.IsActive, j.Deadline, j.ExpiresAt, j.MaxApplications, j.PostedBy)
	if isUniqueViolation(err, "") {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get selects a job by id.
func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	j, err := scanJob(r.db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

// ListOpen returns jobs accepting applications at now, nearest deadline first.
func (r *JobRepo) ListOpen(ctx context.Context, now time.Time) ([]model.Job, error) {
	const q = `SELECT ` + jobColumns + `
FROM jobs
WHERE status='published' AND is_active AND deadline > $1 AND expires_at > $1
  AND applications_count < max_applications
ORDER BY deadline ASC`
	rows, err := r.db.Pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	err := row.Scan(&j.ID, &j.Title, &j.Company, &j.Description, &j.Location, &j.JobType,
		&j.RequiredSkills, &j.PreferredSkills, &j.Status, &j.IsActive, &j.Deadline, &j.ExpiresAt,
		&j.MaxApplications, &j.ApplicationsCount, &j.PostedBy, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
