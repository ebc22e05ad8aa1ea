package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
	"github.com/and161185/placement/internal/repository"
)

// activeApplicationKey is the partial unique index on (student_id, job_id) WHERE is_active.
const activeApplicationKey = "applications_active_student_job_key"

// ApplicationRepo implements ApplicationRepository using PostgreSQL.
type ApplicationRepo struct{ db *DB }

// NewApplicationRepo constructs an application repository.
func NewApplicationRepo(db *DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

const applicationColumns = `id, job_id, student_id, cover_letter, status, mentor_id, mentor_status,
mentor_comment, mentor_decided_at, interview, offer, is_active, created_at, updated_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Submit takes a slot on the job and inserts the application with its first event.
func (r *ApplicationRepo) Submit(ctx context.Context, app *model.Application, now time.Time) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		const take = `
UPDATE jobs SET applications_count = applications_count + 1
WHERE id=$1 AND status='published' AND is_active AND deadline > $2 AND expires_at > $2
  AND applications_count < max_applications`
		tag, err := tx.Exec(ctx, take, app.JobID, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return r.whyNoSlot(ctx, tx, app)
		}

		const ins = `
INSERT INTO applications (id, job_id, student_id, cover_letter, status, mentor_status, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,true,$7,$7)`
		_, err = tx.Exec(ctx, ins, app.ID, app.JobID, app.StudentID, app.CoverLetter,
			string(app.Status), string(app.MentorApproval.Status), app.CreatedAt)
		if isUniqueViolation(err, activeApplicationKey) {
			return errs.ErrDuplicateApplication
		}
		if err != nil {
			return err
		}
		for i := range app.Timeline {
			if err := insertEvent(ctx, tx, app.ID, &app.Timeline[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// whyNoSlot explains a failed slot take. An active application for the same
// pair outranks a closed or full job.
func (r *ApplicationRepo) whyNoSlot(ctx context.Context, tx pgx.Tx, app *model.Application) error {
	const q = `
SELECT EXISTS (SELECT 1 FROM jobs WHERE id=$1),
       EXISTS (SELECT 1 FROM applications WHERE job_id=$1 AND student_id=$2 AND is_active)`
	var jobExists, active bool
	if err := tx.QueryRow(ctx, q, app.JobID, app.StudentID).Scan(&jobExists, &active); err != nil {
		return err
	}
	switch {
	case !jobExists:
		return errs.ErrNotFound
	case active:
		return errs.ErrDuplicateApplication
	}
	return errs.ErrNotAcceptingApplications
}

// Get loads an application and its timeline from one snapshot.
func (r *ApplicationRepo) Get(ctx context.Context, id uuid.UUID) (app *model.Application, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	return loadApplication(ctx, tx, `SELECT `+applicationColumns+` FROM applications WHERE id=$1`, id)
}

// Update locks the row, applies the decided transition and persists it.
func (r *ApplicationRepo) Update(ctx context.Context, id uuid.UUID, decide repository.DecideFunc) (*model.Application, error) {
	var app *model.Application
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		app, err = loadApplication(ctx, tx, `SELECT `+applicationColumns+` FROM applications WHERE id=$1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		t, err := decide(app)
		if err != nil {
			return err
		}
		app.Apply(t)

		if err := insertEvent(ctx, tx, app.ID, &app.Timeline[len(app.Timeline)-1]); err != nil {
			return err
		}
		interview, err := nullableJSON(app.Interview)
		if err != nil {
			return err
		}
		offer, err := nullableJSON(app.Offer)
		if err != nil {
			return err
		}
		const upd = `
UPDATE applications
SET status=$2, mentor_id=$3, mentor_status=$4, mentor_comment=$5, mentor_decided_at=$6,
    interview=$7, offer=$8, is_active=$9, updated_at=$10
WHERE id=$1`
		ma := app.MentorApproval
		_, err = tx.Exec(ctx, upd, app.ID, string(app.Status), ma.MentorID, string(ma.Status), ma.Comment,
			ma.DecidedAt, interview, offer, app.IsActive, app.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// List returns applications matching f, newest first, without timelines.
func (r *ApplicationRepo) List(ctx context.Context, f repository.ApplicationFilter) ([]model.Application, error) {
	var (
		where []string
		args  []any
	)
	if !f.StudentID.IsNil() {
		args = append(args, f.StudentID)
		where = append(where, "student_id=$"+strconv.Itoa(len(args)))
	}
	if !f.JobID.IsNil() {
		args = append(args, f.JobID)
		where = append(where, "job_id=$"+strconv.Itoa(len(args)))
	}
	q := `SELECT ` + applicationColumns + ` FROM applications`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *app)
	}
	return out, rows.Err()
}

func loadApplication(ctx context.Context, q querier, sql string, id uuid.UUID) (*model.Application, error) {
	app, err := scanApplication(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if app.Timeline, err = loadTimeline(ctx, q, id); err != nil {
		return nil, err
	}
	return app, nil
}

func scanApplication(row pgx.Row) (*model.Application, error) {
	var (
		a                model.Application
		interview, offer []byte
	)
	err := row.Scan(&a.ID, &a.JobID, &a.StudentID, &a.CoverLetter, &a.Status,
		&a.MentorApproval.MentorID, &a.MentorApproval.Status, &a.MentorApproval.Comment, &a.MentorApproval.DecidedAt,
		&interview, &offer, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(interview) > 0 {
		a.Interview = new(model.InterviewDetails)
		if err := json.Unmarshal(interview, a.Interview); err != nil {
			return nil, fmt.Errorf("application %s: interview: %w", a.ID, err)
		}
	}
	if len(offer) > 0 {
		a.Offer = new(model.OfferDetails)
		if err := json.Unmarshal(offer, a.Offer); err != nil {
			return nil, fmt.Errorf("application %s: offer: %w", a.ID, err)
		}
	}
	return &a, nil
}

func loadTimeline(ctx context.Context, q querier, id uuid.UUID) ([]model.TimelineEvent, error) {
	const sel = `
SELECT seq, event, actor_id, comment, metadata, created_at
FROM application_events WHERE application_id=$1 ORDER BY seq ASC`
	rows, err := q.Query(ctx, sel, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimelineEvent
	for rows.Next() {
		var (
			ev   model.TimelineEvent
			name string
			meta []byte
		)
		if err := rows.Scan(&ev.Seq, &name, &ev.ActorID, &ev.Comment, &meta, &ev.At); err != nil {
			return nil, err
		}
		if ev.Event, err = model.ParseEvent(name); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("event %d: metadata: %w", ev.Seq, err)
			}
			if len(ev.Metadata) == 0 {
				ev.Metadata = nil
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func insertEvent(ctx context.Context, tx pgx.Tx, appID uuid.UUID, ev *model.TimelineEvent) error {
	const ins = `
INSERT INTO application_events (application_id, event, actor_id, comment, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING seq`
	meta := []byte("{}")
	if len(ev.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(ev.Metadata); err != nil {
			return err
		}
	}
	return tx.QueryRow(ctx, ins, appID, ev.Event.String(), ev.ActorID, ev.Comment, meta, ev.At).Scan(&ev.Seq)
}

// nullableJSON encodes v for a nullable jsonb column.
func nullableJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
