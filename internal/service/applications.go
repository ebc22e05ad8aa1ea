package service

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/events"
	"github.com/and161185/placement/internal/lifecycle"
	"github.com/and161185/placement/internal/metrics"
	"github.com/and161185/placement/internal/model"
	"github.com/and161185/placement/internal/repository"
)

// MaxCoverLetterLen bounds the optional cover letter, in characters.
const MaxCoverLetterLen = 5000

// ApplicationService runs the application lifecycle.
type ApplicationService struct {
	apps repository.ApplicationRepository
	pub  events.Publisher
	met  *metrics.Metrics
	log  *zap.Logger
	now  func() time.Time
}

// NewApplicationService wires the lifecycle. pub and met may be nil.
func NewApplicationService(apps repository.ApplicationRepository, pub events.Publisher, met *metrics.Metrics, log *zap.Logger) *ApplicationService {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ApplicationService{apps: apps, pub: pub, met: met, log: log, now: time.Now}
}

// Submit files a student's application for jobID.
func (s *ApplicationService) Submit(ctx context.Context, actor model.Actor, jobID uuid.UUID, coverLetter string) (*model.Application, error) {
	if actor.Role != model.RoleStudent {
		return nil, errs.ErrForbidden
	}
	if jobID == uuid.Nil {
		return nil, errs.Invalid("jobId", "required")
	}
	if utf8.RuneCountInString(coverLetter) > MaxCoverLetterLen {
		return nil, errs.Invalid("coverLetter", "at most %d characters", MaxCoverLetterLen)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.clock()
	app := &model.Application{
		ID:             id,
		JobID:          jobID,
		StudentID:      actor.ID,
		CoverLetter:    coverLetter,
		Status:         model.StatusApplied,
		MentorApproval: model.MentorApproval{Status: model.ApprovalPending},
		Timeline: []model.TimelineEvent{{
			Event:   model.EventApplied,
			ActorID: actor.ID,
			At:      now,
		}},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.apps.Submit(ctx, app, now); err != nil {
		return nil, err
	}

	s.met.ApplicationSubmitted()
	s.publish(ctx, events.Event{
		Type:       events.ApplicationSubmitted,
		Key:        app.ID.String(),
		ActorID:    actor.ID,
		OccurredAt: now,
		Data:       map[string]string{"jobId": jobID.String(), "studentId": actor.ID.String()},
	})
	return app, nil
}

// Transition records ev on the application.
func (s *ApplicationService) Transition(ctx context.Context, actor model.Actor, appID uuid.UUID, ev model.Event, comment string) (*model.Application, error) {
	now := s.clock()
	app, err := s.apps.Update(ctx, appID, func(a *model.Application) (model.Transition, error) {
		return lifecycle.Transition(a, actor, ev, comment, now)
	})
	if err != nil {
		return nil, err
	}
	s.recorded(ctx, app, actor, events.ApplicationTransitioned)
	return app, nil
}

// ScheduleInterview sets or reschedules the interview.
func (s *ApplicationService) ScheduleInterview(ctx context.Context, actor model.Actor, appID uuid.UUID, details model.InterviewDetails, comment string) (*model.Application, error) {
	now := s.clock()
	app, err := s.apps.Update(ctx, appID, func(a *model.Application) (model.Transition, error) {
		return lifecycle.ScheduleInterview(a, actor, details, comment, now)
	})
	if err != nil {
		return nil, err
	}
	s.recorded(ctx, app, actor, events.ApplicationInterviewScheduled)
	return app, nil
}

// MakeOffer records an offer with its details.
func (s *ApplicationService) MakeOffer(ctx context.Context, actor model.Actor, appID uuid.UUID, offer model.OfferDetails, comment string) (*model.Application, error) {
	now := s.clock()
	app, err := s.apps.Update(ctx, appID, func(a *model.Application) (model.Transition, error) {
		return lifecycle.MakeOffer(a, actor, offer, comment, now)
	})
	if err != nil {
		return nil, err
	}
	s.recorded(ctx, app, actor, events.ApplicationOfferMade)
	return app, nil
}

// GetApplication returns the application if actor may see it.
func (s *ApplicationService) GetApplication(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Application, error) {
	app, err := s.apps.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanView(app, actor) {
		return nil, errs.ErrForbidden
	}
	return app, nil
}

// GetTimeline returns the application's events in insertion order.
func (s *ApplicationService) GetTimeline(ctx context.Context, actor model.Actor, id uuid.UUID) ([]model.TimelineEvent, error) {
	app, err := s.GetApplication(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return app.Timeline, nil
}

// ListApplications lists applications. Students only ever see their own.
func (s *ApplicationService) ListApplications(ctx context.Context, actor model.Actor, f repository.ApplicationFilter) ([]model.Application, error) {
	switch {
	case actor.Role == model.RoleStudent:
		if f.StudentID != uuid.Nil && f.StudentID != actor.ID {
			return nil, errs.ErrForbidden
		}
		f.StudentID = actor.ID
	case !actor.Role.Valid():
		return nil, errs.ErrForbidden
	}
	return s.apps.List(ctx, f)
}

// recorded reports the last timeline event of app.
func (s *ApplicationService) recorded(ctx context.Context, app *model.Application, actor model.Actor, typ string) {
	last := app.Timeline[len(app.Timeline)-1]
	s.met.ApplicationTransitioned(last.Event.String())

	data := map[string]string{"event": last.Event.String(), "status": string(app.Status)}
	for k, v := range last.Metadata {
		data[k] = v
	}
	s.publish(ctx, events.Event{
		Type:       typ,
		Key:        app.ID.String(),
		ActorID:    actor.ID,
		OccurredAt: last.At,
		Data:       data,
	})
}

func (s *ApplicationService) publish(ctx context.Context, e events.Event) {
	if err := s.pub.Publish(ctx, e); err != nil {
		s.log.Warn("publish event", zap.String("type", e.Type), zap.String("key", e.Key), zap.Error(err))
	}
}

func (s *ApplicationService) clock() time.Time { return s.now().UTC().Truncate(time.Microsecond) }
