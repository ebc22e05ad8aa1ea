package lifecycle

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
)

func newApp(status model.Status) (*model.Application, model.Actor) {
	student := model.Actor{ID: uuid.Must(uuid.NewV4()), Role: model.RoleStudent}
	return &model.Application{
		ID:        uuid.Must(uuid.NewV4()),
		StudentID: student.ID,
		Status:    status,
		IsActive:  true,
		Timeline:  []model.TimelineEvent{{Event: model.EventApplied, ActorID: student.ID}},
		MentorApproval: model.MentorApproval{
			Status: model.ApprovalPending,
		},
	}, student
}

func actor(r model.Role) model.Actor {
	return model.Actor{ID: uuid.Must(uuid.NewV4()), Role: r}
}

func TestRules_EveryTransitionEventHasAnAuthorizedParty(t *testing.T) {
	t.Parallel()

	for ev := model.Event(0); ev < model.EventCount; ev++ {
		r := rules[ev]
		if ev == model.EventApplied {
			require.Zero(t, r.roles, "applied must not be recordable by Transition")
			require.False(t, r.owner)
			continue
		}
		require.True(t, r.roles != 0 || r.owner, "event %s has nobody allowed", ev)
	}
}

func TestTransition_RoleTable(t *testing.T) {
	t.Parallel()
	now := time.Now()

	type tc struct {
		ev      model.Event
		allowed []model.Role
	}
	cases := []tc{
		{model.EventMentorApproved, []model.Role{model.RoleMentor}},
		{model.EventMentorRejected, []model.Role{model.RoleMentor}},
		{model.EventShortlisted, []model.Role{model.RolePlacement, model.RoleRecruiter, model.RoleAdmin}},
		{model.EventInterviewCompleted, []model.Role{model.RolePlacement, model.RoleRecruiter, model.RoleAdmin}},
		{model.EventOfferMade, []model.Role{model.RolePlacement, model.RoleRecruiter, model.RoleAdmin}},
		{model.EventRejected, []model.Role{model.RolePlacement, model.RoleRecruiter, model.RoleAdmin}},
	}
	all := []model.Role{model.RoleStudent, model.RoleMentor, model.RolePlacement, model.RoleRecruiter, model.RoleAdmin}

	for _, c := range cases {
		for _, r := range all {
			app, _ := newApp(model.StatusApplied)
			_, err := Transition(app, actor(r), c.ev, "", now)
			want := false
			for _, a := range c.allowed {
				if a == r {
					want = true
				}
			}
			if want {
				require.NoError(t, err, "%s by %s", c.ev, r)
			} else {
				require.ErrorIs(t, err, errs.ErrForbidden, "%s by %s", c.ev, r)
			}
		}
	}
}

func TestTransition_StudentShortlistForbidden(t *testing.T) {
	t.Parallel()
	app, student := newApp(model.StatusApplied)

	_, err := Transition(app, student, model.EventShortlisted, "", time.Now())
	require.ErrorIs(t, err, errs.ErrForbidden)
}

func TestTransition_MentorApprovalSetsSubRecord(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	app, _ := newApp(model.StatusMentorApprovalPending)
	mentor := actor(model.RoleMentor)

	tr, err := Transition(app, mentor, model.EventMentorApproved, "solid profile", now)
	require.NoError(t, err)
	require.NotNil(t, tr.MentorApproval)
	require.Equal(t, model.ApprovalApproved, tr.MentorApproval.Status)
	require.Equal(t, mentor.ID, *tr.MentorApproval.MentorID)
	require.Equal(t, "solid profile", tr.MentorApproval.Comment)
	require.Equal(t, now, *tr.MentorApproval.DecidedAt)

	app.Apply(tr)
	require.Equal(t, model.StatusMentorApproved, app.Status)
	require.Equal(t, model.ApprovalApproved, app.MentorApproval.Status)
	require.Equal(t, model.EventMentorApproved, app.Timeline[len(app.Timeline)-1].Event)

	app2, _ := newApp(model.StatusMentorApprovalPending)
	tr, err = Transition(app2, mentor, model.EventMentorRejected, "", now)
	require.NoError(t, err)
	require.Equal(t, model.ApprovalRejected, tr.MentorApproval.Status)
}

func TestTransition_TerminalStatesRejectEverything(t *testing.T) {
	t.Parallel()
	now := time.Now()
	terminal := []model.Status{model.StatusOfferAccepted, model.StatusOfferRejected, model.StatusRejected, model.StatusWithdrawn}

	for _, st := range terminal {
		for ev := model.EventMentorApprovalPending; ev < model.EventCount; ev++ {
			app, student := newApp(st)
			var who model.Actor
			switch {
			case rules[ev].roles.has(model.RoleAdmin):
				who = actor(model.RoleAdmin)
			case rules[ev].roles.has(model.RoleMentor):
				who = actor(model.RoleMentor)
			default:
				who = student
			}
			_, err := Transition(app, who, ev, "x", now)
			require.ErrorIs(t, err, errs.ErrInvalidTransition, "%s from %s", ev, st)
		}
	}
}

func TestTransition_WithdrawnOnlyByOwner(t *testing.T) {
	t.Parallel()
	now := time.Now()
	app, student := newApp(model.StatusShortlisted)

	_, err := Transition(app, actor(model.RoleStudent), model.EventWithdrawn, "", now)
	require.ErrorIs(t, err, errs.ErrForbidden, "other student")

	_, err = Transition(app, actor(model.RoleAdmin), model.EventWithdrawn, "", now)
	require.ErrorIs(t, err, errs.ErrForbidden, "admin cannot withdraw for the student")

	tr, err := Transition(app, student, model.EventWithdrawn, "found another offer", now)
	require.NoError(t, err)
	require.True(t, tr.Deactivate)
}

func TestTransition_OfferResponseRequiresOfferMade(t *testing.T) {
	t.Parallel()
	now := time.Now()

	app, student := newApp(model.StatusShortlisted)
	_, err := Transition(app, student, model.EventOfferAccepted, "", now)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	app, student = newApp(model.StatusOfferMade)
	tr, err := Transition(app, student, model.EventOfferAccepted, "", now)
	require.NoError(t, err)
	app.Apply(tr)
	require.Equal(t, model.StatusOfferAccepted, app.Status)
}

func TestTransition_Validation(t *testing.T) {
	t.Parallel()
	now := time.Now()
	app, _ := newApp(model.StatusApplied)
	admin := actor(model.RoleAdmin)

	_, err := Transition(app, admin, model.EventApplied, "", now)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = Transition(app, admin, model.EventCount, "", now)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = Transition(app, admin, model.EventShortlisted, strings.Repeat("é", MaxCommentLen+1), now)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = Transition(app, admin, model.EventShortlisted, strings.Repeat("é", MaxCommentLen), now)
	require.NoError(t, err, "limit counts characters, not bytes")

	_, err = Transition(app, admin, model.EventNote, "", now)
	require.ErrorIs(t, err, errs.ErrValidation)

	tr, err := Transition(app, admin, model.EventNote, "called the candidate", now)
	require.NoError(t, err)
	app.Apply(tr)
	require.Equal(t, model.StatusApplied, app.Status)
}

func TestTransition_StatusAlwaysMatchesLastStatusEvent(t *testing.T) {
	t.Parallel()
	now := time.Now()
	app, student := newApp(model.StatusApplied)
	admin, mentor := actor(model.RoleAdmin), actor(model.RoleMentor)

	steps := []struct {
		who model.Actor
		ev  model.Event
	}{
		{student, model.EventMentorApprovalPending},
		{mentor, model.EventMentorApproved},
		{admin, model.EventNote},
		{admin, model.EventShortlisted},
		{admin, model.EventInterviewScheduled},
		{admin, model.EventInterviewCompleted},
		{admin, model.EventOfferMade},
		{student, model.EventOfferRejected},
	}
	for _, s := range steps {
		tr, err := Transition(app, s.who, s.ev, "step", now)
		require.NoError(t, err, s.ev.String())
		app.Apply(tr)

		var last model.Event
		for _, ev := range app.Timeline {
			if ev.Event.CarriesStatus() {
				last = ev.Event
			}
		}
		require.Equal(t, last.Status(), app.Status)
	}
	require.Len(t, app.Timeline, len(steps)+1)
	require.True(t, app.Status.Terminal())
}

func TestScheduleInterview(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	staffer := actor(model.RolePlacement)
	at := now.Add(48 * time.Hour).Truncate(time.Second)

	app, _ := newApp(model.StatusApplied)
	_, err := ScheduleInterview(app, staffer, model.InterviewDetails{ScheduledAt: at}, "", now)
	require.ErrorIs(t, err, errs.ErrInvalidTransition, "not yet approved or shortlisted")

	app, student := newApp(model.StatusShortlisted)
	_, err = ScheduleInterview(app, student, model.InterviewDetails{ScheduledAt: at}, "", now)
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = ScheduleInterview(app, staffer, model.InterviewDetails{}, "", now)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = ScheduleInterview(app, staffer, model.InterviewDetails{ScheduledAt: now.Add(-time.Hour)}, "", now)
	require.ErrorIs(t, err, errs.ErrValidation)

	tr, err := ScheduleInterview(app, staffer, model.InterviewDetails{ScheduledAt: at, Location: "Hall B", DurationMinutes: 30}, "", now)
	require.NoError(t, err)
	require.Equal(t, at.Format(time.RFC3339), tr.Event.Metadata["scheduledAt"])
	app.Apply(tr)
	require.Equal(t, model.StatusInterviewScheduled, app.Status)

	// reschedule merges and keeps the location
	tr, err = ScheduleInterview(app, staffer, model.InterviewDetails{MeetingLink: "https://meet.example/x"}, "moved online", now)
	require.NoError(t, err)
	app.Apply(tr)
	require.Equal(t, "Hall B", app.Interview.Location)
	require.Equal(t, "https://meet.example/x", app.Interview.MeetingLink)
	require.Equal(t, at, app.Interview.ScheduledAt)

	term, _ := newApp(model.StatusRejected)
	_, err = ScheduleInterview(term, staffer, model.InterviewDetails{ScheduledAt: at}, "", now)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestMakeOffer(t *testing.T) {
	t.Parallel()
	now := time.Now()
	recruiter := actor(model.RoleRecruiter)

	app, student := newApp(model.StatusInterviewCompleted)
	_, err := MakeOffer(app, recruiter, model.OfferDetails{}, "", now)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = MakeOffer(app, student, model.OfferDetails{Position: "SDE"}, "", now)
	require.ErrorIs(t, err, errs.ErrForbidden)

	tr, err := MakeOffer(app, recruiter, model.OfferDetails{Position: "SDE", Salary: 1200000, Currency: "INR"}, "", now)
	require.NoError(t, err)
	app.Apply(tr)
	require.Equal(t, model.StatusOfferMade, app.Status)
	require.Equal(t, "SDE", app.Offer.Position)

	_, err = MakeOffer(app, recruiter, model.OfferDetails{Position: "SDE II"}, "", now)
	require.True(t, errors.Is(err, errs.ErrInvalidState), "offer populated once")
}

func TestCanView(t *testing.T) {
	t.Parallel()
	app, owner := newApp(model.StatusApplied)

	require.True(t, CanView(app, owner))
	require.False(t, CanView(app, actor(model.RoleStudent)))
	for _, r := range []model.Role{model.RoleMentor, model.RolePlacement, model.RoleRecruiter, model.RoleAdmin} {
		require.True(t, CanView(app, actor(r)), r)
	}
	require.False(t, CanView(app, model.Actor{ID: owner.ID, Role: "guest"}))
}
