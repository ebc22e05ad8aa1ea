// Package lifecycle decides application state transitions.
//
// Every function here is pure: it inspects an application snapshot and an
// actor and returns a model.Transition to be committed atomically by the
// repository, or an error. Nothing in this package performs I/O.
package lifecycle

import (
	"time"
	"unicode/utf8"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
)

// MaxCommentLen is the maximum comment length in characters.
const MaxCommentLen = 500

// ScheduleLeeway tolerates small clock skew for "present" interview times.
const ScheduleLeeway = time.Minute

type roleSet uint8

func roles(rs ...model.Role) roleSet {
	var s roleSet
	for _, r := range rs {
		s |= roleBit(r)
	}
	return s
}

func roleBit(r model.Role) roleSet {
	switch r {
	case model.RoleStudent:
		return 1 << 0
	case model.RoleMentor:
		return 1 << 1
	case model.RolePlacement:
		return 1 << 2
	case model.RoleRecruiter:
		return 1 << 3
	case model.RoleAdmin:
		return 1 << 4
	}
	return 0
}

func (s roleSet) has(r model.Role) bool { return s&roleBit(r) != 0 }

// rule describes who may record an event and from where.
type rule struct {
	roles        roleSet        // roles allowed regardless of ownership
	owner        bool           // the owning student is allowed
	from         []model.Status // if set, the current status must be one of these
	needsComment bool
	deactivate   bool
}

var staff = roles(model.RolePlacement, model.RoleRecruiter, model.RoleAdmin)

// rules is indexed by event; EventApplied has no rule because it is only
// recorded by submission.
var rules = [model.EventCount]rule{
	model.EventMentorApprovalPending: {roles: roles(model.RolePlacement, model.RoleAdmin), owner: true},
	model.EventMentorApproved:        {roles: roles(model.RoleMentor)},
	model.EventMentorRejected:        {roles: roles(model.RoleMentor)},
	model.EventShortlisted:           {roles: staff},
	model.EventInterviewScheduled:    {roles: staff, from: interviewFrom},
	model.EventInterviewCompleted:    {roles: staff},
	model.EventOfferMade:             {roles: staff},
	model.EventOfferAccepted:         {owner: true, from: []model.Status{model.StatusOfferMade}},
	model.EventOfferRejected:         {owner: true, from: []model.Status{model.StatusOfferMade}},
	model.EventRejected:              {roles: staff},
	model.EventWithdrawn:             {owner: true, deactivate: true},
	model.EventNote:                  {roles: roles(model.RoleMentor, model.RolePlacement, model.RoleRecruiter, model.RoleAdmin), needsComment: true},
}

// interviewFrom lists the statuses from which an interview may be (re)scheduled.
var interviewFrom = []model.Status{
	model.StatusMentorApproved,
	model.StatusShortlisted,
	model.StatusInterviewScheduled,
}

// Allowed reports whether actor may record ev on app, ignoring state.
func Allowed(app *model.Application, actor model.Actor, ev model.Event) bool {
	if ev >= model.EventCount {
		return false
	}
	r := rules[ev]
	if r.roles.has(actor.Role) {
		return true
	}
	return r.owner && isOwner(app, actor)
}

// CanView reports whether actor may read app and its timeline.
func CanView(app *model.Application, actor model.Actor) bool {
	if actor.Role == model.RoleStudent {
		return isOwner(app, actor)
	}
	return actor.Role.Valid()
}

func isOwner(app *model.Application, actor model.Actor) bool {
	return actor.Role == model.RoleStudent && actor.ID == app.StudentID
}

// Transition decides recording ev by actor on app at now.
func Transition(app *model.Application, actor model.Actor, ev model.Event, comment string, now time.Time) (model.Transition, error) {
	if ev == model.EventApplied {
		return model.Transition{}, errs.Invalid("event", "%s is recorded on submission only", ev)
	}
	if ev >= model.EventCount {
		return model.Transition{}, errs.Invalid("event", "unknown event")
	}
	if err := checkComment(comment); err != nil {
		return model.Transition{}, err
	}
	r := rules[ev]
	if r.needsComment && comment == "" {
		return model.Transition{}, errs.Invalid("comment", "required for %s", ev)
	}
	if !Allowed(app, actor, ev) {
		return model.Transition{}, errs.ErrForbidden
	}
	if err := checkState(app, r.from); err != nil {
		return model.Transition{}, err
	}

	t := model.Transition{
		Event:      timelineEvent(ev, actor, comment, now),
		Deactivate: r.deactivate,
	}
	switch ev {
	case model.EventMentorApproved, model.EventMentorRejected:
		status := model.ApprovalApproved
		if ev == model.EventMentorRejected {
			status = model.ApprovalRejected
		}
		mentorID, decided := actor.ID, now
		t.MentorApproval = &model.MentorApproval{
			MentorID:  &mentorID,
			Status:    status,
			Comment:   comment,
			DecidedAt: &decided,
		}
	}
	return t, nil
}

// ScheduleInterview decides (re)scheduling an interview. The stored details
// are merged with upd, and status moves to interview_scheduled.
func ScheduleInterview(app *model.Application, actor model.Actor, upd model.InterviewDetails, comment string, now time.Time) (model.Transition, error) {
	if err := checkComment(comment); err != nil {
		return model.Transition{}, err
	}
	if upd.DurationMinutes < 0 {
		return model.Transition{}, errs.Invalid("duration", "must not be negative")
	}
	var cur model.InterviewDetails
	if app.Interview != nil {
		cur = *app.Interview
	}
	merged := cur.Merge(upd)
	if merged.ScheduledAt.IsZero() {
		return model.Transition{}, errs.Invalid("scheduledAt", "required")
	}
	if !upd.ScheduledAt.IsZero() && upd.ScheduledAt.Before(now.Add(-ScheduleLeeway)) {
		return model.Transition{}, errs.Invalid("scheduledAt", "must not be in the past")
	}
	if !Allowed(app, actor, model.EventInterviewScheduled) {
		return model.Transition{}, errs.ErrForbidden
	}
	if err := checkState(app, interviewFrom); err != nil {
		return model.Transition{}, err
	}

	ev := timelineEvent(model.EventInterviewScheduled, actor, comment, now)
	ev.Metadata = map[string]string{"scheduledAt": merged.ScheduledAt.UTC().Format(time.RFC3339)}
	return model.Transition{Event: ev, Interview: &merged}, nil
}

// MakeOffer decides recording an offer. Offer details are populated once.
func MakeOffer(app *model.Application, actor model.Actor, offer model.OfferDetails, comment string, now time.Time) (model.Transition, error) {
	if err := checkComment(comment); err != nil {
		return model.Transition{}, err
	}
	if offer.Position == "" {
		return model.Transition{}, errs.Invalid("position", "required")
	}
	if offer.Salary < 0 {
		return model.Transition{}, errs.Invalid("salary", "must not be negative")
	}
	if !Allowed(app, actor, model.EventOfferMade) {
		return model.Transition{}, errs.ErrForbidden
	}
	if err := checkState(app, nil); err != nil {
		return model.Transition{}, err
	}
	if app.Offer != nil {
		return model.Transition{}, errs.ErrInvalidState
	}
	ev := timelineEvent(model.EventOfferMade, actor, comment, now)
	ev.Metadata = map[string]string{"position": offer.Position}
	return model.Transition{Event: ev, Offer: &offer}, nil
}

func checkComment(comment string) error {
	if utf8.RuneCountInString(comment) > MaxCommentLen {
		return errs.Invalid("comment", "at most %d characters", MaxCommentLen)
	}
	return nil
}

func checkState(app *model.Application, from []model.Status) error {
	if app.Status.Terminal() {
		return errs.ErrInvalidTransition
	}
	if len(from) == 0 {
		return nil
	}
	for _, s := range from {
		if app.Status == s {
			return nil
		}
	}
	return errs.ErrInvalidTransition
}

func timelineEvent(ev model.Event, actor model.Actor, comment string, now time.Time) model.TimelineEvent {
	return model.TimelineEvent{
		Event:   ev,
		ActorID: actor.ID,
		Comment: comment,
		At:      now,
	}
}
