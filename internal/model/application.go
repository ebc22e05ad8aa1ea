package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Status is the lifecycle state of an application.
type Status string

const (
	StatusApplied               Status = "applied"
	StatusMentorApprovalPending Status = "mentor_approval_pending"
	StatusMentorApproved        Status = "mentor_approved"
	StatusMentorRejected        Status = "mentor_rejected"
	StatusShortlisted           Status = "shortlisted"
	StatusInterviewScheduled    Status = "interview_scheduled"
	StatusInterviewCompleted    Status = "interview_completed"
	StatusOfferMade             Status = "offer_made"
	StatusOfferAccepted         Status = "offer_accepted"
	StatusOfferRejected         Status = "offer_rejected"
	StatusRejected              Status = "rejected"
	StatusWithdrawn             Status = "withdrawn"
)

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusOfferAccepted, StatusOfferRejected, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// CertificateStatuses are the statuses an application must be in to be certified.
var CertificateStatuses = []Status{StatusOfferAccepted, StatusInterviewCompleted}

// Certifiable reports whether a certificate may be issued from s.
func (s Status) Certifiable() bool {
	for _, c := range CertificateStatuses {
		if s == c {
			return true
		}
	}
	return false
}

// Event is a timeline event kind. The set is closed; see EventCount.
type Event uint8

const (
	EventApplied Event = iota
	EventMentorApprovalPending
	EventMentorApproved
	EventMentorRejected
	EventShortlisted
	EventInterviewScheduled
	EventInterviewCompleted
	EventOfferMade
	EventOfferAccepted
	EventOfferRejected
	EventRejected
	EventWithdrawn
	EventNote // informational, never changes status

	EventCount
)

var eventNames = [EventCount]string{
	EventApplied:               string(StatusApplied),
	EventMentorApprovalPending: string(StatusMentorApprovalPending),
	EventMentorApproved:        string(StatusMentorApproved),
	EventMentorRejected:        string(StatusMentorRejected),
	EventShortlisted:           string(StatusShortlisted),
	EventInterviewScheduled:    string(StatusInterviewScheduled),
	EventInterviewCompleted:    string(StatusInterviewCompleted),
	EventOfferMade:             string(StatusOfferMade),
	EventOfferAccepted:         string(StatusOfferAccepted),
	EventOfferRejected:         string(StatusOfferRejected),
	EventRejected:              string(StatusRejected),
	EventWithdrawn:             string(StatusWithdrawn),
	EventNote:                  "note",
}

func (e Event) String() string {
	if e < EventCount {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

// ParseEvent maps the wire name back to an Event.
func ParseEvent(s string) (Event, error) {
	for i, n := range eventNames {
		if n == s {
			return Event(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (e Event) MarshalText() ([]byte, error) {
	if e >= EventCount {
		return nil, fmt.Errorf("unknown event %d", uint8(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Event) UnmarshalText(b []byte) error {
	v, err := ParseEvent(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// CarriesStatus reports whether recording e overwrites the application status.
func (e Event) CarriesStatus() bool { return e < EventNote }

// Status returns the status e sets. Only meaningful when CarriesStatus is true.
func (e Event) Status() Status { return Status(e.String()) }

// TimelineEvent is one immutable entry in an application's history.
type TimelineEvent struct {
	Seq      int64 // storage order
	Event    Event
	ActorID  uuid.UUID
	Comment  string
	Metadata map[string]string
	At       time.Time
}

// ApprovalStatus is the mentor's decision on an application.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// MentorApproval records the mentor gate decision.
type MentorApproval struct {
	MentorID  *uuid.UUID
	Status    ApprovalStatus
	Comment   string
	DecidedAt *time.Time
}

// InterviewDetails is populated by interview scheduling and merged on reschedule.
type InterviewDetails struct {
	ScheduledAt     time.Time `json:"scheduledAt"`
	DurationMinutes int       `json:"durationMinutes,omitempty"`
	Location        string    `json:"location,omitempty"`
	MeetingLink     string    `json:"meetingLink,omitempty"`
	Interviewer     string    `json:"interviewer,omitempty"`
}

// Merge overlays the non-zero fields of upd onto d.
func (d InterviewDetails) Merge(upd InterviewDetails) InterviewDetails {
	if !upd.ScheduledAt.IsZero() {
		d.ScheduledAt = upd.ScheduledAt
	}
	if upd.DurationMinutes != 0 {
		d.DurationMinutes = upd.DurationMinutes
	}
	if upd.Location != "" {
		d.Location = upd.Location
	}
	if upd.MeetingLink != "" {
		d.MeetingLink = upd.MeetingLink
	}
	if upd.Interviewer != "" {
		d.Interviewer = upd.Interviewer
	}
	return d
}

// OfferDetails is populated once when an offer is made.
type OfferDetails struct {
	Position    string     `json:"position"`
	Salary      float64    `json:"salary,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	JoiningDate *time.Time `json:"joiningDate,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Application is one student's candidacy for one job.
type Application struct {
	ID             uuid.UUID
	JobID          uuid.UUID
	StudentID      uuid.UUID
	CoverLetter    string
	Status         Status
	Timeline       []TimelineEvent
	MentorApproval MentorApproval
	Interview      *InterviewDetails
	Offer          *OfferDetails
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transition is a decided, not yet persisted change to an application.
// It is produced by the lifecycle package and committed as one write.
type Transition struct {
	Event          TimelineEvent
	MentorApproval *MentorApproval
	Interview      *InterviewDetails
	Offer          *OfferDetails
	Deactivate     bool
}

// Apply commits t to a in memory. It is the only writer of Status and Timeline.
func (a *Application) Apply(t Transition) {
	a.Timeline = append(a.Timeline, t.Event)
	if t.Event.Event.CarriesStatus() {
		a.Status = t.Event.Event.Status()
	}
	if t.MentorApproval != nil {
		a.MentorApproval = *t.MentorApproval
	}
	if t.Interview != nil {
		iv := *t.Interview
		a.Interview = &iv
	}
	if t.Offer != nil {
		of := *t.Offer
		a.Offer = &of
	}
	if t.Deactivate {
		a.IsActive = false
	}
	a.UpdatedAt = t.Event.At
}
