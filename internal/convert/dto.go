// Package convert maps domain models to the JSON bodies of the HTTP API and back.
package convert

import (
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
)

// --- helpers ---

func ts(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

func tsPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ParseID parses a UUID supplied in field.
func ParseID(field, s string) (u.UUID, error) {
	id, err := u.FromString(s)
	if err != nil || id == u.Nil {
		return u.Nil, errs.Invalid(field, "must be a UUID")
	}
	return id, nil
}

// --- users / auth ---

// RegisterRequest is the body of user registration.
type RegisterRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	FullName string     `json:"fullName"`
	Role     model.Role `json:"role,omitempty"`
}

// LoginRequest is the body of login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SkillsRequest replaces the caller's skills.
type SkillsRequest struct {
	Skills []string `json:"skills"`
}

// User is the public account representation. Credentials never leave the server.
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	FullName  string     `json:"fullName"`
	Role      model.Role `json:"role"`
	Skills    []string   `json:"skills"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// ToUser converts a domain user.
func ToUser(m *model.User) User {
	return User{
		ID:        m.ID.String(),
		Username:  m.Username,
		FullName:  m.FullName,
		Role:      m.Role,
		Skills:    nonNil(m.Skills),
		CreatedAt: ts(m.CreatedAt),
	}
}

// Token is the login response.
type Token struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

// ToToken converts issued tokens and the logged-in user.
func ToToken(t model.Tokens, m *model.User) Token {
	return Token{AccessToken: t.AccessToken, TokenType: "Bearer", ExpiresAt: t.ExpiresAt.UTC(), User: ToUser(m)}
}

// --- jobs ---

// JobRequest is the body of job creation.
type JobRequest struct {
	Title           string          `json:"title"`
	Company         string          `json:"company"`
	Description     string          `json:"description"`
	Location        string          `json:"location"`
	JobType         string          `json:"jobType"`
	RequiredSkills  []string        `json:"requiredSkills"`
	PreferredSkills []string        `json:"preferredSkills"`
	Status          model.JobStatus `json:"status,omitempty"`
	Deadline        time.Time       `json:"deadline"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty"`
	MaxApplications int             `json:"maxApplications,omitempty"`
}

// FromJobRequest builds an unsaved job.
func FromJobRequest(in JobRequest) model.Job {
	j := model.Job{
		Title:           in.Title,
		Company:         in.Company,
		Description:     in.Description,
		Location:        in.Location,
		JobType:         in.JobType,
		RequiredSkills:  in.RequiredSkills,
		PreferredSkills: in.PreferredSkills,
		Status:          in.Status,
		Deadline:        in.Deadline,
		MaxApplications: in.MaxApplications,
	}
	if in.ExpiresAt != nil {
		j.ExpiresAt = *in.ExpiresAt
	}
	return j
}

// Job is a posting.
type Job struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Company           string          `json:"company"`
	Description       string          `json:"description,omitempty"`
	Location          string          `json:"location,omitempty"`
	JobType           string          `json:"jobType,omitempty"`
	RequiredSkills    []string        `json:"requiredSkills"`
	PreferredSkills   []string        `json:"preferredSkills"`
	Status            model.JobStatus `json:"status"`
	IsActive          bool            `json:"isActive"`
	Deadline          *time.Time      `json:"deadline"`
	ExpiresAt         *time.Time      `json:"expiresAt"`
	MaxApplications   int             `json:"maxApplications"`
	ApplicationsCount int             `json:"applicationsCount"`
	PostedBy          string          `json:"postedBy"`
	CreatedAt         *time.Time      `json:"createdAt,omitempty"`
}

// ToJob converts a domain job.
func ToJob(m *model.Job) Job {
	return Job{
		ID:                m.ID.String(),
		Title:             m.Title,
		Company:           m.Company,
		Description:       m.Description,
		Location:          m.Location,
		JobType:           m.JobType,
		RequiredSkills:    nonNil(m.RequiredSkills),
		PreferredSkills:   nonNil(m.PreferredSkills),
		Status:            m.Status,
		IsActive:          m.IsActive,
		Deadline:          ts(m.Deadline),
		ExpiresAt:         ts(m.ExpiresAt),
		MaxApplications:   m.MaxApplications,
		ApplicationsCount: m.ApplicationsCount,
		PostedBy:          m.PostedBy.String(),
		CreatedAt:         ts(m.CreatedAt),
	}
}

// ToJobs converts a slice of jobs.
func ToJobs(ms []model.Job) []Job {
	out := make([]Job, 0, len(ms))
	for i := range ms {
		out = append(out, ToJob(&ms[i]))
	}
	return out
}

// --- applications ---

// SubmitRequest is the body of application submission.
type SubmitRequest struct {
	JobID       string `json:"jobId"`
	CoverLetter string `json:"coverLetter"`
}

// TransitionRequest records one lifecycle event.
type TransitionRequest struct {
	Event   model.Event `json:"event"`
	Comment string      `json:"comment"`
}

// InterviewRequest schedules or reschedules an interview. Omitted fields keep
// their stored values.
type InterviewRequest struct {
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	Location        string     `json:"location,omitempty"`
	MeetingLink     string     `json:"meetingLink,omitempty"`
	Interviewer     string     `json:"interviewer,omitempty"`
	Comment         string     `json:"comment,omitempty"`
}

// FromInterviewRequest returns the details update and comment.
func FromInterviewRequest(in InterviewRequest) (model.InterviewDetails, string) {
	d := model.InterviewDetails{
		DurationMinutes: in.DurationMinutes,
		Location:        in.Location,
		MeetingLink:     in.MeetingLink,
		Interviewer:     in.Interviewer,
	}
	if in.ScheduledAt != nil {
		d.ScheduledAt = in.ScheduledAt.UTC()
	}
	return d, in.Comment
}

// OfferRequest records an offer.
type OfferRequest struct {
	model.OfferDetails
	Comment string `json:"comment,omitempty"`
}

// MentorApproval is the mentor gate decision.
type MentorApproval struct {
	MentorID  string               `json:"mentorId,omitempty"`
	Status    model.ApprovalStatus `json:"status"`
	Comment   string               `json:"comment,omitempty"`
	DecidedAt *time.Time           `json:"decidedAt,omitempty"`
}

// TimelineEvent is one history entry.
type TimelineEvent struct {
	Event    model.Event       `json:"event"`
	ActorID  string            `json:"actorId"`
	Comment  string            `json:"comment,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	At       time.Time         `json:"at"`
}

// ToTimeline converts timeline entries, preserving order.
func ToTimeline(evs []model.TimelineEvent) []TimelineEvent {
	out := make([]TimelineEvent, 0, len(evs))
	for _, e := range evs {
		out = append(out, TimelineEvent{
			Event:    e.Event,
			ActorID:  e.ActorID.String(),
			Comment:  e.Comment,
			Metadata: e.Metadata,
			At:       e.At.UTC(),
		})
	}
	return out
}

// Application is a candidacy with its history.
type Application struct {
	ID             string                  `json:"id"`
	JobID          string                  `json:"jobId"`
	StudentID      string                  `json:"studentId"`
	CoverLetter    string                  `json:"coverLetter,omitempty"`
	Status         model.Status            `json:"status"`
	IsActive       bool                    `json:"isActive"`
	MentorApproval MentorApproval          `json:"mentorApproval"`
	Interview      *model.InterviewDetails `json:"interviewDetails,omitempty"`
	Offer          *model.OfferDetails     `json:"offerDetails,omitempty"`
	Timeline       []TimelineEvent         `json:"timeline,omitempty"`
	CreatedAt      *time.Time              `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time              `json:"updatedAt,omitempty"`
}

// ToApplication converts a domain application.
func ToApplication(m *model.Application) Application {
	ma := MentorApproval{
		Status:    m.MentorApproval.Status,
		Comment:   m.MentorApproval.Comment,
		DecidedAt: tsPtr(m.MentorApproval.DecidedAt),
	}
	if m.MentorApproval.MentorID != nil {
		ma.MentorID = m.MentorApproval.MentorID.String()
	}
	var tl []TimelineEvent
	if len(m.Timeline) > 0 {
		tl = ToTimeline(m.Timeline)
	}
	return Application{
		ID:             m.ID.String(),
		JobID:          m.JobID.String(),
		StudentID:      m.StudentID.String(),
		CoverLetter:    m.CoverLetter,
		Status:         m.Status,
		IsActive:       m.IsActive,
		MentorApproval: ma,
		Interview:      m.Interview,
		Offer:          m.Offer,
		Timeline:       tl,
		CreatedAt:      ts(m.CreatedAt),
		UpdatedAt:      ts(m.UpdatedAt),
	}
}

// ToApplications converts a slice of applications.
func ToApplications(ms []model.Application) []Application {
	out := make([]Application, 0, len(ms))
	for i := range ms {
		out = append(out, ToApplication(&ms[i]))
	}
	return out
}

// --- certificates ---

// Feedback is the supervisor feedback body. Recommend is required.
type Feedback struct {
	Rating             int      `json:"rating"`
	Feedback           string   `json:"feedback"`
	SkillsDemonstrated []string `json:"skillsDemonstrated,omitempty"`
	Achievements       []string `json:"achievements,omitempty"`
	Recommend          *bool    `json:"recommend"`
}

// GenerateRequest is the body of certificate generation.
type GenerateRequest struct {
	ApplicationID      string   `json:"applicationId"`
	SupervisorFeedback Feedback `json:"supervisorFeedback"`
}

// FromGenerateRequest validates identifiers and required fields.
func FromGenerateRequest(in GenerateRequest) (u.UUID, model.SupervisorFeedback, error) {
	id, err := ParseID("applicationId", in.ApplicationID)
	if err != nil {
		return u.Nil, model.SupervisorFeedback{}, err
	}
	if in.SupervisorFeedback.Recommend == nil {
		return u.Nil, model.SupervisorFeedback{}, errs.Invalid("recommend", "required")
	}
	f := in.SupervisorFeedback
	return id, model.SupervisorFeedback{
		Rating:             f.Rating,
		Feedback:           f.Feedback,
		SkillsDemonstrated: f.SkillsDemonstrated,
		Achievements:       f.Achievements,
		Recommend:          *f.Recommend,
	}, nil
}

// Certificate is the issuer's view, including the verification code.
type Certificate struct {
	ID                 string                   `json:"id"`
	CertificateID      string                   `json:"certificateId"`
	VerificationCode   string                   `json:"verificationCode"`
	ApplicationID      string                   `json:"applicationId"`
	StudentID          string                   `json:"studentId"`
	JobID              string                   `json:"jobId"`
	SupervisorID       string                   `json:"supervisorId"`
	SupervisorFeedback model.SupervisorFeedback `json:"supervisorFeedback"`
	SignatureHash      string                   `json:"signatureHash"`
	IssuedAt           time.Time                `json:"issuedAt"`
	ValidUntil         time.Time                `json:"validUntil"`
	IsActive           bool                     `json:"isActive"`
	RevokedAt          *time.Time               `json:"revokedAt,omitempty"`
	PDFURL             string                   `json:"pdfUrl,omitempty"`
	QRCodeURL          string                   `json:"qrCodeUrl,omitempty"`
}

// ToCertificate converts a domain certificate.
func ToCertificate(m *model.Certificate) Certificate {
	return Certificate{
		ID:                 m.ID.String(),
		CertificateID:      m.CertificateID,
		VerificationCode:   m.VerificationCode,
		ApplicationID:      m.ApplicationID.String(),
		StudentID:          m.StudentID.String(),
		JobID:              m.JobID.String(),
		SupervisorID:       m.SupervisorID.String(),
		SupervisorFeedback: m.Feedback,
		SignatureHash:      m.SignatureHash,
		IssuedAt:           m.IssuedAt.UTC(),
		ValidUntil:         m.ValidUntil.UTC(),
		IsActive:           m.IsActive,
		RevokedAt:          tsPtr(m.RevokedAt),
		PDFURL:             m.PDFURL,
		QRCodeURL:          m.QRCodeURL,
	}
}

// PublicCertificate is what anyone holding the verification code may see.
// It carries no internal identifiers and no contact data.
type PublicCertificate struct {
	CertificateID      string                   `json:"certificateId"`
	StudentName        string                   `json:"studentName"`
	JobTitle           string                   `json:"jobTitle"`
	Company            string                   `json:"company"`
	SupervisorFeedback model.SupervisorFeedback `json:"supervisorFeedback"`
	IssuedAt           time.Time                `json:"issuedAt"`
	ValidUntil         time.Time                `json:"validUntil"`
	RevokedAt          *time.Time               `json:"revokedAt,omitempty"`
	PDFURL             string                   `json:"pdfUrl,omitempty"`
	QRCodeURL          string                   `json:"qrCodeUrl,omitempty"`
}

// ToPublicCertificate strips a view down to its public fields.
func ToPublicCertificate(v *model.CertificateView) PublicCertificate {
	return PublicCertificate{
		CertificateID:      v.CertificateID,
		StudentName:        v.StudentName,
		JobTitle:           v.JobTitle,
		Company:            v.Company,
		SupervisorFeedback: v.Feedback,
		IssuedAt:           v.IssuedAt.UTC(),
		ValidUntil:         v.ValidUntil.UTC(),
		RevokedAt:          tsPtr(v.RevokedAt),
		PDFURL:             v.PDFURL,
		QRCodeURL:          v.QRCodeURL,
	}
}

// Verification is the public verification result.
type Verification struct {
	Valid          bool               `json:"valid"`
	IntegrityOK    bool               `json:"integrityOk"`
	CurrentlyValid bool               `json:"currentlyValid"`
	Reason         model.VerifyReason `json:"reason"`
	CheckedAt      time.Time          `json:"checkedAt"`
	Certificate    PublicCertificate  `json:"certificate"`
}

// ToVerification converts a verification outcome.
func ToVerification(v *model.Verification) Verification {
	return Verification{
		Valid:          v.IntegrityOK && v.CurrentlyValid,
		IntegrityOK:    v.IntegrityOK,
		CurrentlyValid: v.CurrentlyValid,
		Reason:         v.Reason,
		CheckedAt:      v.CheckedAt.UTC(),
		Certificate:    ToPublicCertificate(&v.View),
	}
}

// --- assistance ---

// ChatRequest is a message to the career assistant.
type ChatRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// ResumeRequest points at an uploaded resume.
type ResumeRequest struct {
	ResumeURL string `json:"resumeUrl"`
}

// Error is the body of every failed request.
type Error struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
