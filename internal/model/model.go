// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the authorization role carried by an authenticated actor.
type Role string

const (
	RoleStudent   Role = "student"
	RoleMentor    Role = "mentor"
	RolePlacement Role = "placement" // placement cell staff
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleMentor, RolePlacement, RoleRecruiter, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated user on whose behalf an operation runs.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	FullName  string
	Role      Role
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-user auth salt
	Skills    []string
	CreatedAt time.Time
}

// JobStatus is the publication state of a job posting.
type JobStatus string

const (
	JobDraft     JobStatus = "draft"
	JobPublished JobStatus = "published"
	JobClosed    JobStatus = "closed"
)

// Job is a posting students apply to.
type Job struct {
	ID                uuid.UUID
	Title             string
	Company           string
	Description       string
	Location          string
	JobType           string
	RequiredSkills    []string
	PreferredSkills   []string
	Status            JobStatus
	IsActive          bool
	Deadline          time.Time
	ExpiresAt         time.Time
	MaxApplications   int
	ApplicationsCount int
	PostedBy          uuid.UUID
	CreatedAt         time.Time
}

// AcceptingApplications reports whether a submission at now may be accepted.
func (j *Job) AcceptingApplications(now time.Time) bool {
	return j.Status == JobPublished &&
		j.IsActive &&
		j.Deadline.After(now) &&
		j.ExpiresAt.After(now) &&
		j.ApplicationsCount < j.MaxApplications
}
