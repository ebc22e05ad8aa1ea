package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// SupervisorFeedback is supplied once at certificate issuance.
type SupervisorFeedback struct {
	Rating             int      `json:"rating"`
	Feedback           string   `json:"feedback"`
	SkillsDemonstrated []string `json:"skillsDemonstrated,omitempty"`
	Achievements       []string `json:"achievements,omitempty"`
	Recommend          bool     `json:"recommend"`
}

// Certificate is a tamper-evident proof of a finalized application.
type Certificate struct {
	ID               uuid.UUID // storage PK
	CertificateID    string    // human-readable, unique
	VerificationCode string    // random, unique, public lookup key
	ApplicationID    uuid.UUID // unique: one certificate per application
	StudentID        uuid.UUID
	JobID            uuid.UUID
	SupervisorID     uuid.UUID
	Feedback         SupervisorFeedback
	SignatureHash    string // hex SHA-256 over the canonical field set
	IssuedAt         time.Time
	ValidUntil       time.Time
	IsActive         bool
	RevokedAt        *time.Time
	PDFURL           string
	QRCodeURL        string
}

// CertificateView is a certificate joined with the display names needed
// for public verification and rendering.
type CertificateView struct {
	Certificate
	StudentName string
	JobTitle    string
	Company     string
}

// VerifyReason explains a verification outcome.
type VerifyReason string

const (
	ReasonValid       VerifyReason = "valid"
	ReasonTampered    VerifyReason = "tampered"
	ReasonRevoked     VerifyReason = "revoked"
	ReasonExpired     VerifyReason = "expired"
	ReasonNotYetValid VerifyReason = "not_yet_valid"
)

// Verification is the result of a public certificate check.
type Verification struct {
	View           CertificateView
	IntegrityOK    bool
	CurrentlyValid bool
	Reason         VerifyReason
	CheckedAt      time.Time
}
