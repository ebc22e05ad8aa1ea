package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/placement/internal/aiclient"
	pkgcrypto "github.com/and161185/placement/internal/crypto"
	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/events"
	"github.com/and161185/placement/internal/metrics"
	"github.com/and161185/placement/internal/model"
	"github.com/and161185/placement/internal/repository"
)

// Feedback and validity bounds.
const (
	MinRating           = 1
	MaxRating           = 5
	MinFeedbackLen      = 10
	MaxFeedbackLen      = 1000
	CertificateValidFor = 365 * 24 * time.Hour

	issueAttempts = 3
)

// Renderer produces certificate artifacts. *aiclient.Client implements it.
type Renderer interface {
	RenderCertificate(ctx context.Context, r aiclient.RenderRequest) (*aiclient.Artifacts, error)
}

// CertificateService issues, verifies and revokes certificates.
type CertificateService struct {
	apps   repository.ApplicationRepository
	certs  repository.CertificateRepository
	render Renderer
	pub    events.Publisher
	met    *metrics.Metrics
	log    *zap.Logger
	now    func() time.Time
}

// NewCertificateService wires the issuer. render, pub and met may be nil.
func NewCertificateService(apps repository.ApplicationRepository, certs repository.CertificateRepository,
	render Renderer, pub events.Publisher, met *metrics.Metrics, log *zap.Logger) *CertificateService {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CertificateService{apps: apps, certs: certs, render: render, pub: pub, met: met, log: log, now: time.Now}
}

// ValidateFeedback checks supervisor feedback bounds.
func ValidateFeedback(f model.SupervisorFeedback) error {
	if f.Rating < MinRating || f.Rating > MaxRating {
		return errs.Invalid("rating", "must be between %d and %d", MinRating, MaxRating)
	}
	n := utf8.RuneCountInString(strings.TrimSpace(f.Feedback))
	if n < MinFeedbackLen || n > MaxFeedbackLen {
		return errs.Invalid("feedback", "must be %d to %d characters", MinFeedbackLen, MaxFeedbackLen)
	}
	return nil
}

// Generate issues the certificate for a finalized application. The
// supervisor is the acting staff member. Rendering is best effort: a
// failed render leaves the certificate without artifacts.
func (s *CertificateService) Generate(ctx context.Context, actor model.Actor, appID uuid.UUID, fb model.SupervisorFeedback) (*model.Certificate, error) {
	switch actor.Role {
	case model.RolePlacement, model.RoleRecruiter, model.RoleAdmin:
	default:
		return nil, errs.ErrForbidden
	}
	if err := ValidateFeedback(fb); err != nil {
		return nil, err
	}
	app, err := s.apps.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	// Checked again by Create against the locked row.
	if !app.Status.Certifiable() {
		return nil, errs.ErrInvalidState
	}

	var c *model.Certificate
	for attempt := 1; ; attempt++ {
		c, err = s.issue(app, actor.ID, fb)
		if err != nil {
			return nil, err
		}
		err = s.certs.Create(ctx, c)
		if err == nil {
			break
		}
		if !errors.Is(err, errs.ErrCollision) || attempt == issueAttempts {
			return nil, err
		}
		s.log.Warn("certificate identifier collision, retrying", zap.Int("attempt", attempt))
	}

	s.attachArtifacts(ctx, c)
	s.met.CertificateIssued()
	s.publish(ctx, events.Event{
		Type:       events.CertificateIssued,
		Key:        app.ID.String(),
		ActorID:    actor.ID,
		OccurredAt: c.IssuedAt,
		Data:       map[string]string{"certificateId": c.CertificateID, "studentId": c.StudentID.String()},
	})
	return c, nil
}

// issue builds and signs a new certificate.
func (s *CertificateService) issue(app *model.Application, supervisor uuid.UUID, fb model.SupervisorFeedback) (*model.Certificate, error) {
	// Postgres keeps microseconds; the hash must survive a round trip.
	now := s.now().UTC().Truncate(time.Microsecond)
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	certID, err := pkgcrypto.NewCertificateID(now)
	if err != nil {
		return nil, err
	}
	code, err := pkgcrypto.NewVerificationCode()
	if err != nil {
		return nil, err
	}
	fb.Feedback = strings.TrimSpace(fb.Feedback)
	c := &model.Certificate{
		ID:               id,
		CertificateID:    certID,
		VerificationCode: code,
		ApplicationID:    app.ID,
		StudentID:        app.StudentID,
		JobID:            app.JobID,
		SupervisorID:     supervisor,
		Feedback:         fb,
		IssuedAt:         now,
		ValidUntil:       now.Add(CertificateValidFor),
		IsActive:         true,
	}
	pkgcrypto.SignCertificate(c)
	return c, nil
}

func (s *CertificateService) attachArtifacts(ctx context.Context, c *model.Certificate) {
	if s.render == nil {
		return
	}
	v, err := s.certs.GetView(ctx, c.CertificateID)
	if err != nil {
		s.log.Warn("load certificate for rendering", zap.String("certificateId", c.CertificateID), zap.Error(err))
		return
	}
	art, err := s.render.RenderCertificate(ctx, aiclient.RenderRequest{
		CertificateID:      c.CertificateID,
		StudentName:        v.StudentName,
		JobTitle:           v.JobTitle,
		Company:            v.Company,
		SupervisorFeedback: c.Feedback,
		IssuedAt:           c.IssuedAt,
		ValidUntil:         c.ValidUntil,
		VerificationCode:   c.VerificationCode,
	})
	if err != nil {
		s.met.AIFallback("render_certificate")
		s.log.Warn("render certificate", zap.String("certificateId", c.CertificateID), zap.Error(err))
		return
	}
	if err := s.certs.SetArtifacts(ctx, c.ID, art.PDFURL, art.QRCodeURL); err != nil {
		s.log.Warn("store certificate artifacts", zap.String("certificateId", c.CertificateID), zap.Error(err))
		return
	}
	c.PDFURL, c.QRCodeURL = art.PDFURL, art.QRCodeURL
}

// Verify evaluates a stored certificate at now. Integrity failures take
// precedence over revocation, which takes precedence over the validity window.
func Verify(v *model.CertificateView, now time.Time) model.Verification {
	out := model.Verification{View: *v, CheckedAt: now}
	out.IntegrityOK = pkgcrypto.VerifyCertificate(&v.Certificate)
	switch {
	case !out.IntegrityOK:
		out.Reason = model.ReasonTampered
	case !v.IsActive || v.RevokedAt != nil:
		out.Reason = model.ReasonRevoked
	case now.After(v.ValidUntil):
		out.Reason = model.ReasonExpired
	case now.Before(v.IssuedAt):
		out.Reason = model.ReasonNotYetValid
	default:
		out.Reason = model.ReasonValid
		out.CurrentlyValid = true
	}
	return out
}

// VerifyByCode is the public lookup. It needs no actor.
func (s *CertificateService) VerifyByCode(ctx context.Context, code string) (*model.Verification, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errs.Invalid("code", "required")
	}
	v, err := s.certs.GetViewByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	res := Verify(v, s.now())
	s.met.CertificateVerified(string(res.Reason))
	if res.Reason == model.ReasonTampered {
		s.log.Warn("certificate integrity check failed", zap.String("certificateId", v.CertificateID))
	}
	return &res, nil
}

// GetCertificate returns a certificate by its human-readable id. Students
// may only read their own.
func (s *CertificateService) GetCertificate(ctx context.Context, actor model.Actor, certificateID string) (*model.CertificateView, error) {
	v, err := s.certs.GetView(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if actor.Role == model.RoleStudent && v.StudentID != actor.ID {
		return nil, errs.ErrForbidden
	}
	if !actor.Role.Valid() {
		return nil, errs.ErrForbidden
	}
	return v, nil
}

// Revoke deactivates a certificate. Only admins may revoke; repeating it is a no-op.
func (s *CertificateService) Revoke(ctx context.Context, actor model.Actor, certificateID string) (*model.Certificate, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errs.ErrForbidden
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	c, err := s.certs.Revoke(ctx, certificateID, now)
	if err != nil {
		return nil, err
	}
	if c.RevokedAt != nil && c.RevokedAt.Equal(now) {
		s.met.CertificateRevoked()
		s.publish(ctx, events.Event{
			Type:       events.CertificateRevoked,
			Key:        c.ApplicationID.String(),
			ActorID:    actor.ID,
			OccurredAt: now,
			Data:       map[string]string{"certificateId": c.CertificateID},
		})
	}
	return c, nil
}

func (s *CertificateService) publish(ctx context.Context, e events.Event) {
	if err := s.pub.Publish(ctx, e); err != nil {
		s.log.Warn("publish event", zap.String("type", e.Type), zap.String("key", e.Key), zap.Error(err))
	}
}
