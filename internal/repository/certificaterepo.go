package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/placement/internal/model"
)

// CertificateRepository stores issued certificates.
type CertificateRepository interface {
	// Create inserts c while its application is in a certifiable status;
	// errs.ErrInvalidState when it is not, errs.ErrAlreadyExists when the
	// application already has a certificate.
	Create(ctx context.Context, c *model.Certificate) error

	// GetView loads a certificate by its human-readable id.
	GetView(ctx context.Context, certificateID string) (*model.CertificateView, error)

	// GetViewByCode loads a certificate by verification code.
	GetViewByCode(ctx context.Context, code string) (*model.CertificateView, error)

	// GetByApplication returns the certificate issued for an application.
	GetByApplication(ctx context.Context, applicationID uuid.UUID) (*model.Certificate, error)

	// Revoke deactivates the certificate. revoked_at is set on the first call
	// only; repeated calls succeed without changes.
	Revoke(ctx context.Context, certificateID string, now time.Time) (*model.Certificate, error)

	// SetArtifacts stores rendered artifact URLs.
	SetArtifacts(ctx context.Context, id uuid.UUID, pdfURL, qrURL string) error
}
