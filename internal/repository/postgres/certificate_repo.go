package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
)

const certificateApplicationKey = "certificates_application_id_key"

// CertificateRepo implements CertificateRepository using PostgreSQL.
type CertificateRepo struct{ db *DB }

// NewCertificateRepo constructs a certificate repository.
func NewCertificateRepo(db *DB) *CertificateRepo { return &CertificateRepo{db: db} }

const certificateColumns = `c.id, c.certificate_id, c.verification_code, c.application_id, c.student_id, c.job_id,
c.supervisor_id, c.feedback, c.signature_hash, c.issued_at, c.valid_until, c.is_active, c.revoked_at,
c.pdf_url, c.qr_code_url`

const certificateViewFrom = `SELECT ` + certificateColumns + `, u.full_name, j.title, j.company
FROM certificates c
JOIN users u ON u.id = c.student_id
JOIN jobs j ON j.id = c.job_id`

// Create inserts an issued certificate. The status guard and the insert are
// one statement; FOR SHARE waits for an in-flight transition of the
// application and re-checks its committed status.
func (r *CertificateRepo) Create(ctx context.Context, c *model.Certificate) error {
	feedback, err := json.Marshal(c.Feedback)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO certificates (id, certificate_id, verification_code, application_id, student_id, job_id,
                          supervisor_id, feedback, signature_hash, issued_at, valid_until, is_active)
SELECT $1,$2,$3,a.id,$5,$6,$7,$8,$9,$10,$11,$12
  FROM applications a
 WHERE a.id=$4 AND a.status = ANY($13)
   FOR SHARE`
	tag, err := r.db.Pool.Exec(ctx, q, c.ID, c.CertificateID, c.VerificationCode, c.ApplicationID, c.StudentID,
		c.JobID, c.SupervisorID, feedback, c.SignatureHash, c.IssuedAt, c.ValidUntil, c.IsActive,
		certifiableStatuses())
	switch {
	case isUniqueViolation(err, certificateApplicationKey):
		return errs.ErrAlreadyExists
	case isUniqueViolation(err, ""):
		return fmt.Errorf("%w: %v", errs.ErrCollision, err)
	case err != nil:
		return err
	case tag.RowsAffected() == 0:
		return errs.ErrInvalidState
	}
	return nil
}

func certifiableStatuses() []string {
	out := make([]string, 0, len(model.CertificateStatuses))
	for _, s := range model.CertificateStatuses {
		out = append(out, string(s))
	}
	return out
}

// GetView loads a certificate with display names by its human-readable id.
func (r *CertificateRepo) GetView(ctx context.Context, certificateID string) (*model.CertificateView, error) {
	return r.getView(ctx, certificateViewFrom+` WHERE c.certificate_id=$1`, certificateID)
}

// GetViewByCode loads a certificate with display names by verification code.
func (r *CertificateRepo) GetViewByCode(ctx context.Context, code string) (*model.CertificateView, error) {
	return r.getView(ctx, certificateViewFrom+` WHERE c.verification_code=$1`, code)
}

func (r *CertificateRepo) getView(ctx context.Context, q string, arg any) (*model.CertificateView, error) {
	var v model.CertificateView
	dest := append(certificateDest(&v.Certificate, new([]byte)), &v.StudentName, &v.JobTitle, &v.Company)
	if err := r.db.Pool.QueryRow(ctx, q, arg).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if err := decodeFeedback(&v.Certificate, dest[7]); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetByApplication returns the certificate issued for an application.
func (r *CertificateRepo) GetByApplication(ctx context.Context, applicationID uuid.UUID) (*model.Certificate, error) {
	const q = `SELECT ` + certificateColumns + ` FROM certificates c WHERE c.application_id=$1`
	return r.getOne(ctx, q, applicationID)
}

// Revoke deactivates a certificate; revoked_at keeps the first revocation time.
func (r *CertificateRepo) Revoke(ctx context.Context, certificateID string, now time.Time) (*model.Certificate, error) {
	const q = `
UPDATE certificates c SET is_active=false, revoked_at=COALESCE(c.revoked_at, $2)
WHERE c.certificate_id=$1
RETURNING ` + certificateColumns
	return r.getOne(ctx, q, certificateID, now)
}

// SetArtifacts stores rendered artifact URLs.
func (r *CertificateRepo) SetArtifacts(ctx context.Context, id uuid.UUID, pdfURL, qrURL string) error {
	const q = `UPDATE certificates SET pdf_url=$2, qr_code_url=$3 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, pdfURL, qrURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *CertificateRepo) getOne(ctx context.Context, q string, args ...any) (*model.Certificate, error) {
	var c model.Certificate
	dest := certificateDest(&c, new([]byte))
	if err := r.db.Pool.QueryRow(ctx, q, args...).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if err := decodeFeedback(&c, dest[7]); err != nil {
		return nil, err
	}
	return &c, nil
}

// certificateDest lists scan targets in certificateColumns order; feedback is
// scanned raw into fb.
func certificateDest(c *model.Certificate, fb *[]byte) []any {
	return []any{&c.ID, &c.CertificateID, &c.VerificationCode, &c.ApplicationID, &c.StudentID, &c.JobID,
		&c.SupervisorID, fb, &c.SignatureHash, &c.IssuedAt, &c.ValidUntil, &c.IsActive, &c.RevokedAt,
		&c.PDFURL, &c.QRCodeURL}
}

func decodeFeedback(c *model.Certificate, dest any) error {
	raw := *dest.(*[]byte)
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &c.Feedback); err != nil {
		return fmt.Errorf("certificate %s: feedback: %w", c.CertificateID, err)
	}
	return nil
}
