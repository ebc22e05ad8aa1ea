package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
)

var certCols = []string{"id", "certificate_id", "verification_code", "application_id", "student_id", "job_id",
	"supervisor_id", "feedback", "signature_hash", "issued_at", "valid_until", "is_active", "revoked_at",
	"pdf_url", "qr_code_url"}

func sampleCertificate(now time.Time) *model.Certificate {
	return &model.Certificate{
		ID:               uuid.Must(uuid.NewV4()),
		CertificateID:    "CERT-20261019-0A1B2C3D4E5F",
		VerificationCode: "9f86d081884c7d659a2feaa0c55ad015",
		ApplicationID:    uuid.Must(uuid.NewV4()),
		StudentID:        uuid.Must(uuid.NewV4()),
		JobID:            uuid.Must(uuid.NewV4()),
		SupervisorID:     uuid.Must(uuid.NewV4()),
		Feedback:         model.SupervisorFeedback{Rating: 5, Feedback: "excellent work throughout", Recommend: true},
		SignatureHash:    "abc",
		IssuedAt:         now,
		ValidUntil:       now.AddDate(1, 0, 0),
		IsActive:         true,
	}
}

func certRow(c *model.Certificate, extra ...any) []any {
	row := []any{c.ID, c.CertificateID, c.VerificationCode, c.ApplicationID, c.StudentID, c.JobID,
		c.SupervisorID, []byte(`{"rating":5,"feedback":"excellent work throughout","recommend":true}`),
		c.SignatureHash, c.IssuedAt, c.ValidUntil, c.IsActive, c.RevokedAt, c.PDFURL, c.QRCodeURL}
	return append(row, extra...)
}

func TestCertificateRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCertificateRepo(db)
	c := sampleCertificate(time.Now().UTC())
	args := []any{c.ID, c.CertificateID, c.VerificationCode, c.ApplicationID, c.StudentID, c.JobID,
		c.SupervisorID, pgxmock.AnyArg(), c.SignatureHash, c.IssuedAt, c.ValidUntil, true,
		[]string{"offer_accepted", "interview_completed"}}

	mock.ExpectExec(`INSERT INTO certificates`).WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(context.Background(), c))

	mock.ExpectExec(`INSERT INTO certificates`).WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: certificateApplicationKey})
	require.ErrorIs(t, r.Create(context.Background(), c), errs.ErrAlreadyExists)

	mock.ExpectExec(`INSERT INTO certificates`).WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "certificates_verification_code_key"})
	err := r.Create(context.Background(), c)
	require.ErrorIs(t, err, errs.ErrCollision)
	require.NotErrorIs(t, err, errs.ErrAlreadyExists)

	// The application left a certifiable status before the insert.
	mock.ExpectExec(`INSERT INTO certificates .* FROM applications a WHERE a.id=\$4 AND a.status = ANY\(\$13\) FOR SHARE`).
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	require.ErrorIs(t, r.Create(context.Background(), c), errs.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepo_GetViewByCode(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCertificateRepo(db)
	c := sampleCertificate(time.Now().UTC())

	cols := append(append([]string{}, certCols...), "full_name", "title", "company")
	mock.ExpectQuery(`JOIN users u ON u.id = c.student_id JOIN jobs j ON j.id = c.job_id WHERE c.verification_code=\$1`).
		WithArgs(c.VerificationCode).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(certRow(c, "Asha Verma", "Backend Intern", "Acme")...))

	v, err := r.GetViewByCode(context.Background(), c.VerificationCode)
	require.NoError(t, err)
	require.Equal(t, "Asha Verma", v.StudentName)
	require.Equal(t, "Acme", v.Company)
	require.Equal(t, 5, v.Feedback.Rating)
	require.True(t, v.Feedback.Recommend)
	require.Nil(t, v.RevokedAt)

	mock.ExpectQuery(`WHERE c.verification_code=\$1`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)
	_, err = r.GetViewByCode(context.Background(), "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCertificateRepo_Revoke_KeepsFirstRevocationTime(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCertificateRepo(db)
	now := time.Now().UTC()
	c := sampleCertificate(now)
	first := now.Add(-time.Hour)
	c.IsActive = false
	c.RevokedAt = &first

	mock.ExpectQuery(`UPDATE certificates c SET is_active=false, revoked_at=COALESCE\(c.revoked_at, \$2\)`).
		WithArgs(c.CertificateID, now).
		WillReturnRows(pgxmock.NewRows(certCols).AddRow(certRow(c)...))

	got, err := r.Revoke(context.Background(), c.CertificateID, now)
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.Equal(t, first, *got.RevokedAt)

	mock.ExpectQuery(`UPDATE certificates`).WithArgs("CERT-missing", now).WillReturnError(pgx.ErrNoRows)
	_, err = r.Revoke(context.Background(), "CERT-missing", now)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCertificateRepo_SetArtifacts(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCertificateRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE certificates SET pdf_url=\$2, qr_code_url=\$3 WHERE id=\$1`).
		WithArgs(id, "https://cdn/c.pdf", "https://cdn/c.png").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetArtifacts(context.Background(), id, "https://cdn/c.pdf", "https://cdn/c.png"))
	require.NoError(t, mock.ExpectationsWereMet())
}
