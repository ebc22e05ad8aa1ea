package crypto

import (
	"regexp"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/placement/internal/model"
)

func sampleCert() *model.Certificate {
	return &model.Certificate{
		CertificateID: "CERT-20261019-A1B2C3D4E5F6",
		StudentID:     uuid.FromStringOrNil("6f1c1f4e-7d0b-4bd5-9a57-0a3c9e6f0a11"),
		JobID:         uuid.FromStringOrNil("0b9a2c55-1e0f-4c3a-8a5e-41d6b8f0c222"),
		SupervisorID:  uuid.FromStringOrNil("d3c4a1b2-0000-4000-8000-000000000333"),
		IssuedAt:      time.Date(2026, 10, 19, 9, 30, 0, 123456000, time.UTC),
		Feedback:      model.SupervisorFeedback{Rating: 4, Feedback: "dependable and quick to learn"},
	}
}

func TestCertificateHash_Deterministic(t *testing.T) {
	t.Parallel()

	a, b := sampleCert(), sampleCert()
	if CertificateHash(a) != CertificateHash(b) {
		t.Fatalf("hash differs for identical inputs")
	}
	if len(CertificateHash(a)) != 64 {
		t.Fatalf("want hex sha-256 (64 chars), got %d", len(CertificateHash(a)))
	}

	// same instant in another zone hashes the same
	b.IssuedAt = a.IssuedAt.In(time.FixedZone("IST", 5*3600+1800))
	if CertificateHash(a) != CertificateHash(b) {
		t.Fatalf("hash depends on time zone")
	}
}

func TestCertificateHash_IgnoresUnhashedFields(t *testing.T) {
	t.Parallel()

	a, b := sampleCert(), sampleCert()
	b.Feedback.Feedback = "different text"
	b.PDFURL = "https://cdn.example/cert.pdf"
	b.IsActive = true
	if CertificateHash(a) != CertificateHash(b) {
		t.Fatalf("hash must cover only the identity fields and rating")
	}
}

func TestVerifyCertificate_DetectsTampering(t *testing.T) {
	t.Parallel()

	mutations := map[string]func(c *model.Certificate){
		"rating":        func(c *model.Certificate) { c.Feedback.Rating = 5 },
		"certificateId": func(c *model.Certificate) { c.CertificateID += "X" },
		"studentId":     func(c *model.Certificate) { c.StudentID = uuid.Must(uuid.NewV4()) },
		"jobId":         func(c *model.Certificate) { c.JobID = uuid.Must(uuid.NewV4()) },
		"supervisorId":  func(c *model.Certificate) { c.SupervisorID = uuid.Must(uuid.NewV4()) },
		"issuedAt":      func(c *model.Certificate) { c.IssuedAt = c.IssuedAt.Add(time.Microsecond) },
	}
	for name, mut := range mutations {
		c := sampleCert()
		SignCertificate(c)
		if !VerifyCertificate(c) {
			t.Fatalf("%s: fresh certificate does not verify", name)
		}
		mut(c)
		if VerifyCertificate(c) {
			t.Fatalf("%s: tampered certificate still verifies", name)
		}
	}
}

func TestNewCertificateID(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)
	a, err := NewCertificateID(now)
	if err != nil {
		t.Fatalf("NewCertificateID: %v", err)
	}
	if !regexp.MustCompile(`^CERT-20261019-[0-9A-F]{12}$`).MatchString(a) {
		t.Fatalf("unexpected id format %q", a)
	}
	b, _ := NewCertificateID(now)
	if a == b {
		t.Fatalf("want distinct ids")
	}
}

func TestNewVerificationCode(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		c, err := NewVerificationCode()
		if err != nil {
			t.Fatalf("NewVerificationCode: %v", err)
		}
		if len(c) != 2*VerificationCodeBytes {
			t.Fatalf("len=%d, want=%d", len(c), 2*VerificationCodeBytes)
		}
		if seen[c] {
			t.Fatalf("duplicate code %q", c)
		}
		seen[c] = true
	}
}
