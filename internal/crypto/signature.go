package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/placement/internal/model"
)

// VerificationCodeBytes gives the verification code 128 bits of entropy.
const VerificationCodeBytes = 16

const certIDSuffixBytes = 6

// NewCertificateID returns a human-readable id: a UTC date stamp and a random suffix.
func NewCertificateID(now time.Time) (string, error) {
	b, err := RandBytes(certIDSuffixBytes)
	if err != nil {
		return "", fmt.Errorf("certificate id: %w", err)
	}
	return "CERT-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(b)), nil
}

// NewVerificationCode returns a random hex token carrying no certificate
// or student data.
func NewVerificationCode() (string, error) {
	b, err := RandBytes(VerificationCodeBytes)
	if err != nil {
		return "", fmt.Errorf("verification code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CertificateHash returns the hex SHA-256 of the canonical encoding of the
// hashed certificate fields. encoding/json writes map keys sorted, so the
// encoding does not depend on field order.
func CertificateHash(c *model.Certificate) string {
	fields := map[string]any{
		"certificateId": c.CertificateID,
		"studentId":     c.StudentID.String(),
		"jobId":         c.JobID.String(),
		"issuedAt":      c.IssuedAt.UTC().Format(time.RFC3339Nano),
		"supervisorId":  c.SupervisorID.String(),
		"rating":        c.Feedback.Rating,
	}
	// a map of strings and ints always encodes
	b, _ := json.Marshal(fields)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SignCertificate sets SignatureHash from the current field values.
// Callers sign once at issuance; the stored hash is the tamper baseline.
func SignCertificate(c *model.Certificate) {
	c.SignatureHash = CertificateHash(c)
}

// VerifyCertificate recomputes the hash and compares it with the stored one.
func VerifyCertificate(c *model.Certificate) bool {
	got := CertificateHash(c)
	return subtle.ConstantTimeCompare([]byte(got), []byte(c.SignatureHash)) == 1
}
