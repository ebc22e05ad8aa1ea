package convert

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
)

func mustUUID(t *testing.T, s string) u.UUID {
	t.Helper()
	id, err := u.FromString(s)
	if err != nil {
		t.Fatalf("bad uuid %q: %v", s, err)
	}
	return id
}

func TestParseID(t *testing.T) {
	t.Parallel()

	if _, err := ParseID("jobId", "nope"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, err := ParseID("jobId", u.Nil.String()); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error on nil uuid, got %v", err)
	}
	id, err := ParseID("jobId", "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11")
	if err != nil || id.String() != "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11" {
		t.Fatalf("ParseID: %v %v", id, err)
	}
}

func TestToPublicCertificate_HidesInternalIDs(t *testing.T) {
	t.Parallel()

	student := mustUUID(t, "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11")
	v := &model.CertificateView{
		Certificate: model.Certificate{
			ID:               mustUUID(t, "0b5a7c4e-1d1f-4c55-8a0e-6c9f1b2a3d4e"),
			CertificateID:    "CERT-20261019-0A1B2C3D4E5F",
			VerificationCode: "secret-code",
			StudentID:        student,
			Feedback:         model.SupervisorFeedback{Rating: 5, Feedback: "great", Recommend: true},
			IssuedAt:         time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		},
		StudentName: "Asha Verma",
		JobTitle:    "Backend Intern",
		Company:     "Acme",
	}
	b, err := json.Marshal(ToVerification(&model.Verification{View: *v, IntegrityOK: true, CurrentlyValid: true, Reason: model.ReasonValid}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(b)
	for _, leak := range []string{student.String(), v.ID.String(), "secret-code", "signatureHash"} {
		if strings.Contains(body, leak) {
			t.Fatalf("public view leaks %q: %s", leak, body)
		}
	}
	for _, want := range []string{`"valid":true`, `"reason":"valid"`, `"studentName":"Asha Verma"`, `"certificateId":"CERT-20261019-0A1B2C3D4E5F"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in %s", want, body)
		}
	}
}

func TestToVerification_ValidNeedsBothFlags(t *testing.T) {
	t.Parallel()

	got := ToVerification(&model.Verification{IntegrityOK: true, CurrentlyValid: false, Reason: model.ReasonExpired})
	if got.Valid {
		t.Fatalf("expired certificate must not be valid")
	}
}

func TestFromGenerateRequest(t *testing.T) {
	t.Parallel()

	rec := true
	in := GenerateRequest{
		ApplicationID:      "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11",
		SupervisorFeedback: Feedback{Rating: 4, Feedback: "solid engineering work", Recommend: &rec},
	}
	id, fb, err := FromGenerateRequest(in)
	if err != nil {
		t.Fatalf("FromGenerateRequest: %v", err)
	}
	if id.String() != in.ApplicationID || fb.Rating != 4 || !fb.Recommend {
		t.Fatalf("bad conversion: %v %+v", id, fb)
	}

	in.SupervisorFeedback.Recommend = nil
	if _, _, err := FromGenerateRequest(in); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error on missing recommend, got %v", err)
	}
	in.ApplicationID = "x"
	if _, _, err := FromGenerateRequest(in); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error on bad id, got %v", err)
	}
}

func TestToApplication(t *testing.T) {
	t.Parallel()

	mentor := mustUUID(t, "0b5a7c4e-1d1f-4c55-8a0e-6c9f1b2a3d4e")
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.FixedZone("IST", 19800))
	m := &model.Application{
		Status:         model.StatusMentorApproved,
		MentorApproval: model.MentorApproval{MentorID: &mentor, Status: model.ApprovalApproved, DecidedAt: &at},
		Timeline: []model.TimelineEvent{
			{Event: model.EventApplied, At: at},
			{Event: model.EventMentorApproved, ActorID: mentor, Comment: "ok", At: at},
		},
	}
	got := ToApplication(m)
	if got.MentorApproval.MentorID != mentor.String() || got.MentorApproval.DecidedAt.Location() != time.UTC {
		t.Fatalf("bad mentor approval: %+v", got.MentorApproval)
	}
	if len(got.Timeline) != 2 || got.Timeline[1].Event != model.EventMentorApproved {
		t.Fatalf("bad timeline: %+v", got.Timeline)
	}

	b, _ := json.Marshal(got)
	if !strings.Contains(string(b), `"event":"mentor_approved"`) {
		t.Fatalf("event not encoded by name: %s", b)
	}

	m.Timeline = nil
	b, _ = json.Marshal(ToApplication(m))
	if strings.Contains(string(b), `"timeline"`) {
		t.Fatalf("empty timeline must be omitted: %s", b)
	}
}

func TestFromInterviewRequest_KeepsOmittedFieldsZero(t *testing.T) {
	t.Parallel()

	d, c := FromInterviewRequest(InterviewRequest{Location: "Room 4", Comment: "moved"})
	if !d.ScheduledAt.IsZero() || d.Location != "Room 4" || c != "moved" {
		t.Fatalf("bad details: %+v %q", d, c)
	}
	var in InterviewRequest
	if err := json.Unmarshal([]byte(`{"scheduledAt":"2026-11-02T10:00:00+05:30","durationMinutes":30}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	d, _ = FromInterviewRequest(in)
	if !d.ScheduledAt.Equal(time.Date(2026, 11, 2, 4, 30, 0, 0, time.UTC)) || d.DurationMinutes != 30 {
		t.Fatalf("bad parse: %+v", d)
	}
}
