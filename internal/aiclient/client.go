// Package aiclient calls the AI assistant service over HTTP/JSON.
//
// Every error returned by Client wraps errs.ErrCollaboratorUnavailable;
// callers degrade to a local fallback instead of failing.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
)

// Client calls the AI service. A zero BaseURL disables it.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client whose calls are bounded by timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a base URL is configured.
func (c *Client) Enabled() bool { return c != nil && c.BaseURL != "" }

// RenderRequest carries the display data of an issued certificate.
type RenderRequest struct {
	CertificateID      string                   `json:"certificateId"`
	StudentName        string                   `json:"studentName"`
	JobTitle           string                   `json:"jobTitle"`
	Company            string                   `json:"company"`
	SupervisorFeedback model.SupervisorFeedback `json:"supervisorFeedback"`
	IssuedAt           time.Time                `json:"issuedAt"`
	ValidUntil         time.Time                `json:"validUntil"`
	VerificationCode   string                   `json:"verificationCode"`
}

// Artifacts are the rendered certificate files.
type Artifacts struct {
	PDFURL    string `json:"pdfUrl"`
	QRCodeURL string `json:"qrCodeUrl"`
}

// RenderCertificate asks the service to produce the PDF and QR code.
func (c *Client) RenderCertificate(ctx context.Context, r RenderRequest) (*Artifacts, error) {
	var out Artifacts
	if err := c.do(ctx, http.MethodPost, "/api/ai/generate-certificate", r, &out); err != nil {
		return nil, err
	}
	if out.PDFURL == "" && out.QRCodeURL == "" {
		return nil, fmt.Errorf("%w: render returned no artifacts", errs.ErrCollaboratorUnavailable)
	}
	return &out, nil
}

// ParsedResume is the structured content extracted from a resume.
type ParsedResume struct {
	Skills     []string          `json:"skills"`
	Projects   []map[string]any  `json:"projects"`
	Experience []map[string]any  `json:"experience"`
	Education  []map[string]any  `json:"education"`
	Summary    string            `json:"summary"`
	Contact    map[string]string `json:"contact,omitempty"`
}

// ResumeResult wraps a parse with the service's status.
type ResumeResult struct {
	Success bool         `json:"success"`
	Data    ParsedResume `json:"data"`
	Message string       `json:"message"`
}

// ParseResume extracts skills and history from the resume at resumeURL.
func (c *Client) ParseResume(ctx context.Context, resumeURL, userID string) (*ResumeResult, error) {
	in := map[string]string{"resumeUrl": resumeURL, "userId": userID}
	var out ResumeResult
	if err := c.do(ctx, http.MethodPost, "/api/ai/resume-parse", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobRecommendation is one suggested posting.
type JobRecommendation struct {
	JobID    string   `json:"jobId"`
	Title    string   `json:"title"`
	Company  string   `json:"company"`
	FitScore float64  `json:"fitScore"`
	Reason   string   `json:"reason"`
	Location string   `json:"location,omitempty"`
	JobType  string   `json:"jobType,omitempty"`
	Skills   []string `json:"skills"`
}

// Recommendations returns up to limit postings for a student.
func (c *Client) Recommendations(ctx context.Context, studentID string, limit int) ([]JobRecommendation, error) {
	in := map[string]any{"studentId": studentID, "limit": limit}
	var out struct {
		Recommendations []JobRecommendation `json:"recommendations"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ai/recommendations", in, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// ChatRequest is one message to the career assistant.
type ChatRequest struct {
	Message     string         `json:"message"`
	Context     string         `json:"context,omitempty"`
	UserID      string         `json:"userId,omitempty"`
	UserProfile map[string]any `json:"userProfile,omitempty"`
}

// ChatReply is the assistant's answer.
type ChatReply struct {
	Response    string           `json:"response"`
	Sources     []map[string]any `json:"sources"`
	Suggestions []string         `json:"suggestions"`
}

// Chat sends a message to the assistant.
func (c *Client) Chat(ctx context.Context, r ChatRequest) (*ChatReply, error) {
	var out ChatReply
	if err := c.do(ctx, http.MethodPost, "/api/ai/chat", r, &out); err != nil {
		return nil, err
	}
	if out.Response == "" {
		return nil, fmt.Errorf("%w: empty chat response", errs.ErrCollaboratorUnavailable)
	}
	return &out, nil
}

// SimilarJob is one posting similar to a reference job.
type SimilarJob struct {
	JobID           string  `json:"jobId"`
	Title           string  `json:"title"`
	Company         string  `json:"company"`
	SimilarityScore float64 `json:"similarityScore"`
	Reason          string  `json:"reason"`
	Location        string  `json:"location,omitempty"`
	JobType         string  `json:"jobType,omitempty"`
}

// SimilarJobs returns up to limit postings similar to jobID.
func (c *Client) SimilarJobs(ctx context.Context, jobID string, limit int) ([]SimilarJob, error) {
	in := map[string]any{"jobId": jobID, "limit": limit}
	var out struct {
		SimilarJobs []SimilarJob `json:"similarJobs"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ai/similar-jobs", in, &out); err != nil {
		return nil, err
	}
	return out.SimilarJobs, nil
}

// Health checks that the service answers and reports itself healthy.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "healthy" {
		return fmt.Errorf("%w: status %q", errs.ErrCollaboratorUnavailable, out.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Enabled() {
		return fmt.Errorf("%w: not configured", errs.ErrCollaboratorUnavailable)
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	endpoint, err := url.JoinPath(c.BaseURL, path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", errs.ErrCollaboratorUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: %s: %s", errs.ErrCollaboratorUnavailable, method, path, resp.Status, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", errs.ErrCollaboratorUnavailable, path, err)
	}
	return nil
}
