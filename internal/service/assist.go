package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/placement/internal/aiclient"
	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/metrics"
	"github.com/and161185/placement/internal/model"
	"github.com/and161185/placement/internal/repository"
)

// Source tells whether a result came from the AI service or the local fallback.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

const (
	defaultAssistLimit = 10
	maxAssistLimit     = 50

	requiredWeight  = 0.7
	preferredWeight = 0.3
)

// Assistant is the subset of *aiclient.Client used for assistance.
type Assistant interface {
	ParseResume(ctx context.Context, resumeURL, userID string) (*aiclient.ResumeResult, error)
	Recommendations(ctx context.Context, studentID string, limit int) ([]aiclient.JobRecommendation, error)
	Chat(ctx context.Context, r aiclient.ChatRequest) (*aiclient.ChatReply, error)
	SimilarJobs(ctx context.Context, jobID string, limit int) ([]aiclient.SimilarJob, error)
}

// Recommendations is a ranked list of postings for a student.
type Recommendations struct {
	Items  []aiclient.JobRecommendation
	Source Source
}

// SimilarJobs is a ranked list of postings similar to a reference job.
type SimilarJobs struct {
	Items  []aiclient.SimilarJob
	Source Source
}

// ChatAnswer is the assistant's reply.
type ChatAnswer struct {
	aiclient.ChatReply
	Source Source
}

// ResumeAnswer is a resume parse.
type ResumeAnswer struct {
	aiclient.ResumeResult
	Source Source
}

// AssistService answers assistance requests through the AI service and
// degrades to deterministic local answers when it is unavailable.
type AssistService struct {
	ai    Assistant
	users repository.UserRepository
	jobs  *JobService
	met   *metrics.Metrics
	log   *zap.Logger
}

// NewAssistService wires the assistant. A nil ai always uses the fallback.
func NewAssistService(ai Assistant, users repository.UserRepository, jobs *JobService, met *metrics.Metrics, log *zap.Logger) *AssistService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AssistService{ai: ai, users: users, jobs: jobs, met: met, log: log}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultAssistLimit
	case n > maxAssistLimit:
		return maxAssistLimit
	}
	return n
}

func (s *AssistService) fallback(op string, err error) {
	s.met.AIFallback(op)
	s.log.Warn("ai collaborator unavailable, using fallback", zap.String("operation", op), zap.Error(err))
}

// Recommend ranks open postings for the calling student.
func (s *AssistService) Recommend(ctx context.Context, actor model.Actor, limit int) (*Recommendations, error) {
	if actor.Role != model.RoleStudent {
		return nil, errs.ErrForbidden
	}
	limit = clampLimit(limit)
	if s.ai != nil {
		items, err := s.ai.Recommendations(ctx, actor.ID.String(), limit)
		if err == nil {
			return &Recommendations{Items: items, Source: SourceAI}, nil
		}
		s.fallback("recommendations", err)
	} else {
		s.met.AIFallback("recommendations")
	}

	u, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	open, err := s.jobs.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]aiclient.JobRecommendation, 0, len(open))
	for i := range open {
		j := &open[i]
		score := FitScore(u.Skills, j.RequiredSkills, j.PreferredSkills)
		items = append(items, aiclient.JobRecommendation{
			JobID:    j.ID.String(),
			Title:    j.Title,
			Company:  j.Company,
			FitScore: score,
			Reason:   fitReason(score),
			Location: j.Location,
			JobType:  j.JobType,
			Skills:   j.RequiredSkills,
		})
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].FitScore > items[b].FitScore })
	if len(items) > limit {
		items = items[:limit]
	}
	return &Recommendations{Items: items, Source: SourceFallback}, nil
}

// FitScore rates a student's skills against a posting on a 0-100 scale,
// rounded to one decimal. Required skills weigh 0.7 and preferred 0.3; when
// a posting lists only one kind, that kind carries the full weight.
func FitScore(student, required, preferred []string) float64 {
	have := skillSet(student)
	req, pref := skillSet(required), skillSet(preferred)

	wr, wp := requiredWeight, preferredWeight
	switch {
	case len(req) == 0 && len(pref) == 0:
		return 0
	case len(req) == 0:
		wr, wp = 0, 1
	case len(pref) == 0:
		wr, wp = 1, 0
	}
	score := wr*overlap(have, req) + wp*overlap(have, pref)
	return math.Round(score*1000) / 10
}

func fitReason(score float64) string {
	switch {
	case score >= 80:
		return "Excellent skill match"
	case score >= 60:
		return "Good skill match"
	case score >= 40:
		return "Partial skill match"
	}
	return "Limited skill match"
}

// overlap is the share of want covered by have.
func overlap(have, want map[string]struct{}) float64 {
	if len(want) == 0 {
		return 0
	}
	n := 0
	for k := range want {
		if _, ok := have[k]; ok {
			n++
		}
	}
	return float64(n) / float64(len(want))
}

func skillSet(skills []string) map[string]struct{} {
	m := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			m[s] = struct{}{}
		}
	}
	return m
}

// Jaccard is |a∩b| / |a∪b| over skill sets; 0 when both are empty.
func Jaccard(a, b []string) float64 {
	sa, sb := skillSet(a), skillSet(b)
	inter := 0
	for k := range sa {
		if _, ok := sb[k]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Similar ranks open postings by skill similarity to jobID.
func (s *AssistService) Similar(ctx context.Context, jobID uuid.UUID, limit int) (*SimilarJobs, error) {
	limit = clampLimit(limit)
	ref, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if s.ai != nil {
		items, err := s.ai.SimilarJobs(ctx, jobID.String(), limit)
		if err == nil {
			return &SimilarJobs{Items: items, Source: SourceAI}, nil
		}
		s.fallback("similar_jobs", err)
	} else {
		s.met.AIFallback("similar_jobs")
	}

	open, err := s.jobs.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	refSkills := append(append([]string{}, ref.RequiredSkills...), ref.PreferredSkills...)
	items := make([]aiclient.SimilarJob, 0, len(open))
	for i := range open {
		j := &open[i]
		if j.ID == ref.ID {
			continue
		}
		sim := Jaccard(refSkills, append(append([]string{}, j.RequiredSkills...), j.PreferredSkills...))
		if sim == 0 {
			continue
		}
		items = append(items, aiclient.SimilarJob{
			JobID:           j.ID.String(),
			Title:           j.Title,
			Company:         j.Company,
			SimilarityScore: math.Round(sim*1000) / 1000,
			Reason:          "Shared skills",
			Location:        j.Location,
			JobType:         j.JobType,
		})
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].SimilarityScore > items[b].SimilarityScore })
	if len(items) > limit {
		items = items[:limit]
	}
	return &SimilarJobs{Items: items, Source: SourceFallback}, nil
}

// Chat relays a message to the career assistant.
func (s *AssistService) Chat(ctx context.Context, actor model.Actor, message, topic string) (*ChatAnswer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errs.Invalid("message", "required")
	}
	if s.ai != nil {
		r, err := s.ai.Chat(ctx, aiclient.ChatRequest{
			Message:     message,
			Context:     topic,
			UserID:      actor.ID.String(),
			UserProfile: map[string]any{"role": string(actor.Role)},
		})
		if err == nil {
			return &ChatAnswer{ChatReply: *r, Source: SourceAI}, nil
		}
		s.fallback("chat", err)
	} else {
		s.met.AIFallback("chat")
	}
	return &ChatAnswer{
		ChatReply: aiclient.ChatReply{
			Response:    "The career assistant is not available right now. Meanwhile, keep your profile skills current and contact the placement cell for guidance.",
			Sources:     []map[string]any{},
			Suggestions: chatSuggestions(message),
		},
		Source: SourceFallback,
	}, nil
}

func chatSuggestions(message string) []string {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "resume"):
		return []string{"How to format my resume?", "What skills should I highlight?", "Resume length guidelines"}
	case strings.Contains(m, "interview"):
		return []string{"Common interview questions", "How to prepare for technical interviews?", "Interview etiquette tips"}
	case strings.Contains(m, "skill"):
		return []string{"In-demand technical skills", "How to develop soft skills?", "Skill assessment tools"}
	}
	return []string{"Resume writing tips", "Interview preparation", "Career guidance"}
}

// ParseResume extracts resume content for the calling student.
func (s *AssistService) ParseResume(ctx context.Context, actor model.Actor, resumeURL string) (*ResumeAnswer, error) {
	if actor.Role != model.RoleStudent {
		return nil, errs.ErrForbidden
	}
	resumeURL = strings.TrimSpace(resumeURL)
	if resumeURL == "" {
		return nil, errs.Invalid("resumeUrl", "required")
	}
	if s.ai != nil {
		r, err := s.ai.ParseResume(ctx, resumeURL, actor.ID.String())
		if err == nil {
			return &ResumeAnswer{ResumeResult: *r, Source: SourceAI}, nil
		}
		s.fallback("resume_parse", err)
	} else {
		s.met.AIFallback("resume_parse")
	}
	return &ResumeAnswer{
		ResumeResult: aiclient.ResumeResult{
			Success: false,
			Data:    aiclient.ParsedResume{Skills: []string{}},
			Message: "resume parsing is unavailable; enter skills manually",
		},
		Source: SourceFallback,
	}, nil
}
