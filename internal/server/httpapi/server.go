// Package httpapi is the JSON HTTP surface of the placement server.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/placement/internal/limiter"
	"github.com/and161185/placement/internal/metrics"
	"github.com/and161185/placement/internal/model"
	"github.com/and161185/placement/internal/repository"
	"github.com/and161185/placement/internal/service"
)

// Jobs is the job posting surface used by the handlers.
type Jobs interface {
	CreateJob(ctx context.Context, actor model.Actor, j model.Job) (*model.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error)
	ListOpen(ctx context.Context) ([]model.Job, error)
}

// Applications is the application lifecycle surface used by the handlers.
type Applications interface {
	Submit(ctx context.Context, actor model.Actor, jobID uuid.UUID, coverLetter string) (*model.Application, error)
	Transition(ctx context.Context, actor model.Actor, appID uuid.UUID, ev model.Event, comment string) (*model.Application, error)
	ScheduleInterview(ctx context.Context, actor model.Actor, appID uuid.UUID, details model.InterviewDetails, comment string) (*model.Application, error)
	MakeOffer(ctx context.Context, actor model.Actor, appID uuid.UUID, offer model.OfferDetails, comment string) (*model.Application, error)
	GetApplication(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Application, error)
	GetTimeline(ctx context.Context, actor model.Actor, id uuid.UUID) ([]model.TimelineEvent, error)
	ListApplications(ctx context.Context, actor model.Actor, f repository.ApplicationFilter) ([]model.Application, error)
}

// Certificates is the certificate issuer surface used by the handlers.
type Certificates interface {
	Generate(ctx context.Context, actor model.Actor, appID uuid.UUID, fb model.SupervisorFeedback) (*model.Certificate, error)
	VerifyByCode(ctx context.Context, code string) (*model.Verification, error)
	GetCertificate(ctx context.Context, actor model.Actor, certificateID string) (*model.CertificateView, error)
	Revoke(ctx context.Context, actor model.Actor, certificateID string) (*model.Certificate, error)
}

// Assist is the career assistance surface used by the handlers.
type Assist interface {
	Recommend(ctx context.Context, actor model.Actor, limit int) (*service.Recommendations, error)
	Similar(ctx context.Context, jobID uuid.UUID, limit int) (*service.SimilarJobs, error)
	Chat(ctx context.Context, actor model.Actor, message, topic string) (*service.ChatAnswer, error)
	ParseResume(ctx context.Context, actor model.Actor, resumeURL string) (*service.ResumeAnswer, error)
}

// HealthCheck checks one dependency for /healthz.
type HealthCheck struct {
	Name string
	// Required checks turn /healthz into 503 when they fail.
	Required bool
	Check    func(ctx context.Context) error
}

// Deps wires the handlers to the services.
type Deps struct {
	Auth         service.AuthService
	Jobs         Jobs
	Applications Applications
	Certificates Certificates
	Assist       Assist

	// VerifyLimit guards the public verification endpoint. Nil means unlimited.
	VerifyLimit limiter.Window
	Metrics     *metrics.Metrics
	Health      []HealthCheck
	Log         *zap.Logger
}

// Server holds the handler dependencies.
type Server struct {
	auth   service.AuthService
	jobs   Jobs
	apps   Applications
	certs  Certificates
	assist Assist
	health []HealthCheck
	log    *zap.Logger
}

// New builds the gin engine with every route registered.
func New(d Deps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	verify := d.VerifyLimit
	if verify == nil {
		verify = limiter.Unlimited{}
	}
	s := &Server{
		auth:   d.Auth,
		jobs:   d.Jobs,
		apps:   d.Applications,
		certs:  d.Certificates,
		assist: d.Assist,
		health: d.Health,
		log:    log,
	}

	r := gin.New()
	r.Use(Recover(log), Logging(log), Instrument(d.Metrics))

	r.GET("/healthz", s.healthz)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", OptionalAuthenticate(d.Auth), s.register)
	v1.POST("/auth/login", s.login)
	v1.GET("/certificates/verify/:code", RateLimit(verify), s.verifyCertificate)

	authed := v1.Group("", Authenticate(d.Auth))
	authed.POST("/users", s.createUser)
	authed.PUT("/users/me/skills", s.updateSkills)

	authed.POST("/jobs", s.createJob)
	authed.GET("/jobs", s.listJobs)
	authed.GET("/jobs/:id", s.getJob)
	authed.GET("/jobs/:id/similar", s.similarJobs)

	authed.POST("/applications", s.submitApplication)
	authed.GET("/applications", s.listApplications)
	authed.GET("/applications/:id", s.getApplication)
	authed.GET("/applications/:id/timeline", s.getTimeline)
	authed.POST("/applications/:id/transitions", s.transition)
	authed.PUT("/applications/:id/interview", s.scheduleInterview)
	authed.POST("/applications/:id/offer", s.makeOffer)

	authed.POST("/certificates", s.generateCertificate)
	authed.GET("/certificates/:certificateId", s.getCertificate)
	authed.POST("/certificates/:certificateId/revoke", s.revokeCertificate)

	authed.GET("/assist/recommendations", s.recommendations)
	authed.POST("/assist/chat", s.chat)
	authed.POST("/assist/resume-parse", s.parseResume)

	return r
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	code := http.StatusOK
	checks := gin.H{}
	for _, h := range s.health {
		if err := h.Check(ctx); err != nil {
			checks[h.Name] = err.Error()
			if h.Required {
				code = http.StatusServiceUnavailable
			}
			continue
		}
		checks[h.Name] = "ok"
	}
	st := "ok"
	if code != http.StatusOK {
		st = "degraded"
	}
	c.JSON(code, gin.H{"status": st, "checks": checks})
}
