package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/placement/internal/convert"
	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/model"
	"github.com/and161185/placement/internal/repository"
	"github.com/and161185/placement/internal/service"
)

// actor returns the authenticated actor. Authenticate guarantees presence on
// every route that calls it.
func (s *Server) actor(c *gin.Context) (model.Actor, bool) {
	a, ok := ActorFromCtx(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, convert.Error{Error: errs.ErrUnauthorized.Error()})
	}
	return a, ok
}

func (s *Server) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := convert.ParseID(name, c.Param(name))
	if err != nil {
		s.writeError(c, err)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.badRequest(c, err)
		return false
	}
	return true
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}

// --- users ---

func (s *Server) register(c *gin.Context) {
	var in convert.RegisterRequest
	if !s.bind(c, &in) {
		return
	}
	var actor *model.Actor
	if a, ok := ActorFromCtx(c.Request.Context()); ok {
		actor = &a
	}
	s.doRegister(c, actor, in)
}

func (s *Server) createUser(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	var in convert.RegisterRequest
	if !s.bind(c, &in) {
		return
	}
	s.doRegister(c, &a, in)
}

func (s *Server) doRegister(c *gin.Context, actor *model.Actor, in convert.RegisterRequest) {
	u, err := s.auth.Register(c.Request.Context(), actor, service.RegisterInput{
		Username: in.Username,
		Password: in.Password,
		FullName: in.FullName,
		Role:     in.Role,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, convert.ToUser(u))
}

func (s *Server) login(c *gin.Context) {
	var in convert.LoginRequest
	if !s.bind(c, &in) {
		return
	}
	tokens, u, err := s.auth.LoginWithIP(c.Request.Context(), in.Username, in.Password, c.ClientIP())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToToken(tokens, &u))
}

func (s *Server) updateSkills(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	var in convert.SkillsRequest
	if !s.bind(c, &in) {
		return
	}
	skills, err := s.auth.UpdateSkills(c.Request.Context(), a, in.Skills)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.SkillsRequest{Skills: skills})
}

// --- jobs ---

func (s *Server) createJob(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	var in convert.JobRequest
	if !s.bind(c, &in) {
		return
	}
	j, err := s.jobs.CreateJob(c.Request.Context(), a, convert.FromJobRequest(in))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, convert.ToJob(j))
}

func (s *Server) listJobs(c *gin.Context) {
	jobs, err := s.jobs.ListOpen(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToJobs(jobs))
}

func (s *Server) getJob(c *gin.Context) {
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	j, err := s.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToJob(j))
}

func (s *Server) similarJobs(c *gin.Context) {
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	res, err := s.assist.Similar(c.Request.Context(), id, queryLimit(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"similarJobs": res.Items, "source": res.Source})
}

// --- applications ---

func (s *Server) submitApplication(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	var in convert.SubmitRequest
	if !s.bind(c, &in) {
		return
	}
	jobID, err := convert.ParseID("jobId", in.JobID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	app, err := s.apps.Submit(c.Request.Context(), a, jobID, in.CoverLetter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, convert.ToApplication(app))
}

func (s *Server) listApplications(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	var f repository.ApplicationFilter
	for name, dst := range map[string]*uuid.UUID{"jobId": &f.JobID, "studentId": &f.StudentID} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		id, err := convert.ParseID(name, v)
		if err != nil {
			s.writeError(c, err)
			return
		}
		*dst = id
	}
	apps, err := s.apps.ListApplications(c.Request.Context(), a, f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToApplications(apps))
}

func (s *Server) getApplication(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	app, err := s.apps.GetApplication(c.Request.Context(), a, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToApplication(app))
}

func (s *Server) getTimeline(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	tl, err := s.apps.GetTimeline(c.Request.Context(), a, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToTimeline(tl))
}

func (s *Server) transition(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	var in convert.TransitionRequest
	if !s.bind(c, &in) {
		return
	}
	app, err := s.apps.Transition(c.Request.Context(), a, id, in.Event, in.Comment)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToApplication(app))
}

func (s *Server) scheduleInterview(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	var in convert.InterviewRequest
	if !s.bind(c, &in) {
		return
	}
	details, comment := convert.FromInterviewRequest(in)
	app, err := s.apps.ScheduleInterview(c.Request.Context(), a, id, details, comment)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToApplication(app))
}

func (s *Server) makeOffer(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}
	var in convert.OfferRequest
	if !s.bind(c, &in) {
		return
	}
	app, err := s.apps.MakeOffer(c.Request.Context(), a, id, in.OfferDetails, in.Comment)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToApplication(app))
}

// --- certificates ---

func (s *Server) generateCertificate(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	var in convert.GenerateRequest
	if !s.bind(c, &in) {
		return
	}
	appID, fb, err := convert.FromGenerateRequest(in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	cert, err := s.certs.Generate(c.Request.Context(), a, appID, fb)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, convert.ToCertificate(cert))
}

func (s *Server) getCertificate(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	v, err := s.certs.GetCertificate(c.Request.Context(), a, c.Param("certificateId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToCertificate(&v.Certificate))
}

func (s *Server) revokeCertificate(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	cert, err := s.certs.Revoke(c.Request.Context(), a, c.Param("certificateId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToCertificate(cert))
}

func (s *Server) verifyCertificate(c *gin.Context) {
	v, err := s.certs.VerifyByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToVerification(v))
}

// --- assistance ---

func (s *Server) recommendations(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	res, err := s.assist.Recommend(c.Request.Context(), a, queryLimit(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": res.Items, "source": res.Source})
}

func (s *Server) chat(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	var in convert.ChatRequest
	if !s.bind(c, &in) {
		return
	}
	res, err := s.assist.Chat(c.Request.Context(), a, in.Message, in.Context)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response":    res.Response,
		"sources":     res.Sources,
		"suggestions": res.Suggestions,
		"source":      res.Source,
	})
}

func (s *Server) parseResume(c *gin.Context) {
	a, ok := s.actor(c)
	if !ok {
		return
	}
	var in convert.ResumeRequest
	if !s.bind(c, &in) {
		return
	}
	res, err := s.assist.ParseResume(c.Request.Context(), a, in.ResumeURL)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res.Data, "message": res.Message, "source": res.Source})
}
