package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/placement/internal/errs"
	"github.com/and161185/placement/internal/events"
	"github.com/and161185/placement/internal/metrics"
	"github.com/and161185/placement/internal/model"
	"github.com/and161185/placement/internal/repository"
)

// fakeStore is an in-memory database. One mutex stands in for a
// transaction, so Submit and Update are atomic like their SQL versions.
type fakeStore struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*model.Job
	apps  map[uuid.UUID]*model.Application
	certs map[uuid.UUID]*model.Certificate
	users map[uuid.UUID]*model.User

	createCertErrs   []error            // returned by successive certificate Create calls first
	beforeCertCreate func(s *fakeStore) // runs under the lock, before the status guard
	artifactsErr     error
}

func newStore() *fakeStore {
	return &fakeStore{
		jobs:  map[uuid.UUID]*model.Job{},
		apps:  map[uuid.UUID]*model.Application{},
		certs: map[uuid.UUID]*model.Certificate{},
		users: map[uuid.UUID]*model.User{},
	}
}

func (s *fakeStore) addJob(j model.Job) *model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := j
	s.jobs[j.ID] = &cp
	return &cp
}

func (s *fakeStore) addApp(a model.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a
	cp.Timeline = append([]model.TimelineEvent(nil), a.Timeline...)
	s.apps[a.ID] = &cp
}

func (s *fakeStore) job(id uuid.UUID) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func cloneApp(a *model.Application) *model.Application {
	cp := *a
	cp.Timeline = append([]model.TimelineEvent(nil), a.Timeline...)
	if a.Interview != nil {
		iv := *a.Interview
		cp.Interview = &iv
	}
	if a.Offer != nil {
		of := *a.Offer
		cp.Offer = &of
	}
	return &cp
}

// ---- jobs ----

type fakeJobs struct{ *fakeStore }

var _ repository.JobRepository = fakeJobs{}

func (f fakeJobs) Create(_ context.Context, j *model.Job) error {
	f.addJob(*j)
	return nil
}

func (f fakeJobs) Get(_ context.Context, id uuid.UUID) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f fakeJobs) ListOpen(_ context.Context, now time.Time) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Job
	for _, j := range f.jobs {
		if j.AcceptingApplications(now) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Title < out[b].Title })
	return out, nil
}

// ---- applications ----

type fakeApps struct{ *fakeStore }

var _ repository.ApplicationRepository = fakeApps{}

func (f fakeApps) Submit(_ context.Context, app *model.Application, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[app.JobID]
	if !ok {
		return errs.ErrNotFound
	}
	for _, a := range f.apps {
		if a.IsActive && a.StudentID == app.StudentID && a.JobID == app.JobID {
			return errs.ErrDuplicateApplication
		}
	}
	if !j.AcceptingApplications(now) {
		return errs.ErrNotAcceptingApplications
	}
	j.ApplicationsCount++
	f.apps[app.ID] = cloneApp(app)
	return nil
}

func (f fakeApps) Get(_ context.Context, id uuid.UUID) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneApp(a), nil
}

func (f fakeApps) Update(_ context.Context, id uuid.UUID, decide repository.DecideFunc) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	work := cloneApp(a)
	t, err := decide(work)
	if err != nil {
		return nil, err
	}
	work.Apply(t)
	f.apps[id] = work
	return cloneApp(work), nil
}

func (f fakeApps) List(_ context.Context, flt repository.ApplicationFilter) ([]model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Application
	for _, a := range f.apps {
		if flt.StudentID != uuid.Nil && a.StudentID != flt.StudentID {
			continue
		}
		if flt.JobID != uuid.Nil && a.JobID != flt.JobID {
			continue
		}
		cp := cloneApp(a)
		cp.Timeline = nil
		out = append(out, *cp)
	}
	return out, nil
}

// ---- certificates ----

type fakeCerts struct{ *fakeStore }

var _ repository.CertificateRepository = fakeCerts{}

func (f fakeCerts) Create(_ context.Context, c *model.Certificate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createCertErrs) > 0 {
		err := f.createCertErrs[0]
		f.createCertErrs = f.createCertErrs[1:]
		return err
	}
	if f.beforeCertCreate != nil {
		f.beforeCertCreate(f.fakeStore)
	}
	if app, ok := f.apps[c.ApplicationID]; !ok || !app.Status.Certifiable() {
		return errs.ErrInvalidState
	}
	for _, x := range f.certs {
		if x.ApplicationID == c.ApplicationID {
			return errs.ErrAlreadyExists
		}
		if x.CertificateID == c.CertificateID || x.VerificationCode == c.VerificationCode {
			return errs.ErrCollision
		}
	}
	cp := *c
	f.certs[c.ID] = &cp
	return nil
}

func (f fakeCerts) view(match func(*model.Certificate) bool) (*model.CertificateView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.certs {
		if !match(c) {
			continue
		}
		v := &model.CertificateView{Certificate: *c}
		if u, ok := f.users[c.StudentID]; ok {
			v.StudentName = u.FullName
		}
		if j, ok := f.jobs[c.JobID]; ok {
			v.JobTitle, v.Company = j.Title, j.Company
		}
		return v, nil
	}
	return nil, errs.ErrNotFound
}

func (f fakeCerts) GetView(_ context.Context, certificateID string) (*model.CertificateView, error) {
	return f.view(func(c *model.Certificate) bool { return c.CertificateID == certificateID })
}

func (f fakeCerts) GetViewByCode(_ context.Context, code string) (*model.CertificateView, error) {
	return f.view(func(c *model.Certificate) bool { return c.VerificationCode == code })
}

func (f fakeCerts) GetByApplication(_ context.Context, appID uuid.UUID) (*model.Certificate, error) {
	v, err := f.view(func(c *model.Certificate) bool { return c.ApplicationID == appID })
	if err != nil {
		return nil, err
	}
	return &v.Certificate, nil
}

func (f fakeCerts) Revoke(_ context.Context, certificateID string, now time.Time) (*model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.certs {
		if c.CertificateID != certificateID {
			continue
		}
		c.IsActive = false
		if c.RevokedAt == nil {
			at := now
			c.RevokedAt = &at
		}
		cp := *c
		return &cp, nil
	}
	return nil, errs.ErrNotFound
}

func (f fakeCerts) SetArtifacts(_ context.Context, id uuid.UUID, pdf, qr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.artifactsErr != nil {
		return f.artifactsErr
	}
	c, ok := f.certs[id]
	if !ok {
		return errs.ErrNotFound
	}
	c.PDFURL, c.QRCodeURL = pdf, qr
	return nil
}

// tamper edits a stored certificate without re-signing it.
func (f fakeCerts) tamper(certificateID string, edit func(*model.Certificate)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.certs {
		if c.CertificateID == certificateID {
			edit(c)
		}
	}
}

func (f fakeCerts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.certs)
}

// ---- users ----

type fakeUsers struct {
	mu     sync.Mutex
	byName map[string]*model.User

	createErr error
	getErr    error
	skillsErr error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrUsernameTaken
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byName {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) SetSkills(_ context.Context, id uuid.UUID, skills []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.skillsErr != nil {
		return f.skillsErr
	}
	for _, u := range f.byName {
		if u.ID == id {
			u.Skills = append([]string(nil), skills...)
			return nil
		}
	}
	return errs.ErrNotFound
}

// ---- events ----

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

var _ events.Publisher = (*fakePublisher)(nil)

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// ---- helpers ----

func newActor(role model.Role) model.Actor {
	return model.Actor{ID: uuid.Must(uuid.NewV4()), Role: role}
}

func openJob(now time.Time) model.Job {
	return model.Job{
		ID:              uuid.Must(uuid.NewV4()),
		Title:           "Backend Intern",
		Company:         "Acme",
		Status:          model.JobPublished,
		IsActive:        true,
		Deadline:        now.Add(24 * time.Hour),
		ExpiresAt:       now.Add(48 * time.Hour),
		MaxApplications: 50,
		RequiredSkills:  []string{"go", "sql"},
		PreferredSkills: []string{"docker"},
	}
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// counterValue reads one counter series from m; labels are name/value pairs.
func counterValue(t *testing.T, m *metrics.Metrics, name string, labels ...string) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, s := range mf.GetMetric() {
			have := map[string]string{}
			for _, lp := range s.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for i := 0; i+1 < len(labels); i += 2 {
				if have[labels[i]] != labels[i+1] {
					continue series
				}
			}
			return s.GetCounter().GetValue()
		}
	}
	return 0
}
