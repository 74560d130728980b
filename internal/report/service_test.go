package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/filestorage"
	"texplicit_backend/internal/mail"
	"texplicit_backend/internal/platform/database"
	"texplicit_backend/internal/realtime"
	"texplicit_backend/internal/shared"
	"texplicit_backend/internal/subscription"
	"texplicit_backend/internal/tasks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memoryRepo struct {
	mu      sync.Mutex
	reports map[primitive.ObjectID]*Report
}

func newMemoryRepo() *memoryRepo { return &memoryRepo{reports: map[primitive.ObjectID]*Report{}} }

func (m *memoryRepo) filter(keep func(*Report) bool) []*Report {
	out := []*Report{}
	for _, r := range m.reports {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out
}

func (m *memoryRepo) Create(_ context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}

func (m *memoryRepo) FindByID(_ context.Context, id string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, _ := primitive.ObjectIDFromHex(id)
	r, ok := m.reports[oid]
	if !ok {
		return nil, common.ErrNotFound.WithMessage(common.MsgNotFoundReport)
	}
	cp := *r
	return &cp, nil
}

func (m *memoryRepo) FindByIDs(_ context.Context, ids []string) ([]*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return m.filter(func(r *Report) bool { return want[r.ID.Hex()] }), nil
}

func statusIn(s domain.ReportStatus, list []domain.ReportStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *memoryRepo) List(_ context.Context, q Query) ([]*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(r *Report) bool {
		if r.CreatedBy.ID != q.Owner {
			return false
		}
		if len(q.Status) > 0 && !statusIn(r.Status.Value, q.Status) {
			return false
		}
		if len(q.Exclude) > 0 && statusIn(r.Status.Value, q.Exclude) {
			return false
		}
		return q.ReportType == "" || string(r.ReportType) == q.ReportType
	}), nil
}

func (m *memoryRepo) Update(_ context.Context, id primitive.ObjectID, set bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return common.ErrNotFound
	}
	for k, v := range set {
		switch k {
		case "report":
			r.Report = v.(string)
		case "report_path":
			r.ReportPath = v.(string)
		case "agent":
			r.Agent = v.(string)
		case "urls":
			r.URLs = v.([]string)
		case "report_generation_time":
			r.ReportGenerationTime = v.(float64)
		case "status":
			r.Status = v.(Status)
		}
	}
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *memoryRepo) DeleteFailed(_ context.Context, owner primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.reports {
		if r.CreatedBy.ID == owner && r.Status.Value == domain.ReportFailure {
			delete(m.reports, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) FailStale(_ context.Context, owner primitive.ObjectID, cutoff time.Time) ([]*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Report
	for _, r := range m.reports {
		if r.Status.Value != domain.ReportPending || !r.CreatedOn.Before(cutoff) {
			continue
		}
		if !owner.IsZero() && r.CreatedBy.ID != owner {
			continue
		}
		r.Status = statusOf(domain.ReportFailure)
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memoryRepo) ListFinished(_ context.Context, after primitive.ObjectID, limit int64) ([]*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filter(func(r *Report) bool {
		return r.Status.Value == domain.ReportSuccess && r.ID.Hex() > after.Hex()
	})
	if int64(len(all)) > limit {
		all = all[:limit]
	}
	return all, nil
}

type fakeRunner struct {
	result *Result
	err    error
	jobs   []Job
}

func (f *fakeRunner) Run(_ context.Context, job Job) (*Result, error) {
	f.jobs = append(f.jobs, job)
	if job.Progress != nil {
		job.Progress("Thinking about research questions for the task...")
	}
	return f.result, f.err
}

type fakeIndex struct {
	mu      sync.Mutex
	indexed map[string]*Report
	deleted []string
}

func (f *fakeIndex) Index(_ context.Context, r *Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[r.ID.Hex()] = r
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, ownerID, query string, _, _ int) ([]SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hits []SearchHit
	for id, r := range f.indexed {
		if r.OwnerHex() == ownerID && strings.Contains(r.Report, query) {
			hits = append(hits, SearchHit{ID: id, Task: r.Task})
		}
	}
	return hits, nil
}

type usageStore struct {
	subscription.Store
	mu      sync.Mutex
	reports map[domain.ReportType]float64
}

func (u *usageStore) IncrementReportUsage(_ context.Context, _ string, t domain.ReportType, weight float64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reports[t] += weight
	return nil
}

type recordingMailer struct {
	sent []mail.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recordingPublisher) Publish(_ context.Context, _ string, e realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingPublisher) named(name string) []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []realtime.Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// syncQueue runs tasks on the caller's goroutine.
type syncQueue struct {
	registry *tasks.Registry
	err      error
}

func (q syncQueue) Enqueue(ctx context.Context, taskType, userID string, payload interface{}) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return "t1", q.registry.Handle(ctx, tasks.Task{ID: "t1", Type: taskType, UserID: userID, Payload: raw})
}

type fixture struct {
	repo    *memoryRepo
	store   *filestorage.LocalStore
	index   *fakeIndex
	runner  *fakeRunner
	usage   *usageStore
	mailer  *recordingMailer
	events  *recordingPublisher
	queue   *syncQueue
	service *Service
	user    *shared.User
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store, err := filestorage.NewLocalStore(t.TempDir(), logger)
	require.NoError(t, err)

	f := &fixture{
		repo:   newMemoryRepo(),
		store:  store,
		index:  &fakeIndex{indexed: map[string]*Report{}},
		runner: &fakeRunner{result: &Result{Report: "# Solar\n\nPanels got cheaper.", Agent: "Energy Agent", VisitedURLs: []string{"https://a.example"}}},
		usage:  &usageStore{reports: map[domain.ReportType]float64{}},
		mailer: &recordingMailer{},
		events: &recordingPublisher{},
		now:    time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
	}
	cfg := &config.Config{StaleReportAfter: time.Hour, DefaultSubscriptionDays: 30}
	subs := subscription.NewService(f.usage, cfg, logger)
	registry := tasks.NewRegistry()
	f.queue = &syncQueue{registry: registry}
	f.service = NewService(f.repo, f.index, store, f.runner, subs, f.queue, f.mailer, f.events, cfg, logger)
	f.service.now = func() time.Time { return f.now }
	f.service.RegisterTasks(registry)

	f.user = &shared.User{
		ID:          primitive.NewObjectID(),
		Name:        "Owner",
		Permissions: subscription.DefaultPermissions(nil, time.Now().Add(-time.Hour), 30),
	}
	return f
}

// failQueue makes every later enqueue fail.
func (f *fixture) failQueue() {
	f.queue.err = errors.New("redis down")
}

func (f *fixture) seed(t *testing.T, owner primitive.ObjectID, status domain.ReportStatus, task, text string, created time.Time) *Report {
	t.Helper()
	rep := &Report{
		Task:       task,
		ReportType: domain.ResearchReport,
		Source:     domain.SourceExternal,
		Report:     text,
		Status:     statusOf(status),
		CreatedBy:  database.UserRef(owner),
		CreatedOn:  created,
	}
	require.NoError(t, f.repo.Create(context.Background(), rep))
	return rep
}

func TestGenerateCompletesReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user.HexID()

	rep, err := f.service.Generate(ctx, f.user, GenerateRequest{Task: " solar prices ", ReportGenerationID: "42", URLs: []string{" https://x.example ", ""}})
	require.NoError(t, err)
	assert.Equal(t, domain.ResearchReport, rep.ReportType)
	assert.Equal(t, domain.SourceExternal, rep.Source)
	assert.Equal(t, "pdf", rep.Format)

	require.Len(t, f.runner.jobs, 1)
	job := f.runner.jobs[0]
	assert.Equal(t, "solar prices", job.Task)
	assert.Equal(t, []string{"https://x.example"}, job.URLs)
	assert.Equal(t, uid, job.OwnerID)

	stored, err := f.repo.FindByID(ctx, rep.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, domain.ReportSuccess, stored.Status.Value)
	assert.Equal(t, "Success", stored.Status.Ref)
	assert.Equal(t, "Energy Agent", stored.Agent)
	assert.Equal(t, []string{"https://a.example"}, stored.URLs)
	assert.Equal(t, stored.StorageKey(), stored.ReportPath)

	rc, err := f.store.Open(ctx, stored.ReportPath)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "# Solar\n\nPanels got cheaper.", string(body))

	assert.Equal(t, 0.5, f.usage.reports[domain.ResearchReport])
	assert.Contains(t, f.index.indexed, rep.ID.Hex())

	require.Len(t, f.events.named(realtime.ReportPendingEvent(uid)), 1)
	progress := f.events.named(realtime.ReportStatusEvent(uid))
	require.Len(t, progress, 1)
	assert.Equal(t, StatusUpdate{ReportGenerationID: "42", Status: "Thinking about research questions for the task..."}, progress[0].Data)
	done := f.events.named(realtime.ReportEvent(uid))
	require.Len(t, done, 1)
	assert.True(t, done[0].Success)
	assert.Equal(t, common.MsgOKReportGenerated, done[0].Message)
}

func TestGenerateFailureMarksReport(t *testing.T) {
	f := newFixture(t)
	f.runner.err = errors.New("model unavailable")
	ctx := context.Background()
	uid := f.user.HexID()

	rep, err := f.service.Generate(ctx, f.user, GenerateRequest{Task: "solar"})
	require.NoError(t, err)

	stored, err := f.repo.FindByID(ctx, rep.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, domain.ReportFailure, stored.Status.Value)
	assert.Empty(t, f.usage.reports)
	assert.Empty(t, f.index.indexed)

	done := f.events.named(realtime.ReportEvent(uid))
	require.Len(t, done, 1)
	assert.False(t, done[0].Success)
	assert.Equal(t, http.StatusBadRequest, done[0].Status)
	assert.Equal(t, common.MsgErrorReportGeneration, done[0].Message)
}

func TestGenerateValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Generate(ctx, f.user, GenerateRequest{Task: "x", ReportType: "poem"})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = f.service.Generate(ctx, f.user, GenerateRequest{Task: "x", Source: "intranet"})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = f.service.Generate(ctx, f.user, GenerateRequest{Task: "   "})
	assert.ErrorIs(t, err, common.ErrMissingParameters)

	f.user.Permissions.Report.Used[string(domain.OutlineReport)] = subscription.DefaultReportPerType
	_, err = f.service.Generate(ctx, f.user, GenerateRequest{Task: "x", ReportType: domain.OutlineReport})
	assert.ErrorIs(t, err, common.ErrInvalidSubscription)

	f.user.Permissions.SubscriptionDuration.EndDate = time.Now().Add(-time.Minute)
	_, err = f.service.Generate(ctx, f.user, GenerateRequest{Task: "x"})
	assert.ErrorIs(t, err, common.ErrInvalidSubscription)

	assert.Empty(t, f.runner.jobs)
	assert.Empty(t, f.repo.reports)
}

func TestGenerateQueueFailure(t *testing.T) {
	f := newFixture(t)
	f.failQueue()

	_, err := f.service.Generate(context.Background(), f.user, GenerateRequest{Task: "solar"})
	assert.ErrorIs(t, err, common.ErrServiceUnavailable)

	all := f.repo.filter(func(*Report) bool { return true })
	require.Len(t, all, 1)
	assert.Equal(t, domain.ReportFailure, all[0].Status.Value)
}

func TestPendingExpiresStaleReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.user.HexID()

	stale := f.seed(t, f.user.ID, domain.ReportPending, "old", "", f.now.Add(-2*time.Hour))
	fresh := f.seed(t, f.user.ID, domain.ReportPending, "new", "", f.now.Add(-time.Minute))
	f.seed(t, f.user.ID, domain.ReportSuccess, "done", "text", f.now.Add(-3*time.Hour))

	pending, err := f.service.Pending(ctx, uid, Filter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.ID, pending[0].ID)

	failed, err := f.service.Failed(ctx, uid)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, stale.ID, failed[0].ID)

	events := f.events.named(realtime.ReportEvent(uid))
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)

	listed, err := f.service.List(ctx, uid, Filter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "done", listed[0].Task)

	n, err := f.service.DeleteFailed(ctx, uid)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestFailStaleSweepsEveryUser(t *testing.T) {
	f := newFixture(t)
	other := primitive.NewObjectID()
	f.seed(t, f.user.ID, domain.ReportPending, "a", "", f.now.Add(-2*time.Hour))
	f.seed(t, other, domain.ReportPending, "b", "", f.now.Add(-5*time.Hour))
	f.seed(t, other, domain.ReportPending, "c", "", f.now)

	n, err := f.service.FailStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.events.named(realtime.ReportEvent(other.Hex())), 1)
}

func TestDownloadAndOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rep := f.seed(t, f.user.ID, domain.ReportSuccess, "Renewable energy outlook", "# Kept on the record", f.now)

	name, data, err := f.service.Download(ctx, f.user.HexID(), rep.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Research Report - Renewable _2024-03-01 10:30:00.md", name)
	assert.Equal(t, "# Kept on the record", string(data))

	_, _, err = f.service.Download(ctx, primitive.NewObjectID().Hex(), rep.ID.Hex())
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = f.service.Get(ctx, f.user.HexID(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteRemovesFileAndIndexEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.service.Generate(ctx, f.user, GenerateRequest{Task: "solar"})
	require.NoError(t, err)
	stored, err := f.repo.FindByID(ctx, rep.ID.Hex())
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, f.user.HexID(), rep.ID.Hex()))
	_, err = f.store.Open(ctx, stored.ReportPath)
	assert.ErrorIs(t, err, filestorage.ErrNotExist)
	assert.Equal(t, []string{rep.ID.Hex()}, f.index.deleted)

	err = f.service.Delete(ctx, f.user.HexID(), rep.ID.Hex())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestShareAttachesOwnedReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.seed(t, f.user.ID, domain.ReportSuccess, "mine", "# Mine", f.now)
	theirs := f.seed(t, primitive.NewObjectID(), domain.ReportSuccess, "theirs", "# Theirs", f.now)

	n, err := f.service.Share(ctx, f.user, ShareRequest{
		ReportIDs: []string{mine.ID.Hex(), theirs.ID.Hex()},
		EmailIDs:  []string{"a@example.com"},
		Message:   "see <this>",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "# Mine", string(msg.Attachments[0].Content))
	assert.Equal(t, "<p>see &lt;this&gt;</p>", msg.HTML)
	assert.Equal(t, "a@example.com", msg.To[0].Email)

	_, err = f.service.Share(ctx, f.user, ShareRequest{ReportIDs: []string{theirs.ID.Hex()}, EmailIDs: []string{"a@example.com"}})
	assert.ErrorIs(t, err, ErrShareFailed)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.Generate(ctx, f.user, GenerateRequest{Task: "solar"})
	require.NoError(t, err)

	hits, err := f.service.Search(ctx, f.user.HexID(), "cheaper", 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "solar", hits[0].Task)

	_, err = f.service.Search(ctx, f.user.HexID(), " ", 10, 0)
	assert.ErrorIs(t, err, common.ErrMissingParameters)

	_, err = disabledIndex{}.Search(ctx, "u", "q", 10, 0)
	assert.ErrorIs(t, err, ErrSearchDisabled)
}

type batchRecorder struct {
	batches [][]*Report
}

func (b *batchRecorder) Reindex(_ context.Context, reports []*Report, _ string) (int, error) {
	b.batches = append(b.batches, reports)
	return len(reports), nil
}

func TestSyncWalksFinishedReports(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.seed(t, f.user.ID, domain.ReportSuccess, "done", "text", f.now)
	}
	f.seed(t, f.user.ID, domain.ReportPending, "pending", "", f.now)

	rec := &batchRecorder{}
	synced, total, err := Sync(context.Background(), f.repo, rec, 2, "false", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 5, synced)
	assert.Equal(t, 5, total)
	assert.Len(t, rec.batches, 3)
}

func TestHandlerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	rep := f.seed(t, f.user.ID, domain.ReportSuccess, "Renewable energy outlook", "# Outlook", f.now)

	router := gin.New()
	NewHandler(f.service, zap.NewNop()).RegisterRoutes(router.Group(""), func(c *gin.Context) {
		c.Set(common.UserIDKey, f.user.HexID())
		c.Set(common.CurrentUserKey, f.user)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/report/download/"+rep.ID.Hex(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# Outlook", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/report/generate", strings.NewReader(`{"task":"solar","report_generation_id":7}`)))
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, GenerationID("7"), env.Data.ReportGenerationID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/report/generate", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/report/all?report_type=research_report", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 2)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/report/"+rep.ID.Hex(), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
