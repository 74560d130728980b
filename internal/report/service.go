// Package report queues research reports, runs them on the task worker and serves the results.
package report

import (
	"context"
	"errors"
	"html"
	"io"
	"net/http"
	"strings"
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

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const defaultFormat = "pdf"

var ErrShareFailed = common.NewAPIError(http.StatusBadRequest, "REPORT_SHARE_FAILED", common.MsgErrorReportShare)

// Runner performs the research for a report.
type Runner interface {
	Run(ctx context.Context, job Job) (*Result, error)
}

type Service struct {
	repo   Repository
	index  Index
	store  filestorage.Store
	runner Runner
	subs   *subscription.Service
	queue  tasks.Queue
	mailer mail.Mailer
	events realtime.Publisher
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(
	repo Repository,
	index Index,
	store filestorage.Store,
	runner Runner,
	subs *subscription.Service,
	queue tasks.Queue,
	mailer mail.Mailer,
	events realtime.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:   repo,
		index:  index,
		store:  store,
		runner: runner,
		subs:   subs,
		queue:  queue,
		mailer: mailer,
		events: events,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) RegisterTasks(r *tasks.Registry) {
	r.Register(tasks.TypeReportGenerate, s.handleGenerate)
}

// Generate records a pending report and queues its research.
func (s *Service) Generate(ctx context.Context, u *shared.User, req GenerateRequest) (*Report, error) {
	req.Task = strings.TrimSpace(req.Task)
	if req.Task == "" {
		return nil, common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter + "task")
	}
	if req.ReportType == "" {
		req.ReportType = domain.ResearchReport
	}
	if !req.ReportType.Valid() {
		return nil, common.ErrBadRequest.WithMessage(common.MsgInvalidReportType)
	}
	if req.Source == "" {
		req.Source = domain.SourceExternal
	}
	if req.Source != domain.SourceExternal && req.Source != domain.SourceMyDocuments {
		return nil, common.ErrBadRequest.WithMessage(common.MsgInvalidReportSource)
	}
	if req.Format == "" {
		req.Format = defaultFormat
	}
	if !s.subs.CheckDuration(ctx, u) || !s.subs.CheckReport(ctx, u, req.ReportType) {
		return nil, common.ErrInvalidSubscription
	}

	rep := &Report{
		Task:               req.Task,
		Subtopics:          cleanList(req.Subtopics),
		ReportType:         req.ReportType,
		Source:             req.Source,
		Format:             req.Format,
		InputURLs:          cleanList(req.URLs),
		Websearch:          req.Websearch,
		ReportGenerationID: req.ReportGenerationID,
		Status:             statusOf(domain.ReportPending),
		CreatedBy:          database.UserRef(u.ID),
		CreatedOn:          s.now().UTC(),
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, u.HexID(), realtime.OK(realtime.ReportPendingEvent(u.HexID()), common.MsgOKReportQueued, rep))

	if _, err := s.queue.Enqueue(ctx, tasks.TypeReportGenerate, u.HexID(), generatePayload{ReportID: rep.ID.Hex()}); err != nil {
		s.logger.Error("Failed to queue report", zap.String("reportID", rep.ID.Hex()), zap.Error(err))
		s.fail(ctx, rep, 0)
		return nil, common.ErrServiceUnavailable
	}
	return rep, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s *Service) handleGenerate(ctx context.Context, task tasks.Task) error {
	var p generatePayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	rep, err := s.repo.FindByID(ctx, p.ReportID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn("Report removed before generation", zap.String("reportID", p.ReportID))
			return nil
		}
		return err
	}
	if rep.Status.Value != domain.ReportPending {
		return nil
	}

	userID := rep.OwnerHex()
	started := s.now()
	job := Job{
		OwnerID:   userID,
		Task:      rep.Task,
		Type:      rep.ReportType,
		Source:    rep.Source,
		Subtopics: rep.Subtopics,
		URLs:      rep.InputURLs,
		Websearch: rep.Websearch,
		Progress: func(status string) {
			s.events.Publish(ctx, userID, realtime.OK(realtime.ReportStatusEvent(userID), status,
				StatusUpdate{ReportGenerationID: rep.ReportGenerationID, Status: status}))
		},
	}
	res, err := s.runner.Run(ctx, job)
	elapsed := s.now().Sub(started).Seconds()
	if err != nil {
		if ctx.Err() != nil {
			// Left pending so a redelivery can pick it up.
			return ctx.Err()
		}
		s.logger.Error("Report generation failed", zap.String("reportID", rep.ID.Hex()), zap.Error(err))
		s.fail(ctx, rep, elapsed)
		return nil
	}

	rep.Report = res.Report
	rep.Agent = res.Agent
	rep.URLs = res.VisitedURLs
	if rep.URLs == nil {
		rep.URLs = []string{}
	}
	rep.ReportGenerationTime = elapsed
	rep.Status = statusOf(domain.ReportSuccess)
	if _, err := s.store.Save(ctx, rep.StorageKey(), strings.NewReader(rep.Report)); err != nil {
		s.logger.Error("Failed to store report markdown", zap.String("reportID", rep.ID.Hex()), zap.Error(err))
	} else {
		rep.ReportPath = rep.StorageKey()
	}

	err = s.repo.Update(ctx, rep.ID, bson.M{
		"report":                 rep.Report,
		"report_path":            rep.ReportPath,
		"agent":                  rep.Agent,
		"urls":                   rep.URLs,
		"report_generation_time": rep.ReportGenerationTime,
		"status":                 rep.Status,
	})
	if err != nil {
		s.logger.Error("Failed to save report", zap.String("reportID", rep.ID.Hex()), zap.Error(err))
		s.events.Publish(ctx, userID, realtime.Event{
			Name: realtime.ReportEvent(userID), Message: common.MsgErrorReportSave, Data: rep, Status: http.StatusBadRequest,
		})
		return nil
	}

	s.subs.RecordReport(ctx, userID, rep.ReportType)
	if err := s.index.Index(ctx, rep); err != nil {
		s.logger.Warn("Failed to index report", zap.String("reportID", rep.ID.Hex()), zap.Error(err))
	}
	s.logger.Info("Report generated", zap.String("reportID", rep.ID.Hex()), zap.String("type", string(rep.ReportType)), zap.Float64("seconds", elapsed))
	s.events.Publish(ctx, userID, realtime.OK(realtime.ReportEvent(userID), common.MsgOKReportGenerated, rep))
	return nil
}

// fail marks the report as failed and tells its owner.
func (s *Service) fail(ctx context.Context, rep *Report, elapsed float64) {
	rep.Status = statusOf(domain.ReportFailure)
	rep.ReportGenerationTime = elapsed
	if err := s.repo.Update(ctx, rep.ID, bson.M{"status": rep.Status, "report_generation_time": elapsed}); err != nil {
		s.logger.Error("Failed to mark report as failed", zap.String("reportID", rep.ID.Hex()), zap.Error(err))
	}
	s.publishFailure(ctx, rep)
}

func (s *Service) publishFailure(ctx context.Context, rep *Report) {
	userID := rep.OwnerHex()
	s.events.Publish(ctx, userID, realtime.Event{
		Name:    realtime.ReportEvent(userID),
		Message: common.MsgErrorReportGeneration,
		Data:    rep,
		Success: false,
		Status:  http.StatusBadRequest,
	})
}

func ownerOID(userID string) (primitive.ObjectID, error) {
	oid, ok := database.ParseObjectID(userID)
	if !ok {
		return primitive.NilObjectID, common.ErrUnauthorized
	}
	return oid, nil
}

// List returns finished reports, newest first.
func (s *Service) List(ctx context.Context, userID string, f Filter, limit, offset int64) ([]*Report, error) {
	oid, err := ownerOID(userID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, Query{
		Owner:   oid,
		Exclude: []domain.ReportStatus{domain.ReportPending, domain.ReportFailure},
		Filter:  f,
		Limit:   limit,
		Offset:  offset,
	})
}

// Pending first fails the user's stale pending reports, then lists the rest.
func (s *Service) Pending(ctx context.Context, userID string, f Filter, limit, offset int64) ([]*Report, error) {
	oid, err := ownerOID(userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.failStale(ctx, oid); err != nil {
		s.logger.Warn("Failed to expire stale reports", zap.String("userID", userID), zap.Error(err))
	}
	return s.repo.List(ctx, Query{
		Owner:  oid,
		Status: []domain.ReportStatus{domain.ReportPending},
		Filter: f,
		Limit:  limit,
		Offset: offset,
	})
}

// FailStale fails every user's pending reports older than STALE_REPORT_AFTER.
func (s *Service) FailStale(ctx context.Context) (int, error) {
	return s.failStale(ctx, primitive.NilObjectID)
}

func (s *Service) failStale(ctx context.Context, owner primitive.ObjectID) (int, error) {
	after := s.cfg.StaleReportAfter
	if after <= 0 {
		after = time.Hour
	}
	stale, err := s.repo.FailStale(ctx, owner, s.now().UTC().Add(-after))
	if err != nil {
		return 0, err
	}
	for _, rep := range stale {
		s.publishFailure(ctx, rep)
	}
	return len(stale), nil
}

func (s *Service) Failed(ctx context.Context, userID string) ([]*Report, error) {
	oid, err := ownerOID(userID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, Query{Owner: oid, Status: []domain.ReportStatus{domain.ReportFailure}})
}

func (s *Service) DeleteFailed(ctx context.Context, userID string) (int64, error) {
	oid, err := ownerOID(userID)
	if err != nil {
		return 0, err
	}
	return s.repo.DeleteFailed(ctx, oid)
}

// owned loads a report, refusing anyone but its owner.
func (s *Service) owned(ctx context.Context, userID, id string) (*Report, error) {
	rep, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.OwnerHex() != userID {
		return nil, common.ErrUnauthorized
	}
	return rep, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Report, error) {
	return s.owned(ctx, userID, id)
}

// Delete removes the report, its stored markdown and its search entry.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	rep, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, rep.ID); err != nil {
		return err
	}
	if rep.ReportPath != "" {
		if err := s.store.Delete(ctx, rep.ReportPath); err != nil {
			s.logger.Warn("Failed to remove report file", zap.String("path", rep.ReportPath), zap.Error(err))
		}
	}
	if err := s.index.Delete(ctx, rep.ID.Hex()); err != nil {
		s.logger.Warn("Failed to remove report from search", zap.String("reportID", rep.ID.Hex()), zap.Error(err))
	}
	return nil
}

// content returns the stored markdown, falling back to the copy kept on the record.
func (s *Service) content(ctx context.Context, rep *Report) ([]byte, error) {
	if rep.ReportPath != "" {
		rc, err := s.store.Open(ctx, rep.ReportPath)
		if err == nil {
			defer rc.Close()
			return io.ReadAll(rc)
		}
		if !errors.Is(err, filestorage.ErrNotExist) {
			return nil, err
		}
	}
	if rep.Report == "" {
		return nil, common.ErrNotFound.WithMessage(common.MsgNotFoundReport)
	}
	return []byte(rep.Report), nil
}

// Download returns the attachment name and markdown of a finished report.
func (s *Service) Download(ctx context.Context, userID, id string) (string, []byte, error) {
	rep, err := s.owned(ctx, userID, id)
	if err != nil {
		return "", nil, err
	}
	data, err := s.content(ctx, rep)
	if err != nil {
		return "", nil, err
	}
	return rep.DownloadName(), data, nil
}

// Share mails the caller's reports as attachments and returns how many were sent.
func (s *Service) Share(ctx context.Context, u *shared.User, req ShareRequest) (int, error) {
	reports, err := s.repo.FindByIDs(ctx, req.ReportIDs)
	if err != nil {
		return 0, err
	}
	var attachments []mail.Attachment
	for _, rep := range reports {
		if rep.OwnerHex() != u.HexID() {
			continue
		}
		data, err := s.content(ctx, rep)
		if err != nil {
			s.logger.Warn("Skipping report without content", zap.String("reportID", rep.ID.Hex()), zap.Error(err))
			continue
		}
		attachments = append(attachments, mail.Attachment{Name: rep.DownloadName(), Content: data})
	}
	if len(attachments) == 0 {
		return 0, ErrShareFailed
	}

	to := make([]mail.Recipient, 0, len(req.EmailIDs))
	for _, e := range req.EmailIDs {
		to = append(to, mail.Recipient{Email: e})
	}
	msg, err := mail.ReportShare(u.Name, to, attachments)
	if err != nil {
		return 0, err
	}
	if req.Subject != "" {
		msg.Subject = req.Subject
	}
	if req.Message != "" {
		msg.HTML = "<p>" + html.EscapeString(req.Message) + "</p>"
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("Failed to mail reports", zap.String("userID", u.HexID()), zap.Error(err))
		return 0, ErrShareFailed
	}
	return len(attachments), nil
}

// Search runs a full-text query over the caller's finished reports.
func (s *Service) Search(ctx context.Context, userID, q string, limit, offset int64) ([]SearchHit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter + "q")
	}
	return s.index.Search(ctx, userID, q, int(limit), int(offset))
}

// Reindexer bulk-loads reports into the search index.
type Reindexer interface {
	Reindex(ctx context.Context, reports []*Report, refresh string) (int, error)
}

// Sync walks every finished report in batches and writes it to idx.
func Sync(ctx context.Context, repo Repository, idx Reindexer, batchSize int64, refresh string, logger *zap.Logger) (synced, total int, err error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	var after primitive.ObjectID
	for batch := 1; ; batch++ {
		reports, err := repo.ListFinished(ctx, after, batchSize)
		if err != nil {
			return synced, total, err
		}
		if len(reports) == 0 {
			return synced, total, nil
		}
		n, err := idx.Reindex(ctx, reports, refresh)
		if err != nil {
			logger.Error("Failed to index batch", zap.Int("batchNumber", batch), zap.Error(err))
		}
		synced += n
		total += len(reports)
		logger.Info("Indexed batch", zap.Int("batchNumber", batch), zap.Int("count", len(reports)), zap.Int("indexed", n))
		after = reports[len(reports)-1].ID
	}
}
