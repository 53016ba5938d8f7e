package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-scheduler/internal/dto"
	appErrors "github.com/noah-isme/sma-exam-scheduler/pkg/errors"
	"github.com/noah-isme/sma-exam-scheduler/pkg/jobs"
)

// ExportJobType labels queue jobs produced by ExportJobService.
const ExportJobType = "exam_schedule_export"

type runLoader interface {
	Run(ctx context.Context, runID string) (*dto.ExamScheduleRun, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportRenderer interface {
	Render(run *dto.ExamScheduleRun, q dto.ExportScheduleQuery) (*dto.ExportFile, error)
	Store(jobID, runID string, file *dto.ExportFile) (*StoredExport, error)
	ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
	Cleanup() ([]string, error)
}

// ExportJobConfig governs retention of job records and file cleanup.
type ExportJobConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

type exportJobRecord struct {
	resp    dto.ExportJobResponse
	token   string
	relPath string
	file    dto.ExportFile
}

// ExportJobService runs exports in the background and serves the results
// through signed download links.
type ExportJobService struct {
	runs     runLoader
	exporter exportRenderer
	queue    jobDispatcher
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ExportJobConfig
	now      func() time.Time

	mu   sync.RWMutex
	jobs map[string]*exportJobRecord
}

// NewExportJobService constructs the job service. SetQueue must be called
// before CreateJob when the queue is built after the service.
func NewExportJobService(runs runLoader, exporter exportRenderer, queue jobDispatcher, metrics *MetricsService, logger *zap.Logger, cfg ExportJobConfig) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = defaultExportRetained
	}
	return &ExportJobService{
		runs:     runs,
		exporter: exporter,
		queue:    queue,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		jobs:     make(map[string]*exportJobRecord),
	}
}

// SetQueue attaches the dispatcher. The queue handler is the service's own
// Handle method, so the two are built in sequence.
func (s *ExportJobService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// CreateJob validates the query, checks the run exists and enqueues rendering.
func (s *ExportJobService) CreateJob(ctx context.Context, runID string, q dto.ExportScheduleQuery) (*dto.ExportJobResponse, error) {
	q, err := NormalizeQuery(q)
	if err != nil {
		return nil, err
	}
	if _, err := s.runs.Run(ctx, runID); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue not configured")
	}

	record := &exportJobRecord{resp: dto.ExportJobResponse{
		JobID:     uuid.NewString(),
		RunID:     runID,
		Query:     q,
		Status:    dto.ExportJobQueued,
		CreatedAt: s.now().UTC(),
	}}
	s.mu.Lock()
	s.jobs[record.resp.JobID] = record
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: record.resp.JobID, Type: ExportJobType}); err != nil {
		s.finish(record.resp.JobID, dto.ExportJobFailed, "failed to enqueue job", nil)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	resp := record.resp
	return &resp, nil
}

// Status returns the current job state.
func (s *ExportJobService) Status(_ context.Context, jobID string) (*dto.ExportJobResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.jobs[jobID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	resp := record.resp
	return &resp, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ExportJobService) ResolveDownload(_ context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	s.mu.RLock()
	record, ok := s.jobs[jobID]
	var snap exportJobRecord
	if ok {
		snap = *record
	}
	s.mu.RUnlock()

	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if snap.resp.Status != dto.ExportJobFinished {
		return nil, appErrors.Clone(appErrors.ErrPrecondition, "export not ready")
	}
	if snap.token != token || snap.relPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file no longer available")
	}
	return &ExportDownload{
		File:        file,
		Filename:    downloadName(relPath, jobID),
		ContentType: snap.file.ContentType,
		ExpiresAt:   expiresAt,
	}, nil
}

// Handle processes one queued export. Errors are retried by the queue, except
// for runs that no longer exist which fail immediately.
func (s *ExportJobService) Handle(ctx context.Context, job jobs.Job) error {
	s.mu.Lock()
	record, ok := s.jobs[job.ID]
	var runID string
	var query dto.ExportScheduleQuery
	if ok {
		record.resp.Status = dto.ExportJobProcessing
		runID, query = record.resp.RunID, record.resp.Query
	}
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("export job vanished before processing", zap.String("job_id", job.ID))
		return nil
	}

	run, err := s.runs.Run(ctx, runID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) || errors.Is(err, appErrors.ErrResultExpired) {
			s.finish(job.ID, dto.ExportJobFailed, "schedule run expired", nil)
			return nil
		}
		s.requeue(job.ID, err)
		return err
	}

	file, err := s.exporter.Render(run, query)
	if err != nil {
		s.requeue(job.ID, err)
		return err
	}
	stored, err := s.exporter.Store(job.ID, runID, file)
	if err != nil {
		s.requeue(job.ID, err)
		return err
	}

	s.mu.Lock()
	if record, ok := s.jobs[job.ID]; ok {
		record.token = stored.Token
		record.relPath = stored.RelativePath
		record.file = dto.ExportFile{Filename: file.Filename, ContentType: file.ContentType}
	}
	s.mu.Unlock()
	s.finish(job.ID, dto.ExportJobFinished, "", stored)
	return nil
}

// GiveUp marks a job failed after the queue exhausted its retries.
func (s *ExportJobService) GiveUp(job jobs.Job, err error) {
	s.finish(job.ID, dto.ExportJobFailed, err.Error(), nil)
}

// StartCleanup purges expired job records and files until ctx is done.
func (s *ExportJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired()
			}
		}
	}()
}

func (s *ExportJobService) cleanupExpired() {
	cutoff := s.now().Add(-s.cfg.ResultTTL)
	s.mu.Lock()
	for id, record := range s.jobs {
		if record.resp.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	removed, err := s.exporter.Cleanup()
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("files", len(removed)))
	}
}

func (s *ExportJobService) requeue(jobID string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.jobs[jobID]; ok {
		record.resp.Status = dto.ExportJobQueued
		record.resp.Error = cause.Error()
	}
}

func (s *ExportJobService) finish(jobID, status, message string, stored *StoredExport) {
	s.mu.Lock()
	record, ok := s.jobs[jobID]
	if ok {
		now := s.now().UTC()
		record.resp.Status = status
		record.resp.Error = message
		record.resp.FinishedAt = &now
		if stored != nil {
			expires := stored.ExpiresAt
			record.resp.DownloadURL = stored.URL
			record.resp.ExpiresAt = &expires
		}
	}
	s.mu.Unlock()
	if ok {
		s.metrics.ObserveExportJob(status)
		s.logger.Info("export job finished", zap.String("job_id", jobID), zap.String("status", status), zap.String("error", message))
	}
}

func downloadName(relPath, jobID string) string {
	base := filepath.Base(relPath)
	prefix := jobID + "-"
	if len(base) > len(prefix) && base[:len(prefix)] == prefix {
		return base[len(prefix):]
	}
	return base
}
