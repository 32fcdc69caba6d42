package service

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/solenhart/docingest/internal/model"
	appErr "github.com/solenhart/docingest/internal/pkg/errors"
)

const defaultMaxBulkFiles = 20

// BulkFile is one member of a bulk upload, already saved to a temp path below
// the upload directory by the caller.
type BulkFile struct {
	Name string
	Path string
}

type BulkOptions struct {
	Category    string
	AutoProcess bool
}

// BulkProgress is the poll view of a job. ETASeconds extrapolates the average
// per-file time over the remaining files and is only set while running.
type BulkProgress struct {
	JobID           string                 `json:"job_id"`
	Status          string                 `json:"status"`
	TotalFiles      int                    `json:"total_files"`
	ProcessedFiles  int                    `json:"processed_files"`
	SuccessfulFiles int                    `json:"successful_files"`
	FailedFiles     int                    `json:"failed_files"`
	CurrentFile     string                 `json:"current_file,omitempty"`
	ProgressPercent float64                `json:"progress_percent"`
	ETASeconds      float64                `json:"eta_seconds,omitempty"`
	Results         []model.BulkFileResult `json:"results"`
	StartTime       int64                  `json:"start_time"`
	FinishedAt      int64                  `json:"finished_at,omitempty"`
}

// Uploader ingests one already-stored file. Satisfied by DocumentService.
type Uploader interface {
	UploadStored(ctx context.Context, path string, originalName string, opts UploadOptions) (*UploadResult, error)
}

// BulkService runs multi-file uploads. Files are validated and registered
// one at a time; per-document processing is handed to the background
// processor and not awaited. Jobs live in memory only.
type BulkService struct {
	mu       sync.RWMutex
	jobs     map[string]*model.BulkJob
	docs     Uploader
	maxFiles int
	now      func() time.Time
}

func NewBulkService(docs Uploader, maxFiles int) *BulkService {
	if maxFiles <= 0 {
		maxFiles = defaultMaxBulkFiles
	}
	return &BulkService{
		jobs:     make(map[string]*model.BulkJob),
		docs:     docs,
		maxFiles: maxFiles,
		now:      time.Now,
	}
}

// Start registers the job and returns immediately; the files are worked
// through on a background goroutine. Callers poll Progress with the job id.
func (s *BulkService) Start(ctx context.Context, files []BulkFile, opts BulkOptions) (*BulkProgress, error) {
	if len(files) == 0 {
		return nil, appErr.ErrInvalid
	}
	if len(files) > s.maxFiles {
		return nil, appErr.ErrTooMany
	}
	job := &model.BulkJob{
		ID:          newID(),
		TotalFiles:  len(files),
		Status:      model.BulkStatusProcessing,
		Category:    opts.Category,
		AutoProcess: opts.AutoProcess,
		Results:     make([]model.BulkFileResult, 0, len(files)),
		StartTime:   s.now(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	logutil.GetLogger(ctx).Info("bulk upload started",
		zap.String("bulk_job_id", job.ID),
		zap.Int("files", len(files)),
	)
	go s.run(context.Background(), job.ID, files, opts)
	return s.Progress(job.ID)
}

func (s *BulkService) Progress(jobID string) (*BulkProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return s.snapshot(job), nil
}

// CleanupExpired drops finished jobs older than maxAge and reports how many
// were removed. Running jobs are never dropped.
func (s *BulkService) CleanupExpired(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.Status == model.BulkStatusPending || job.Status == model.BulkStatusProcessing {
			continue
		}
		if job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed += 1
		}
	}
	return removed
}

func (s *BulkService) run(ctx context.Context, jobID string, files []BulkFile, opts BulkOptions) {
	logger := logutil.GetLogger(ctx).With(zap.String("bulk_job_id", jobID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("bulk upload panicked", zap.Any("panic", r))
			s.abort(jobID)
		}
	}()
	for _, file := range files {
		s.setCurrent(jobID, file.Name)
		result := s.handleFile(ctx, file, opts)
		s.record(jobID, result)
		if !result.Success {
			logger.Warn("bulk file rejected",
				zap.String("filename", file.Name),
				zap.String("message", result.Message),
			)
		}
	}
	s.finish(jobID)
	logger.Info("bulk upload finished")
}

func (s *BulkService) handleFile(ctx context.Context, file BulkFile, opts BulkOptions) model.BulkFileResult {
	res, err := s.docs.UploadStored(ctx, file.Path, file.Name, UploadOptions{
		Category:    opts.Category,
		AutoProcess: opts.AutoProcess,
	})
	if err != nil {
		return model.BulkFileResult{Filename: file.Name, Message: err.Error()}
	}
	if !res.Created {
		return model.BulkFileResult{
			Filename:    file.Name,
			DuplicateOf: res.Document.ID,
			Message:     "duplicate content of existing document",
		}
	}
	return model.BulkFileResult{Filename: file.Name, Success: true, DocumentID: res.Document.ID}
}

func (s *BulkService) setCurrent(jobID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		job.CurrentFile = name
	}
}

func (s *BulkService) record(jobID string, result model.BulkFileResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.Results = append(job.Results, result)
	job.ProcessedFiles += 1
	if result.Success {
		job.SuccessfulFiles += 1
	} else {
		job.FailedFiles += 1
	}
}

func (s *BulkService) finish(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.CurrentFile = ""
	job.FinishedAt = s.now()
	switch {
	case job.FailedFiles == 0:
		job.Status = model.BulkStatusCompleted
	case job.FailedFiles == job.TotalFiles:
		job.Status = model.BulkStatusFailed
	default:
		job.Status = model.BulkStatusPartial
	}
}

func (s *BulkService) abort(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.CurrentFile = ""
	job.FinishedAt = s.now()
	job.Status = model.BulkStatusFailed
}

// snapshot copies the mutable pieces while still under the lock.
func (s *BulkService) snapshot(job *model.BulkJob) *BulkProgress {
	progress := 0.0
	if job.TotalFiles > 0 {
		progress = float64(job.ProcessedFiles) / float64(job.TotalFiles) * 100
	}
	out := &BulkProgress{
		JobID:           job.ID,
		Status:          job.Status,
		TotalFiles:      job.TotalFiles,
		ProcessedFiles:  job.ProcessedFiles,
		SuccessfulFiles: job.SuccessfulFiles,
		FailedFiles:     job.FailedFiles,
		CurrentFile:     job.CurrentFile,
		ProgressPercent: progress,
		Results:         append([]model.BulkFileResult(nil), job.Results...),
		StartTime:       job.StartTime.Unix(),
	}
	if !job.FinishedAt.IsZero() {
		out.FinishedAt = job.FinishedAt.Unix()
	}
	if job.Status == model.BulkStatusProcessing && job.ProcessedFiles > 0 {
		elapsed := s.now().Sub(job.StartTime).Seconds()
		remaining := job.TotalFiles - job.ProcessedFiles
		out.ETASeconds = elapsed / float64(job.ProcessedFiles) * float64(remaining)
	}
	return out
}
