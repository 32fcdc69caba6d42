package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/solenhart/docingest/internal/ai"
	"github.com/solenhart/docingest/internal/extract"
	"github.com/solenhart/docingest/internal/ingest"
	"github.com/solenhart/docingest/internal/model"
	appErr "github.com/solenhart/docingest/internal/pkg/errors"
	"github.com/solenhart/docingest/internal/repo"
	"github.com/solenhart/docingest/internal/vector"
)

type DocumentServiceOptions struct {
	UploadDir          string
	MaxUploadBytes     int64
	MaxFilenameLen     int
	SkipDuplicateCheck bool
	SearchTopK         int
}

type DocumentService struct {
	docs      *repo.DocumentRepo
	chunks    *repo.ChunkRepo
	vectors   vector.Store
	processor *Processor
	renamer   *ingest.Renamer
	opts      DocumentServiceOptions
	now       func() time.Time
}

func NewDocumentService(docs *repo.DocumentRepo, chunks *repo.ChunkRepo, vectors vector.Store, processor *Processor, renamer *ingest.Renamer, opts DocumentServiceOptions) *DocumentService {
	if renamer == nil {
		renamer = ingest.NewRenamer(0, 0)
	}
	if opts.SearchTopK <= 0 {
		opts.SearchTopK = 10
	}
	return &DocumentService{
		docs:      docs,
		chunks:    chunks,
		vectors:   vectors,
		processor: processor,
		renamer:   renamer,
		opts:      opts,
		now:       time.Now,
	}
}

type UploadOptions struct {
	Category    string
	AutoProcess bool
}

// UploadResult reports either a freshly created document or, when the content
// hash matched an existing one, the document the upload duplicates.
type UploadResult struct {
	Document  *model.Document        `json:"document"`
	Created   bool                   `json:"created"`
	Duplicate *ingest.DuplicateMatch `json:"-"`
}

// Upload stores the stream under the upload directory and registers the
// document. Duplicate content is detected before any row is created: the
// caller gets the existing document back and no new state is left behind.
func (s *DocumentService) Upload(ctx context.Context, filename string, size int64, content io.Reader, opts UploadOptions) (*UploadResult, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, appErr.ErrInvalid
	}
	if !extract.IsSupported(filename) {
		return nil, appErr.ErrUnsupportedFormat
	}
	if s.opts.MaxUploadBytes > 0 && size > s.opts.MaxUploadBytes {
		return nil, appErr.ErrFileTooLarge
	}
	tmpPath, err := s.saveTemp(content)
	if err != nil {
		return nil, err
	}
	return s.ingestStored(ctx, tmpPath, filename, opts)
}

// UploadStored ingests a file already saved below the upload directory. The
// file is consumed either way: moved into place on success, removed on
// duplicates and failures.
func (s *DocumentService) UploadStored(ctx context.Context, path string, originalName string, opts UploadOptions) (*UploadResult, error) {
	if !extract.IsSupported(originalName) {
		_ = os.Remove(path)
		return nil, appErr.ErrUnsupportedFormat
	}
	if s.opts.MaxUploadBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > s.opts.MaxUploadBytes {
			_ = os.Remove(path)
			return nil, appErr.ErrFileTooLarge
		}
	}
	return s.ingestStored(ctx, path, originalName, opts)
}

func (s *DocumentService) ingestStored(ctx context.Context, tmpPath string, originalName string, opts UploadOptions) (*UploadResult, error) {
	logger := logutil.GetLogger(ctx)
	info, err := os.Stat(tmpPath)
	if err != nil {
		return nil, err
	}
	hash, err := ingest.ContentHash(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	if !s.opts.SkipDuplicateCheck {
		existing, err := s.docs.GetByHash(ctx, hash)
		if err == nil {
			_ = os.Remove(tmpPath)
			logger.Info("upload duplicates existing content",
				zap.String("filename", originalName),
				zap.String("existing_id", existing.ID),
			)
			return duplicateResult(existing), nil
		}
		if !errors.Is(err, appErr.ErrNotFound) {
			_ = os.Remove(tmpPath)
			return nil, err
		}
	}

	originalName = filepath.Base(originalName)
	ext := strings.ToLower(filepath.Ext(originalName))
	base := ingest.SafeFilename(strings.TrimSuffix(originalName, filepath.Ext(originalName)), s.opts.MaxFilenameLen)
	target, err := s.renamer.UniqueTarget(s.opts.UploadDir, base, ext)
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("store upload: %w", err)
	}

	doc := &model.Document{
		ID:               newID(),
		OriginalFilename: originalName,
		StoredFilename:   filepath.Base(target),
		FilePath:         target,
		FileType:         strings.TrimPrefix(ext, "."),
		FileSize:         info.Size(),
		ContentHash:      hash,
		Title:            strings.TrimSpace(strings.TrimSuffix(originalName, filepath.Ext(originalName))),
		Category:         opts.Category,
		Status:           model.DocStatusUploaded,
		ProcessingStatus: model.ProcStatusPending,
		Ctime:            s.now().Unix(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		_ = os.Remove(target)
		if errors.Is(err, appErr.ErrConflict) {
			// unique index on content_hash caught a concurrent upload
			if existing, lookupErr := s.docs.GetByHash(ctx, hash); lookupErr == nil {
				return duplicateResult(existing), nil
			}
		}
		return nil, err
	}
	logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("filename", originalName),
		zap.Int64("size", doc.FileSize),
	)

	if opts.AutoProcess {
		if err := s.processor.Start(ctx, doc.ID, false); err != nil {
			logger.Warn("auto processing did not start",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
		}
	}
	return &UploadResult{Document: doc, Created: true}, nil
}

func duplicateResult(existing *model.Document) *UploadResult {
	return &UploadResult{
		Document: existing,
		Duplicate: &ingest.DuplicateMatch{
			Kind:       ingest.DuplicateContent,
			DocumentID: existing.ID,
			Filename:   existing.OriginalFilename,
		},
	}
}

// saveTemp copies the stream into the upload directory so the later rename
// into the final name stays on one filesystem. The size cap is enforced on
// actual bytes, not the declared length.
func (s *DocumentService) saveTemp(content io.Reader) (string, error) {
	f, err := os.CreateTemp(s.opts.UploadDir, ".upload-*")
	if err != nil {
		return "", err
	}
	reader := content
	if s.opts.MaxUploadBytes > 0 {
		reader = io.LimitReader(content, s.opts.MaxUploadBytes+1)
	}
	written, err := io.Copy(f, reader)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && s.opts.MaxUploadBytes > 0 && written > s.opts.MaxUploadBytes {
		err = appErr.ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (s *DocumentService) Get(ctx context.Context, docID string) (*model.Document, error) {
	return s.docs.GetByID(ctx, docID)
}

type DocumentPage struct {
	Documents []model.Document `json:"documents"`
	Total     int              `json:"total"`
}

func (s *DocumentService) List(ctx context.Context, status string, limit, offset uint) (*DocumentPage, error) {
	docs, err := s.docs.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.docs.Count(ctx, status)
	if err != nil {
		return nil, err
	}
	return &DocumentPage{Documents: docs, Total: total}, nil
}

func (s *DocumentService) Chunks(ctx context.Context, docID string) ([]model.Chunk, error) {
	if _, err := s.docs.GetByID(ctx, docID); err != nil {
		return nil, err
	}
	return s.chunks.ListByDocument(ctx, docID)
}

// Delete removes vectors first, then the row (chunks cascade), then the file.
// A missing file is not an error; losing the row is the point of no return.
func (s *DocumentService) Delete(ctx context.Context, docID string) error {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if s.vectors != nil {
		if err := s.vectors.DeleteDocument(ctx, docID); err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}
	}
	if err := s.docs.Delete(ctx, docID); err != nil {
		return err
	}
	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			logutil.GetLogger(ctx).Warn("remove stored file",
				zap.String("document_id", docID),
				zap.String("path", doc.FilePath),
				zap.Error(err),
			)
		}
	}
	logutil.GetLogger(ctx).Info("document deleted", zap.String("document_id", docID))
	return nil
}

// Reprocess pushes the document through the pipeline again in the background.
// force recovers documents stuck in the processing state.
func (s *DocumentService) Reprocess(ctx context.Context, docID string, force bool) error {
	return s.processor.Start(ctx, docID, force)
}

func (s *DocumentService) Search(ctx context.Context, query string, topK int) ([]vector.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, appErr.ErrInvalid
	}
	if s.vectors == nil {
		return nil, ai.ErrUnavailable
	}
	if topK <= 0 {
		topK = s.opts.SearchTopK
	}
	return s.vectors.Search(ctx, query, topK)
}

func (s *DocumentService) Formats() []string {
	return extract.Supported()
}
