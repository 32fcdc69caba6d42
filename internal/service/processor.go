package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/solenhart/docingest/internal/archive"
	"github.com/solenhart/docingest/internal/ingest"
	"github.com/solenhart/docingest/internal/model"
	appErr "github.com/solenhart/docingest/internal/pkg/errors"
	"github.com/solenhart/docingest/internal/repo"
	"github.com/solenhart/docingest/internal/vector"
)

type ProcessorOptions struct {
	ChunkSize       int
	ChunkOverlap    int
	AutoRename      bool
	CheckDuplicates bool
	MaxFilenameLen  int
}

// Processor drives one uploaded document through extraction, dedup, rename,
// chunking, persistence and vector indexing. It owns every status transition
// after upload: processing, completed, completed_no_vectors, failed and error.
type Processor struct {
	docs     *repo.DocumentRepo
	chunks   *repo.ChunkRepo
	pipeline *ingest.Pipeline
	vectors  vector.Store
	archiver archive.Archiver
	opts     ProcessorOptions
	now      func() time.Time
}

func NewProcessor(docs *repo.DocumentRepo, chunks *repo.ChunkRepo, pipeline *ingest.Pipeline, vectors vector.Store, archiver archive.Archiver, opts ProcessorOptions) *Processor {
	return &Processor{
		docs:     docs,
		chunks:   chunks,
		pipeline: pipeline,
		vectors:  vectors,
		archiver: archiver,
		opts:     opts,
		now:      time.Now,
	}
}

// Start claims the document and processes it in the background. The claim is
// a compare-and-set on status, so concurrent requests for the same document
// cannot both win; force skips the guard to recover documents stuck in
// processing after a crash.
func (p *Processor) Start(ctx context.Context, docID string, force bool) error {
	if err := p.claim(ctx, docID, force); err != nil {
		return err
	}
	go p.runDetached(docID)
	return nil
}

// Run claims the document and processes it on the calling goroutine. Used by
// CLI paths that want the result before exiting.
func (p *Processor) Run(ctx context.Context, docID string, force bool) error {
	if err := p.claim(ctx, docID, force); err != nil {
		return err
	}
	return p.process(ctx, docID)
}

func (p *Processor) claim(ctx context.Context, docID string, force bool) error {
	doc, err := p.docs.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if force {
		return p.docs.SetProcessing(ctx, docID)
	}
	if doc.Status == model.DocStatusProcessing {
		return appErr.ErrAlreadyProcessing
	}
	updated, err := p.docs.UpdateStatusIf(ctx, docID, doc.Status, model.DocStatusProcessing)
	if err != nil {
		return err
	}
	if !updated {
		return appErr.ErrAlreadyProcessing
	}
	return p.docs.SetProcessing(ctx, docID)
}

func (p *Processor) runDetached(docID string) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			logutil.GetLogger(ctx).Error("document processing panicked",
				zap.String("document_id", docID),
				zap.Any("panic", r),
			)
			_ = p.docs.SetError(ctx, docID, fmt.Sprintf("processing aborted: %v", r), p.now().Unix())
		}
	}()
	if err := p.process(ctx, docID); err != nil {
		logutil.GetLogger(ctx).Error("document processing failed",
			zap.String("document_id", docID),
			zap.Error(err),
		)
	}
}

func (p *Processor) process(ctx context.Context, docID string) error {
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", docID))
	doc, err := p.docs.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	catalog, err := p.catalogExcluding(ctx, docID)
	if err != nil {
		return p.fail(ctx, docID, fmt.Errorf("load dedup catalog: %w", err))
	}

	outcome, err := p.pipeline.Process(ctx, ingest.Input{
		Path:         doc.FilePath,
		OriginalName: doc.OriginalFilename,
	}, ingest.Options{
		ChunkSize:       p.opts.ChunkSize,
		ChunkOverlap:    p.opts.ChunkOverlap,
		AutoRename:      p.opts.AutoRename,
		CheckDuplicates: p.opts.CheckDuplicates,
		Catalog:         catalog,
		MaxFilenameLen:  p.opts.MaxFilenameLen,
	})
	if err != nil {
		return p.fail(ctx, docID, err)
	}
	if outcome.Duplicate != nil {
		// Upload already rejects duplicates, so reaching this point means a
		// document with the same content finished inserting concurrently.
		logger.Warn("duplicate content found during processing",
			zap.String("existing_id", outcome.Duplicate.DocumentID))
		return p.fail(ctx, docID, fmt.Errorf("duplicate content of document %s", outcome.Duplicate.DocumentID))
	}
	for _, warning := range outcome.Warnings {
		logger.Warn("pipeline warning", zap.String("warning", warning))
	}

	if _, err := p.chunks.DeleteByDocument(ctx, docID); err != nil {
		return p.fail(ctx, docID, fmt.Errorf("clear old chunks: %w", err))
	}
	nowUnix := p.now().Unix()
	rows := make([]model.Chunk, 0, len(outcome.Chunks))
	for _, chunk := range outcome.Chunks {
		rows = append(rows, model.Chunk{
			DocumentID:    docID,
			ChunkIndex:    chunk.Index,
			Content:       chunk.Content,
			WordCount:     chunk.WordCount,
			CharCount:     chunk.CharCount,
			SentenceCount: chunk.SentenceCount,
			Ctime:         nowUnix,
		})
	}
	if err := p.chunks.InsertBatch(ctx, rows); err != nil {
		return p.fail(ctx, docID, fmt.Errorf("store chunks: %w", err))
	}

	status := model.DocStatusCompleted
	if p.vectors == nil {
		status = model.DocStatusCompletedNoVectors
	} else if err := p.index(ctx, docID, outcome.Chunks); err != nil {
		logger.Warn("vector indexing failed", zap.Error(err))
		status = model.DocStatusCompletedNoVectors
	}

	meta := outcome.Metadata
	doc.StoredFilename = meta.FinalFilename
	doc.FilePath = meta.FinalPath
	doc.ContentHash = meta.FileHash
	if meta.ExtractedTitle != "" {
		doc.Title = meta.ExtractedTitle
	}
	doc.Status = status
	doc.TotalChunks = meta.TotalChunks
	doc.WordCount = meta.WordCount
	doc.CharCount = meta.CharCount
	doc.TotalPages = meta.TotalPages
	doc.WasRenamed = meta.WasRenamed
	doc.RenameReason = meta.RenameReason
	doc.Metadata = meta.Extra
	doc.ProcessedAt = p.now().Unix()
	if err := p.docs.Complete(ctx, doc); err != nil {
		return err
	}

	if p.archiver != nil {
		key := path.Join(doc.ID, doc.StoredFilename)
		if err := p.archiver.Store(ctx, key, doc.FilePath); err != nil {
			logger.Warn("archive upload failed", zap.String("key", key), zap.Error(err))
		}
	}

	logger.Info("document processed",
		zap.String("status", status),
		zap.Int("chunks", meta.TotalChunks),
		zap.Int("words", meta.WordCount),
		zap.Bool("renamed", meta.WasRenamed),
	)
	return nil
}

// RetryIndexing re-embeds a document that completed without vectors. It reuses
// the stored chunks instead of re-running extraction.
func (p *Processor) RetryIndexing(ctx context.Context, docID string) error {
	if p.vectors == nil {
		return appErr.ErrInvalid
	}
	doc, err := p.docs.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Status != model.DocStatusCompletedNoVectors {
		return appErr.ErrInvalid
	}
	rows, err := p.chunks.ListByDocument(ctx, docID)
	if err != nil {
		return err
	}
	records := make([]ingest.ChunkRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, ingest.ChunkRecord{Index: row.ChunkIndex, Content: row.Content})
	}
	if err := p.index(ctx, docID, records); err != nil {
		return err
	}
	return p.docs.SetStatus(ctx, docID, model.DocStatusCompleted, model.ProcStatusCompleted)
}

// index replaces the document's vectors: delete everything first so a
// reprocess with fewer chunks leaves no stale entries behind.
func (p *Processor) index(ctx context.Context, docID string, chunks []ingest.ChunkRecord) error {
	if err := p.vectors.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("clear old vectors: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, 0, len(chunks))
	metas := make([]vector.Meta, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Content)
		metas = append(metas, vector.Meta{DocumentID: docID, ChunkIndex: chunk.Index})
		ids = append(ids, vector.ChunkVectorID(docID, chunk.Index))
	}
	return p.vectors.AddDocuments(ctx, texts, metas, ids)
}

func (p *Processor) fail(ctx context.Context, docID string, cause error) error {
	logger := logutil.GetLogger(ctx)
	if _, err := p.chunks.DeleteByDocument(ctx, docID); err != nil {
		logger.Warn("clear chunks of failed document", zap.String("document_id", docID), zap.Error(err))
	}
	if p.vectors != nil {
		if err := p.vectors.DeleteDocument(ctx, docID); err != nil {
			logger.Warn("clear vectors of failed document", zap.String("document_id", docID), zap.Error(err))
		}
	}
	if err := p.docs.Fail(ctx, docID, cause.Error(), p.now().Unix()); err != nil {
		logger.Error("mark document failed", zap.String("document_id", docID), zap.Error(err))
	}
	return cause
}

func (p *Processor) catalogExcluding(ctx context.Context, docID string) ([]ingest.CatalogEntry, error) {
	entries, err := p.docs.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]ingest.CatalogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.DocumentID == docID {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered, nil
}
