package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/solenhart/docingest/internal/ingest"
	"github.com/solenhart/docingest/internal/model"
	"github.com/solenhart/docingest/internal/pkg/dbutil"
	appErr "github.com/solenhart/docingest/internal/pkg/errors"
)

var documentColumns = []string{
	"id", "original_filename", "stored_filename", "file_path", "file_type",
	"file_size", "content_hash", "title", "category", "status",
	"processing_status", "error_message", "total_chunks", "word_count",
	"char_count", "total_pages", "was_renamed", "rename_reason",
	"metadata_json", "ctime", "processed_at",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// metadataJSON serializes the extractor passthrough map; an absent map is
// stored as an empty object so the column stays valid JSON.
func metadataJSON(meta map[string]string) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	blob, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(blob), nil
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	metaJSON, err := metadataJSON(doc.Metadata)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":                doc.ID,
		"original_filename": doc.OriginalFilename,
		"stored_filename":   doc.StoredFilename,
		"file_path":         doc.FilePath,
		"file_type":         doc.FileType,
		"file_size":         doc.FileSize,
		"content_hash":      doc.ContentHash,
		"title":             doc.Title,
		"category":          doc.Category,
		"status":            doc.Status,
		"processing_status": doc.ProcessingStatus,
		"error_message":     doc.ErrorMessage,
		"total_chunks":      doc.TotalChunks,
		"word_count":        doc.WordCount,
		"char_count":        doc.CharCount,
		"total_pages":       doc.TotalPages,
		"was_renamed":       doc.WasRenamed,
		"rename_reason":     doc.RenameReason,
		"metadata_json":     metaJSON,
		"ctime":             doc.Ctime,
		"processed_at":      doc.ProcessedAt,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", map[string]interface{}{"id": docID}, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanDocument(rows)
}

func (r *DocumentRepo) GetByHash(ctx context.Context, contentHash string) (*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", map[string]interface{}{"content_hash": contentHash}, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanDocument(rows)
}

// ListCatalog loads the dedup view of every live document.
func (r *DocumentRepo) ListCatalog(ctx context.Context) ([]ingest.CatalogEntry, error) {
	const query = `SELECT id, original_filename, file_size, content_hash FROM documents`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]ingest.CatalogEntry, 0)
	for rows.Next() {
		var e ingest.CatalogEntry
		if err := rows.Scan(&e.DocumentID, &e.Filename, &e.FileSize, &e.ContentHash); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *DocumentRepo) List(ctx context.Context, status string, limit, offset uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc",
	}
	if status != "" {
		where["status"] = status
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) Count(ctx context.Context, status string) (int, error) {
	query := "SELECT COUNT(1) FROM documents"
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query, args = dbutil.Finalize(query, args)
	row := r.db.QueryRowContext(ctx, query, args...)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListByStatus returns ids of documents currently in the given status, used
// by the reindex pass over completed_no_vectors documents.
func (r *DocumentRepo) ListByStatus(ctx context.Context, status string) ([]model.Document, error) {
	return r.List(ctx, status, 0, 0)
}

// UpdateStatusIf flips status only when the current value matches, the
// reentrancy guard for concurrent processing requests.
func (r *DocumentRepo) UpdateStatusIf(ctx context.Context, docID, from, to string) (bool, error) {
	where := map[string]interface{}{
		"id":     docID,
		"status": from,
	}
	update := map[string]interface{}{
		"status": to,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetProcessing moves a document into the processing state and clears the
// residue of any earlier attempt.
func (r *DocumentRepo) SetProcessing(ctx context.Context, docID string) error {
	update := map[string]interface{}{
		"status":            model.DocStatusProcessing,
		"processing_status": model.ProcStatusProcessing,
		"error_message":     "",
		"processed_at":      0,
	}
	return r.updateByID(ctx, docID, update)
}

// Complete writes every field the pipeline resolved and settles the final
// status (completed or completed_no_vectors).
func (r *DocumentRepo) Complete(ctx context.Context, doc *model.Document) error {
	metaJSON, err := metadataJSON(doc.Metadata)
	if err != nil {
		return err
	}
	update := map[string]interface{}{
		"stored_filename":   doc.StoredFilename,
		"file_path":         doc.FilePath,
		"content_hash":      doc.ContentHash,
		"title":             doc.Title,
		"status":            doc.Status,
		"processing_status": model.ProcStatusCompleted,
		"error_message":     "",
		"total_chunks":      doc.TotalChunks,
		"word_count":        doc.WordCount,
		"char_count":        doc.CharCount,
		"total_pages":       doc.TotalPages,
		"was_renamed":       doc.WasRenamed,
		"rename_reason":     doc.RenameReason,
		"metadata_json":     metaJSON,
		"processed_at":      doc.ProcessedAt,
	}
	return r.updateByID(ctx, doc.ID, update)
}

func (r *DocumentRepo) Fail(ctx context.Context, docID, message string, processedAt int64) error {
	update := map[string]interface{}{
		"status":            model.DocStatusFailed,
		"processing_status": model.ProcStatusFailed,
		"error_message":     message,
		"processed_at":      processedAt,
	}
	return r.updateByID(ctx, docID, update)
}

// SetError marks a document whose background task crashed.
func (r *DocumentRepo) SetError(ctx context.Context, docID, message string, processedAt int64) error {
	update := map[string]interface{}{
		"status":            model.DocStatusError,
		"processing_status": model.ProcStatusFailed,
		"error_message":     message,
		"processed_at":      processedAt,
	}
	return r.updateByID(ctx, docID, update)
}

// SetStatus overwrites the status pair without touching pipeline results,
// used by the indexing-only retry path.
func (r *DocumentRepo) SetStatus(ctx context.Context, docID, status, processingStatus string) error {
	update := map[string]interface{}{
		"status":            status,
		"processing_status": processingStatus,
	}
	return r.updateByID(ctx, docID, update)
}

func (r *DocumentRepo) Delete(ctx context.Context, docID string) error {
	sqlStr, args, err := builder.BuildDelete("documents", map[string]interface{}{"id": docID})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) updateByID(ctx context.Context, docID string, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("documents", map[string]interface{}{"id": docID}, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

type documentScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(s documentScanner) (*model.Document, error) {
	var doc model.Document
	var metaJSON string
	if err := s.Scan(
		&doc.ID,
		&doc.OriginalFilename,
		&doc.StoredFilename,
		&doc.FilePath,
		&doc.FileType,
		&doc.FileSize,
		&doc.ContentHash,
		&doc.Title,
		&doc.Category,
		&doc.Status,
		&doc.ProcessingStatus,
		&doc.ErrorMessage,
		&doc.TotalChunks,
		&doc.WordCount,
		&doc.CharCount,
		&doc.TotalPages,
		&doc.WasRenamed,
		&doc.RenameReason,
		&metaJSON,
		&doc.Ctime,
		&doc.ProcessedAt,
	); err != nil {
		return nil, err
	}
	if metaJSON != "" && metaJSON != "{}" {
		_ = json.Unmarshal([]byte(metaJSON), &doc.Metadata)
	}
	return &doc, nil
}
