package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/solenhart/docingest/internal/model"
	"github.com/solenhart/docingest/internal/pkg/dbutil"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		rows = append(rows, map[string]interface{}{
			"document_id":    chunk.DocumentID,
			"chunk_index":    chunk.ChunkIndex,
			"content":        chunk.Content,
			"word_count":     chunk.WordCount,
			"char_count":     chunk.CharCount,
			"sentence_count": chunk.SentenceCount,
			"page_number":    chunk.PageNumber,
			"ctime":          chunk.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("chunks", rows)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, docID string) ([]model.Chunk, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"_orderby":    "chunk_index asc",
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, []string{
		"document_id", "chunk_index", "content", "word_count", "char_count", "sentence_count", "page_number", "ctime",
	})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0)
	for rows.Next() {
		var chunk model.Chunk
		if err := rows.Scan(
			&chunk.DocumentID,
			&chunk.ChunkIndex,
			&chunk.Content,
			&chunk.WordCount,
			&chunk.CharCount,
			&chunk.SentenceCount,
			&chunk.PageNumber,
			&chunk.Ctime,
		); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// DeleteByDocument clears all chunk rows ahead of a reprocess; chunks are
// recreated wholesale, never patched.
func (r *ChunkRepo) DeleteByDocument(ctx context.Context, docID string) (int64, error) {
	const query = `DELETE FROM chunks WHERE document_id = $1`
	res, err := r.db.ExecContext(ctx, query, docID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
