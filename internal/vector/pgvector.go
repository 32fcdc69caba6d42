package vector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/solenhart/docingest/internal/ai"
)

const (
	defaultEmbedBatch   = 16
	defaultEmbedWorkers = 4
)

// PgvectorStore keeps chunk embeddings in a pgvector column next to the
// relational rows, so one Postgres serves both stores.
type PgvectorStore struct {
	db       *sql.DB
	embedder ai.IEmbedder
	batch    int
	workers  int
}

func NewPgvectorStore(db *sql.DB, embedder ai.IEmbedder, batch, workers int) *PgvectorStore {
	if batch <= 0 {
		batch = defaultEmbedBatch
	}
	if workers <= 0 {
		workers = defaultEmbedWorkers
	}
	return &PgvectorStore{db: db, embedder: embedder, batch: batch, workers: workers}
}

func (s *PgvectorStore) AddDocuments(ctx context.Context, texts []string, metas []Meta, ids []string) error {
	if len(texts) != len(metas) || len(texts) != len(ids) {
		return fmt.Errorf("texts/metas/ids length mismatch: %d/%d/%d", len(texts), len(metas), len(ids))
	}
	if len(texts) == 0 {
		return nil
	}
	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO chunk_embeddings (vector_id, document_id, chunk_index, content, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (vector_id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	now := time.Now().Unix()
	for i := range texts {
		_, err := s.db.ExecContext(ctx, query,
			ids[i],
			metas[i].DocumentID,
			metas[i].ChunkIndex,
			texts[i],
			pgvector.NewVector(vectors[i]),
			now,
		)
		if err != nil {
			return fmt.Errorf("index chunk %s: %w", ids[i], err)
		}
	}
	logutil.GetLogger(ctx).Info("indexed chunks",
		zap.Int("count", len(texts)),
		zap.String("document_id", metas[0].DocumentID),
	)
	return nil
}

func (s *PgvectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	const query = `DELETE FROM chunk_embeddings WHERE document_id = $1`
	_, err := s.db.ExecContext(ctx, query, documentID)
	return err
}

// Search embeds the query and ranks by cosine distance. Score converts
// distance (0..2) into 1..0 via score = 1 - distance/2.
func (s *PgvectorStore) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}
	vectors, err := s.embedder.Embed(ctx, []string{query}, ai.TaskQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no query embedding returned")
	}
	const sqlQuery = `
		SELECT vector_id, document_id, chunk_index, content, embedding <=> $1 AS distance
		FROM chunk_embeddings
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, sqlQuery, pgvector.NewVector(vectors[0]), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	matches := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.VectorID, &m.DocumentID, &m.ChunkIndex, &m.Content, &distance); err != nil {
			return nil, err
		}
		m.Score = 1 - distance/2
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// embedAll runs provider calls in bounded batches; results keep input order.
func (s *PgvectorStore) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for start := 0; start < len(texts); start += s.batch {
		end := start + s.batch
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			batch, err := s.embedder.Embed(gctx, texts[start:end], ai.TaskDocument)
			if err != nil {
				return err
			}
			if len(batch) != end-start {
				return fmt.Errorf("expected %d embeddings, got %d", end-start, len(batch))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
