package vector

import (
	"context"
	"fmt"
)

// Meta identifies the chunk behind one indexed vector.
type Meta struct {
	DocumentID string
	ChunkIndex int
}

type Match struct {
	VectorID   string  `json:"vector_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// Store is the outbound contract to the vector index. Implementations must
// tolerate DeleteDocument for ids that were never added.
type Store interface {
	AddDocuments(ctx context.Context, texts []string, metas []Meta, ids []string) error
	DeleteDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, query string, topK int) ([]Match, error)
}

// ChunkVectorID builds the stable id scheme shared with downstream
// consumers: doc_{documentID}_chunk_{index}.
func ChunkVectorID(documentID string, index int) string {
	return fmt.Sprintf("doc_%s_chunk_%d", documentID, index)
}
