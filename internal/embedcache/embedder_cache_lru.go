package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/solenhart/docingest/internal/ai"
)

// WrapLruCacheToEmbedder memoizes embeddings by content hash so reprocess
// cycles and repeated queries skip paid provider calls for unchanged text.
func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if l == nil || l.next == nil {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	missing := make([]string, 0)
	missingIdx := make([]int, 0)
	hits := 0
	for i, text := range texts {
		key := buildCacheKey(l.next.ModelName(), taskType, text)
		if cached, ok := l.cache.Get(key); ok {
			out[i] = cloneEmbedding(cached)
			hits += 1
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)",
			zap.Int("hits", hits),
			zap.Int("misses", len(missing)),
			zap.String("task_type", taskType),
		)
	}
	if len(missing) == 0 {
		return out, nil
	}
	fresh, err := l.next.Embed(ctx, missing, taskType)
	if err != nil {
		return nil, err
	}
	for j, vec := range fresh {
		key := buildCacheKey(l.next.ModelName(), taskType, missing[j])
		l.cache.Add(key, cloneEmbedding(vec))
		out[missingIdx[j]] = vec
	}
	return out, nil
}

func (l *lruEmbedder) ModelName() string {
	if l == nil || l.next == nil {
		return ""
	}
	return l.next.ModelName()
}

func buildCacheKey(modelName, taskType, text string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	return "embed:" + modelName + ":" + taskType + ":" + hex.EncodeToString(hash[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
