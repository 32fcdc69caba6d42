package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable means the provider is not configured (no API key). Callers
// treat it as a soft failure: documents settle completed_no_vectors instead
// of failed.
var ErrUnavailable = errors.New("ai provider unavailable")

// Task types passed through to providers that distinguish document and query
// embeddings.
const (
	TaskDocument = "RETRIEVAL_DOCUMENT"
	TaskQuery    = "RETRIEVAL_QUERY"
)

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	ModelName() string
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	return e.provider.Embed(ctx, e.model, texts, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

type EmbedFactory func(args interface{}) (IEmbedProvider, error)

var embedRegistry = map[string]EmbedFactory{}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

// decodeConfig tolerates a nil args block: providers construct with zero
// credentials and surface ErrUnavailable on first use instead of failing boot.
func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
