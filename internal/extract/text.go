package extract

import (
	"context"
	"os"
)

type textExtractor struct{}

func init() {
	txt := &textExtractor{}
	Register(".txt", txt)
	Register(".text", txt)
	Register(".log", txt)
}

func (e *textExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Result{Text: string(data), Meta: map[string]string{}}, nil
}
