package extract

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	appErr "github.com/solenhart/docingest/internal/pkg/errors"
)

// Result is the output of one extraction. Meta carries normalized keys
// ("title", "pages") when the format exposes them.
type Result struct {
	Text string
	Meta map[string]string
}

type Extractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Extractor{}
)

// Register binds an extractor to one extension (".pdf"). Later registrations
// for the same extension win, which lets tests swap in fakes.
func Register(ext string, e Extractor) {
	key := normalizeExt(ext)
	if key == "" || e == nil {
		return
	}
	registryMu.Lock()
	registry[key] = e
	registryMu.Unlock()
}

// Lookup resolves the extractor for a filename by extension.
func Lookup(filename string) (Extractor, string, error) {
	ext := normalizeExt(filepath.Ext(filename))
	if ext == "" {
		return nil, "", appErr.ErrUnsupportedFormat
	}
	registryMu.RLock()
	e := registry[ext]
	registryMu.RUnlock()
	if e == nil {
		return nil, ext, appErr.ErrUnsupportedFormat
	}
	return e, ext, nil
}

// ExtractFile dispatches by the original filename's extension and runs the
// extractor against the stored path. Extractions that produce no usable text
// fail with ErrEmptyContent.
func ExtractFile(ctx context.Context, path string, originalName string) (*Result, string, error) {
	e, ext, err := Lookup(originalName)
	if err != nil {
		return nil, ext, err
	}
	res, err := e.Extract(ctx, path)
	if err != nil {
		return nil, ext, err
	}
	if res == nil || strings.TrimSpace(res.Text) == "" {
		return nil, ext, appErr.ErrEmptyContent
	}
	if res.Meta == nil {
		res.Meta = map[string]string{}
	}
	return res, ext, nil
}

func IsSupported(filename string) bool {
	_, _, err := Lookup(filename)
	return err == nil
}

// Supported returns the registered extensions without the leading dot,
// sorted, for the formats endpoint.
func Supported() []string {
	registryMu.RLock()
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	registryMu.RUnlock()
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
