package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
)

const (
	DuplicateContent  = "duplicate_content"
	DuplicateFilename = "duplicate_filename"
)

// CatalogEntry is the caller-supplied view of an already ingested document.
type CatalogEntry struct {
	DocumentID  string
	Filename    string
	FileSize    int64
	ContentHash string
}

// DuplicateMatch reports which prior document a candidate collides with.
// Kind DuplicateContent is authoritative and must stop ingestion; kind
// DuplicateFilename is only a warning.
type DuplicateMatch struct {
	Kind       string
	DocumentID string
	Filename   string
}

// CheckDuplicate compares a candidate against the catalog. A content-hash
// match wins immediately. A normalized-filename match is a weaker signal and
// only counts when the file sizes are equal too.
func CheckDuplicate(filename string, size int64, contentHash string, catalog []CatalogEntry) *DuplicateMatch {
	for _, entry := range catalog {
		if entry.ContentHash != "" && entry.ContentHash == contentHash {
			return &DuplicateMatch{
				Kind:       DuplicateContent,
				DocumentID: entry.DocumentID,
				Filename:   entry.Filename,
			}
		}
	}
	normalized := normalizeFilename(filename)
	if normalized == "" {
		return nil
	}
	for _, entry := range catalog {
		if normalizeFilename(entry.Filename) != normalized {
			continue
		}
		if entry.FileSize != size {
			continue
		}
		return &DuplicateMatch{
			Kind:       DuplicateFilename,
			DocumentID: entry.DocumentID,
			Filename:   entry.Filename,
		}
	}
	return nil
}

// leading "2024-01-02", "20240102_150405" or epoch-style digit prefixes
var timestampPrefixRegex = regexp.MustCompile(`^(\d{4}[-_]?\d{2}[-_]?\d{2}([-_T]?\d{2}[-_:]?\d{2}([-_:]?\d{2})?)?|\d{9,14})[-_ .]*`)

func normalizeFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = timestampPrefixRegex.ReplaceAllString(base, "")
	base = strings.ToLower(base)
	base = strings.Trim(base, " ._-")
	return base
}
