package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/solenhart/docingest/internal/extract"
)

type Input struct {
	Path         string
	OriginalName string
}

type Options struct {
	ChunkSize       int
	ChunkOverlap    int
	AutoRename      bool
	CheckDuplicates bool
	Catalog         []CatalogEntry
	MaxFilenameLen  int
}

// Metadata is everything the pipeline learned about one file.
type Metadata struct {
	OriginalFilename string            `json:"original_filename"`
	FinalFilename    string            `json:"final_filename"`
	FinalPath        string            `json:"-"`
	FileType         string            `json:"file_type"`
	FileSize         int64             `json:"file_size"`
	FileHash         string            `json:"file_hash"`
	WasRenamed       bool              `json:"was_renamed"`
	RenameReason     string            `json:"rename_reason,omitempty"`
	ExtractedTitle   string            `json:"extracted_title,omitempty"`
	WordCount        int               `json:"word_count"`
	CharCount        int               `json:"char_count"`
	TotalChunks      int               `json:"total_chunks"`
	TotalPages       int               `json:"total_pages,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// Outcome is a data value, not an exception: callers branch on Duplicate
// being set instead of catching control-flow errors.
type Outcome struct {
	Duplicate *DuplicateMatch
	Chunks    []ChunkRecord
	Metadata  *Metadata
	Warnings  []string
}

// Pipeline runs the per-document steps in strict order: extract, dedup,
// rename, chunk. It owns no storage; persistence and indexing belong to the
// caller.
type Pipeline struct {
	renamer *Renamer
}

func NewPipeline(renamer *Renamer) *Pipeline {
	if renamer == nil {
		renamer = NewRenamer(0, 0)
	}
	return &Pipeline{renamer: renamer}
}

func (p *Pipeline) Process(ctx context.Context, in Input, opts Options) (*Outcome, error) {
	logger := logutil.GetLogger(ctx)
	info, err := os.Stat(in.Path)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}

	res, ext, err := extract.ExtractFile(ctx, in.Path, in.OriginalName)
	if err != nil {
		return nil, err
	}

	hash, err := ContentHash(in.Path)
	if err != nil {
		return nil, fmt.Errorf("hash upload: %w", err)
	}

	outcome := &Outcome{Warnings: make([]string, 0)}
	if opts.CheckDuplicates {
		match := CheckDuplicate(in.OriginalName, info.Size(), hash, opts.Catalog)
		if match != nil && match.Kind == DuplicateContent {
			logger.Info("duplicate content detected",
				zap.String("filename", in.OriginalName),
				zap.String("existing_id", match.DocumentID),
			)
			outcome.Duplicate = match
			return outcome, nil
		}
		if match != nil {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("filename matches existing document %s (%s) with equal size", match.DocumentID, match.Filename))
		}
	}

	title := ExtractTitle(res.Text, res.Meta, ext)

	finalPath := in.Path
	finalName := filepath.Base(in.Path)
	wasRenamed := false
	renameReason := ""
	if opts.AutoRename && IsGenericName(in.OriginalName) && title != "" {
		base := SafeFilename(title, opts.MaxFilenameLen)
		rr := p.renamer.Rename(ctx, in.Path, base)
		if rr.Warning != "" {
			outcome.Warnings = append(outcome.Warnings, rr.Warning)
		}
		finalPath = rr.Path
		finalName = rr.Name
		wasRenamed = rr.Renamed
		renameReason = rr.Reason
	}

	outcome.Chunks = ChunkText(res.Text, opts.ChunkSize, opts.ChunkOverlap)

	pages := 0
	if v := res.Meta["pages"]; v != "" {
		pages, _ = strconv.Atoi(strings.TrimSpace(v))
	}
	outcome.Metadata = &Metadata{
		OriginalFilename: in.OriginalName,
		FinalFilename:    finalName,
		FinalPath:        finalPath,
		FileType:         strings.TrimPrefix(ext, "."),
		FileSize:         info.Size(),
		FileHash:         hash,
		WasRenamed:       wasRenamed,
		RenameReason:     renameReason,
		ExtractedTitle:   title,
		WordCount:        len(strings.Fields(res.Text)),
		CharCount:        utf8.RuneCountInString(res.Text),
		TotalChunks:      len(outcome.Chunks),
		TotalPages:       pages,
		Extra:            res.Meta,
	}
	logger.Info("pipeline finished",
		zap.String("filename", in.OriginalName),
		zap.String("file_type", outcome.Metadata.FileType),
		zap.Int("chunks", len(outcome.Chunks)),
		zap.Int("words", outcome.Metadata.WordCount),
		zap.Bool("renamed", wasRenamed),
	)
	return outcome, nil
}
