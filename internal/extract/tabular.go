package extract

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
)

type tabularExtractor struct {
	comma rune
}

func init() {
	Register(".csv", &tabularExtractor{comma: ','})
	Register(".tsv", &tabularExtractor{comma: '\t'})
}

// Extract flattens rows into lines of comma-separated cells. The header row
// is surfaced in meta so the title resolver can fall back to it.
func (e *tabularExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = e.comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	meta := map[string]string{}
	lines := make([]string, 0)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cells := make([]string, 0, len(record))
		for _, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) == 0 {
			continue
		}
		line := strings.Join(cells, ", ")
		if len(lines) == 0 {
			meta["header"] = line
		}
		lines = append(lines, line)
	}
	return &Result{Text: strings.Join(lines, "\n"), Meta: meta}, nil
}
