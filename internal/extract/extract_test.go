package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	appErr "github.com/solenhart/docingest/internal/pkg/errors"
)

func writeExtractInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLookup(t *testing.T) {
	tests := []struct {
		filename string
		wantExt  string
		wantErr  bool
	}{
		{"report.pdf", ".pdf", false},
		{"NOTES.TXT", ".txt", false},
		{"data.csv", ".csv", false},
		{"readme.markdown", ".markdown", false},
		{"archive.xyz", ".xyz", true},
		{"noextension", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			e, ext, err := Lookup(tt.filename)
			if tt.wantErr {
				if !errors.Is(err, appErr.ErrUnsupportedFormat) {
					t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if e == nil {
				t.Fatal("nil extractor")
			}
			if ext != tt.wantExt {
				t.Errorf("ext = %q, want %q", ext, tt.wantExt)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	exts := Supported()
	if !sort.StringsAreSorted(exts) {
		t.Errorf("extensions not sorted: %v", exts)
	}
	want := map[string]bool{"pdf": false, "docx": false, "txt": false, "csv": false, "md": false, "html": false}
	for _, ext := range exts {
		if ext == "" || ext[0] == '.' {
			t.Errorf("extension %q should not carry a dot", ext)
		}
		if _, ok := want[ext]; ok {
			want[ext] = true
		}
	}
	for ext, seen := range want {
		if !seen {
			t.Errorf("expected %q in supported formats: %v", ext, exts)
		}
	}
	if !IsSupported("a.pdf") || IsSupported("a.exe") {
		t.Error("IsSupported disagrees with the registry")
	}
}

func TestExtractFileText(t *testing.T) {
	path := writeExtractInput(t, "notes.txt", "line one\nline two\n")
	res, ext, err := ExtractFile(context.Background(), path, "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if ext != ".txt" {
		t.Errorf("ext = %q", ext)
	}
	if res.Text != "line one\nline two\n" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Meta == nil {
		t.Error("meta must never be nil")
	}
}

func TestExtractFileDispatchesByOriginalName(t *testing.T) {
	// stored files carry opaque names; the original upload name decides the format
	path := writeExtractInput(t, "stored-2f6a.bin", "name,email\nalice,alice@example.com\n")
	res, ext, err := ExtractFile(context.Background(), path, "contacts.csv")
	if err != nil {
		t.Fatal(err)
	}
	if ext != ".csv" {
		t.Errorf("ext = %q", ext)
	}
	if res.Meta["header"] != "name, email" {
		t.Errorf("header = %q", res.Meta["header"])
	}
}

func TestExtractFileEmptyContent(t *testing.T) {
	path := writeExtractInput(t, "blank.txt", " \n\t \n")
	_, _, err := ExtractFile(context.Background(), path, "blank.txt")
	if !errors.Is(err, appErr.ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}

func TestExtractFileUnsupported(t *testing.T) {
	path := writeExtractInput(t, "payload.bin", "binary-ish")
	_, _, err := ExtractFile(context.Background(), path, "payload.bin")
	if !errors.Is(err, appErr.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTabularExtract(t *testing.T) {
	csvPath := writeExtractInput(t, "people.csv", "name,email,city\nalice,alice@example.com,Berlin\n,,\nbob,,\n")
	res, _, err := ExtractFile(context.Background(), csvPath, "people.csv")
	if err != nil {
		t.Fatal(err)
	}
	want := "name, email, city\nalice, alice@example.com, Berlin\nbob"
	if res.Text != want {
		t.Errorf("text = %q, want %q", res.Text, want)
	}
	if res.Meta["header"] != "name, email, city" {
		t.Errorf("header = %q", res.Meta["header"])
	}

	tsvPath := writeExtractInput(t, "data.tsv", "col_a\tcol_b\n1\t2\n")
	res, _, err = ExtractFile(context.Background(), tsvPath, "data.tsv")
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta["header"] != "col_a, col_b" {
		t.Errorf("tsv header = %q", res.Meta["header"])
	}
}

func TestMarkdownExtract(t *testing.T) {
	source := "# Migration Plan\n\nMove the services in three phases.\n\n```\nkubectl apply -f plan.yaml\n```\n\n## Rollback\n\nEach phase has a gate.\n"
	path := writeExtractInput(t, "plan.md", source)
	res, _, err := ExtractFile(context.Background(), path, "plan.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta["title"] != "Migration Plan" {
		t.Errorf("title = %q", res.Meta["title"])
	}
	want := "Migration Plan\n\nMove the services in three phases.\n\nkubectl apply -f plan.yaml\n\nRollback\n\nEach phase has a gate."
	if res.Text != want {
		t.Errorf("text = %q, want %q", res.Text, want)
	}
}

func TestExtractFileCancelledContext(t *testing.T) {
	path := writeExtractInput(t, "notes.txt", "content here")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := ExtractFile(ctx, path, "notes.txt"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
