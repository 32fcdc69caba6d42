package ingest

import (
	"strings"
	"testing"
)

func TestIsGenericName(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"untitled3.pdf", true},
		{"document.docx", true},
		{"scan001.pdf", true},
		{"IMG_20240115_103000.pdf", true},
		{"7.txt", true},
		{"a1b2c3d4-e5f6-4890-abcd-ef1234567890.pdf", true},
		{"deadbeef0badcafe.docx", true},
		{"notes.txt", true},
		{"Copy 2.docx", true},
		{"", true},
		{"Q3_Financial_Report.pdf", false},
		{"meeting-notes.txt", false},
		{"2024-01-15 Budget Review.csv", false},
		{"kubernetes_migration_plan.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := IsGenericName(tt.filename); got != tt.want {
				t.Errorf("IsGenericName(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		meta     map[string]string
		fileType string
		want     string
	}{
		{
			name:     "embedded title wins over body",
			text:     "Some other heading\nbody text",
			meta:     map[string]string{"title": "Quarterly Budget Review"},
			fileType: ".pdf",
			want:     "Quarterly Budget Review",
		},
		{
			name:     "generic embedded title is ignored",
			text:     "Annual Report 2024\nbody",
			meta:     map[string]string{"title": "untitled"},
			fileType: ".docx",
			want:     "Annual Report 2024",
		},
		{
			name:     "page markers and short lines are skipped",
			text:     "Page 1 of 10\n\nIntroduction\nMigration Plan Overview\nrest of the document",
			meta:     nil,
			fileType: ".pdf",
			want:     "Migration Plan Overview",
		},
		{
			name:     "long line is capped at twelve words",
			text:     "one two three four five six seven eight nine ten eleven twelve thirteen fourteen",
			meta:     nil,
			fileType: ".txt",
			want:     "one two three four five six seven eight nine ten eleven twelve",
		},
		{
			name:     "inner whitespace is collapsed",
			text:     "Annual   Report\t2024\nbody",
			meta:     nil,
			fileType: ".txt",
			want:     "Annual Report 2024",
		},
		{
			name:     "csv falls back to the header row",
			text:     "",
			meta:     map[string]string{"header": "name, email, signup_date"},
			fileType: ".csv",
			want:     "name, email, signup_date",
		},
		{
			name:     "nothing usable yields empty",
			text:     "x\n123\n!!!",
			meta:     nil,
			fileType: ".pdf",
			want:     "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTitle(tt.text, tt.meta, tt.fileType); got != tt.want {
				t.Errorf("ExtractTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		maxLen int
		want   string
	}{
		{"illegal characters stripped", `Report: Q3/Q4 <Final>`, 80, "Report_Q3Q4_Final"},
		{"whitespace runs become one underscore", "Annual   Report \t 2024", 80, "Annual_Report_2024"},
		{"truncated on rune boundary", strings.Repeat("日", 90), 80, strings.Repeat("日", 80)},
		{"trailing separators trimmed after cut", "ab cd", 3, "ab"},
		{"empty input falls back", "", 80, "untitled"},
		{"only illegal characters falls back", `<>:"/\|?*`, 80, "untitled"},
		{"zero max uses default", strings.Repeat("a", 100), 0, strings.Repeat("a", DefaultFilenameLen)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeFilename(tt.title, tt.maxLen); got != tt.want {
				t.Errorf("SafeFilename(%q, %d) = %q, want %q", tt.title, tt.maxLen, got, tt.want)
			}
		})
	}
}
