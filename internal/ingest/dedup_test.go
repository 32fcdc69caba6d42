package ingest

import "testing"

func TestCheckDuplicateContentHashWins(t *testing.T) {
	catalog := []CatalogEntry{
		{DocumentID: "doc-a", Filename: "old_name.pdf", FileSize: 500, ContentHash: "hash-a"},
		{DocumentID: "doc-b", Filename: "report.pdf", FileSize: 100, ContentHash: "hash-b"},
	}
	// doc-b would match on filename, but doc-a's hash match takes precedence
	match := CheckDuplicate("report.pdf", 100, "hash-a", catalog)
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Kind != DuplicateContent {
		t.Errorf("kind = %q, want %q", match.Kind, DuplicateContent)
	}
	if match.DocumentID != "doc-a" {
		t.Errorf("document = %q, want doc-a", match.DocumentID)
	}
}

func TestCheckDuplicateFilenameNeedsEqualSize(t *testing.T) {
	catalog := []CatalogEntry{
		{DocumentID: "doc-a", Filename: "Report.PDF", FileSize: 100, ContentHash: "hash-a"},
	}
	if match := CheckDuplicate("report.pdf", 100, "other-hash", catalog); match == nil {
		t.Error("expected filename match with equal size")
	} else if match.Kind != DuplicateFilename {
		t.Errorf("kind = %q, want %q", match.Kind, DuplicateFilename)
	}
	if match := CheckDuplicate("report.pdf", 101, "other-hash", catalog); match != nil {
		t.Errorf("size mismatch must not match, got %+v", match)
	}
}

func TestCheckDuplicateStripsTimestampPrefix(t *testing.T) {
	catalog := []CatalogEntry{
		{DocumentID: "doc-a", Filename: "20240115_103000_report.pdf", FileSize: 100, ContentHash: "hash-a"},
	}
	match := CheckDuplicate("2024-01-15 report.pdf", 100, "other-hash", catalog)
	if match == nil {
		t.Fatal("expected filename match after prefix normalization")
	}
	if match.DocumentID != "doc-a" {
		t.Errorf("document = %q, want doc-a", match.DocumentID)
	}
}

func TestCheckDuplicateEmptyNormalizedName(t *testing.T) {
	catalog := []CatalogEntry{
		{DocumentID: "doc-a", Filename: "20240101.pdf", FileSize: 100, ContentHash: "hash-a"},
	}
	// both names normalize to "", which must never be treated as a match
	if match := CheckDuplicate("20240202.pdf", 100, "other-hash", catalog); match != nil {
		t.Errorf("expected no match, got %+v", match)
	}
}

func TestCheckDuplicateNoMatch(t *testing.T) {
	catalog := []CatalogEntry{
		{DocumentID: "doc-a", Filename: "budget.xlsx", FileSize: 100, ContentHash: "hash-a"},
	}
	if match := CheckDuplicate("forecast.xlsx", 100, "other-hash", catalog); match != nil {
		t.Errorf("expected no match, got %+v", match)
	}
	if match := CheckDuplicate("anything.pdf", 1, "h", nil); match != nil {
		t.Errorf("empty catalog must not match, got %+v", match)
	}
}
