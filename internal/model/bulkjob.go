package model

import "time"

const (
	BulkStatusPending    = "pending"
	BulkStatusProcessing = "processing"
	BulkStatusCompleted  = "completed"
	BulkStatusFailed     = "failed"
	BulkStatusPartial    = "partial"
)

type BulkFileResult struct {
	Filename    string `json:"filename"`
	Success     bool   `json:"success"`
	DocumentID  string `json:"document_id,omitempty"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Message     string `json:"message,omitempty"`
}

// BulkJob tracks one bulk upload. Jobs live in memory only; a restart loses
// them, which is acceptable because the documents themselves are persisted
// and re-listable.
type BulkJob struct {
	ID              string
	TotalFiles      int
	ProcessedFiles  int
	SuccessfulFiles int
	FailedFiles     int
	CurrentFile     string
	Status          string
	Category        string
	AutoProcess     bool
	Results         []BulkFileResult
	StartTime       time.Time
	FinishedAt      time.Time
}
