package model

// Lifecycle states of a document. A document settles in completed,
// completed_no_vectors or failed; error is reserved for crashes inside the
// background processor.
const (
	DocStatusUploaded           = "uploaded"
	DocStatusProcessing         = "processing"
	DocStatusCompleted          = "completed"
	DocStatusCompletedNoVectors = "completed_no_vectors"
	DocStatusFailed             = "failed"
	DocStatusError              = "error"
)

// Pipeline-level view of the same lifecycle. processing_status reaches
// completed whenever extraction and chunk persistence succeeded, even if the
// vector index write did not.
const (
	ProcStatusPending    = "pending"
	ProcStatusProcessing = "processing"
	ProcStatusCompleted  = "completed"
	ProcStatusFailed     = "failed"
)

type Document struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"original_filename"`
	StoredFilename   string `json:"stored_filename"`
	FilePath         string `json:"file_path"`
	FileType         string `json:"file_type"`
	FileSize         int64  `json:"file_size"`
	ContentHash      string `json:"content_hash"`
	Title            string `json:"title,omitempty"`
	Category         string `json:"category,omitempty"`
	Status           string `json:"status"`
	ProcessingStatus string `json:"processing_status"`
	ErrorMessage     string `json:"error_message,omitempty"`
	TotalChunks      int    `json:"total_chunks"`
	WordCount        int    `json:"word_count"`
	CharCount        int    `json:"char_count"`
	TotalPages       int    `json:"total_pages,omitempty"`
	// WasRenamed records whether the stored filename was replaced with a
	// content-derived one; a plain collision suffix does not count.
	WasRenamed   bool              `json:"was_renamed"`
	RenameReason string            `json:"rename_reason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Ctime        int64             `json:"ctime"`
	ProcessedAt  int64             `json:"processed_at,omitempty"`
}

// Terminal reports whether the document has settled and no background task
// should still be mutating it.
func (d *Document) Terminal() bool {
	switch d.Status {
	case DocStatusCompleted, DocStatusCompletedNoVectors, DocStatusFailed, DocStatusError:
		return true
	}
	return false
}
