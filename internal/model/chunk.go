package model

type Chunk struct {
	DocumentID    string `json:"document_id"`
	ChunkIndex    int    `json:"chunk_index"`
	Content       string `json:"content"`
	WordCount     int    `json:"word_count"`
	CharCount     int    `json:"char_count"`
	SentenceCount int    `json:"sentence_count"`
	PageNumber    int    `json:"page_number,omitempty"`
	Ctime         int64  `json:"ctime"`
}
