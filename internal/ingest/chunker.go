package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

type ChunkRecord struct {
	Index         int
	Content       string
	WordCount     int
	CharCount     int
	SentenceCount int
}

// ChunkText splits text into sentence-aligned chunks of at most size
// characters, each seeded with up to overlap characters of the previous
// chunk's trailing sentences. Sentence boundaries win over strict size
// compliance: a single sentence longer than size is emitted whole, and a
// seeded chunk may exceed size by up to the overlap it carries. Overlap is
// capped at half of size to keep that excess bounded.
func ChunkText(text string, size, overlap int) []ChunkRecord {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > size/2 {
		overlap = size / 2
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []ChunkRecord{}
	}

	chunks := make([]ChunkRecord, 0)
	current := make([]string, 0)
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.Join(current, " ")
		chunks = append(chunks, ChunkRecord{
			Index:         len(chunks),
			Content:       content,
			WordCount:     len(strings.Fields(content)),
			CharCount:     utf8.RuneCountInString(content),
			SentenceCount: len(current),
		})
	}

	for _, sentence := range sentences {
		sentLen := utf8.RuneCountInString(sentence)
		joined := currentLen + sentLen
		if currentLen > 0 {
			joined++
		}
		if len(current) > 0 && joined > size {
			flush()
			// walk backward through the sealed sentences to build the
			// overlap seed for the next chunk
			seed := make([]string, 0)
			seedLen := 0
			for i := len(current) - 1; i >= 0; i-- {
				l := utf8.RuneCountInString(current[i])
				if seedLen > 0 {
					l++
				}
				if seedLen+l > overlap {
					break
				}
				seedLen += l
				seed = append([]string{current[i]}, seed...)
			}
			current = append(seed, sentence)
			currentLen = seedLen + sentLen
			if seedLen > 0 {
				currentLen++
			}
			continue
		}
		current = append(current, sentence)
		currentLen = joined
	}
	flush()
	return chunks
}

// splitSentences breaks after . ! ? followed by whitespace and an uppercase
// letter. A lightweight rule, deliberately not a full sentence model.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	sentences := make([]string, 0)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		if j < len(runes) && !unicode.IsUpper(runes[j]) {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		tail := strings.TrimSpace(string(runes[start:]))
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}
