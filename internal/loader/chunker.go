package loader

import (
	"strings"
)

// Chunker splits text into overlapping word windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
// A non-positive size yields one chunk per text.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split returns the windows of text in order. Empty or whitespace-only text yields nil.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if c.chunkSize <= 0 || len(words) <= c.chunkSize {
		return []string{strings.Join(words, " ")}
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	return chunks
}
