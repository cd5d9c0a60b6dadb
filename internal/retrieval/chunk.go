package retrieval

import "strings"

// Default chunking parameters, counted in whitespace-delimited tokens.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// Chunk splits text into windows of at most size tokens, each sharing
// overlap tokens with the previous one. Whitespace inside a chunk is
// collapsed to single spaces.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
