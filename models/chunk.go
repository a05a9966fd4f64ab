package models

// Chunk metadata keys.
const (
	MetaSource     = "source"
	MetaTitle      = "title"
	MetaChunkIndex = "chunk_index"
)

// Chunk is a bounded span of page text prepared for embedding.
type Chunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Source returns the URL the chunk was cut from.
func (c Chunk) Source() string {
	return c.Metadata[MetaSource]
}

// ScoredChunk is a chunk returned from a similarity search.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}
