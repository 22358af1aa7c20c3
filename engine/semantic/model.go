package semantic

import (
	"strconv"

	"github.com/google/uuid"
)

// Payload keys stored with every knowledge-base chunk.
const (
	KeyKBID       = "kb_id"
	KeyChunkIndex = "chunk_index"
	KeyContent    = "content"
	KeyHash       = "content_hash"
)

var chunkNamespace = uuid.MustParse("6f1c2a8e-5b0d-4f4e-9c61-3d2b7f0e8a41")

// VectorRecord is one embedded knowledge-base chunk as stored in Qdrant.
type VectorRecord struct {
	ID         string
	KBID       string
	ChunkIndex int
	Content    string
	Hash       string // content hash of the whole knowledge base
	Embedding  []float32
}

// SearchResult is a scored chunk returned by a similarity search.
type SearchResult struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	KBID       string  `json:"kb_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Hash       string  `json:"content_hash,omitempty"`
}

// ChunkID returns the stable point ID of chunk i of a knowledge base, so a
// re-sync overwrites instead of duplicating.
func ChunkID(kbID string, i int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(kbID+"/"+strconv.Itoa(i))).String()
}

// ChunkRecord builds the record for chunk i of a knowledge base.
func ChunkRecord(kbID, hash string, i int, text string, embedding []float32) VectorRecord {
	return VectorRecord{
		ID:         ChunkID(kbID, i),
		KBID:       kbID,
		ChunkIndex: i,
		Content:    text,
		Hash:       hash,
		Embedding:  embedding,
	}
}
