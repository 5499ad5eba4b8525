package knowledge

import (
	"strconv"
	"time"
)

// Metadata keys attached to every stored chunk.
const (
	MetaDocID     = "doc_id"
	MetaFilename  = "filename"
	MetaChunkID   = "chunk_id"
	MetaPage      = "page"
	MetaIndexedAt = "indexed_at"
)

// Chunk is a bounded span of a document's text, the unit of semantic
// indexing and retrieval. Chunks are owned by the document identified by
// DocID and are deleted en masse when that document is re-indexed or removed.
type Chunk struct {
	ID        string    // composite: "<doc_id>_<ordinal>"
	DocID     string    // owning document identity (digest of filename)
	Filename  string    // source file name, for provenance
	Page      int       // 1-based page number within the source document
	Text      string    // chunk content
	IndexedAt time.Time // when the owning document was (re)indexed
}

// Metadata renders the chunk's provenance as a flat string map, the shape
// the vector store persists alongside the embedding.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaDocID:     c.DocID,
		MetaFilename:  c.Filename,
		MetaChunkID:   c.ID,
		MetaPage:      strconv.Itoa(c.Page),
		MetaIndexedAt: c.IndexedAt.Format(time.RFC3339),
	}
}

// chunkFromMetadata reconstructs a Chunk from stored content and metadata.
// Unparseable fields fall back to zero values rather than failing a search.
func chunkFromMetadata(id, content string, meta map[string]string) Chunk {
	page, _ := strconv.Atoi(meta[MetaPage])
	indexedAt, _ := time.Parse(time.RFC3339, meta[MetaIndexedAt])
	return Chunk{
		ID:        id,
		DocID:     meta[MetaDocID],
		Filename:  meta[MetaFilename],
		Page:      page,
		Text:      content,
		IndexedAt: indexedAt,
	}
}

// Result is a single search hit with its cosine similarity score.
type Result struct {
	Chunk      Chunk
	Similarity float32
}
