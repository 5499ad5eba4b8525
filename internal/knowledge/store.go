// Package knowledge stores policy document chunks in an embedded vector
// database and serves similarity searches over them.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
)

// collectionName is the single chromem collection holding policy chunks.
const collectionName = "policies"

// Store manages policy chunks with vector search, backed by a persistent
// chromem-go database. Safe for concurrent use; callers that need ordering
// between delete and insert phases (the indexing engine) serialize above
// this layer.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	embed      chromem.EmbeddingFunc
	logger     *slog.Logger
}

// Open opens (or creates) the persistent vector store at path.
// The embedding function is invoked for every added chunk and every query.
func Open(path string, embed chromem.EmbeddingFunc, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector store at %s: %w", path, err)
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", collectionName, err)
	}

	return &Store{
		db:         db,
		collection: collection,
		embed:      embed,
		logger:     logger,
	}, nil
}

// Add embeds and inserts the given chunks.
func (s *Store) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:       c.ID,
			Content:  c.Text,
			Metadata: c.Metadata(),
		})
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding %d chunks: %w", len(docs), err)
	}

	s.logger.Debug("added chunks", "count", len(docs))
	return nil
}

// Search returns the topK most similar chunks to the query.
// topK is clamped to the collection size; an empty collection yields an
// empty result, not an error (chromem rejects nResults above the count).
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	hits, err := s.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Chunk:      chunkFromMetadata(h.ID, h.Content, h.Metadata),
			Similarity: h.Similarity,
		})
	}
	return results, nil
}

// DeleteByDoc removes every chunk owned by docID. Deleting a document with
// no stored chunks is a no-op, not an error.
func (s *Store) DeleteByDoc(ctx context.Context, docID string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, map[string]string{MetaDocID: docID}, nil); err != nil {
		return fmt.Errorf("deleting chunks for doc %s: %w", docID, err)
	}

	s.logger.Debug("deleted chunks", "doc_id", docID)
	return nil
}

// Reset drops and recreates the collection, removing every stored chunk.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("dropping collection: %w", err)
	}

	collection, err := s.db.GetOrCreateCollection(collectionName, nil, s.embed)
	if err != nil {
		return fmt.Errorf("recreating collection: %w", err)
	}
	s.collection = collection

	s.logger.Debug("vector store reset")
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count() int {
	return s.collection.Count()
}
