package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"texplicit_backend/internal/llm"

	"go.uber.org/zap"
)

const (
	chunkSize    = 1000
	chunkOverlap = 100
)

// ErrNoText is returned when a document has nothing to index.
var ErrNoText = errors.New("vectorstore: document has no text")

// Indexer turns documents into vectors and answers similarity searches with the same embedding model.
type Indexer struct {
	store  Store
	model  llm.Client
	logger *zap.Logger
}

func NewIndexer(store Store, model llm.Client, logger *zap.Logger) *Indexer {
	return &Indexer{store: store, model: model, logger: logger}
}

// IndexDocument splits, embeds and stores text. It returns the number of vectors written.
func (ix *Indexer) IndexDocument(ctx context.Context, ownerID, documentID, source, text string) (int, error) {
	parts := llm.SplitText(text, chunkSize, chunkOverlap)
	if len(parts) == 0 {
		return 0, ErrNoText
	}
	vectors, err := ix.model.Embed(ctx, parts)
	if err != nil {
		return 0, err
	}
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{DocumentID: documentID, Index: i, Source: source, Text: p}
	}
	if err := ix.store.Upsert(ctx, ownerID, chunks, vectors); err != nil {
		return 0, err
	}
	ix.logger.Info("Document indexed", zap.String("userID", ownerID), zap.String("documentID", documentID), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// Search returns the topK chunks of the owner's documents closest to query.
func (ix *Indexer) Search(ctx context.Context, ownerID, query string, topK int) ([]Match, error) {
	vectors, err := ix.model.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("vectorstore: expected one query vector, got %d", len(vectors))
	}
	return ix.store.Query(ctx, ownerID, vectors[0], topK)
}

// DeleteDocument removes the count vectors written for a document.
func (ix *Indexer) DeleteDocument(ctx context.Context, ownerID, documentID string, count int) error {
	return ix.store.Delete(ctx, ownerID, documentID, count)
}
