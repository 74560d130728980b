package vectorstore

import (
	"context"
	"fmt"

	"texplicit_backend/internal/config"

	"github.com/nekomeowww/go-pinecone"
	"go.uber.org/zap"
)

const (
	metaDocumentID = "document_id"
	metaSource     = "source"
	metaContent    = "content"
	upsertBatch    = 100
)

// PineconeStore keeps each owner's vectors in a namespace named after the owner id.
type PineconeStore struct {
	index  *pinecone.IndexClient
	logger *zap.Logger
}

func NewPineconeStore(cfg *config.Config, logger *zap.Logger) (*PineconeStore, error) {
	index, err := pinecone.NewIndexClient(
		pinecone.WithIndexName(cfg.PineconeIndexName),
		pinecone.WithAPIKey(cfg.PineconeAPIKey),
		pinecone.WithEnvironment(cfg.PineconeEnvironment),
		pinecone.WithProjectName(cfg.PineconeProjectName),
	)
	if err != nil {
		return nil, fmt.Errorf("pinecone index client: %w", err)
	}
	logger.Info("Pinecone vector store configured", zap.String("index", cfg.PineconeIndexName))
	return &PineconeStore{index: index, logger: logger}, nil
}

func (p *PineconeStore) Upsert(ctx context.Context, ownerID string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vectorstore: %d chunks for %d vectors", len(chunks), len(vectors))
	}
	for start := 0; start < len(chunks); start += upsertBatch {
		end := start + upsertBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := make([]*pinecone.Vector, 0, end-start)
		for i := start; i < end; i++ {
			c := chunks[i]
			batch = append(batch, &pinecone.Vector{
				ID:     c.ID(),
				Values: vectors[i],
				Metadata: map[string]any{
					metaDocumentID: c.DocumentID,
					metaSource:     c.Source,
					metaContent:    c.Text,
				},
			})
		}
		if _, err := p.index.UpsertVectors(ctx, pinecone.UpsertVectorsParams{Vectors: batch, Namespace: ownerID}); err != nil {
			return fmt.Errorf("pinecone upsert: %w", err)
		}
	}
	return nil
}

func (p *PineconeStore) Query(ctx context.Context, ownerID string, vector []float32, topK int) ([]Match, error) {
	resp, err := p.index.Query(ctx, pinecone.QueryParams{
		IncludeMetadata: true,
		Vector:          vector,
		TopK:            int64(topK),
		Namespace:       ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}
	var out []Match
	for _, match := range resp.Matches {
		content, ok := match.Vector.Metadata[metaContent].(string)
		if !ok {
			continue
		}
		docID, _ := match.Vector.Metadata[metaDocumentID].(string)
		source, _ := match.Vector.Metadata[metaSource].(string)
		out = append(out, Match{DocumentID: docID, Source: source, Text: content})
	}
	return out, nil
}

func (p *PineconeStore) Delete(ctx context.Context, ownerID, documentID string, count int) error {
	if count <= 0 {
		return nil
	}
	ids := make([]string, count)
	for i := range ids {
		ids[i] = VectorID(documentID, i)
	}
	if err := p.index.DeleteVectors(ctx, pinecone.DeleteVectorsParams{IDs: ids, Namespace: ownerID}); err != nil {
		return fmt.Errorf("pinecone delete: %w", err)
	}
	p.logger.Debug("Deleted document vectors", zap.String("documentID", documentID), zap.Int("count", count))
	return nil
}
