// File: internal/vectorstore/store.go
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"texplicit_backend/internal/config"

	"go.uber.org/zap"
)

// Chunk is one piece of a document stored as a vector.
type Chunk struct {
	DocumentID string
	Index      int
	Source     string
	Text       string
}

// ID is the vector id of the chunk.
func (c Chunk) ID() string {
	return VectorID(c.DocumentID, c.Index)
}

// VectorID names the i-th vector of a document.
func VectorID(documentID string, i int) string {
	return fmt.Sprintf("%s#%d", documentID, i)
}

// Match is a chunk returned by a similarity query.
type Match struct {
	DocumentID string
	Source     string
	Text       string
}

// Store keeps document vectors partitioned by owner.
type Store interface {
	Upsert(ctx context.Context, ownerID string, chunks []Chunk, vectors [][]float32) error
	Query(ctx context.Context, ownerID string, vector []float32, topK int) ([]Match, error)
	Delete(ctx context.Context, ownerID, documentID string, count int) error
}

// New returns a pinecone store when an index is configured, otherwise an in-memory one.
func New(cfg *config.Config, logger *zap.Logger) (Store, error) {
	if strings.TrimSpace(cfg.PineconeAPIKey) == "" {
		logger.Warn("PINECONE_API_KEY not set, document vectors are kept in memory")
		return NewMemoryStore(), nil
	}
	return NewPineconeStore(cfg, logger)
}

type memoryVector struct {
	chunk  Chunk
	values []float32
}

// MemoryStore is an in-process Store ranking by cosine similarity.
type MemoryStore struct {
	mu     sync.RWMutex
	owners map[string]map[string]memoryVector
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{owners: make(map[string]map[string]memoryVector)}
}

func (m *MemoryStore) Upsert(_ context.Context, ownerID string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vectorstore: %d chunks for %d vectors", len(chunks), len(vectors))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.owners[ownerID]
	if !ok {
		ns = make(map[string]memoryVector)
		m.owners[ownerID] = ns
	}
	for i, c := range chunks {
		ns[c.ID()] = memoryVector{chunk: c, values: vectors[i]}
	}
	return nil
}

func (m *MemoryStore) Query(_ context.Context, ownerID string, vector []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type scored struct {
		match Match
		score float64
	}
	var all []scored
	for _, v := range m.owners[ownerID] {
		all = append(all, scored{
			match: Match{DocumentID: v.chunk.DocumentID, Source: v.chunk.Source, Text: v.chunk.Text},
			score: cosine(vector, v.values),
		})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}
	out := make([]Match, len(all))
	for i, s := range all {
		out[i] = s.match
	}
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, ownerID, documentID string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range m.owners[ownerID] {
		if v.chunk.DocumentID == documentID {
			delete(m.owners[ownerID], id)
		}
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
