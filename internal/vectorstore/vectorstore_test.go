package vectorstore

import (
	"context"
	"strings"
	"testing"

	"texplicit_backend/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// keywordModel embeds text as counts of a fixed vocabulary so similarity is predictable.
type keywordModel struct {
	llm.Client
	vocab []string
}

func (k keywordModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(k.vocab))
		for j, w := range k.vocab {
			v[j] = float32(strings.Count(strings.ToLower(t), w))
		}
		out[i] = v
	}
	return out, nil
}

func TestIndexerSearchIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	ix := NewIndexer(NewMemoryStore(), keywordModel{vocab: []string{"cat", "rocket"}}, zap.NewNop())

	n, err := ix.IndexDocument(ctx, "u1", "d1", "cats.txt", "The cat sat. A cat purrs.")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = ix.IndexDocument(ctx, "u1", "d2", "space.txt", "The rocket launched.")
	require.NoError(t, err)
	_, err = ix.IndexDocument(ctx, "u2", "d3", "other.txt", "cat cat cat")
	require.NoError(t, err)

	matches, err := ix.Search(ctx, "u1", "tell me about a cat", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "d1", matches[0].DocumentID)
	assert.Equal(t, "cats.txt", matches[0].Source)

	require.NoError(t, ix.DeleteDocument(ctx, "u1", "d1", n))
	matches, err = ix.Search(ctx, "u1", "cat", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "d2", matches[0].DocumentID)
}

func TestIndexDocumentWithoutText(t *testing.T) {
	ix := NewIndexer(NewMemoryStore(), keywordModel{}, zap.NewNop())
	_, err := ix.IndexDocument(context.Background(), "u1", "d1", "empty.txt", "   ")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestMemoryStoreRejectsMismatchedInput(t *testing.T) {
	err := NewMemoryStore().Upsert(context.Background(), "u1", []Chunk{{DocumentID: "d"}}, nil)
	assert.Error(t, err)
}

func TestVectorID(t *testing.T) {
	assert.Equal(t, "abc#3", VectorID("abc", 3))
	assert.Equal(t, "abc#0", Chunk{DocumentID: "abc"}.ID())
}
