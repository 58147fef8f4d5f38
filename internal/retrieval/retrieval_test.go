package retrieval

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/embeddings"
	"github.com/radicalcardists/card-recommender/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	err   error
	calls int
}

func (p *stubProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (p *stubProvider) ModelName() string { return "stub-model" }

type stubStore struct {
	results    []embeddings.ChunkResult
	err        error
	lastTopK   int
	lastFilter types.Filters
}

func (s *stubStore) StoreChunk(ctx context.Context, chunk types.Chunk, embedding []float32) error {
	return nil
}

func (s *stubStore) HasChunk(ctx context.Context, chunkID string) (bool, string, error) {
	return false, "", nil
}

func (s *stubStore) Query(ctx context.Context, embedding []float32, topK int, filters types.Filters) ([]embeddings.ChunkResult, error) {
	s.lastTopK = topK
	s.lastFilter = filters
	if s.err != nil {
		return nil, s.err
	}
	if topK > 0 && len(s.results) > topK {
		return s.results[:topK], nil
	}
	return s.results, nil
}

func (s *stubStore) DeleteCardChunks(ctx context.Context, cardID string) error { return nil }
func (s *stubStore) Close() error                                              { return nil }

func result(chunkID, cardID string, docType types.DocType, similarity float32) embeddings.ChunkResult {
	return embeddings.ChunkResult{
		ChunkID:    chunkID,
		CardID:     cardID,
		DocType:    docType,
		Similarity: similarity,
		Text:       "text for " + chunkID,
		Metadata:   types.ChunkMetadata{CardID: cardID, DocType: docType},
	}
}

func newTestClient(provider embeddings.Provider, store embeddings.ChunkStore) *Client {
	return NewClient(log.New(io.Discard), provider, store)
}

func TestSearchEmptyQuery(t *testing.T) {
	client := newTestClient(&stubProvider{}, &stubStore{})
	_, err := client.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchReturnsHitsInStoreOrder(t *testing.T) {
	store := &stubStore{results: []embeddings.ChunkResult{
		result("c1:benefit:0", "c1", types.DocTypeBenefit, 0.9),
		result("c2:summary:0", "c2", types.DocTypeSummary, 0.8),
	}}
	client := newTestClient(&stubProvider{}, store)

	hits, err := client.Search(context.Background(), "groceries")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1:benefit:0", hits[0].ChunkID)
	assert.InDelta(t, 0.9, hits[0].RawScore, 1e-6)
	assert.Equal(t, "c2:summary:0", hits[1].ChunkID)
}

func TestSearchDocTypeRestriction(t *testing.T) {
	store := &stubStore{results: []embeddings.ChunkResult{
		result("c1:summary:0", "c1", types.DocTypeSummary, 0.9),
		result("c1:benefit:0", "c1", types.DocTypeBenefit, 0.8),
		result("c1:notes:0", "c1", types.DocTypeNotes, 0.7),
	}}
	client := newTestClient(&stubProvider{}, store)

	hits, err := client.Search(context.Background(), "groceries", WithDocTypes(types.DocTypeBenefit))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, types.DocTypeBenefit, hits[0].DocType)

	// The store is over-fetched so the post filter can still fill topK
	assert.Equal(t, DefaultTopK*len(types.AllDocTypes), store.lastTopK)
}

func TestSearchTopKCap(t *testing.T) {
	store := &stubStore{results: []embeddings.ChunkResult{
		result("c1:benefit:0", "c1", types.DocTypeBenefit, 0.9),
		result("c1:benefit:1", "c1", types.DocTypeBenefit, 0.8),
		result("c1:benefit:2", "c1", types.DocTypeBenefit, 0.7),
	}}
	client := newTestClient(&stubProvider{}, store)

	hits, err := client.Search(context.Background(), "groceries", WithTopK(2))
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchPassesFiltersThrough(t *testing.T) {
	store := &stubStore{}
	client := newTestClient(&stubProvider{}, store)

	filters := types.Filters{Type: types.CardTypeDebit, OnlyOnline: true}
	_, err := client.Search(context.Background(), "groceries", WithFilters(filters))
	require.NoError(t, err)
	assert.Equal(t, filters, store.lastFilter)
}

func TestSearchEmbeddingFailure(t *testing.T) {
	client := newTestClient(&stubProvider{err: embeddings.ErrEmbeddingUnavailable}, &stubStore{})
	_, err := client.Search(context.Background(), "groceries")
	assert.ErrorIs(t, err, embeddings.ErrEmbeddingUnavailable)
}

func TestSearchStoreFailureWrapped(t *testing.T) {
	client := newTestClient(&stubProvider{}, &stubStore{err: errors.New("disk gone")})
	_, err := client.Search(context.Background(), "groceries")
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
}

func TestSearchContextCancellationPassesThrough(t *testing.T) {
	client := newTestClient(&stubProvider{}, &stubStore{err: context.Canceled})
	_, err := client.Search(context.Background(), "groceries")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrRetrievalUnavailable)
}
