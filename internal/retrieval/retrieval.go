package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/embeddings"
	"github.com/radicalcardists/card-recommender/internal/types"
)

const (
	// DefaultTopK is the default number of chunks retrieved per query
	DefaultTopK = 50
)

var (
	// ErrEmptyQuery is returned when the query text trims to nothing;
	// input-validation class, fatal for the request
	ErrEmptyQuery = errors.New("query text is empty")

	// ErrRetrievalUnavailable is returned when the similarity index is
	// unreachable after its retry policy; fatal for the request but
	// retryable by the caller
	ErrRetrievalUnavailable = errors.New("similarity index unavailable")
)

type searchOptions struct {
	topK     int
	docTypes map[types.DocType]bool
	filters  types.Filters
}

// SearchOption modifies a single retrieval call
type SearchOption func(*searchOptions)

// WithTopK sets the maximum number of chunks to retrieve
func WithTopK(topK int) SearchOption {
	return func(opts *searchOptions) {
		opts.topK = topK
	}
}

// WithDocTypes restricts results to the given doc types; callers use
// this to run a benefit-only pass for monetary analysis
func WithDocTypes(docTypes ...types.DocType) SearchOption {
	return func(opts *searchOptions) {
		opts.docTypes = make(map[types.DocType]bool, len(docTypes))
		for _, dt := range docTypes {
			opts.docTypes[dt] = true
		}
	}
}

// WithFilters sets the structured filters pushed down to the index
func WithFilters(filters types.Filters) SearchOption {
	return func(opts *searchOptions) {
		opts.filters = filters
	}
}

// Client issues similarity queries and normalizes the results into
// RetrievedHits. It is read-only: no call mutates the store.
type Client struct {
	logger   *log.Logger
	provider embeddings.Provider
	store    embeddings.ChunkStore
}

// NewClient creates a retrieval client with explicit dependencies
func NewClient(logger *log.Logger, provider embeddings.Provider, store embeddings.ChunkStore) *Client {
	return &Client{
		logger:   logger,
		provider: provider,
		store:    store,
	}
}

// Search embeds the query text and returns the most similar chunks.
// Results keep the index's order; ties are not re-sorted. Chunks of
// discontinued cards never appear, the store guarantees that.
func (c *Client) Search(ctx context.Context, queryText string, opts ...SearchOption) ([]types.RetrievedHit, error) {
	options := searchOptions{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&options)
	}

	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, ErrEmptyQuery
	}

	c.logger.Debug("Performing chunk retrieval",
		"query", queryText,
		"top_k", options.topK,
		"doc_types", len(options.docTypes))
	start := time.Now()

	embedding, err := c.provider.GenerateEmbedding(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// When a doc-type restriction is active, over-fetch so the post
	// filter can still fill topK
	fetchK := options.topK
	if len(options.docTypes) > 0 && len(options.docTypes) < len(types.AllDocTypes) {
		fetchK = options.topK * len(types.AllDocTypes)
	}

	results, err := c.store.Query(ctx, embedding, fetchK, options.filters)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	hits := make([]types.RetrievedHit, 0, len(results))
	for _, result := range results {
		if len(options.docTypes) > 0 && !options.docTypes[result.DocType] {
			continue
		}
		hits = append(hits, types.RetrievedHit{
			ChunkID:  result.ChunkID,
			CardID:   result.CardID,
			DocType:  result.DocType,
			Text:     result.Text,
			RawScore: float64(result.Similarity),
			Metadata: result.Metadata,
		})
		if options.topK > 0 && len(hits) >= options.topK {
			break
		}
	}

	c.logger.Info("Chunk retrieval completed",
		"query", queryText,
		"hits", len(hits),
		"duration", time.Since(start))
	return hits, nil
}
