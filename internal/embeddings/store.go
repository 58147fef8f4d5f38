package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/philippgille/chromem-go"
	"github.com/radicalcardists/card-recommender/internal/types"
)

// ChunkResult is a single result from a similarity query
type ChunkResult struct {
	ChunkID    string
	CardID     string
	DocType    types.DocType
	Similarity float32
	Text       string
	Metadata   types.ChunkMetadata
}

// ChunkStore is the similarity index over card chunks. Query never
// returns chunks of discontinued cards; that exclusion lives at this
// boundary, not in the callers.
type ChunkStore interface {
	// StoreChunk stores a chunk with a precomputed embedding
	StoreChunk(ctx context.Context, chunk types.Chunk, embedding []float32) error

	// HasChunk reports whether a chunk is stored and returns the content
	// hash it was embedded from
	HasChunk(ctx context.Context, chunkID string) (bool, string, error)

	// Query returns the topK chunks most similar to the embedding,
	// after applying the structured filters
	Query(ctx context.Context, embedding []float32, topK int, filters types.Filters) ([]ChunkResult, error)

	// DeleteCardChunks removes every chunk of one card; re-ingestion
	// replaces a card's chunk set wholesale, never field by field
	DeleteCardChunks(ctx context.Context, cardID string) error

	// Close closes the store
	Close() error
}

// ChromemStore implements ChunkStore using the chromem-go vector database
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *log.Logger
	modelName  string
}

// NewChromemStore opens (or creates) the persistent chunk collection
func NewChromemStore(dataDir string, provider Provider, logger *log.Logger) (*ChromemStore, error) {
	dbPath := filepath.Join(dataDir, "chromem-go")

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return provider.GenerateEmbedding(ctx, text)
	}

	db, err := chromem.NewPersistentDB(dbPath, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create chromem database: %w", err)
	}

	collection, err := db.GetOrCreateCollection("card-chunks", nil, embeddingFunc)
	if err != nil {
		db.Reset()
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	store := &ChromemStore{
		db:         db,
		collection: collection,
		logger:     logger,
		modelName:  provider.ModelName(),
	}

	logger.Info("Opened chromem vector database",
		"path", dbPath,
		"document_count", collection.Count(),
		"model_name", store.modelName)

	return store, nil
}

func (s *ChromemStore) StoreChunk(ctx context.Context, chunk types.Chunk, embedding []float32) error {
	if err := chunk.Metadata.Validate(); err != nil {
		return fmt.Errorf("invalid chunk metadata: %w", err)
	}

	metadata := chunk.Metadata.ToMap()
	metadata["content_hash"] = Hash(chunk.Text)
	metadata["model_name"] = s.modelName

	doc, err := chromem.NewDocument(ctx, chunk.ID, metadata, embedding, chunk.Text, nil)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to add document to collection: %w", err)
	}

	s.logger.Debug("Stored chunk",
		"chunk_id", chunk.ID,
		"card_id", chunk.CardID,
		"doc_type", chunk.DocType)
	return nil
}

func (s *ChromemStore) HasChunk(ctx context.Context, chunkID string) (bool, string, error) {
	doc, err := s.collection.GetByID(ctx, chunkID)
	if err != nil {
		return false, "", nil
	}
	return true, doc.Metadata["content_hash"], nil
}

// Query runs the vector search over the whole collection and applies
// the structured filters over the scored set. The discontinued
// exclusion is unconditional; it lives here, not in the callers.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, topK int, filters types.Filters) ([]ChunkResult, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}

	var out []ChunkResult
	for _, result := range results {
		metadata, err := types.ChunkMetadataFromMap(result.Metadata)
		if err != nil {
			s.logger.Warn("Skipping chunk with malformed metadata", "chunk_id", result.ID, "error", err)
			continue
		}
		if metadata.Discontinued {
			continue
		}
		if !passesFilters(metadata, filters) {
			continue
		}
		out = append(out, ChunkResult{
			ChunkID:    result.ID,
			CardID:     metadata.CardID,
			DocType:    metadata.DocType,
			Similarity: result.Similarity,
			Text:       result.Content,
			Metadata:   metadata,
		})
	}

	// Highest similarity first
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// passesFilters enforces the structured filters. chromem's own where
// filters reject nResults larger than the filtered set, so filtering
// happens here instead, still inside the index boundary.
func passesFilters(metadata types.ChunkMetadata, filters types.Filters) bool {
	if filters.Type != "" && metadata.CardType != filters.Type {
		return false
	}
	if filters.OnlyOnline && !metadata.OnlineOnly {
		return false
	}
	if filters.AnnualFeeMax != nil && metadata.AnnualFee != nil {
		if metadata.AnnualFee.GreaterThan(*filters.AnnualFeeMax) {
			return false
		}
	}
	if filters.PriorMonthMinMax != nil && metadata.PrevMonthMin != nil {
		if metadata.PrevMonthMin.GreaterThan(*filters.PriorMonthMinMax) {
			return false
		}
	}
	return true
}

func (s *ChromemStore) DeleteCardChunks(ctx context.Context, cardID string) error {
	return s.collection.Delete(ctx, map[string]string{"card_id": cardID}, nil)
}

// Close is a no-op; chromem persists on every write
func (s *ChromemStore) Close() error {
	return nil
}
