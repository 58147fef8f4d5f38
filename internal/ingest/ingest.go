// Package ingest loads card records into the catalog and the similarity
// index. Ingestion is idempotent: a card whose chunks are all unchanged
// is skipped, and a changed card has its chunk set replaced wholesale.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/catalog"
	"github.com/radicalcardists/card-recommender/internal/chunker"
	"github.com/radicalcardists/card-recommender/internal/embeddings"
	"github.com/radicalcardists/card-recommender/internal/types"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel embedding generation
const DefaultConcurrency = 4

// Stats summarizes one ingestion run
type Stats struct {
	Cards        int
	Discontinued int
	Skipped      int // cards whose chunks were all unchanged
	Chunks       int // chunks embedded and stored
}

// Pipeline ingests card records into the catalog and the chunk store
type Pipeline struct {
	logger      *log.Logger
	catalog     *catalog.DB
	store       embeddings.ChunkStore
	provider    embeddings.Provider
	concurrency int
}

// NewPipeline creates an ingestion pipeline with explicit dependencies
func NewPipeline(logger *log.Logger, db *catalog.DB, store embeddings.ChunkStore, provider embeddings.Provider) *Pipeline {
	return &Pipeline{
		logger:      logger,
		catalog:     db,
		store:       store,
		provider:    provider,
		concurrency: DefaultConcurrency,
	}
}

// IngestFile reads a JSON array of card records and ingests them
func (p *Pipeline) IngestFile(ctx context.Context, path string, progress Progress) (*Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cards file: %w", err)
	}
	var cards []types.Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("failed to parse cards file: %w", err)
	}
	return p.IngestCards(ctx, cards, progress)
}

// IngestCards upserts the records into the catalog and brings the chunk
// store in sync with them
func (p *Pipeline) IngestCards(ctx context.Context, cards []types.Card, progress Progress) (*Stats, error) {
	if progress == nil {
		progress = NewNoopProgress()
	}
	defer progress.Close()

	start := time.Now()
	var mu sync.Mutex
	stats := &Stats{Cards: len(cards)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, card := range cards {
		if card.ID == "" {
			card.ID = catalog.GenerateCardID(card.Issuer, card.Name)
		}
		if err := p.catalog.Upsert(ctx, card); err != nil {
			return nil, err
		}

		if card.Discontinued {
			// Discontinued cards stay in the catalog for explain lookups
			// but must never surface in retrieval
			if err := p.store.DeleteCardChunks(ctx, card.ID); err != nil {
				return nil, fmt.Errorf("failed to remove chunks for discontinued card %s: %w", card.ID, err)
			}
			mu.Lock()
			stats.Discontinued++
			mu.Unlock()
			_ = progress.Add(1)
			continue
		}

		g.Go(func() error {
			embedded, skipped, err := p.ingestCard(gctx, card)
			if err != nil {
				return err
			}
			mu.Lock()
			stats.Chunks += embedded
			if skipped {
				stats.Skipped++
			}
			mu.Unlock()
			return progress.Add(1)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Info("Ingestion completed",
		"cards", stats.Cards,
		"chunks_embedded", stats.Chunks,
		"cards_skipped", stats.Skipped,
		"discontinued", stats.Discontinued,
		"duration", time.Since(start))
	return stats, nil
}

// ingestCard embeds and stores one card's chunk set. When every chunk is
// already stored with an identical content hash the card is left alone;
// otherwise the old set is dropped and rebuilt in full.
func (p *Pipeline) ingestCard(ctx context.Context, card types.Card) (int, bool, error) {
	chunks, err := chunker.ChunkCard(card)
	if err != nil {
		return 0, false, err
	}

	unchanged := true
	for _, chunk := range chunks {
		exists, hash, err := p.store.HasChunk(ctx, chunk.ID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to check chunk %s: %w", chunk.ID, err)
		}
		if !exists || hash != embeddings.Hash(chunk.Text) {
			unchanged = false
			break
		}
	}
	if unchanged {
		p.logger.Debug("Card unchanged, skipping", "card_id", card.ID, "chunks", len(chunks))
		return 0, true, nil
	}

	if err := p.store.DeleteCardChunks(ctx, card.ID); err != nil {
		return 0, false, fmt.Errorf("failed to clear chunks for card %s: %w", card.ID, err)
	}

	for _, chunk := range chunks {
		embedding, err := p.provider.GenerateEmbedding(ctx, chunk.Text)
		if err != nil {
			return 0, false, fmt.Errorf("failed to embed chunk %s: %w", chunk.ID, err)
		}
		if err := p.store.StoreChunk(ctx, chunk, embedding); err != nil {
			return 0, false, err
		}
	}

	p.logger.Debug("Ingested card", "card_id", card.ID, "chunks", len(chunks))
	return len(chunks), false, nil
}
