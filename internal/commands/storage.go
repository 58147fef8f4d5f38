package commands

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/catalog"
	"github.com/radicalcardists/card-recommender/internal/embeddings"
)

// SetupChunkStore initializes the similarity index under dataDir
func SetupChunkStore(dataDir string, provider embeddings.Provider, logger *log.Logger) (embeddings.ChunkStore, error) {
	store, err := embeddings.NewChromemStore(dataDir, provider, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk store: %w", err)
	}
	return store, nil
}

// SetupCatalog opens the card catalog database under dataDir
func SetupCatalog(dataDir string, logger *log.Logger) (*catalog.DB, error) {
	db, err := catalog.New(dataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open card catalog: %w", err)
	}
	return db, nil
}
