package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmbeddingUnavailable signals that the embedding backend could not
// produce a vector after its retry budget was exhausted
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// Provider generates a fixed-length vector for a piece of text.
// Implementations must be deterministic for identical input.
type Provider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// Hash creates a SHA-256 hash of chunk content, used to detect when a
// stored embedding is stale
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
