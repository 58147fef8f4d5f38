package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/radicalcardists/card-recommender/internal/commands"
	"github.com/radicalcardists/card-recommender/internal/ingest"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig

	CardsFile  string `arg:"" help:"Path to a JSON file with card records"`
	NoProgress bool   `help:"Disable progress bar" default:"false"`
}

func (c *CLI) Run() error {
	logger, err := c.SetupLogger()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	database, err := commands.SetupCatalog(c.DataDir, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	provider, err := commands.SetupEmbeddingProvider(ctx, c.EmbeddingConfig, logger)
	if err != nil {
		return err
	}
	defer commands.CloseEmbeddingProvider(provider, logger)

	store, err := commands.SetupChunkStore(c.DataDir, provider, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline := ingest.NewPipeline(logger, database, store, provider)

	// Count cards first so the bar has a total
	var progress ingest.Progress = ingest.NewNoopProgress()
	if !c.NoProgress {
		data, err := os.ReadFile(c.CardsFile)
		if err == nil {
			var raw []any
			if jsonErr := json.Unmarshal(data, &raw); jsonErr == nil {
				progress = ingest.NewBarProgress(len(raw))
			}
		}
	}

	stats, err := pipeline.IngestFile(ctx, c.CardsFile, progress)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d cards: %d chunks embedded, %d cards unchanged, %d discontinued\n",
		stats.Cards, stats.Chunks, stats.Skipped, stats.Discontinued)
	return nil
}

func main() {
	commands.LoadEnv()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("card-embeddings"),
		kong.Description("Load card records into the catalog and the similarity index"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
