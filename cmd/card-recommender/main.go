package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/radicalcardists/card-recommender/internal/benefit"
	"github.com/radicalcardists/card-recommender/internal/commands"
	"github.com/radicalcardists/card-recommender/internal/intent"
	"github.com/radicalcardists/card-recommender/internal/recommend"
	"github.com/radicalcardists/card-recommender/internal/retrieval"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig
	commands.OracleConfig

	Spending   string `arg:"" help:"Natural-language description of your spending habits"`
	TopK       int    `help:"Number of chunks to retrieve" default:"50"`
	NoResponse bool   `help:"Skip free-text response generation" default:"false"`
	JSON       bool   `help:"Print the full recommendation as JSON" default:"false"`
}

func (c *CLI) Run() error {
	logger, err := c.SetupLogger()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
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

	oracleClient, err := commands.SetupOracle(c.OracleConfig, logger)
	if err != nil {
		return err
	}

	opts := []recommend.Option{recommend.WithTopK(c.TopK)}
	if !c.NoResponse {
		opts = append(opts, recommend.WithResponder(oracleClient))
	}

	engine := recommend.NewEngine(logger,
		intent.NewParser(oracleClient, logger),
		retrieval.NewClient(logger, provider, store),
		benefit.NewAnalyzer(oracleClient, logger),
		database,
		opts...)

	recommendation, err := engine.Recommend(ctx, c.Spending)
	if err != nil {
		if recommend.IsNoCandidates(err) {
			fmt.Println("No suitable card found for this spending pattern.")
			return nil
		}
		return err
	}

	if c.JSON {
		b, err := json.MarshalIndent(recommendation, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal recommendation: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}

	winner := recommendation.Winner
	fmt.Printf("Recommended: %s\n", winner.CardName)
	fmt.Printf("  Annual fee: %s\n", winner.AnnualFee.StringFixed(0))
	if winner.PrevMonthMin.IsPositive() {
		fmt.Printf("  Prior-month spend requirement: %s\n", winner.PrevMonthMin.StringFixed(0))
	}
	if winner.Analysis != nil {
		fmt.Printf("  Estimated annual savings: %s\n", winner.Analysis.AnnualSavings.StringFixed(0))
		for _, warning := range winner.Analysis.Warnings {
			fmt.Printf("  Warning: %s\n", warning)
		}
	}
	fmt.Printf("  Final score: %.2f\n", winner.FinalScore)

	fmt.Println("\nFull ranking:")
	for i, candidate := range recommendation.Ranked {
		fmt.Printf("%d. %s (score %.2f)\n", i+1, candidate.CardName, candidate.FinalScore)
	}

	if recommendation.Response != "" {
		fmt.Println("\n" + recommendation.Response)
	}
	return nil
}

func main() {
	commands.LoadEnv()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("card-recommender"),
		kong.Description("Recommend the best card for a described spending pattern"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
