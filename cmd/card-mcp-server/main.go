package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/radicalcardists/card-recommender/internal/benefit"
	"github.com/radicalcardists/card-recommender/internal/commands"
	"github.com/radicalcardists/card-recommender/internal/intent"
	"github.com/radicalcardists/card-recommender/internal/mcp"
	"github.com/radicalcardists/card-recommender/internal/recommend"
	"github.com/radicalcardists/card-recommender/internal/retrieval"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig
	commands.OracleConfig

	NoResponse bool `help:"Skip free-text response generation in recommend_card" default:"false"`
}

func (c *CLI) Run() error {
	logger, err := c.SetupLogger()
	if err != nil {
		return err
	}

	ctx := context.Background()

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

	opts := []recommend.Option{}
	if !c.NoResponse {
		opts = append(opts, recommend.WithResponder(oracleClient))
	}

	engine := recommend.NewEngine(logger,
		intent.NewParser(oracleClient, logger),
		retrieval.NewClient(logger, provider, store),
		benefit.NewAnalyzer(oracleClient, logger),
		database,
		opts...)

	return mcp.New(engine, database, logger).Run()
}

func main() {
	commands.LoadEnv()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("card-mcp-server"),
		kong.Description("MCP server exposing card recommendation tools over stdio"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
