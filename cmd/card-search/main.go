package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/commands"
	"github.com/radicalcardists/card-recommender/internal/ranking"
	"github.com/radicalcardists/card-recommender/internal/retrieval"
	"github.com/radicalcardists/card-recommender/internal/types"
	"github.com/shopspring/decimal"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig

	Query       string  `arg:"" help:"Query text to search for"`
	TopK        int     `help:"Number of chunks to retrieve" default:"20"`
	DocType     string  `help:"Restrict to one doc type (summary, benefit, notes)" default:""`
	FeeMax      float64 `help:"Only cards with annual fee at or below this" default:"-1"`
	MinSpendMax float64 `help:"Only cards with prior-month spend requirement at or below this" default:"-1"`
	Type        string  `help:"Only cards of this type (credit, debit)" default:""`
	OnlyOnline  bool    `help:"Only online-only cards" default:"false"`
	Name        bool    `help:"Full-text search over card names instead of similarity search" default:"false"`
	Explain     bool    `help:"Show doc-type weights and per-card aggregate scores" default:"false"`

	Weight map[string]float64 `help:"Override doc-type weights for --explain, e.g. --weight summary=1.0;notes=0.9" mapsep:";"`
}

func (c *CLI) Run() error {
	logger, err := c.SetupLogger()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if c.Name {
		return c.searchByName(ctx, logger)
	}

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

	client := retrieval.NewClient(logger, provider, store)

	opts := []retrieval.SearchOption{
		retrieval.WithTopK(c.TopK),
		retrieval.WithFilters(c.filters()),
	}
	if c.DocType != "" {
		docType, err := types.ParseDocType(c.DocType)
		if err != nil {
			return err
		}
		opts = append(opts, retrieval.WithDocTypes(docType))
	}

	hits, err := client.Search(ctx, c.Query, opts...)
	if err != nil {
		return err
	}

	if c.Explain {
		cfg, err := c.explainConfig()
		if err != nil {
			return err
		}
		printExplanation(hits, cfg)
		return nil
	}

	for _, hit := range hits {
		fmt.Printf("%.4f  %s [%s]\n", hit.RawScore, hit.Metadata.CardName, hit.DocType)
		fmt.Printf("        %s\n", hit.Text)
	}
	return nil
}

func (c *CLI) searchByName(ctx context.Context, logger *log.Logger) error {
	database, err := commands.SetupCatalog(c.DataDir, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	cards, err := database.SearchByName(ctx, c.Query, c.TopK)
	if err != nil {
		return err
	}
	for _, card := range cards {
		fmt.Printf("%s (%s, %s) fee=%s\n", card.Name, card.Issuer, card.Type, card.AnnualFee.StringFixed(0))
	}
	return nil
}

func (c *CLI) filters() types.Filters {
	filters := types.Filters{
		Type:       types.CardType(c.Type),
		OnlyOnline: c.OnlyOnline,
	}
	if c.FeeMax >= 0 {
		feeMax := decimal.NewFromFloat(c.FeeMax)
		filters.AnnualFeeMax = &feeMax
	}
	if c.MinSpendMax >= 0 {
		minSpendMax := decimal.NewFromFloat(c.MinSpendMax)
		filters.PriorMonthMinMax = &minSpendMax
	}
	return filters
}

// explainConfig lays any --weight overrides over the default ranking
// configuration
func (c *CLI) explainConfig() (ranking.Config, error) {
	overrides := make(map[types.DocType]float64, len(c.Weight))
	for name, weight := range c.Weight {
		docType, err := types.ParseDocType(name)
		if err != nil {
			return ranking.Config{}, err
		}
		overrides[docType] = weight
	}
	return ranking.DefaultConfig().WithDocTypeWeights(overrides), nil
}

func printExplanation(hits []types.RetrievedHit, cfg ranking.Config) {
	fmt.Println("Retrieved chunks:")
	for _, explained := range ranking.Explain(hits, cfg) {
		fmt.Printf("%s [%s] raw=%.4f weight=%.2f adjusted=%.4f\n",
			explained.Hit.ChunkID, explained.Hit.DocType,
			explained.RawScore, explained.DocTypeWeight, explained.AdjustedScore)
	}

	fmt.Println("\nPer-card scores:")
	for _, agg := range ranking.Aggregate(hits, types.UserIntent{}, cfg) {
		fmt.Printf("%s (%s): similarity=%.4f coverage=%.2f penalty=%.2f normalized=%.4f hits=%d\n",
			agg.CardName, agg.CardID,
			agg.Scores.SimilarityScore, agg.Scores.CoverageBonus,
			agg.Scores.Penalty, agg.Scores.NormalizedScore, agg.TotalHits)
	}
}

func main() {
	commands.LoadEnv()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("card-search"),
		kong.Description("Search card chunks by similarity or card names by full text"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
