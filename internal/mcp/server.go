package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/radicalcardists/card-recommender/internal/catalog"
	"github.com/radicalcardists/card-recommender/internal/recommend"
	"github.com/radicalcardists/card-recommender/internal/types"
)

type Server struct {
	engine  *recommend.Engine
	catalog *catalog.DB
	logger  *log.Logger
}

func New(engine *recommend.Engine, db *catalog.DB, logger *log.Logger) *Server {
	return &Server{
		engine:  engine,
		catalog: db,
		logger:  logger,
	}
}

func (s *Server) Run() error {
	mcpServer := server.NewMCPServer(
		"Card Recommender",
		"1.0.0",
	)

	mcpServer.AddTool(mcp.NewTool("recommend_card",
		mcp.WithDescription("Recommend the single best card for a described spending pattern"),
		mcp.WithString("spending",
			mcp.Required(),
			mcp.Description("Natural-language description of the user's spending habits and wishes"),
		),
	), s.recommendCardHandler)

	mcpServer.AddTool(mcp.NewTool("search_cards",
		mcp.WithDescription("Full-text search over card and issuer names in the catalog"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Card or issuer name to search for"),
		),
		mcp.WithString("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	), s.searchCardsHandler)

	mcpServer.AddTool(mcp.NewTool("explain_ranking",
		mcp.WithDescription("Show the retrieved chunks, doc-type weights and per-card scores for a query"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Query text to run against the similarity index"),
		),
		mcp.WithString("top_k",
			mcp.Description("Number of chunks to retrieve (default: engine setting)"),
		),
		mcp.WithString("doc_types",
			mcp.Description("Comma-separated doc types to retrieve: summary, benefit, notes (default: all)"),
		),
		mcp.WithString("doc_type_weights",
			mcp.Description("Doc-type weight overrides as doc_type=weight pairs, e.g. summary=1.0,notes=0.9; unmentioned types keep their defaults"),
		),
	), s.explainRankingHandler)

	if err := server.ServeStdio(mcpServer); err != nil {
		return err
	}

	return nil
}

func (s *Server) recommendCardHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spending, ok := request.Params.Arguments["spending"].(string)
	if !ok {
		return nil, errors.New("spending must be a string")
	}

	recommendation, err := s.engine.Recommend(ctx, spending)
	if err != nil {
		if recommend.IsNoCandidates(err) {
			return mcp.NewToolResultText("No suitable card found for this spending pattern."), nil
		}
		return nil, fmt.Errorf("failed to recommend a card: %w", err)
	}

	var sb strings.Builder
	winner := recommendation.Winner
	fmt.Fprintf(&sb, "Recommended: %s\n", winner.CardName)
	fmt.Fprintf(&sb, "  Annual fee: %s\n", winner.AnnualFee.StringFixed(0))
	if winner.PrevMonthMin.IsPositive() {
		fmt.Fprintf(&sb, "  Prior-month spend requirement: %s\n", winner.PrevMonthMin.StringFixed(0))
	}
	if winner.Analysis != nil {
		fmt.Fprintf(&sb, "  Estimated annual savings: %s\n", winner.Analysis.AnnualSavings.StringFixed(0))
		for _, warning := range winner.Analysis.Warnings {
			fmt.Fprintf(&sb, "  Warning: %s\n", warning)
		}
	}
	fmt.Fprintf(&sb, "  Final score: %.2f\n\n", winner.FinalScore)

	sb.WriteString("Full ranking:\n")
	for i, candidate := range recommendation.Ranked {
		fmt.Fprintf(&sb, "%d. %s (score %.2f", i+1, candidate.CardName, candidate.FinalScore)
		if candidate.Analysis != nil {
			fmt.Fprintf(&sb, ", annual savings %s", candidate.Analysis.AnnualSavings.StringFixed(0))
		}
		sb.WriteString(")\n")
	}

	if recommendation.Response != "" {
		sb.WriteString("\n" + recommendation.Response + "\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) searchCardsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, ok := request.Params.Arguments["query"].(string)
	if !ok {
		return nil, errors.New("query must be a string")
	}

	limit := 10
	if limitVal, ok := request.Params.Arguments["limit"]; ok {
		var err error
		limit, err = intArg("limit", limitVal)
		if err != nil {
			return nil, err
		}
	}

	cards, err := s.catalog.SearchByName(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search cards: %w", err)
	}

	var sb strings.Builder
	for _, card := range cards {
		fmt.Fprintf(&sb, "%s (%s, %s)\n", card.Name, card.Issuer, card.Type)
		fmt.Fprintf(&sb, "  Annual fee: %s\n", card.AnnualFee.StringFixed(0))
		if card.PrevMonthMin.IsPositive() {
			fmt.Fprintf(&sb, "  Prior-month spend requirement: %s\n", card.PrevMonthMin.StringFixed(0))
		}
		for _, benefit := range card.Benefits {
			fmt.Fprintf(&sb, "  [%s] %s\n", types.NormalizeCategory(benefit.Category), benefit.Text)
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return mcp.NewToolResultText("No cards matched."), nil
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) explainRankingHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, ok := request.Params.Arguments["query"].(string)
	if !ok {
		return nil, errors.New("query must be a string")
	}

	req := recommend.ExplainRequest{QueryText: query}

	if topKVal, ok := request.Params.Arguments["top_k"]; ok {
		topK, err := intArg("top_k", topKVal)
		if err != nil {
			return nil, err
		}
		req.TopK = topK
	}

	if docTypesVal, ok := request.Params.Arguments["doc_types"]; ok {
		raw, ok := docTypesVal.(string)
		if !ok {
			return nil, errors.New("doc_types must be a string")
		}
		docTypes, err := parseDocTypeList(raw)
		if err != nil {
			return nil, err
		}
		req.DocTypes = docTypes
	}

	if weightsVal, ok := request.Params.Arguments["doc_type_weights"]; ok {
		weights, err := docTypeWeightsArg(weightsVal)
		if err != nil {
			return nil, err
		}
		req.DocTypeWeights = weights
	}

	explanation, err := s.engine.Explain(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to explain ranking: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Retrieved chunks:\n")
	for _, hit := range explanation.Hits {
		fmt.Fprintf(&sb, "%s [%s] raw=%.4f weight=%.2f adjusted=%.4f\n",
			hit.Hit.ChunkID, hit.Hit.DocType, hit.RawScore, hit.DocTypeWeight, hit.AdjustedScore)
	}

	sb.WriteString("\nPer-card scores:\n")
	for _, agg := range explanation.Aggregates {
		fmt.Fprintf(&sb, "%s (%s): similarity=%.4f coverage=%.2f penalty=%.2f normalized=%.4f hits=%d\n",
			agg.CardName, agg.CardID,
			agg.Scores.SimilarityScore, agg.Scores.CoverageBonus,
			agg.Scores.Penalty, agg.Scores.NormalizedScore, agg.TotalHits)
		for _, item := range agg.Evidence {
			fmt.Fprintf(&sb, "  evidence %s [%s] adjusted=%.4f\n",
				item.Hit.ChunkID, item.Hit.DocType, item.AdjustedScore)
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// intArg accepts the integer encodings MCP clients actually send:
// JSON numbers arrive as float64, some clients send strings
func intArg(name string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", name, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%s must be a number or string", name)
}

// parseDocTypeList parses a comma-separated doc type list
func parseDocTypeList(raw string) ([]types.DocType, error) {
	var docTypes []types.DocType
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		docType, err := types.ParseDocType(part)
		if err != nil {
			return nil, err
		}
		docTypes = append(docTypes, docType)
	}
	return docTypes, nil
}

// docTypeWeightsArg accepts weight overrides either as a JSON object
// of doc type to number, or as a doc_type=weight pair string
func docTypeWeightsArg(value any) (map[types.DocType]float64, error) {
	switch v := value.(type) {
	case string:
		return parseDocTypeWeights(v)
	case map[string]any:
		weights := make(map[types.DocType]float64, len(v))
		for name, raw := range v {
			docType, err := types.ParseDocType(name)
			if err != nil {
				return nil, err
			}
			weight, ok := raw.(float64)
			if !ok {
				return nil, fmt.Errorf("weight for %s must be a number", docType)
			}
			weights[docType] = weight
		}
		return weights, nil
	}
	return nil, errors.New("doc_type_weights must be an object or a doc_type=weight pair string")
}

// parseDocTypeWeights parses "summary=1.0,notes=0.9" style overrides
func parseDocTypeWeights(raw string) (map[types.DocType]float64, error) {
	weights := make(map[types.DocType]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("doc_type_weights entry %q must be doc_type=weight", pair)
		}
		docType, err := types.ParseDocType(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("weight for %s must be a number: %w", docType, err)
		}
		weights[docType] = weight
	}
	return weights, nil
}
