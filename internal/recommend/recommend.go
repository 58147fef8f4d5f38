// Package recommend wires the full request pipeline: intent parsing,
// chunk retrieval, evidence aggregation, shortlisting, benefit analysis
// and winner selection. Each phase either completes or fails the
// request with a phase-attributed error; no phase silently substitutes
// a default winner.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/radicalcardists/card-recommender/internal/ranking"
	"github.com/radicalcardists/card-recommender/internal/retrieval"
	"github.com/radicalcardists/card-recommender/internal/types"
)

const responsePrompt = "You present a card recommendation to the user. " +
	"Explain in two or three short paragraphs why the winning card fits their spending, " +
	"mention the estimated savings and any conditions they need to watch, " +
	"and briefly name the runner-up. Be concrete, do not invent benefits."

// IntentParser turns free text into a structured intent
type IntentParser interface {
	Parse(ctx context.Context, userInput string) (types.UserIntent, error)
}

// Retriever issues similarity queries over the chunk index
type Retriever interface {
	Search(ctx context.Context, queryText string, opts ...retrieval.SearchOption) ([]types.RetrievedHit, error)
}

// BenefitAnalyzer attaches a benefit analysis to each candidate,
// dropping the ones whose analysis fails
type BenefitAnalyzer interface {
	AnalyzeAll(ctx context.Context, intent types.UserIntent, candidates []types.Candidate) ([]types.Candidate, error)
}

// CardLookup resolves authoritative card records; the catalog is the
// source of truth for fees and minimum-spend requirements
type CardLookup interface {
	Get(ctx context.Context, id string) (*types.Card, error)
}

// Responder generates the free-text explanation of the final ranking
type Responder interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Engine runs the recommendation pipeline
type Engine struct {
	logger    *log.Logger
	parser    IntentParser
	retriever Retriever
	analyzer  BenefitAnalyzer
	catalog   CardLookup
	responder Responder // nil disables response generation
	cfg       ranking.Config
	topK      int
}

// Option configures the engine
type Option func(*Engine)

// WithRankingConfig overrides the default ranking parameters
func WithRankingConfig(cfg ranking.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithTopK overrides the retrieval depth
func WithTopK(topK int) Option {
	return func(e *Engine) { e.topK = topK }
}

// WithResponder enables free-text response generation
func WithResponder(responder Responder) Option {
	return func(e *Engine) { e.responder = responder }
}

// NewEngine creates a pipeline engine with explicit dependencies
func NewEngine(logger *log.Logger, parser IntentParser, retriever Retriever, analyzer BenefitAnalyzer, catalog CardLookup, opts ...Option) *Engine {
	e := &Engine{
		logger:    logger,
		parser:    parser,
		retriever: retriever,
		analyzer:  analyzer,
		catalog:   catalog,
		cfg:       ranking.DefaultConfig(),
		topK:      retrieval.DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend runs the full pipeline for a free-text spending description
func (e *Engine) Recommend(ctx context.Context, userInput string) (*types.Recommendation, error) {
	requestID := uuid.NewString()
	logger := e.logger.With("request_id", requestID)

	intent, err := e.parser.Parse(ctx, userInput)
	if err != nil {
		return nil, fmt.Errorf("intent phase: %w", err)
	}
	return e.recommendForIntent(ctx, logger, requestID, intent)
}

// RecommendForIntent runs the pipeline from an already-parsed intent
func (e *Engine) RecommendForIntent(ctx context.Context, intent types.UserIntent) (*types.Recommendation, error) {
	requestID := uuid.NewString()
	return e.recommendForIntent(ctx, e.logger.With("request_id", requestID), requestID, intent)
}

func (e *Engine) recommendForIntent(ctx context.Context, logger *log.Logger, requestID string, intent types.UserIntent) (*types.Recommendation, error) {
	start := time.Now()

	hits, err := e.retriever.Search(ctx, intent.QueryText,
		retrieval.WithTopK(e.topK),
		retrieval.WithFilters(intent.Filters))
	if err != nil {
		return nil, fmt.Errorf("retrieval phase: %w", err)
	}
	logger.Debug("Retrieved chunks", "hits", len(hits))

	aggregates := ranking.Aggregate(hits, intent, e.cfg)
	shortlist := ranking.Shortlist(aggregates, e.cfg.ShortlistSize)
	if len(shortlist) == 0 {
		return nil, fmt.Errorf("aggregation phase: %w", ranking.ErrNoCandidates)
	}
	logger.Debug("Shortlisted candidates", "cards", len(shortlist), "aggregates", len(aggregates))

	candidates := make([]types.Candidate, 0, len(shortlist))
	for _, agg := range shortlist {
		candidates = append(candidates, e.buildCandidate(ctx, logger, agg))
	}

	analyzed, err := e.analyzer.AnalyzeAll(ctx, intent, candidates)
	if err != nil {
		return nil, fmt.Errorf("benefit phase: %w", err)
	}
	for i := range analyzed {
		analyzed[i].FinalScore = ranking.FinalScore(*analyzed[i].Analysis, analyzed[i])
	}

	winner, ranked, err := ranking.Select(analyzed)
	if err != nil {
		return nil, fmt.Errorf("selection phase: %w", err)
	}

	recommendation := &types.Recommendation{
		RequestID: requestID,
		Intent:    intent,
		Winner:    winner,
		Ranked:    ranked,
	}

	if e.responder != nil {
		response, err := e.responder.Complete(ctx, responsePrompt, buildResponseContext(intent, winner, ranked))
		if err != nil {
			// The ranking stands on its own; a missing narrative is not
			// worth failing the request over
			logger.Warn("Response generation failed", "error", err)
		} else {
			recommendation.Response = response
		}
	}

	logger.Info("Recommendation completed",
		"winner", winner.CardID,
		"final_score", winner.FinalScore,
		"candidates", len(ranked),
		"duration", time.Since(start))
	return recommendation, nil
}

// buildCandidate promotes a shortlisted aggregate into a candidate,
// taking fee and minimum-spend figures from the catalog. A missing
// catalog record falls back to the chunk metadata rather than failing
// the request.
func (e *Engine) buildCandidate(ctx context.Context, logger *log.Logger, agg types.CardAggregate) types.Candidate {
	candidate := types.Candidate{
		CardID:   agg.CardID,
		CardName: agg.CardName,
		Scores:   agg.Scores,
		Evidence: agg.Evidence,
	}

	card, err := e.catalog.Get(ctx, agg.CardID)
	if err != nil {
		logger.Warn("Catalog lookup failed, using chunk metadata",
			"card_id", agg.CardID, "error", err)
		for _, item := range agg.Evidence {
			if fee := item.Hit.Metadata.AnnualFee; fee != nil {
				candidate.AnnualFee = *fee
				break
			}
		}
		for _, item := range agg.Evidence {
			if minSpend := item.Hit.Metadata.PrevMonthMin; minSpend != nil {
				candidate.PrevMonthMin = *minSpend
				break
			}
		}
		return candidate
	}

	candidate.CardName = card.Name
	candidate.AnnualFee = card.AnnualFee
	candidate.PrevMonthMin = card.PrevMonthMin
	return candidate
}

// Explanation is the per-query view of retrieval and aggregation,
// exposing the exact numbers the ranking used
type Explanation struct {
	Hits       []types.ExplainedHit  `json:"hits"`
	Aggregates []types.CardAggregate `json:"aggregates"`
}

// ExplainRequest carries the per-request knobs of the explain view.
// Zero values fall back to the engine's configuration, so the common
// case stays a query text and nothing else.
type ExplainRequest struct {
	QueryText      string
	Intent         types.UserIntent
	TopK           int                       // 0 means the engine default
	DocTypes       []types.DocType           // empty means every doc type
	DocTypeWeights map[types.DocType]float64 // laid over the engine's weights
}

// Explain retrieves chunks for a raw query and reports the weighted
// scores and per-card aggregates without running the oracle phases
func (e *Engine) Explain(ctx context.Context, req ExplainRequest) (*Explanation, error) {
	intent := req.Intent
	if strings.TrimSpace(intent.QueryText) == "" {
		intent.QueryText = req.QueryText
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.topK
	}
	opts := []retrieval.SearchOption{
		retrieval.WithTopK(topK),
		retrieval.WithFilters(intent.Filters),
	}
	if len(req.DocTypes) > 0 {
		opts = append(opts, retrieval.WithDocTypes(req.DocTypes...))
	}

	hits, err := e.retriever.Search(ctx, req.QueryText, opts...)
	if err != nil {
		return nil, fmt.Errorf("retrieval phase: %w", err)
	}

	cfg := e.cfg.WithDocTypeWeights(req.DocTypeWeights)
	return &Explanation{
		Hits:       ranking.Explain(hits, cfg),
		Aggregates: ranking.Aggregate(hits, intent, cfg),
	}, nil
}

// IsNoCandidates reports whether an error means no card survived the
// pipeline, as opposed to a system failure
func IsNoCandidates(err error) bool {
	return errors.Is(err, ranking.ErrNoCandidates)
}

// buildResponseContext renders the final ranking for the responder
func buildResponseContext(intent types.UserIntent, winner types.Candidate, ranked []types.Candidate) string {
	var sb strings.Builder

	sb.WriteString("User's monthly spending:\n")
	categories := make([]string, 0, len(intent.Spending))
	for category := range intent.Spending {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		fmt.Fprintf(&sb, "- %s: %s\n", category, intent.Spending[category].Amount.StringFixed(0))
	}

	fmt.Fprintf(&sb, "\nWinner: %s (annual fee %s", winner.CardName, winner.AnnualFee.StringFixed(0))
	if winner.PrevMonthMin.IsPositive() {
		fmt.Fprintf(&sb, ", requires %s prior-month spend", winner.PrevMonthMin.StringFixed(0))
	}
	sb.WriteString(")\n")
	if winner.Analysis != nil {
		fmt.Fprintf(&sb, "Estimated annual savings: %s\n", winner.Analysis.AnnualSavings.StringFixed(0))
		if len(winner.Analysis.Warnings) > 0 {
			fmt.Fprintf(&sb, "Warnings: %s\n", strings.Join(winner.Analysis.Warnings, "; "))
		}
		if winner.Analysis.Reasoning != "" {
			fmt.Fprintf(&sb, "Reasoning: %s\n", winner.Analysis.Reasoning)
		}
	}

	if len(ranked) > 1 {
		runnerUp := ranked[1]
		fmt.Fprintf(&sb, "\nRunner-up: %s", runnerUp.CardName)
		if runnerUp.Analysis != nil {
			fmt.Fprintf(&sb, " (estimated annual savings %s)", runnerUp.Analysis.AnnualSavings.StringFixed(0))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
