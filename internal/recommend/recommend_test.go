package recommend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/ranking"
	"github.com/radicalcardists/card-recommender/internal/retrieval"
	"github.com/radicalcardists/card-recommender/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubParser struct {
	intent types.UserIntent
	err    error
}

func (p *stubParser) Parse(ctx context.Context, userInput string) (types.UserIntent, error) {
	return p.intent, p.err
}

type stubRetriever struct {
	hits []types.RetrievedHit
	err  error
}

func (r *stubRetriever) Search(ctx context.Context, queryText string, opts ...retrieval.SearchOption) ([]types.RetrievedHit, error) {
	return r.hits, r.err
}

// stubAnalyzer attaches a fixed annual savings per card id
type stubAnalyzer struct {
	savings map[string]int64
	err     error
}

func (a *stubAnalyzer) AnalyzeAll(ctx context.Context, intent types.UserIntent, candidates []types.Candidate) ([]types.Candidate, error) {
	if a.err != nil {
		return nil, a.err
	}
	var out []types.Candidate
	for _, candidate := range candidates {
		amount, ok := a.savings[candidate.CardID]
		if !ok {
			continue // analysis failed for this card
		}
		candidate.Analysis = &types.BenefitAnalysis{
			CardID:        candidate.CardID,
			AnnualSavings: decimal.NewFromInt(amount),
			Warnings:      []string{},
		}
		out = append(out, candidate)
	}
	return out, nil
}

type stubCatalog struct {
	cards map[string]types.Card
}

func (c *stubCatalog) Get(ctx context.Context, id string) (*types.Card, error) {
	card, ok := c.cards[id]
	if !ok {
		return nil, fmt.Errorf("card %s not found", id)
	}
	return &card, nil
}

type stubResponder struct {
	response string
	err      error
	called   bool
}

func (r *stubResponder) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	r.called = true
	return r.response, r.err
}

func benefitHit(cardID string, raw float64) types.RetrievedHit {
	return types.RetrievedHit{
		ChunkID:  cardID + ":benefit:0",
		CardID:   cardID,
		DocType:  types.DocTypeBenefit,
		Text:     "5% cashback at supermarkets",
		RawScore: raw,
		Metadata: types.ChunkMetadata{
			CardID:   cardID,
			CardName: "Card " + cardID,
			DocType:  types.DocTypeBenefit,
			Category: "grocery",
		},
	}
}

func testIntent() types.UserIntent {
	return types.UserIntent{
		Spending: map[string]types.SpendingEntry{
			"grocery": {Amount: decimal.NewFromInt(300)},
		},
		QueryText: "grocery spending",
	}
}

func catalogCard(id string, fee int64) types.Card {
	return types.Card{
		ID:        id,
		Name:      "Card " + id,
		Issuer:    "Acme Bank",
		Type:      types.CardTypeCredit,
		AnnualFee: decimal.NewFromInt(fee),
	}
}

func newTestEngine(parser IntentParser, retriever Retriever, analyzer BenefitAnalyzer, cat CardLookup, opts ...Option) *Engine {
	return NewEngine(log.New(io.Discard), parser, retriever, analyzer, cat, opts...)
}

func TestRecommendEndToEnd(t *testing.T) {
	parser := &stubParser{intent: testIntent()}
	retriever := &stubRetriever{hits: []types.RetrievedHit{
		benefitHit("a", 0.9),
		benefitHit("b", 0.8),
	}}
	analyzer := &stubAnalyzer{savings: map[string]int64{"a": 100, "b": 400}}
	cat := &stubCatalog{cards: map[string]types.Card{
		"a": catalogCard("a", 0),
		"b": catalogCard("b", 50),
	}}

	engine := newTestEngine(parser, retriever, analyzer, cat)
	recommendation, err := engine.Recommend(context.Background(), "I spend a lot on groceries")
	require.NoError(t, err)

	// b: 400-50=350 net beats a: 100-0=100, similarity notwithstanding
	assert.Equal(t, "b", recommendation.Winner.CardID)
	require.Len(t, recommendation.Ranked, 2)
	assert.Equal(t, "a", recommendation.Ranked[1].CardID)
	assert.NotEmpty(t, recommendation.RequestID)
	assert.True(t, recommendation.Winner.AnnualFee.Equal(decimal.NewFromInt(50)),
		"fee must come from the catalog")
	assert.Empty(t, recommendation.Response)
}

func TestRecommendIntentFailure(t *testing.T) {
	engine := newTestEngine(
		&stubParser{err: errors.New("model down")},
		&stubRetriever{}, &stubAnalyzer{}, &stubCatalog{})

	_, err := engine.Recommend(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intent phase")
}

func TestRecommendRetrievalFailure(t *testing.T) {
	engine := newTestEngine(
		&stubParser{intent: testIntent()},
		&stubRetriever{err: retrieval.ErrRetrievalUnavailable},
		&stubAnalyzer{}, &stubCatalog{})

	_, err := engine.Recommend(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, retrieval.ErrRetrievalUnavailable)
	assert.Contains(t, err.Error(), "retrieval phase")
}

func TestRecommendNoHitsMeansNoCandidates(t *testing.T) {
	engine := newTestEngine(
		&stubParser{intent: testIntent()},
		&stubRetriever{hits: nil},
		&stubAnalyzer{}, &stubCatalog{})

	_, err := engine.Recommend(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, IsNoCandidates(err))
}

func TestRecommendAllAnalysesFailed(t *testing.T) {
	engine := newTestEngine(
		&stubParser{intent: testIntent()},
		&stubRetriever{hits: []types.RetrievedHit{benefitHit("a", 0.9)}},
		&stubAnalyzer{savings: map[string]int64{}}, // every analysis dropped
		&stubCatalog{cards: map[string]types.Card{"a": catalogCard("a", 0)}})

	_, err := engine.Recommend(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, IsNoCandidates(err))
}

func TestRecommendCatalogMissFallsBackToMetadata(t *testing.T) {
	fee := decimal.NewFromInt(75)
	h := benefitHit("a", 0.9)
	h.Metadata.AnnualFee = &fee

	engine := newTestEngine(
		&stubParser{intent: testIntent()},
		&stubRetriever{hits: []types.RetrievedHit{h}},
		&stubAnalyzer{savings: map[string]int64{"a": 100}},
		&stubCatalog{cards: map[string]types.Card{}})

	recommendation, err := engine.Recommend(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, recommendation.Winner.AnnualFee.Equal(fee))
}

func TestRecommendResponseGeneration(t *testing.T) {
	responder := &stubResponder{response: "Pick card a, it fits your groceries."}
	engine := newTestEngine(
		&stubParser{intent: testIntent()},
		&stubRetriever{hits: []types.RetrievedHit{benefitHit("a", 0.9)}},
		&stubAnalyzer{savings: map[string]int64{"a": 100}},
		&stubCatalog{cards: map[string]types.Card{"a": catalogCard("a", 0)}},
		WithResponder(responder))

	recommendation, err := engine.Recommend(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, responder.called)
	assert.Equal(t, "Pick card a, it fits your groceries.", recommendation.Response)
}

func TestRecommendResponseFailureIsSoft(t *testing.T) {
	responder := &stubResponder{err: errors.New("model down")}
	engine := newTestEngine(
		&stubParser{intent: testIntent()},
		&stubRetriever{hits: []types.RetrievedHit{benefitHit("a", 0.9)}},
		&stubAnalyzer{savings: map[string]int64{"a": 100}},
		&stubCatalog{cards: map[string]types.Card{"a": catalogCard("a", 0)}},
		WithResponder(responder))

	recommendation, err := engine.Recommend(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, recommendation.Response)
}

func TestExplain(t *testing.T) {
	engine := newTestEngine(
		&stubParser{},
		&stubRetriever{hits: []types.RetrievedHit{benefitHit("a", 0.8)}},
		&stubAnalyzer{}, &stubCatalog{},
		WithRankingConfig(ranking.DefaultConfig()))

	explanation, err := engine.Explain(context.Background(), ExplainRequest{QueryText: "groceries"})
	require.NoError(t, err)
	require.Len(t, explanation.Hits, 1)
	assert.InDelta(t, 0.8, explanation.Hits[0].AdjustedScore, 1e-9)
	require.Len(t, explanation.Aggregates, 1)
	assert.Equal(t, "a", explanation.Aggregates[0].CardID)
}

// Caller-supplied weight overrides apply to the one request and leave
// the engine's own configuration untouched for the next one.
func TestExplainDocTypeWeightOverrides(t *testing.T) {
	engine := newTestEngine(
		&stubParser{},
		&stubRetriever{hits: []types.RetrievedHit{benefitHit("a", 0.8)}},
		&stubAnalyzer{}, &stubCatalog{})

	explanation, err := engine.Explain(context.Background(), ExplainRequest{
		QueryText:      "groceries",
		DocTypeWeights: map[types.DocType]float64{types.DocTypeBenefit: 2.0},
	})
	require.NoError(t, err)
	require.Len(t, explanation.Hits, 1)
	assert.InDelta(t, 2.0, explanation.Hits[0].DocTypeWeight, 1e-9)
	assert.InDelta(t, 1.6, explanation.Hits[0].AdjustedScore, 1e-9)
	require.Len(t, explanation.Aggregates, 1)
	assert.InDelta(t, 1.6, explanation.Aggregates[0].Scores.SimilarityScore, 1e-9)

	explanation, err = engine.Explain(context.Background(), ExplainRequest{QueryText: "groceries"})
	require.NoError(t, err)
	require.Len(t, explanation.Hits, 1)
	assert.InDelta(t, 1.0, explanation.Hits[0].DocTypeWeight, 1e-9)
	assert.InDelta(t, 0.8, explanation.Hits[0].AdjustedScore, 1e-9)
}
