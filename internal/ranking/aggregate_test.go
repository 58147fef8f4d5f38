package ranking

import (
	"testing"

	"github.com/radicalcardists/card-recommender/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groceryIntent() types.UserIntent {
	return types.UserIntent{
		Spending: map[string]types.SpendingEntry{
			"grocery": {Amount: decimal.NewFromInt(300)},
		},
		QueryText: "grocery spending",
	}
}

func hit(chunkID, cardID string, docType types.DocType, category string, raw float64) types.RetrievedHit {
	return types.RetrievedHit{
		ChunkID:  chunkID,
		CardID:   cardID,
		DocType:  docType,
		RawScore: raw,
		Metadata: types.ChunkMetadata{
			CardID:   cardID,
			CardName: "Card " + cardID,
			DocType:  docType,
			Category: category,
		},
	}
}

// A card with a matching benefit must not have its evidence diluted by
// the generic summary chunk, even when the summary's weighted score is
// higher than everything else.
func TestAggregateSummaryDoesNotDiluteBenefitEvidence(t *testing.T) {
	hits := []types.RetrievedHit{
		hit("p7:summary:0", "p7", types.DocTypeSummary, "", 0.80), // adjusted 0.92
		hit("p7:benefit:0", "p7", types.DocTypeBenefit, "grocery", 0.75),
		hit("p7:notes:0", "p7", types.DocTypeNotes, "", 0.60), // adjusted 0.51
	}

	aggregates := Aggregate(hits, groceryIntent(), DefaultConfig())
	require.Len(t, aggregates, 1)

	agg := aggregates[0]
	require.Len(t, agg.Evidence, 2)
	assert.Equal(t, "p7:benefit:0", agg.Evidence[0].Hit.ChunkID)
	assert.Equal(t, "p7:notes:0", agg.Evidence[1].Hit.ChunkID)
	assert.InDelta(t, 0.75, agg.Evidence[0].AdjustedScore, 1e-9)
	assert.InDelta(t, 0.51, agg.Evidence[1].AdjustedScore, 1e-9)

	// 0.75 + 0.6*0.51
	assert.InDelta(t, 1.056, agg.Scores.SimilarityScore, 1e-9)
	assert.InDelta(t, 1.0, agg.Scores.CoverageBonus, 1e-9)
	assert.InDelta(t, 0.0, agg.Scores.Penalty, 1e-9)
	assert.Equal(t, 3, agg.TotalHits)
	assert.InDelta(t, 1.056/3, agg.Scores.NormalizedScore, 1e-9)
}

// With the permissive summary stage the same hits produce a different
// evidence set; the fill order is config, not hardcoded behavior.
func TestAggregatePermissiveSummaryStage(t *testing.T) {
	hits := []types.RetrievedHit{
		hit("p7:summary:0", "p7", types.DocTypeSummary, "", 0.80),
		hit("p7:benefit:0", "p7", types.DocTypeBenefit, "grocery", 0.75),
		hit("p7:notes:0", "p7", types.DocTypeNotes, "", 0.60),
	}

	cfg := DefaultConfig()
	cfg.EvidenceStages = []EvidenceStage{StageBenefitMatching, StageNotes, StageSummary, StageBenefitRemaining}

	aggregates := Aggregate(hits, groceryIntent(), cfg)
	require.Len(t, aggregates, 1)

	agg := aggregates[0]
	require.Len(t, agg.Evidence, 3)
	// Sorted by adjusted score: summary 0.92, benefit 0.75, notes 0.51
	assert.Equal(t, "p7:summary:0", agg.Evidence[0].Hit.ChunkID)
	assert.InDelta(t, 0.92+0.6*0.75+0.3*0.51, agg.Scores.SimilarityScore, 1e-9)
}

// When no benefit chunk matches a user category, the summary fallback
// admits the summary so the card still competes.
func TestAggregateSummaryFallback(t *testing.T) {
	hits := []types.RetrievedHit{
		hit("c1:summary:0", "c1", types.DocTypeSummary, "", 0.70),
		hit("c1:benefit:0", "c1", types.DocTypeBenefit, "travel", 0.65),
	}

	aggregates := Aggregate(hits, groceryIntent(), DefaultConfig())
	require.Len(t, aggregates, 1)

	chunkIDs := make([]string, 0, len(aggregates[0].Evidence))
	for _, item := range aggregates[0].Evidence {
		chunkIDs = append(chunkIDs, item.Hit.ChunkID)
	}
	assert.Contains(t, chunkIDs, "c1:summary:0")
	assert.Contains(t, chunkIDs, "c1:benefit:0")
	// travel is not a user category, so no coverage
	assert.InDelta(t, 0.0, aggregates[0].Scores.CoverageBonus, 1e-9)
}

func TestAggregateEvidenceCapAndDistinctChunks(t *testing.T) {
	hits := []types.RetrievedHit{
		hit("c1:benefit:0", "c1", types.DocTypeBenefit, "grocery", 0.9),
		hit("c1:benefit:1", "c1", types.DocTypeBenefit, "grocery", 0.8),
		hit("c1:benefit:2", "c1", types.DocTypeBenefit, "grocery", 0.7),
		hit("c1:benefit:3", "c1", types.DocTypeBenefit, "grocery", 0.6),
		// Same chunk surfacing twice must not be counted twice
		hit("c1:benefit:0", "c1", types.DocTypeBenefit, "grocery", 0.9),
	}

	aggregates := Aggregate(hits, groceryIntent(), DefaultConfig())
	require.Len(t, aggregates, 1)

	agg := aggregates[0]
	require.Len(t, agg.Evidence, DefaultEvidenceCap)
	seen := make(map[string]bool)
	for _, item := range agg.Evidence {
		assert.False(t, seen[item.Hit.ChunkID], "duplicate chunk %s in evidence", item.Hit.ChunkID)
		seen[item.Hit.ChunkID] = true
	}
	assert.Equal(t, 5, agg.TotalHits)
}

func TestAggregateCoverageCountsDistinctCategories(t *testing.T) {
	intent := types.UserIntent{
		Spending: map[string]types.SpendingEntry{
			"grocery": {Amount: decimal.NewFromInt(300)},
			"cafe":    {Amount: decimal.NewFromInt(80)},
		},
		QueryText: "grocery and cafe",
	}
	hits := []types.RetrievedHit{
		hit("c1:benefit:0", "c1", types.DocTypeBenefit, "grocery", 0.9),
		hit("c1:benefit:1", "c1", types.DocTypeBenefit, "grocery", 0.8),
		hit("c1:benefit:2", "c1", types.DocTypeBenefit, "cafe", 0.7),
	}

	aggregates := Aggregate(hits, intent, DefaultConfig())
	require.Len(t, aggregates, 1)
	// Two distinct matched categories, not three evidence items
	assert.InDelta(t, 2.0, aggregates[0].Scores.CoverageBonus, 1e-9)
}

func TestAggregatePenaltyOnViolatedConstraints(t *testing.T) {
	estimate := decimal.NewFromInt(200)
	maxFee := decimal.NewFromInt(50)
	intent := groceryIntent()
	intent.Constraints.EstimatedPriorMonthSpend = &estimate
	intent.Preferences.MaxAnnualFee = &maxFee

	minSpend := decimal.NewFromInt(500)
	fee := decimal.NewFromInt(100)
	h := hit("c1:benefit:0", "c1", types.DocTypeBenefit, "grocery", 0.9)
	h.Metadata.PrevMonthMin = &minSpend
	h.Metadata.AnnualFee = &fee

	aggregates := Aggregate([]types.RetrievedHit{h}, intent, DefaultConfig())
	require.Len(t, aggregates, 1)
	// Both the min-spend requirement and the fee ceiling are violated
	assert.InDelta(t, 2.0, aggregates[0].Scores.Penalty, 1e-9)
}

func TestAggregateMissingMetadataMeansNoPenalty(t *testing.T) {
	estimate := decimal.NewFromInt(200)
	maxFee := decimal.NewFromInt(50)
	intent := groceryIntent()
	intent.Constraints.EstimatedPriorMonthSpend = &estimate
	intent.Preferences.MaxAnnualFee = &maxFee

	// No fee or min-spend metadata on any evidence
	hits := []types.RetrievedHit{hit("c1:benefit:0", "c1", types.DocTypeBenefit, "grocery", 0.9)}

	aggregates := Aggregate(hits, intent, DefaultConfig())
	require.Len(t, aggregates, 1)
	assert.InDelta(t, 0.0, aggregates[0].Scores.Penalty, 1e-9)
}

// Raising a single hit's raw score can move it across the evidence
// cut-line and past other evidence items, but the card's similarity
// score must never drop because of it.
func TestAggregateSimilarityMonotonicInRawScore(t *testing.T) {
	base := []types.RetrievedHit{
		hit("m1:benefit:0", "m1", types.DocTypeBenefit, "grocery", 0.70),
		hit("m1:benefit:1", "m1", types.DocTypeBenefit, "grocery", 0.55),
		hit("m1:benefit:2", "m1", types.DocTypeBenefit, "grocery", 0.40),
		hit("m1:benefit:3", "m1", types.DocTypeBenefit, "grocery", 0.25),
		hit("m1:benefit:4", "m1", types.DocTypeBenefit, "travel", 0.60),
		hit("m1:notes:0", "m1", types.DocTypeNotes, "", 0.65),
		hit("m1:summary:0", "m1", types.DocTypeSummary, "", 0.80),
	}
	intent := groceryIntent()
	cfg := DefaultConfig()

	similarityWith := func(idx int, raw float64) float64 {
		hits := make([]types.RetrievedHit, len(base))
		copy(hits, base)
		hits[idx].RawScore = raw
		aggregates := Aggregate(hits, intent, cfg)
		require.Len(t, aggregates, 1)
		return aggregates[0].Scores.SimilarityScore
	}

	for idx := range base {
		prev := similarityWith(idx, 0.0)
		for step := 1; step <= 20; step++ {
			raw := float64(step) * 0.05
			sim := similarityWith(idx, raw)
			assert.GreaterOrEqual(t, sim+1e-12, prev,
				"similarity dropped when %s raw score rose to %.2f", base[idx].ChunkID, raw)
			prev = sim
		}
	}
}

func TestAggregateDeterministic(t *testing.T) {
	hits := []types.RetrievedHit{
		hit("a:benefit:0", "a", types.DocTypeBenefit, "grocery", 0.8),
		hit("b:benefit:0", "b", types.DocTypeBenefit, "grocery", 0.8),
		hit("a:notes:0", "a", types.DocTypeNotes, "", 0.7),
		hit("b:summary:0", "b", types.DocTypeSummary, "", 0.6),
	}
	intent := groceryIntent()
	cfg := DefaultConfig()

	first := Aggregate(hits, intent, cfg)
	for range 10 {
		assert.Equal(t, first, Aggregate(hits, intent, cfg))
	}
}

func TestAggregateDropsHitsWithoutCardID(t *testing.T) {
	hits := []types.RetrievedHit{
		{ChunkID: "orphan", RawScore: 0.9, DocType: types.DocTypeBenefit},
		hit("c1:benefit:0", "c1", types.DocTypeBenefit, "grocery", 0.5),
	}
	aggregates := Aggregate(hits, groceryIntent(), DefaultConfig())
	require.Len(t, aggregates, 1)
	assert.Equal(t, "c1", aggregates[0].CardID)
}
