package ranking

import (
	"cmp"
	"slices"

	"github.com/radicalcardists/card-recommender/internal/types"
	"github.com/shopspring/decimal"
)

// Aggregate groups retrieved hits by card, selects each card's evidence
// set under the configured cap and fill order, and computes the
// similarity-phase scores. Pure function of its inputs: identical hits,
// intent and config produce bit-identical aggregates.
//
// Cards whose evidence set ends up empty are silently dropped; they
// simply do not compete.
func Aggregate(hits []types.RetrievedHit, intent types.UserIntent, cfg Config) []types.CardAggregate {
	userCategories := intent.SpendingCategories()

	// Group by card, preserving first-seen order for determinism
	var order []string
	byCard := make(map[string][]types.RetrievedHit)
	for _, hit := range hits {
		if hit.CardID == "" {
			continue
		}
		if _, seen := byCard[hit.CardID]; !seen {
			order = append(order, hit.CardID)
		}
		byCard[hit.CardID] = append(byCard[hit.CardID], hit)
	}

	aggregates := make([]types.CardAggregate, 0, len(order))
	for _, cardID := range order {
		cardHits := byCard[cardID]
		evidence := selectEvidence(cardHits, userCategories, cfg)
		if len(evidence) == 0 {
			continue
		}
		agg := types.CardAggregate{
			CardID:    cardID,
			CardName:  cardHits[0].Metadata.CardName,
			Evidence:  evidence,
			TotalHits: len(cardHits),
		}
		agg.Scores = scoreAggregate(agg, intent, userCategories, cfg)
		aggregates = append(aggregates, agg)
	}
	return aggregates
}

// selectEvidence walks the configured fill stages, admitting at most
// cfg.EvidenceCap hits with distinct chunk ids. The returned set is
// ordered by descending adjusted score regardless of admission order.
func selectEvidence(cardHits []types.RetrievedHit, userCategories map[string]bool, cfg Config) []types.EvidenceItem {
	cap := cfg.EvidenceCap
	if cap <= 0 {
		cap = DefaultEvidenceCap
	}

	taken := make(map[string]bool, cap)
	var out []types.EvidenceItem
	benefitMatched := false

	for _, stage := range cfg.EvidenceStages {
		if len(out) >= cap {
			break
		}
		if stage == StageSummaryFallback && benefitMatched {
			continue
		}

		var pool []types.EvidenceItem
		for _, hit := range cardHits {
			if taken[hit.ChunkID] || !stageAdmits(stage, hit, userCategories) {
				continue
			}
			pool = append(pool, types.EvidenceItem{Hit: hit, AdjustedScore: cfg.Adjusted(hit)})
		}
		sortEvidence(pool)

		for _, item := range pool {
			if len(out) >= cap {
				break
			}
			taken[item.Hit.ChunkID] = true
			out = append(out, item)
			if stage == StageBenefitMatching {
				benefitMatched = true
			}
		}
	}

	sortEvidence(out)
	return out
}

func stageAdmits(stage EvidenceStage, hit types.RetrievedHit, userCategories map[string]bool) bool {
	switch stage {
	case StageBenefitMatching:
		return hit.DocType == types.DocTypeBenefit && userCategories[hit.Metadata.Category]
	case StageNotes:
		return hit.DocType == types.DocTypeNotes
	case StageSummaryFallback, StageSummary:
		return hit.DocType == types.DocTypeSummary
	case StageBenefitRemaining:
		return hit.DocType == types.DocTypeBenefit && !userCategories[hit.Metadata.Category]
	}
	return false
}

// sortEvidence orders items by descending adjusted score, breaking exact
// ties by chunk id so repeated runs are bit-identical
func sortEvidence(items []types.EvidenceItem) {
	slices.SortFunc(items, func(a, b types.EvidenceItem) int {
		if c := cmp.Compare(b.AdjustedScore, a.AdjustedScore); c != 0 {
			return c
		}
		return cmp.Compare(a.Hit.ChunkID, b.Hit.ChunkID)
	})
}

// scoreAggregate computes the similarity-phase score breakdown for one
// card: s1 + 0.6*s2 + 0.3*s3 over the evidence set's adjusted scores,
// plus coverage bonus and constraint penalties.
func scoreAggregate(agg types.CardAggregate, intent types.UserIntent, userCategories map[string]bool, cfg Config) types.ScoreBreakdown {
	var s1, s2, s3 float64
	// Evidence is already ordered by descending adjusted score
	if len(agg.Evidence) > 0 {
		s1 = agg.Evidence[0].AdjustedScore
	}
	if len(agg.Evidence) > 1 {
		s2 = agg.Evidence[1].AdjustedScore
	}
	if len(agg.Evidence) > 2 {
		s3 = agg.Evidence[2].AdjustedScore
	}
	similarity := s1 + secondEvidenceWeight*s2 + thirdEvidenceWeight*s3

	// Coverage: each distinct user spending category matched by at least
	// one evidence item earns one unit, no double counting
	matched := make(map[string]bool)
	for _, item := range agg.Evidence {
		category := item.Hit.Metadata.Category
		if category != "" && userCategories[category] {
			matched[category] = true
		}
	}
	coverage := float64(len(matched)) * cfg.CoverageUnit

	penalty := constraintPenalty(agg, intent, cfg)

	normalized := 0.0
	if agg.TotalHits > 0 {
		normalized = similarity / float64(agg.TotalHits)
	}

	return types.ScoreBreakdown{
		SimilarityScore: similarity,
		CoverageBonus:   coverage,
		Penalty:         penalty,
		NormalizedScore: normalized,
	}
}

// constraintPenalty applies one penalty unit per violated user
// constraint. Unknown card values contribute no penalty: missing
// metadata means "no match" for that term, never an error.
func constraintPenalty(agg types.CardAggregate, intent types.UserIntent, cfg Config) float64 {
	penalty := 0.0

	if estimate := intent.Constraints.EstimatedPriorMonthSpend; estimate != nil {
		if minSpend := evidenceDecimal(agg.Evidence, func(m types.ChunkMetadata) *decimal.Decimal { return m.PrevMonthMin }); minSpend != nil {
			if minSpend.GreaterThan(*estimate) {
				penalty += cfg.PenaltyUnit
			}
		}
	}

	if maxFee := intent.Preferences.MaxAnnualFee; maxFee != nil {
		if fee := evidenceDecimal(agg.Evidence, func(m types.ChunkMetadata) *decimal.Decimal { return m.AnnualFee }); fee != nil {
			if fee.GreaterThan(*maxFee) {
				penalty += cfg.PenaltyUnit
			}
		}
	}

	return penalty
}

// evidenceDecimal returns the first known value of a metadata field
// across the evidence set
func evidenceDecimal(evidence []types.EvidenceItem, pick func(types.ChunkMetadata) *decimal.Decimal) *decimal.Decimal {
	for _, item := range evidence {
		if v := pick(item.Hit.Metadata); v != nil {
			return v
		}
	}
	return nil
}
