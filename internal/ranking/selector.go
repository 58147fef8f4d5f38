package ranking

import (
	"cmp"
	"errors"
	"slices"

	"github.com/radicalcardists/card-recommender/internal/types"
)

// ErrNoCandidates signals that nothing survived filtering and scoring.
// Callers report this as "no suitable card found", never as a system
// failure, and never default to an arbitrary card.
var ErrNoCandidates = errors.New("no candidates to select from")

// FinalScore combines the oracle's net annual benefit with the
// similarity-phase coverage bonus and penalty
func FinalScore(analysis types.BenefitAnalysis, candidate types.Candidate) float64 {
	net := analysis.AnnualSavings.Sub(candidate.AnnualFee)
	return net.InexactFloat64() + candidate.Scores.CoverageBonus - candidate.Scores.Penalty
}

// Select orders candidates by descending final score and returns the
// winner plus the full ordered list. Exact score ties break by lower
// annual fee, then lower minimum-spend requirement, then card id
// ascending; the id comparison guarantees a total order even when every
// business tie-break is equal.
func Select(candidates []types.Candidate) (types.Candidate, []types.Candidate, error) {
	if len(candidates) == 0 {
		return types.Candidate{}, nil, ErrNoCandidates
	}

	ranked := slices.Clone(candidates)
	slices.SortFunc(ranked, func(a, b types.Candidate) int {
		if c := cmp.Compare(b.FinalScore, a.FinalScore); c != 0 {
			return c
		}
		if c := a.AnnualFee.Cmp(b.AnnualFee); c != 0 {
			return c
		}
		if c := a.PrevMonthMin.Cmp(b.PrevMonthMin); c != 0 {
			return c
		}
		return cmp.Compare(a.CardID, b.CardID)
	})

	return ranked[0], ranked, nil
}
