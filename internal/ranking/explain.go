package ranking

import "github.com/radicalcardists/card-recommender/internal/types"

// Explain exposes the per-hit score breakdown the aggregator would use
// under the given config. The numbers come from the same Adjusted
// computation the aggregator runs, not an approximation, so an operator
// auditing a ranking sees exactly what the engine saw.
func Explain(hits []types.RetrievedHit, cfg Config) []types.ExplainedHit {
	out := make([]types.ExplainedHit, len(hits))
	for i, hit := range hits {
		out[i] = types.ExplainedHit{
			Hit:           hit,
			RawScore:      hit.RawScore,
			DocTypeWeight: cfg.Weight(hit.DocType),
			AdjustedScore: cfg.Adjusted(hit),
		}
	}
	return out
}
