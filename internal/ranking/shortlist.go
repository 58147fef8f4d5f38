package ranking

import (
	"cmp"
	"slices"

	"github.com/radicalcardists/card-recommender/internal/types"
)

// Shortlist orders aggregates by similarity + coverage - penalty and
// returns the top size entries. Cards tied exactly at the cut line are
// all included rather than truncated arbitrarily, so the result may be
// longer than size.
func Shortlist(aggregates []types.CardAggregate, size int) []types.CardAggregate {
	if size <= 0 {
		size = DefaultShortlistSize
	}

	sorted := slices.Clone(aggregates)
	slices.SortFunc(sorted, func(a, b types.CardAggregate) int {
		if c := cmp.Compare(b.ShortlistScore(), a.ShortlistScore()); c != 0 {
			return c
		}
		return cmp.Compare(a.CardID, b.CardID)
	})

	if len(sorted) <= size {
		return sorted
	}

	cutScore := sorted[size-1].ShortlistScore()
	end := size
	for end < len(sorted) && sorted[end].ShortlistScore() == cutScore {
		end++
	}
	return sorted[:end]
}
