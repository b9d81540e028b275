package suggest

import (
	"math"
	"sort"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

// scoreTieEpsilon: totals closer than this are treated as tied and ordered
// by law ID so repeated runs over the same data produce the same order.
const scoreTieEpsilon = 1e-4

// combineAndSort computes the weighted total score for every candidate,
// sorts descending with the deterministic ID tie-break, and truncates to
// limit. Truncation happens strictly after the full sort.
func combineAndSort(cands []model.ScoredCandidate, alpha, beta float64, limit int) []model.ScoredCandidate {
	for i := range cands {
		cands[i].TotalScore = alpha*cands[i].BM25Score + beta*cands[i].RuleScore
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if math.Abs(a.TotalScore-b.TotalScore) < scoreTieEpsilon {
			return a.Law.ID < b.Law.ID
		}
		return a.TotalScore > b.TotalScore
	})

	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands
}
