package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

func cand(id string, bm25, rule float64) model.ScoredCandidate {
	return model.ScoredCandidate{
		Law:       model.LawArticle{ID: id},
		BM25Score: bm25,
		RuleScore: rule,
	}
}

func TestCombineAndSort_WeightedTotal(t *testing.T) {
	t.Parallel()

	out := combineAndSort([]model.ScoredCandidate{cand("a", 0.5, 1.0)}, 0.6, 0.4, 10)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.6*0.5+0.4*1.0, out[0].TotalScore, 1e-9)
}

func TestCombineAndSort_DescendingOrder(t *testing.T) {
	t.Parallel()

	out := combineAndSort([]model.ScoredCandidate{
		cand("low", 0.1, 0.0),
		cand("high", 1.0, 1.0),
		cand("mid", 0.5, 0.5),
	}, 0.6, 0.4, 10)

	require.Len(t, out, 3)
	assert.Equal(t, "high", out[0].Law.ID)
	assert.Equal(t, "mid", out[1].Law.ID)
	assert.Equal(t, "low", out[2].Law.ID)
}

func TestCombineAndSort_TieBreaksByID(t *testing.T) {
	t.Parallel()

	out := combineAndSort([]model.ScoredCandidate{
		cand("z-law", 0.5, 0.5),
		cand("a-law", 0.5, 0.5),
	}, 0.6, 0.4, 10)

	assert.Equal(t, "a-law", out[0].Law.ID, "near-equal totals order by ID ascending")
	assert.Equal(t, "z-law", out[1].Law.ID)
}

func TestCombineAndSort_NearTieWithinEpsilon(t *testing.T) {
	t.Parallel()

	// Totals differ by less than the tie epsilon; ID decides.
	out := combineAndSort([]model.ScoredCandidate{
		cand("b", 0.500004, 0.0),
		cand("a", 0.5, 0.0),
	}, 1.0, 0.0, 10)

	assert.Equal(t, "a", out[0].Law.ID)
}

func TestCombineAndSort_TruncatesAfterSort(t *testing.T) {
	t.Parallel()

	out := combineAndSort([]model.ScoredCandidate{
		cand("worst", 0.0, 0.0),
		cand("best", 1.0, 1.0),
		cand("mid", 0.5, 0.5),
	}, 0.6, 0.4, 2)

	require.Len(t, out, 2)
	assert.Equal(t, "best", out[0].Law.ID, "the global best must survive truncation")
	assert.Equal(t, "mid", out[1].Law.ID)
}

func TestCombineAndSort_AlphaOnlyEqualsBM25(t *testing.T) {
	t.Parallel()

	out := combineAndSort([]model.ScoredCandidate{
		cand("a", 0.75, 0.9),
		cand("b", 0.25, 1.0),
	}, 1.0, 0.0, 10)

	assert.InDelta(t, 0.75, out[0].TotalScore, 1e-9)
	assert.InDelta(t, 0.25, out[1].TotalScore, 1e-9)
	assert.Equal(t, "a", out[0].Law.ID, "beta=0 ignores rule scores entirely")
}
