// Package suggest implements the hybrid law-suggestion engine: lexical
// candidate retrieval, rule-based matching, weighted score combination, and
// confidence ranking.
package suggest

import (
	"context"
	"strings"

	"github.com/safeops-labs/lawsuggest/internal/lawindex"
	"github.com/safeops-labs/lawsuggest/internal/model"
)

// RetrievalError reports that the full-text index could not serve the
// request. It always invalidates the whole result set.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return "suggest: retrieval failed: " + e.Err.Error()
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// candidate pairs a law article with its batch-normalized lexical score.
type candidate struct {
	law  model.LawArticle
	bm25 float64
}

// retrieveCandidates runs the full-text query and min-max normalizes the raw
// ranks into bm25 scores in [0,1], 1.0 being the best match of the batch.
func retrieveCandidates(ctx context.Context, idx lawindex.Index, query string, limit int) ([]candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}

	hits, err := idx.Search(ctx, query, limit)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}
	return normalizeHits(hits), nil
}

// normalizeHits maps raw ranks (smaller = better) onto [0,1]. A batch of zero
// or one hits, or a batch where every rank is equal, scores uniformly 1.0.
func normalizeHits(hits []lawindex.Hit) []candidate {
	if len(hits) == 0 {
		return nil
	}

	minRank, maxRank := hits[0].Rank, hits[0].Rank
	for _, h := range hits[1:] {
		if h.Rank < minRank {
			minRank = h.Rank
		}
		if h.Rank > maxRank {
			maxRank = h.Rank
		}
	}

	span := maxRank - minRank
	cands := make([]candidate, len(hits))
	for i, h := range hits {
		score := 1.0
		if span > 0 {
			score = (maxRank - h.Rank) / span
		}
		cands[i] = candidate{law: h.Law, bm25: score}
	}
	return cands
}
