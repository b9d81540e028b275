package suggest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safeops-labs/lawsuggest/internal/lawindex"
	"github.com/safeops-labs/lawsuggest/internal/model"
	"github.com/safeops-labs/lawsuggest/internal/ruleset"
)

const (
	// DefaultLimit is the suggestion count when the caller does not ask.
	DefaultLimit = 12

	// MaxLimit is the server-side cap regardless of caller input.
	MaxLimit = 100

	// The retriever over-fetches so the rule stage has enough material
	// to re-rank: max(minCandidates, limit*candidateMultiplier).
	minCandidates       = 50
	candidateMultiplier = 5

	// defaultParallelism bounds concurrent per-candidate rule scoring.
	defaultParallelism = 8
)

// Service orchestrates retrieval, rule matching, score combination, and
// confidence ranking. Safe for concurrent use: all state is read-only after
// construction, and each request works on a single ruleset snapshot.
type Service struct {
	idx         lawindex.Index
	rules       *ruleset.Provider
	parallelism int
	now         func() time.Time
}

// NewService wires the suggestion engine.
func NewService(idx lawindex.Index, rules *ruleset.Provider) *Service {
	return &Service{
		idx:         idx,
		rules:       rules,
		parallelism: defaultParallelism,
		now:         time.Now,
	}
}

// WithParallelism overrides the rule-scoring concurrency bound. Call before
// sharing the service across goroutines.
func (s *Service) WithParallelism(n int) *Service {
	if n > 0 {
		s.parallelism = n
	}
	return s
}

// Suggest returns up to limit ranked statute suggestions for the incident.
// An empty query returns an empty, well-formed result without touching the
// index. Either a complete result or an error is returned, never a partially
// scored list.
func (s *Service) Suggest(ctx context.Context, q model.IncidentQuery, limit int) (*model.SuggestResult, error) {
	rs := s.rules.Snapshot()

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	result := &model.SuggestResult{
		Suggestions: []model.RankedSuggestion{},
		Metadata: model.SuggestMetadata{
			Version:   rs.Version,
			UpdatedAt: rs.UpdatedAt,
			Alpha:     rs.Alpha,
			Beta:      rs.Beta,
		},
	}

	searchText := q.SearchText()
	if searchText == "" {
		return result, nil
	}

	fetch := limit * candidateMultiplier
	if fetch < minCandidates {
		fetch = minCandidates
	}

	cands, err := retrieveCandidates(ctx, s.idx, searchText, fetch)
	if err != nil {
		return nil, err
	}
	result.Metadata.TotalCandidates = len(cands)
	if len(cands) == 0 {
		return result, nil
	}

	// Rule scoring is independent per candidate; results land at fixed
	// indices so concurrency cannot perturb ordering.
	scored := make([]model.ScoredCandidate, len(cands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, c := range cands {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ruleScore, groups := scoreRules(c.law, q, rs)
			scored[i] = model.ScoredCandidate{
				Law:          c.law,
				BM25Score:    c.bm25,
				RuleScore:    ruleScore,
				MatchedRules: groups,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "suggest: rule scoring aborted")
	}

	top := combineAndSort(scored, rs.Alpha, rs.Beta, limit)
	result.Suggestions = rankSuggestions(top, q, s.now())

	zap.L().Debug("suggestion complete",
		zap.String("ruleset_version", rs.Version),
		zap.Int("total_candidates", len(cands)),
		zap.Int("returned", len(result.Suggestions)),
	)
	return result, nil
}

// RulesetVersion reports the active ruleset provenance without running a
// suggestion.
func (s *Service) RulesetVersion() (version, updatedAt string) {
	rs := s.rules.Snapshot()
	return rs.Version, rs.UpdatedAt
}
