package suggest

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

// Confidence tiers are a fixed contract with the presentation layer.
const (
	confidenceHighThreshold   = 70
	confidenceMediumThreshold = 40
	confidenceTieEpsilon      = 0.01
)

// rankSuggestions turns the truncated top-N into calibrated suggestions:
// confidence = clamp(total_score*100 * coverage * specificity * recency, 0, 100).
// The final sort is by confidence descending with the law-ID tie-break; the
// confidence order, not total_score, is the canonical presentation order.
func rankSuggestions(scored []model.ScoredCandidate, q model.IncidentQuery, now time.Time) []model.RankedSuggestion {
	terms := searchTerms(q)

	ranked := make([]model.RankedSuggestion, 0, len(scored))
	for _, sc := range scored {
		base := sc.TotalScore * 100

		coverage := coverageFactor(sc.Law, terms)
		specificity := specificityFactor(sc.Law, sc.MatchedRules)
		recency := recencyFactor(sc.Law.EffectiveDate, now)

		confidence := base * coverage * specificity * recency
		if confidence > 100 {
			confidence = 100
		}
		if confidence < 0 {
			confidence = 0
		}

		level := model.ConfidenceLow
		switch {
		case confidence >= confidenceHighThreshold:
			level = model.ConfidenceHigh
		case confidence >= confidenceMediumThreshold:
			level = model.ConfidenceMedium
		}

		ranked = append(ranked, model.RankedSuggestion{
			ScoredCandidate: sc,
			Confidence:      int(math.Round(confidence)),
			ConfidenceLevel: level,
			EvidenceSummary: evidenceSummary(sc.MatchedRules, sc.BM25Score, sc.RuleScore),
			RankingFactors: model.RankingFactors{
				BaseScore:         round2(base),
				CoverageFactor:    round2(coverage),
				SpecificityFactor: round2(specificity),
				RecencyFactor:     round2(recency),
			},
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if math.Abs(float64(a.Confidence-b.Confidence)) < confidenceTieEpsilon {
			return a.Law.ID < b.Law.ID
		}
		return a.Confidence > b.Confidence
	})

	return ranked
}

// searchTerms tokenizes the incident text: whitespace split, single-rune
// tokens dropped, lowercased.
func searchTerms(q model.IncidentQuery) []string {
	var terms []string
	for _, tok := range strings.Fields(q.SearchText()) {
		if utf8.RuneCountInString(tok) <= 1 {
			continue
		}
		terms = append(terms, strings.ToLower(tok))
	}
	return terms
}

// coverageFactor rewards laws whose text covers more of the incident terms.
func coverageFactor(law model.LawArticle, terms []string) float64 {
	if len(terms) == 0 {
		return 1.0
	}

	lawText := strings.ToLower(law.SearchText())
	covered := 0
	for _, term := range terms {
		if strings.Contains(lawText, term) {
			covered++
		}
	}

	ratio := float64(covered) / float64(len(terms))
	switch {
	case ratio >= 0.8:
		return 1.2
	case ratio >= 0.6:
		return 1.1
	case ratio >= 0.4:
		return 1.0
	case ratio >= 0.2:
		return 0.85
	default:
		return 0.7
	}
}

// specificityFactor rewards detailed, well-tagged, rule-corroborated
// articles and penalizes vague lexical-only hits. Clamped to [0.8, 1.15].
func specificityFactor(law model.LawArticle, groups []model.MatchedRuleGroup) float64 {
	factor := 1.0

	textLen := utf8.RuneCountInString(law.Text)
	switch {
	case textLen > 500:
		factor += 0.1
	case textLen > 200:
		factor += 0.05
	case textLen < 100:
		factor -= 0.1
	}

	patterns := 0
	for _, g := range groups {
		patterns += len(g.Matches)
	}
	switch {
	case patterns >= 5:
		factor += 0.1
	case patterns >= 3:
		factor += 0.05
	case patterns == 0:
		factor -= 0.15
	}

	tags := len(law.KeywordTags())
	if tags >= 5 {
		factor += 0.05
	} else if tags <= 2 {
		factor -= 0.05
	}

	return math.Max(0.8, math.Min(1.15, factor))
}

// recencyFactor gives newer statutes a slight bonus. An unparseable
// effective date is neutral, never an error.
func recencyFactor(effectiveDate string, now time.Time) float64 {
	parsed, ok := parseEffectiveDate(effectiveDate)
	if !ok {
		return 1.0
	}

	ageYears := now.Sub(parsed).Hours() / (24 * 365)
	switch {
	case ageYears <= 2:
		return 1.05
	case ageYears <= 5:
		return 1.0
	case ageYears <= 10:
		return 0.98
	default:
		return 0.95
	}
}

func parseEffectiveDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006.01.02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
