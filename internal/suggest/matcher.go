package suggest

import (
	"strings"

	"go.uber.org/zap"

	"github.com/safeops-labs/lawsuggest/internal/model"
	"github.com/safeops-labs/lawsuggest/internal/ruleset"
)

// Contribution multipliers. A pattern that hits both the law text and the
// incident text is real evidence; a law-side-only hit means the law is
// generically about the topic. Input-side-only hits contribute nothing.
// Regex patterns are rarer and more specific than keywords, hence the
// higher multipliers.
const (
	keywordBothWeight = 1.0
	keywordLawWeight  = 0.3
	regexBothWeight   = 1.5
	regexLawWeight    = 0.5
)

// scoreRules evaluates every accident-category rule against one law article
// and the incident input. Returns the normalized rule score in [0,1] and the
// categories that matched, in sorted category order. Pure function: neither
// the ruleset nor the article is mutated.
func scoreRules(law model.LawArticle, q model.IncidentQuery, rs *ruleset.Config) (float64, []model.MatchedRuleGroup) {
	lawText := law.SearchText()
	inputText := q.SearchText()

	raw := 0.0
	var groups []model.MatchedRuleGroup

	for _, name := range rs.Categories() {
		rule := rs.Rules[name]
		var matches []model.RuleMatch
		catScore := 0.0

		for _, kw := range rule.Keywords {
			lawHits := findSubstrings(lawText, kw)
			inputHits := findSubstrings(inputText, kw)
			switch {
			case len(lawHits) > 0 && len(inputHits) > 0:
				catScore += keywordBothWeight * rule.Weight
				matches = append(matches, model.RuleMatch{
					Type:    model.MatchKeyword,
					Pattern: kw,
					Matches: dedupe(append(lawHits, inputHits...)),
				})
			case len(lawHits) > 0:
				catScore += keywordLawWeight * rule.Weight
				matches = append(matches, model.RuleMatch{
					Type:    model.MatchKeyword,
					Pattern: kw,
					Matches: dedupe(lawHits),
				})
			}
		}

		for _, pat := range rule.Patterns {
			if pat.Regex == nil {
				// Load-time validation should make this unreachable; a
				// hand-edited ruleset must not take down the request.
				zap.L().Warn("matcher: skipping uncompiled pattern",
					zap.String("accident_type", name),
					zap.String("pattern", pat.Source),
				)
				continue
			}
			lawHits := pat.Regex.FindAllString(lawText, -1)
			inputHits := pat.Regex.FindAllString(inputText, -1)
			switch {
			case len(lawHits) > 0 && len(inputHits) > 0:
				catScore += regexBothWeight * rule.Weight
				matches = append(matches, model.RuleMatch{
					Type:    model.MatchRegex,
					Pattern: pat.Source,
					Matches: dedupe(append(lawHits, inputHits...)),
				})
			case len(lawHits) > 0:
				catScore += regexLawWeight * rule.Weight
				matches = append(matches, model.RuleMatch{
					Type:    model.MatchRegex,
					Pattern: pat.Source,
					Matches: dedupe(lawHits),
				})
			}
		}

		if len(matches) > 0 {
			raw += catScore
			groups = append(groups, model.MatchedRuleGroup{
				AccidentType: name,
				Matches:      matches,
			})
		}
	}

	ceiling := maxRuleScore(rs)
	if ceiling <= 0 {
		return 0, groups
	}
	score := raw / ceiling
	if score > 1 {
		score = 1
	}
	return score, groups
}

// maxRuleScore is the normalization ceiling: the assumed maximum number of
// full keyword and regex matches per category, summed over all categories.
func maxRuleScore(rs *ruleset.Config) float64 {
	perCategory := float64(rs.MaxKeywordMatches)*keywordBothWeight + float64(rs.MaxRegexMatches)*regexBothWeight
	return float64(len(rs.Rules)) * perCategory
}

// findSubstrings returns every case-insensitive occurrence of pattern in
// text, preserving the original casing of each occurrence.
func findSubstrings(text, pattern string) []string {
	if pattern == "" {
		return nil
	}
	lowText := strings.ToLower(text)
	lowPat := strings.ToLower(pattern)

	var out []string
	for i := 0; ; {
		j := strings.Index(lowText[i:], lowPat)
		if j < 0 {
			break
		}
		start := i + j
		end := start + len(lowPat)
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
		i = start + len(lowPat)
	}
	return out
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
