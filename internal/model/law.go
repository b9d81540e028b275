// Package model defines the domain types shared across the suggestion engine.
package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// LawArticle is one immutable statute fragment from the ingested corpus.
// Articles are created by the offline ingestion process and are read-only
// to the suggestion engine.
type LawArticle struct {
	ID            string `json:"id"`
	LawCode       string `json:"law_code"`
	LawTitle      string `json:"law_title"`
	ArticleNo     string `json:"article_no"`
	ClauseNo      string `json:"clause_no,omitempty"`
	Text          string `json:"text"`
	EffectiveDate string `json:"effective_date"`
	Keywords      string `json:"keywords"` // comma-separated tag list
	SourceURL     string `json:"source_url"`
}

// SearchText concatenates the searchable fields of the article.
func (l LawArticle) SearchText() string {
	return strings.Join([]string{l.LawTitle, l.ArticleNo, l.Text, l.Keywords}, " ")
}

// KeywordTags splits the comma-separated keyword list, dropping empty entries.
func (l LawArticle) KeywordTags() []string {
	var tags []string
	for _, k := range strings.Split(l.Keywords, ",") {
		if t := strings.TrimSpace(k); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// IncidentQuery is the caller's free-text description of a workplace incident.
// All fields are optional; an all-empty query yields an empty result set.
type IncidentQuery struct {
	Summary         string `json:"summary,omitempty"`
	IncidentType    string `json:"incident_type,omitempty"`
	CausativeObject string `json:"causative_object,omitempty"`
	WorkProcess     string `json:"work_process,omitempty"`
}

// SearchText joins the non-empty query fields, space-separated and
// NFC-normalized so composed and decomposed Hangul compare equal.
func (q IncidentQuery) SearchText() string {
	parts := make([]string, 0, 4)
	for _, f := range []string{q.Summary, q.IncidentType, q.CausativeObject, q.WorkProcess} {
		if t := strings.TrimSpace(f); t != "" {
			parts = append(parts, t)
		}
	}
	return norm.NFC.String(strings.Join(parts, " "))
}

// IsEmpty reports whether the query carries no searchable text.
func (q IncidentQuery) IsEmpty() bool {
	return q.SearchText() == ""
}

// MatchType distinguishes keyword and regex rule matches.
type MatchType string

const (
	MatchKeyword MatchType = "keyword"
	MatchRegex   MatchType = "regex"
)

// RuleMatch records one matched rule pattern and the deduplicated literal
// substrings that matched.
type RuleMatch struct {
	Type    MatchType `json:"type"`
	Pattern string    `json:"pattern"`
	Matches []string  `json:"matches"`
}

// MatchedRuleGroup collects the matches of one accident category.
type MatchedRuleGroup struct {
	AccidentType string      `json:"accident_type"`
	Matches      []RuleMatch `json:"matches"`
}

// ScoredCandidate is a law article after lexical retrieval and rule scoring.
type ScoredCandidate struct {
	Law          LawArticle         `json:"law"`
	TotalScore   float64            `json:"total_score"`
	BM25Score    float64            `json:"bm25_score"`
	RuleScore    float64            `json:"rule_score"`
	MatchedRules []MatchedRuleGroup `json:"matched_rules"`
}

// ConfidenceLevel is the UI tier derived from the calibrated confidence.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// RankingFactors exposes the inputs of the confidence formula for audit.
type RankingFactors struct {
	BaseScore         float64 `json:"base_score"`
	CoverageFactor    float64 `json:"coverage_factor"`
	SpecificityFactor float64 `json:"specificity_factor"`
	RecencyFactor     float64 `json:"recency_factor"`
}

// RankedSuggestion is the final per-article output of a suggestion request.
type RankedSuggestion struct {
	ScoredCandidate
	Confidence      int             `json:"confidence"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	EvidenceSummary string          `json:"evidence_summary"`
	RankingFactors  RankingFactors  `json:"ranking_factors"`
}

// SuggestMetadata records which ruleset produced a result set.
type SuggestMetadata struct {
	Version         string  `json:"version"`
	UpdatedAt       string  `json:"updated_at"`
	Alpha           float64 `json:"alpha"`
	Beta            float64 `json:"beta"`
	TotalCandidates int     `json:"total_candidates"`
}

// SuggestResult is the full payload of one suggestion request.
type SuggestResult struct {
	Suggestions []RankedSuggestion `json:"suggestions"`
	Metadata    SuggestMetadata    `json:"metadata"`
}
