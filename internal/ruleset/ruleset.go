// Package ruleset loads and validates the versioned accident-type rule
// configuration that drives hybrid law scoring. Rules are parsed into a
// strongly typed, immutable Config at load time; regex patterns are compiled
// once here, never per request.
package ruleset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Defaults for the rule-score normalization ceiling. These are empirical
// calibration constants; keep them in the config file when tuning.
const (
	DefaultMaxKeywordMatches = 10
	DefaultMaxRegexMatches   = 5
)

// fileRule is the on-disk shape of one accident-type rule.
type fileRule struct {
	Keywords []string `json:"keywords" yaml:"keywords"`
	Regex    []string `json:"regex" yaml:"regex"`
	Weight   float64  `json:"weight" yaml:"weight"`
}

// fileConfig is the on-disk shape of the whole ruleset.
type fileConfig struct {
	Version     string              `json:"version" yaml:"version"`
	UpdatedAt   string              `json:"updated_at" yaml:"updated_at"`
	Description string              `json:"description" yaml:"description"`
	Rules       map[string]fileRule `json:"rules" yaml:"rules"`
	Scoring     scoringParams       `json:"scoring_parameters" yaml:"scoring_parameters"`
}

type scoringParams struct {
	Alpha             float64 `json:"alpha" yaml:"alpha"`
	Beta              float64 `json:"beta" yaml:"beta"`
	MaxKeywordMatches int     `json:"max_keyword_matches" yaml:"max_keyword_matches"`
	MaxRegexMatches   int     `json:"max_regex_matches" yaml:"max_regex_matches"`
}

// Pattern pairs a regex source string with its compiled form.
type Pattern struct {
	Source string
	Regex  *regexp.Regexp
}

// Rule is one validated accident-type rule with compiled patterns.
type Rule struct {
	Keywords []string
	Patterns []Pattern
	Weight   float64
}

// Config is an immutable, validated ruleset snapshot. A request must use a
// single Config from start to finish; never mutate one after Load.
type Config struct {
	Version     string
	UpdatedAt   string
	Description string

	// Hybrid combination weights: total = Alpha*bm25 + Beta*rule.
	Alpha float64
	Beta  float64

	// Normalization ceiling: assumed maximum full matches per category.
	MaxKeywordMatches int
	MaxRegexMatches   int

	Rules map[string]Rule

	// categories is the sorted category list, fixed at load time so every
	// scoring pass walks the rules in the same order.
	categories []string
}

// Categories returns the accident-type names in sorted order.
func (c *Config) Categories() []string {
	return c.categories
}

// New builds a Config from already-compiled rules. Callers own pattern
// compilation; zero scoring ceilings fall back to the defaults.
func New(version string, alpha, beta float64, rules map[string]Rule) *Config {
	cfg := &Config{
		Version:           version,
		Alpha:             alpha,
		Beta:              beta,
		MaxKeywordMatches: DefaultMaxKeywordMatches,
		MaxRegexMatches:   DefaultMaxRegexMatches,
		Rules:             rules,
	}
	for name := range rules {
		cfg.categories = append(cfg.categories, name)
	}
	sort.Strings(cfg.categories)
	return cfg
}

// Load reads a ruleset from a YAML or JSON file and validates it.
// Any invalid weight or regex fails the load; startup should abort.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ruleset: read %s", path)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, eris.Wrapf(err, "ruleset: parse yaml %s", path)
		}
	default:
		if err := json.Unmarshal(raw, &fc); err != nil {
			return nil, eris.Wrapf(err, "ruleset: parse json %s", path)
		}
	}

	return build(fc)
}

func build(fc fileConfig) (*Config, error) {
	if fc.Version == "" {
		return nil, eris.New("ruleset: version is required")
	}
	if fc.Scoring.Alpha < 0 || fc.Scoring.Beta < 0 {
		return nil, eris.Errorf("ruleset: alpha/beta must be >= 0, got %.3f/%.3f", fc.Scoring.Alpha, fc.Scoring.Beta)
	}
	if fc.Scoring.Alpha+fc.Scoring.Beta <= 0 {
		return nil, eris.New("ruleset: alpha + beta must be > 0")
	}
	if s := fc.Scoring.Alpha + fc.Scoring.Beta; s < 0.9 || s > 1.1 {
		zap.L().Warn("ruleset: alpha + beta is far from 1.0, scores will be skewed",
			zap.Float64("alpha", fc.Scoring.Alpha),
			zap.Float64("beta", fc.Scoring.Beta),
		)
	}

	cfg := &Config{
		Version:           fc.Version,
		UpdatedAt:         fc.UpdatedAt,
		Description:       fc.Description,
		Alpha:             fc.Scoring.Alpha,
		Beta:              fc.Scoring.Beta,
		MaxKeywordMatches: fc.Scoring.MaxKeywordMatches,
		MaxRegexMatches:   fc.Scoring.MaxRegexMatches,
		Rules:             make(map[string]Rule, len(fc.Rules)),
	}
	if cfg.MaxKeywordMatches <= 0 {
		cfg.MaxKeywordMatches = DefaultMaxKeywordMatches
	}
	if cfg.MaxRegexMatches <= 0 {
		cfg.MaxRegexMatches = DefaultMaxRegexMatches
	}

	for name, fr := range fc.Rules {
		if fr.Weight <= 0 {
			return nil, eris.Errorf("ruleset: rule %q has non-positive weight %.3f", name, fr.Weight)
		}

		r := Rule{Weight: fr.Weight}
		for _, kw := range fr.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				r.Keywords = append(r.Keywords, kw)
			}
		}
		for _, src := range fr.Regex {
			// Case-insensitive to mirror keyword matching.
			re, err := regexp.Compile("(?i)" + src)
			if err != nil {
				return nil, eris.Wrapf(err, "ruleset: rule %q has invalid regex %q", name, src)
			}
			r.Patterns = append(r.Patterns, Pattern{Source: src, Regex: re})
		}
		cfg.Rules[name] = r
		cfg.categories = append(cfg.categories, name)
	}
	sort.Strings(cfg.categories)

	return cfg, nil
}
