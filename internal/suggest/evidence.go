package suggest

import (
	"fmt"
	"strings"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

// Qualitative score tiers used in evidence text.
const (
	strongSignal   = 0.7
	moderateSignal = 0.4
)

// evidenceSummary builds the short, deterministic explanation attached to a
// suggestion. Pure formatting over already-computed values; no scoring here.
func evidenceSummary(groups []model.MatchedRuleGroup, bm25, rule float64) string {
	var parts []string

	if len(groups) > 0 {
		total := 0
		for _, g := range groups {
			total += len(g.Matches)
		}
		names := make([]string, 0, 2)
		for _, g := range groups[:min(2, len(groups))] {
			names = append(names, g.AccidentType)
		}
		parts = append(parts, fmt.Sprintf("%s 유형 매칭 (%d개 규칙)", strings.Join(names, ", "), total))
	}

	if bm25 > strongSignal {
		parts = append(parts, "강한 텍스트 유사도")
	} else if bm25 > moderateSignal {
		parts = append(parts, "중간 텍스트 유사도")
	}

	if rule > strongSignal {
		parts = append(parts, "강한 규칙 매칭")
	} else if rule > moderateSignal {
		parts = append(parts, "중간 규칙 매칭")
	}

	if len(parts) == 0 {
		if bm25 > 0 {
			parts = append(parts, "텍스트 검색 결과")
		} else {
			parts = append(parts, "일반 관련성")
		}
	}

	return strings.Join(parts, " · ")
}
