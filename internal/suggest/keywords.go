package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/safeops-labs/lawsuggest/internal/model"
	"github.com/safeops-labs/lawsuggest/internal/resilience"
	"github.com/safeops-labs/lawsuggest/pkg/anthropic"
)

// maxExtractedKeywords caps the keyword list regardless of extraction path.
const maxExtractedKeywords = 7

// KeywordExtractor derives search keywords from incident fields. With a
// configured model it asks Claude; otherwise, or on any model failure, it
// falls back to the deterministic rule table. The suggest flow itself never
// depends on this; keywords feed auxiliary search tooling only.
type KeywordExtractor struct {
	ai    anthropic.Client // nil disables the model path
	model string
}

// NewKeywordExtractor builds an extractor. ai may be nil.
func NewKeywordExtractor(ai anthropic.Client, model string) *KeywordExtractor {
	return &KeywordExtractor{ai: ai, model: model}
}

const keywordSystemPrompt = `당신은 산업안전보건 법령 전문가입니다. 재해 정보를 분석하여 관련 법령 검색용 핵심 키워드를 추출하세요.

요구사항:
- 재해 유형, 작업 환경, 위험 요소, 안전 장비 범주의 키워드를 추출
- 영문 키워드로 추출 (추락 → fall, 비계 → scaffold, 화학물질 → chemical)
- 일반적이고 검색 가능한 키워드 사용 (예: "fall", "height", "scaffold")
- 3~7개 키워드

출력은 JSON만: {"keywords": ["keyword1", "keyword2"]}`

// Extract returns search keywords for the incident.
func (e *KeywordExtractor) Extract(ctx context.Context, q model.IncidentQuery) []string {
	if e != nil && e.ai != nil && e.model != "" {
		if kws, err := e.extractModel(ctx, q); err == nil && len(kws) > 0 {
			return kws
		} else if err != nil {
			zap.L().Warn("keywords: model extraction failed, using fallback", zap.Error(err))
		}
	}
	return FallbackKeywords(q)
}

func (e *KeywordExtractor) extractModel(ctx context.Context, q model.IncidentQuery) ([]string, error) {
	temp := 0.3
	req := anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   512,
		System:      keywordSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role: "user",
			Content: fmt.Sprintf("재해 유형: %s\n재해 개요: %s\n가해물: %s\n작업 공정: %s",
				q.IncidentType, q.Summary, q.CausativeObject, q.WorkProcess),
		}},
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "extract_keywords")
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.ai.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Text)), &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Keywords) > maxExtractedKeywords {
		parsed.Keywords = parsed.Keywords[:maxExtractedKeywords]
	}
	return parsed.Keywords, nil
}

// keywordTable maps incident vocabulary (Korean and English) to search
// keywords for the deterministic fallback path.
var keywordTable = []struct {
	triggers []string
	keyword  string
}{
	{[]string{"fall", "추락"}, "fall"},
	{[]string{"chemical", "화학"}, "chemical"},
	{[]string{"fire", "화재"}, "fire"},
	{[]string{"explosion", "폭발"}, "explosion"},
	{[]string{"spill", "누출"}, "spill"},
	{[]string{"equipment", "장비"}, "equipment"},
	{[]string{"scaffold", "비계"}, "scaffold"},
	{[]string{"height", "높이", "고소"}, "height"},
	{[]string{"opening", "개구부"}, "opening"},
	{[]string{"machine", "기계"}, "machinery"},
	{[]string{"electric", "전기", "감전"}, "electricity"},
	{[]string{"confined", "밀폐"}, "confined_space"},
	{[]string{"collapse", "붕괴"}, "collapse"},
	{[]string{"caught", "끼임", "협착"}, "caught"},
}

// FallbackKeywords extracts keywords from the incident text by table lookup.
// Deterministic; order follows the table.
func FallbackKeywords(q model.IncidentQuery) []string {
	text := strings.ToLower(q.SearchText())
	if text == "" {
		return nil
	}

	var out []string
	for _, entry := range keywordTable {
		for _, trig := range entry.triggers {
			if strings.Contains(text, trig) {
				out = append(out, entry.keyword)
				break
			}
		}
		if len(out) == maxExtractedKeywords {
			break
		}
	}
	return out
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
