package lawindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

func newTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := NewSQLite(filepath.Join(t.TempDir(), "laws.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.Migrate(context.Background()))
	return idx
}

func seedCorpus(t *testing.T, idx *SQLiteIndex) {
	t.Helper()
	laws := []model.LawArticle{
		{
			ID:            "kosha-42",
			LawCode:       "산업안전보건기준에 관한 규칙",
			LawTitle:      "산업안전보건기준에 관한 규칙",
			ArticleNo:     "제42조",
			Text:          "사업주는 추락 위험이 있는 비계에 안전난간을 설치하여야 한다",
			EffectiveDate: "2024-01-01",
			Keywords:      "추락,비계,안전난간",
		},
		{
			ID:            "kosha-301",
			LawTitle:      "산업안전보건기준에 관한 규칙",
			ArticleNo:     "제301조",
			ClauseNo:      "1",
			Text:          "전기 기계 기구의 충전부에는 감전 방지 조치를 하여야 한다",
			EffectiveDate: "2022-06-01",
			Keywords:      "감전,전기,충전부",
		},
		{
			ID:            "osh-38",
			LawTitle:      "산업안전보건법",
			ArticleNo:     "제38조",
			Text:          "사업주는 안전조치 의무를 진다",
			EffectiveDate: "2021-01-01",
			Keywords:      "안전조치",
		},
	}
	n, err := idx.Upsert(context.Background(), laws)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestSQLiteIndex_SearchRanksRelevantFirst(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	seedCorpus(t, idx)

	hits, err := idx.Search(context.Background(), "추락 비계", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.Equal(t, "kosha-42", hits[0].Law.ID)
	assert.Negative(t, hits[0].Rank, "bm25 ranks are negative, more negative is better")
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Rank, hits[i].Rank, "hits ordered by ascending rank")
	}
}

func TestSQLiteIndex_SearchEmptyAndNoMatch(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	seedCorpus(t, idx)

	hits, err := idx.Search(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(context.Background(), "존재하지않는단어qqq", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteIndex_SearchLimit(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	seedCorpus(t, idx)

	hits, err := idx.Search(context.Background(), "사업주는 안전", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSQLiteIndex_GetAndNotFound(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	seedCorpus(t, idx)

	law, err := idx.Get(context.Background(), "kosha-301")
	require.NoError(t, err)
	assert.Equal(t, "제301조", law.ArticleNo)
	assert.Equal(t, "1", law.ClauseNo)

	_, err = idx.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteIndex_UpsertReplaces(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	seedCorpus(t, idx)

	_, err := idx.Upsert(context.Background(), []model.LawArticle{{
		ID:        "kosha-42",
		LawTitle:  "산업안전보건기준에 관한 규칙",
		ArticleNo: "제42조",
		Text:      "개정된 조문: 작업발판 및 추락 방호망 설치 의무",
		Keywords:  "추락,작업발판",
	}})
	require.NoError(t, err)

	law, err := idx.Get(context.Background(), "kosha-42")
	require.NoError(t, err)
	assert.Contains(t, law.Text, "개정된 조문")

	// The FTS shadow table must follow the update.
	hits, err := idx.Search(context.Background(), "방호망", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "kosha-42", hits[0].Law.ID)
}

func TestSQLiteIndex_UpsertRejectsEmptyID(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	_, err := idx.Upsert(context.Background(), []model.LawArticle{{LawTitle: "x", ArticleNo: "1", Text: "y"}})
	assert.Error(t, err)
}

func TestSQLiteIndex_BrowsePagination(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	seedCorpus(t, idx)

	page, err := idx.Browse(context.Background(), BrowseFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Laws, 2)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrev)

	page, err = idx.Browse(context.Background(), BrowseFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Laws, 1)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestSQLiteIndex_BrowseFilters(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	seedCorpus(t, idx)

	page, err := idx.Browse(context.Background(), BrowseFilter{LawTitle: "산업안전보건법"})
	require.NoError(t, err)
	require.Len(t, page.Laws, 1)
	assert.Equal(t, "osh-38", page.Laws[0].ID)

	page, err = idx.Browse(context.Background(), BrowseFilter{
		LawTitle:  "산업안전보건기준에 관한 규칙",
		ArticleNo: "제301조",
	})
	require.NoError(t, err)
	require.Len(t, page.Laws, 1)
	assert.Equal(t, "kosha-301", page.Laws[0].ID)

	page, err = idx.Browse(context.Background(), BrowseFilter{Query: "감전"})
	require.NoError(t, err)
	require.Len(t, page.Laws, 1)
	assert.Equal(t, "kosha-301", page.Laws[0].ID)
}

func TestSQLiteIndex_BrowseQueryWithColumnFilters(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	seedCorpus(t, idx)

	// "사업주는" matches kosha-42 and osh-38; the title filter keeps only the
	// latter. laws_fts carries law_title/article_no columns too, so the filter
	// must stay unambiguous inside the FTS join.
	page, err := idx.Browse(context.Background(), BrowseFilter{
		Query:    "사업주는",
		LawTitle: "산업안전보건법",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Laws, 1)
	assert.Equal(t, "osh-38", page.Laws[0].ID)

	page, err = idx.Browse(context.Background(), BrowseFilter{
		Query:     "추락",
		LawTitle:  "산업안전보건기준에 관한 규칙",
		ArticleNo: "제42조",
	})
	require.NoError(t, err)
	require.Len(t, page.Laws, 1)
	assert.Equal(t, "kosha-42", page.Laws[0].ID)
}

func TestSQLiteIndex_BrowseWhitespaceQuery(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	seedCorpus(t, idx)

	// A whitespace-only query yields no FTS match expression and must take the
	// plain listing path, ordering included.
	page, err := idx.Browse(context.Background(), BrowseFilter{Query: "   "})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Laws, 3)

	page, err = idx.Browse(context.Background(), BrowseFilter{Query: " \t ", LawTitle: "산업안전보건법"})
	require.NoError(t, err)
	require.Len(t, page.Laws, 1)
	assert.Equal(t, "osh-38", page.Laws[0].ID)
}

func TestSQLiteIndex_Stats(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	seedCorpus(t, idx)

	st, err := idx.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalLaws)
	assert.Equal(t, 2, st.TotalTitles)
	assert.Equal(t, "2024-01-01", st.LatestEffectiveDate)
}

func TestFTSQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"single token", "추락", `"추락"`},
		{"multiple tokens ORed", "추락 비계", `"추락" OR "비계"`},
		{"quotes doubled", `안전"난간`, `"안전""난간"`},
		{"operators neutralized", "추락 AND 비계", `"추락" OR "AND" OR "비계"`},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ftsQuery(tt.query))
		})
	}
}
