// Package lawindex provides full-text access to the statute corpus.
package lawindex

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

// ErrNotFound is returned when a law article does not exist.
var ErrNotFound = eris.New("lawindex: law not found")

// Hit is one full-text search result. Rank follows the FTS5 bm25 convention:
// smaller (more negative) means a better match. Backends with the opposite
// convention must adapt at this boundary.
type Hit struct {
	Law  model.LawArticle
	Rank float64
}

// BrowseFilter selects a page of articles for the read-only browse API.
type BrowseFilter struct {
	Query     string
	LawTitle  string
	ArticleNo string
	Page      int
	Limit     int
}

// Page is one page of browse results.
type Page struct {
	Laws       []model.LawArticle `json:"laws"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
	HasNext    bool               `json:"has_next"`
	HasPrev    bool               `json:"has_prev"`
}

// Stats summarizes the ingested corpus.
type Stats struct {
	TotalLaws           int    `json:"total_laws"`
	TotalTitles         int    `json:"total_titles"`
	LatestEffectiveDate string `json:"latest_effective_date"`
}

// Index is the full-text statute corpus consumed by the suggestion engine.
type Index interface {
	// Search runs a relevance-ranked full-text query. An empty query
	// returns no hits without touching the backend.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)

	// Get fetches a single article by ID; ErrNotFound when absent.
	Get(ctx context.Context, id string) (*model.LawArticle, error)

	// Upsert inserts or replaces articles, returning the count written.
	Upsert(ctx context.Context, laws []model.LawArticle) (int, error)

	// Browse lists articles with pagination and optional filters.
	Browse(ctx context.Context, f BrowseFilter) (*Page, error)

	// Stats reports corpus totals.
	Stats(ctx context.Context) (*Stats, error)

	Migrate(ctx context.Context) error
	Close() error
}

// clampBrowse applies the browse pagination bounds.
func clampBrowse(f BrowseFilter) BrowseFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

func buildPage(laws []model.LawArticle, total int, f BrowseFilter) *Page {
	totalPages := (total + f.Limit - 1) / f.Limit
	return &Page{
		Laws:       laws,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: totalPages,
		HasNext:    f.Page < totalPages,
		HasPrev:    f.Page > 1,
	}
}
