package lawindex

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

// Pool is the subset of pgxpool.Pool the index uses; pgxmock satisfies it.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresIndex implements Index on a Postgres tsvector column. Postgres
// ranks are higher-is-better, so scores are negated at this boundary to
// preserve the smaller-rank-wins contract of Hit.
type PostgresIndex struct {
	pool Pool
}

// NewPostgres creates a PostgresIndex with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresIndex, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresIndex{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (tests use pgxmock here).
func NewPostgresWithPool(pool Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS laws (
	id             TEXT PRIMARY KEY,
	law_code       TEXT NOT NULL DEFAULT '',
	law_title      TEXT NOT NULL,
	article_no     TEXT NOT NULL,
	clause_no      TEXT,
	text           TEXT NOT NULL,
	effective_date TEXT NOT NULL DEFAULT '',
	keywords       TEXT NOT NULL DEFAULT '',
	source_url     TEXT NOT NULL DEFAULT '',
	search_vec     tsvector GENERATED ALWAYS AS (
		to_tsvector('simple',
			coalesce(law_title, '') || ' ' || coalesce(article_no, '') || ' ' ||
			coalesce(text, '') || ' ' || coalesce(keywords, ''))
	) STORED,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_laws_search_vec ON laws USING gin(search_vec);
CREATE INDEX IF NOT EXISTS idx_laws_title ON laws(law_title);
`

func (p *PostgresIndex) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (p *PostgresIndex) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if query == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, law_code, law_title, article_no, clause_no, text,
		       effective_date, keywords, source_url,
		       ts_rank_cd(search_vec, websearch_to_tsquery('simple', $1)) AS score
		FROM laws
		WHERE search_vec @@ websearch_to_tsquery('simple', $1)
		ORDER BY score DESC, id
		LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var clause *string
		var score float64
		if err := rows.Scan(
			&h.Law.ID, &h.Law.LawCode, &h.Law.LawTitle, &h.Law.ArticleNo, &clause,
			&h.Law.Text, &h.Law.EffectiveDate, &h.Law.Keywords, &h.Law.SourceURL,
			&score,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hit")
		}
		if clause != nil {
			h.Law.ClauseNo = *clause
		}
		// Flip direction: better match -> more negative rank.
		h.Rank = -score
		hits = append(hits, h)
	}
	return hits, eris.Wrap(rows.Err(), "postgres: search iterate")
}

func (p *PostgresIndex) Get(ctx context.Context, id string) (*model.LawArticle, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, law_code, law_title, article_no, clause_no, text,
		       effective_date, keywords, source_url
		FROM laws WHERE id = $1`, id,
	)

	var l model.LawArticle
	var clause *string
	err := row.Scan(
		&l.ID, &l.LawCode, &l.LawTitle, &l.ArticleNo, &clause,
		&l.Text, &l.EffectiveDate, &l.Keywords, &l.SourceURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get law")
	}
	if clause != nil {
		l.ClauseNo = *clause
	}
	return &l, nil
}

func (p *PostgresIndex) Upsert(ctx context.Context, laws []model.LawArticle) (int, error) {
	count := 0
	for _, l := range laws {
		if l.ID == "" {
			return count, eris.New("postgres: law with empty id")
		}
		_, err := p.pool.Exec(ctx, `
			INSERT INTO laws (id, law_code, law_title, article_no, clause_no, text, effective_date, keywords, source_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				law_code = EXCLUDED.law_code,
				law_title = EXCLUDED.law_title,
				article_no = EXCLUDED.article_no,
				clause_no = EXCLUDED.clause_no,
				text = EXCLUDED.text,
				effective_date = EXCLUDED.effective_date,
				keywords = EXCLUDED.keywords,
				source_url = EXCLUDED.source_url,
				updated_at = now()`,
			l.ID, l.LawCode, l.LawTitle, l.ArticleNo, pgNullable(l.ClauseNo),
			l.Text, l.EffectiveDate, l.Keywords, l.SourceURL,
		)
		if err != nil {
			return count, eris.Wrapf(err, "postgres: upsert law %s", l.ID)
		}
		count++
	}
	return count, nil
}

func (p *PostgresIndex) Browse(ctx context.Context, f BrowseFilter) (*Page, error) {
	f = clampBrowse(f)
	offset := (f.Page - 1) * f.Limit

	listSQL := `SELECT id, law_code, law_title, article_no, clause_no, text,
		effective_date, keywords, source_url FROM laws WHERE 1=1`
	countSQL := `SELECT COUNT(*) FROM laws WHERE 1=1`
	var args []any

	next := func() int { return len(args) + 1 }
	if f.Query != "" {
		cond := ` AND search_vec @@ websearch_to_tsquery('simple', $1)`
		listSQL += cond
		countSQL += cond
		args = append(args, f.Query)
	}
	if f.LawTitle != "" {
		args = append(args, f.LawTitle)
		cond := ` AND law_title = $` + strconv.Itoa(len(args))
		listSQL += cond
		countSQL += cond
	}
	if f.ArticleNo != "" {
		args = append(args, f.ArticleNo)
		cond := ` AND article_no = $` + strconv.Itoa(len(args))
		listSQL += cond
		countSQL += cond
	}

	var total int
	if err := p.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "postgres: browse count")
	}

	listSQL += ` ORDER BY law_title, article_no, id LIMIT $` + strconv.Itoa(next())
	args = append(args, f.Limit)
	listSQL += ` OFFSET $` + strconv.Itoa(next())
	args = append(args, offset)

	rows, err := p.pool.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: browse")
	}
	defer rows.Close()

	var laws []model.LawArticle
	for rows.Next() {
		var l model.LawArticle
		var clause *string
		if err := rows.Scan(
			&l.ID, &l.LawCode, &l.LawTitle, &l.ArticleNo, &clause,
			&l.Text, &l.EffectiveDate, &l.Keywords, &l.SourceURL,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan law")
		}
		if clause != nil {
			l.ClauseNo = *clause
		}
		laws = append(laws, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: browse iterate")
	}
	return buildPage(laws, total, f), nil
}

func (p *PostgresIndex) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var latest *string
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT law_title), MAX(effective_date) FROM laws`,
	).Scan(&st.TotalLaws, &st.TotalTitles, &latest)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	if latest != nil {
		st.LatestEffectiveDate = *latest
	}
	return &st, nil
}

func pgNullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
