package lawindex

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

// SQLiteIndex implements Index on modernc.org/sqlite with an FTS5 shadow
// table. bm25() ranks are negative with more negative = better, which is the
// native convention of the Hit contract.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteIndex{db: db}, nil
}

// DB exposes the underlying handle so sibling stores (feedback) can share
// one database file.
func (s *SQLiteIndex) DB() *sql.DB {
	return s.db
}

const sqliteMigration = `
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
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE VIRTUAL TABLE IF NOT EXISTS laws_fts USING fts5(
	law_title, article_no, text, keywords,
	content='laws', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS laws_fts_ai AFTER INSERT ON laws BEGIN
	INSERT INTO laws_fts(rowid, law_title, article_no, text, keywords)
	VALUES (new.rowid, new.law_title, new.article_no, new.text, new.keywords);
END;

CREATE TRIGGER IF NOT EXISTS laws_fts_ad AFTER DELETE ON laws BEGIN
	INSERT INTO laws_fts(laws_fts, rowid, law_title, article_no, text, keywords)
	VALUES ('delete', old.rowid, old.law_title, old.article_no, old.text, old.keywords);
END;

CREATE TRIGGER IF NOT EXISTS laws_fts_au AFTER UPDATE ON laws BEGIN
	INSERT INTO laws_fts(laws_fts, rowid, law_title, article_no, text, keywords)
	VALUES ('delete', old.rowid, old.law_title, old.article_no, old.text, old.keywords);
	INSERT INTO laws_fts(rowid, law_title, article_no, text, keywords)
	VALUES (new.rowid, new.law_title, new.article_no, new.text, new.keywords);
END;

CREATE INDEX IF NOT EXISTS idx_laws_title ON laws(law_title);
CREATE INDEX IF NOT EXISTS idx_laws_effective ON laws(effective_date);
`

func (s *SQLiteIndex) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

const lawColumns = `id, law_code, law_title, article_no, clause_no, text, effective_date, keywords, source_url`

func (s *SQLiteIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.law_code, l.law_title, l.article_no, l.clause_no, l.text,
		       l.effective_date, l.keywords, l.source_url,
		       bm25(laws_fts) AS rank
		FROM laws l
		INNER JOIN laws_fts ON laws_fts.rowid = l.rowid
		WHERE laws_fts MATCH ?
		ORDER BY rank, l.id
		LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var clause sql.NullString
		if err := rows.Scan(
			&h.Law.ID, &h.Law.LawCode, &h.Law.LawTitle, &h.Law.ArticleNo, &clause,
			&h.Law.Text, &h.Law.EffectiveDate, &h.Law.Keywords, &h.Law.SourceURL,
			&h.Rank,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hit")
		}
		h.Law.ClauseNo = clause.String
		hits = append(hits, h)
	}
	return hits, eris.Wrap(rows.Err(), "sqlite: search iterate")
}

func (s *SQLiteIndex) Get(ctx context.Context, id string) (*model.LawArticle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+lawColumns+` FROM laws WHERE id = ?`, id,
	)
	return scanLaw(row)
}

func (s *SQLiteIndex) Upsert(ctx context.Context, laws []model.LawArticle) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback()

	count := 0
	for _, l := range laws {
		if l.ID == "" {
			return count, eris.New("sqlite: law with empty id")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO laws (id, law_code, law_title, article_no, clause_no, text, effective_date, keywords, source_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				law_code = excluded.law_code,
				law_title = excluded.law_title,
				article_no = excluded.article_no,
				clause_no = excluded.clause_no,
				text = excluded.text,
				effective_date = excluded.effective_date,
				keywords = excluded.keywords,
				source_url = excluded.source_url,
				updated_at = datetime('now')`,
			l.ID, l.LawCode, l.LawTitle, l.ArticleNo, nullable(l.ClauseNo),
			l.Text, l.EffectiveDate, l.Keywords, l.SourceURL,
		)
		if err != nil {
			return count, eris.Wrapf(err, "sqlite: upsert law %s", l.ID)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return count, nil
}

func (s *SQLiteIndex) Browse(ctx context.Context, f BrowseFilter) (*Page, error) {
	f = clampBrowse(f)
	offset := (f.Page - 1) * f.Limit

	var (
		listSQL, countSQL string
		args              []any
	)
	// Filter columns are qualified with the table alias: laws_fts carries
	// law_title/article_no too, and bare names are ambiguous in the join.
	match := ftsQuery(f.Query)
	if match != "" {
		listSQL = `SELECT l.id, l.law_code, l.law_title, l.article_no, l.clause_no, l.text,
			l.effective_date, l.keywords, l.source_url
			FROM laws l INNER JOIN laws_fts ON laws_fts.rowid = l.rowid
			WHERE laws_fts MATCH ?`
		countSQL = `SELECT COUNT(*) FROM laws l
			INNER JOIN laws_fts ON laws_fts.rowid = l.rowid
			WHERE laws_fts MATCH ?`
		args = append(args, match)
	} else {
		listSQL = `SELECT ` + lawColumns + ` FROM laws l WHERE 1=1`
		countSQL = `SELECT COUNT(*) FROM laws l WHERE 1=1`
	}
	if f.LawTitle != "" {
		listSQL += ` AND l.law_title = ?`
		countSQL += ` AND l.law_title = ?`
		args = append(args, f.LawTitle)
	}
	if f.ArticleNo != "" {
		listSQL += ` AND l.article_no = ?`
		countSQL += ` AND l.article_no = ?`
		args = append(args, f.ArticleNo)
	}
	if match != "" {
		listSQL += ` ORDER BY rank`
	} else {
		listSQL += ` ORDER BY l.law_title, l.article_no, l.id`
	}
	listSQL += ` LIMIT ? OFFSET ?`

	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "sqlite: browse count")
	}

	rows, err := s.db.QueryContext(ctx, listSQL, append(args, f.Limit, offset)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: browse")
	}
	defer rows.Close()

	var laws []model.LawArticle
	for rows.Next() {
		l, err := scanLaw(rows)
		if err != nil {
			return nil, err
		}
		laws = append(laws, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: browse iterate")
	}
	return buildPage(laws, total, f), nil
}

func (s *SQLiteIndex) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT law_title), MAX(effective_date) FROM laws`,
	).Scan(&st.TotalLaws, &st.TotalTitles, &latest)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	st.LatestEffectiveDate = latest.String
	return &st, nil
}

// ftsQuery turns free text into a safe FTS5 match expression: each token is
// quoted (FTS5 string syntax, embedded quotes doubled) and tokens are OR-ed so
// partial overlap still ranks.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, tok := range fields {
		quoted = append(quoted, `"`+strings.ReplaceAll(tok, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLaw(row scannable) (*model.LawArticle, error) {
	var l model.LawArticle
	var clause sql.NullString
	err := row.Scan(
		&l.ID, &l.LawCode, &l.LawTitle, &l.ArticleNo, &clause,
		&l.Text, &l.EffectiveDate, &l.Keywords, &l.SourceURL,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan law")
	}
	l.ClauseNo = clause.String
	return &l, nil
}
