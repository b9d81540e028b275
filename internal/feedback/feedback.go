// Package feedback stores anonymous reviewer feedback on law suggestions.
// Records are keyed by a deterministic hash of the incident fields; the
// incident text itself is never persisted.
package feedback

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

const (
	schemaVersion = "1.0.0"
	retention     = 365 * 24 * time.Hour

	// timeLayout matches sqlite datetime('now') so expiry comparisons stay
	// plain string comparisons.
	timeLayout = "2006-01-02 15:04:05"
)

// Selection is one reviewer decision about a suggested article.
type Selection struct {
	LawID          string `json:"law_id"`
	Included       bool   `json:"included"`
	Order          int    `json:"order"`
	FeedbackReason string `json:"feedback_reason,omitempty"`
}

// Record is a stored feedback entry. It carries selections only, never
// the incident text.
type Record struct {
	DocumentHash string      `json:"document_hash"`
	Selections   []Selection `json:"selections"`
	SubmittedAt  time.Time   `json:"submitted_at"`
	Version      string      `json:"version"`
}

// DocumentHash derives the deterministic SHA-256 key for an incident. Field
// order is fixed so the same incident always maps to the same record.
func DocumentHash(q model.IncidentQuery) string {
	payload, _ := json.Marshal(struct {
		Summary         string `json:"summary"`
		IncidentType    string `json:"incident_type"`
		CausativeObject string `json:"causative_object"`
		WorkProcess     string `json:"work_process"`
	}{q.Summary, q.IncidentType, q.CausativeObject, q.WorkProcess})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Store persists feedback records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle (shared with the law index).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const migration = `
CREATE TABLE IF NOT EXISTS law_feedback (
	id            TEXT PRIMARY KEY,
	document_hash TEXT NOT NULL UNIQUE,
	selections    TEXT NOT NULL,
	version       TEXT NOT NULL,
	submitted_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_law_feedback_expires ON law_feedback(expires_at);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "feedback: migrate")
}

// Save records feedback for an incident, replacing any earlier submission
// for the same document hash. Returns the hash.
func (s *Store) Save(ctx context.Context, q model.IncidentQuery, selections []Selection) (string, error) {
	if len(selections) == 0 {
		return "", eris.New("feedback: no selections")
	}

	hash := DocumentHash(q)
	selJSON, err := json.Marshal(selections)
	if err != nil {
		return "", eris.Wrap(err, "feedback: marshal selections")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO law_feedback (id, document_hash, selections, version, submitted_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_hash) DO UPDATE SET
			selections = excluded.selections,
			version = excluded.version,
			submitted_at = excluded.submitted_at,
			expires_at = excluded.expires_at`,
		uuid.New().String(), hash, string(selJSON), schemaVersion,
		now.Format(timeLayout), now.Add(retention).Format(timeLayout),
	)
	if err != nil {
		return "", eris.Wrap(err, "feedback: save")
	}
	return hash, nil
}

// Get returns the feedback for a document hash, or nil when absent or
// expired.
func (s *Store) Get(ctx context.Context, documentHash string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_hash, selections, version, submitted_at
		FROM law_feedback
		WHERE document_hash = ? AND expires_at > datetime('now')`,
		documentHash,
	)

	var rec Record
	var selJSON, submitted string
	err := row.Scan(&rec.DocumentHash, &selJSON, &rec.Version, &submitted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "feedback: get")
	}
	if ts, perr := time.ParseInLocation(timeLayout, submitted, time.UTC); perr == nil {
		rec.SubmittedAt = ts
	}
	if err := json.Unmarshal([]byte(selJSON), &rec.Selections); err != nil {
		return nil, eris.Wrap(err, "feedback: unmarshal selections")
	}
	return &rec, nil
}

// Has reports whether unexpired feedback exists for a document hash.
func (s *Store) Has(ctx context.Context, documentHash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM law_feedback
		WHERE document_hash = ? AND expires_at > datetime('now')`,
		documentHash,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "feedback: has")
	}
	return n > 0, nil
}

// DeleteExpired removes records past retention, returning the count deleted.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM law_feedback WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "feedback: delete expired")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "feedback: rows affected")
}
