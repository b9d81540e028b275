package feedback

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestDocumentHash_Deterministic(t *testing.T) {
	t.Parallel()

	q := model.IncidentQuery{
		Summary:      "비계에서 추락",
		IncidentType: "추락",
	}
	assert.Equal(t, DocumentHash(q), DocumentHash(q))
	assert.Len(t, DocumentHash(q), 64, "hex-encoded SHA-256")

	other := model.IncidentQuery{Summary: "감전 사고"}
	assert.NotEqual(t, DocumentHash(q), DocumentHash(other))
}

func TestDocumentHash_FieldPositionsMatter(t *testing.T) {
	t.Parallel()

	a := model.IncidentQuery{Summary: "추락", IncidentType: ""}
	b := model.IncidentQuery{Summary: "", IncidentType: "추락"}
	assert.NotEqual(t, DocumentHash(a), DocumentHash(b))
}

func TestStore_SaveAndGet(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	q := model.IncidentQuery{Summary: "비계에서 추락"}
	selections := []Selection{
		{LawID: "kosha-42", Included: true, Order: 1},
		{LawID: "osh-38", Included: false, Order: 2, FeedbackReason: "관련성 낮음"},
	}

	hash, err := store.Save(context.Background(), q, selections)
	require.NoError(t, err)
	assert.Equal(t, DocumentHash(q), hash)

	rec, err := store.Get(context.Background(), hash)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, hash, rec.DocumentHash)
	assert.Equal(t, selections, rec.Selections)
	assert.Equal(t, "1.0.0", rec.Version)
	assert.False(t, rec.SubmittedAt.IsZero())
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	rec, err := store.Get(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_SaveReplacesLatest(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	q := model.IncidentQuery{Summary: "감전 사고"}

	_, err := store.Save(context.Background(), q, []Selection{{LawID: "a", Included: true, Order: 1}})
	require.NoError(t, err)

	hash, err := store.Save(context.Background(), q, []Selection{{LawID: "b", Included: true, Order: 1}})
	require.NoError(t, err)

	rec, err := store.Get(context.Background(), hash)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, rec.Selections, 1)
	assert.Equal(t, "b", rec.Selections[0].LawID, "the latest submission wins")
}

func TestStore_SaveRejectsEmptySelections(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Save(context.Background(), model.IncidentQuery{Summary: "x"}, nil)
	assert.Error(t, err)
}

func TestStore_Has(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	q := model.IncidentQuery{Summary: "화재"}

	ok, err := store.Has(context.Background(), DocumentHash(q))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Save(context.Background(), q, []Selection{{LawID: "a", Included: true}})
	require.NoError(t, err)

	ok, err = store.Has(context.Background(), DocumentHash(q))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_NoIncidentTextPersisted(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := NewStore(db)
	require.NoError(t, store.Migrate(context.Background()))

	secret := "피해자 홍길동이 비계에서 추락"
	_, err = store.Save(context.Background(), model.IncidentQuery{Summary: secret},
		[]Selection{{LawID: "kosha-42", Included: true}})
	require.NoError(t, err)

	var hash, selections string
	require.NoError(t, db.QueryRow(
		`SELECT document_hash, selections FROM law_feedback`).Scan(&hash, &selections))
	assert.NotContains(t, hash, "홍길동")
	assert.NotContains(t, selections, "홍길동", "only the hash and selections are stored, never the text")
}

func TestStore_DeleteExpired(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	q := model.IncidentQuery{Summary: "붕괴"}
	hash, err := store.Save(context.Background(), q, []Selection{{LawID: "a", Included: true}})
	require.NoError(t, err)

	// Nothing expired yet.
	n, err := store.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// Force the record past retention, then purge.
	_, err = store.db.Exec(`UPDATE law_feedback SET expires_at = datetime('now', '-1 day')`)
	require.NoError(t, err)

	rec, err := store.Get(context.Background(), hash)
	require.NoError(t, err)
	assert.Nil(t, rec, "expired feedback is invisible before deletion")

	n, err = store.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
