package pages

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/carnetapp/carnet/internal/client/models"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE document_pages (
  id TEXT PRIMARY KEY,
  document_id TEXT NOT NULL,
  cache_path TEXT NOT NULL,
  remote_path TEXT NOT NULL DEFAULT '',
  page_index INTEGER NOT NULL DEFAULT 0,
  width INTEGER NOT NULL DEFAULT 0,
  height INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  deleted_at INTEGER NOT NULL DEFAULT 0,
  owner_id TEXT NOT NULL DEFAULT '',
  dirty INTEGER NOT NULL DEFAULT 0,
  changed_fields TEXT NOT NULL DEFAULT ''
);
`)
	require.NoError(t, err)
	return db
}

func sample(id, docID string, index int) *models.DocumentPage {
	p := &models.DocumentPage{DocumentID: docID, CachePath: "/cache/" + id + ".jpg", PageIndex: index}
	p.ID = id
	p.CreatedAt = 100
	p.UpdatedAt = 100
	return p
}

func TestListActiveByDocument_PageOrder(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, sample("p2", "d1", 2)))
	require.NoError(t, r.Upsert(ctx, sample("p0", "d1", 0)))
	require.NoError(t, r.Upsert(ctx, sample("p1", "d1", 1)))
	require.NoError(t, r.Upsert(ctx, sample("px", "d2", 0)))

	got, err := r.ListActiveByDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, p := range got {
		assert.Equal(t, i, p.PageIndex)
	}
}

func TestSoftDeleteByDocument(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, sample("p0", "d1", 0)))
	require.NoError(t, r.Upsert(ctx, sample("p1", "d1", 1)))

	require.NoError(t, r.SoftDeleteByDocument(ctx, "d1", 500))

	got, err := r.ListActiveByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, got)

	p, err := r.GetByID(ctx, "p0")
	require.NoError(t, err)
	assert.Equal(t, int64(500), p.DeletedAt, "tombstone retained")
}
