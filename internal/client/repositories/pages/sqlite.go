package pages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/common"
	"github.com/carnetapp/carnet/internal/dbx"
)

// SQLiteRepository implements Repository over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const pageColumns = `id, document_id, cache_path, remote_path, page_index, width, height,
	created_at, updated_at, deleted_at, owner_id, dirty, changed_fields`

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.DocumentPage) error {
	query := `INSERT INTO document_pages (` + pageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			cache_path = excluded.cache_path,
			remote_path = excluded.remote_path,
			page_index = excluded.page_index,
			width = excluded.width,
			height = excluded.height,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			owner_id = excluded.owner_id,
			dirty = excluded.dirty,
			changed_fields = excluded.changed_fields
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.DocumentID, p.CachePath, p.RemotePath, p.PageIndex, p.Width, p.Height,
		p.CreatedAt, p.UpdatedAt, p.DeletedAt, p.OwnerID, p.Dirty, p.ChangedFields)
	if err != nil {
		return fmt.Errorf("failed to upsert document page: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.DocumentPage, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM document_pages WHERE id = ?`, id)

	p, err := scanPage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document page: %w", err)
	}
	return p, nil
}

// ListActiveByDocument returns the document's live pages in page order.
func (r *SQLiteRepository) ListActiveByDocument(ctx context.Context, documentID string) ([]models.DocumentPage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM document_pages
		WHERE document_id = ? AND deleted_at = 0 ORDER BY page_index, id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select document pages: %w", err)
	}
	defer rows.Close()

	var result []models.DocumentPage
	for rows.Next() {
		p, err := scanPage(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, at int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE document_pages SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at = 0`,
		at, at, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete document page: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SoftDeleteByDocument(ctx context.Context, documentID string, at int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE document_pages SET deleted_at = ?, updated_at = ? WHERE document_id = ? AND deleted_at = 0`,
		at, at, documentID)
	if err != nil {
		return fmt.Errorf("failed to cascade-delete document pages: %w", err)
	}
	return nil
}

func scanPage(scan func(dest ...any) error) (*models.DocumentPage, error) {
	var p models.DocumentPage
	err := scan(&p.ID, &p.DocumentID, &p.CachePath, &p.RemotePath, &p.PageIndex, &p.Width, &p.Height,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt, &p.OwnerID, &p.Dirty, &p.ChangedFields)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
