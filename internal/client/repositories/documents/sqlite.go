package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/common"
	"github.com/carnetapp/carnet/internal/dbx"
)

// SQLiteRepository implements Repository over a dbx.DBTX. The tagged
// ownership variant is flattened into owner_kind plus vehicle_id/log_id
// columns at this boundary.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const documentColumns = `id, type, owner_kind, vehicle_id, log_id, reference, expiry_date,
	cover_cache_path, cover_remote_path,
	created_at, updated_at, deleted_at, owner_id, dirty, changed_fields`

func (r *SQLiteRepository) Upsert(ctx context.Context, d *models.Document) error {
	vehicleID, logID := ownerColumns(d.Owner)
	query := `INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			owner_kind = excluded.owner_kind,
			vehicle_id = excluded.vehicle_id,
			log_id = excluded.log_id,
			reference = excluded.reference,
			expiry_date = excluded.expiry_date,
			cover_cache_path = excluded.cover_cache_path,
			cover_remote_path = excluded.cover_remote_path,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			owner_id = excluded.owner_id,
			dirty = excluded.dirty,
			changed_fields = excluded.changed_fields
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Type, d.Owner.Kind, vehicleID, logID, d.Reference, d.ExpiryDate,
		d.CoverCachePath, d.CoverRemotePath,
		d.CreatedAt, d.UpdatedAt, d.DeletedAt, d.OwnerID, d.Dirty, d.ChangedFields)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)

	d, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) ListActive(ctx context.Context) ([]models.Document, error) {
	return r.list(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE deleted_at = 0 ORDER BY id`)
}

func (r *SQLiteRepository) ListActiveByVehicle(ctx context.Context, vehicleID string) ([]models.Document, error) {
	return r.list(ctx,
		`SELECT `+documentColumns+` FROM documents
		WHERE vehicle_id = ? AND deleted_at = 0 ORDER BY id`, vehicleID)
}

func (r *SQLiteRepository) ListActiveByLog(ctx context.Context, logID string) ([]models.Document, error) {
	return r.list(ctx,
		`SELECT `+documentColumns+` FROM documents
		WHERE log_id = ? AND deleted_at = 0 ORDER BY id`, logID)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.Document, error) {
	return r.list(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE dirty = 1 ORDER BY id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []models.Document
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, at int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE documents SET deleted_at = ?, updated_at = ?, dirty = 1 WHERE id = ? AND deleted_at = 0`,
		at, at, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete document: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SoftDeleteByVehicle(ctx context.Context, vehicleID string, at int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE documents SET deleted_at = ?, updated_at = ?, dirty = 1 WHERE vehicle_id = ? AND deleted_at = 0`,
		at, at, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to cascade-delete documents by vehicle: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SoftDeleteByLog(ctx context.Context, logID string, at int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE documents SET deleted_at = ?, updated_at = ?, dirty = 1 WHERE log_id = ? AND deleted_at = 0`,
		at, at, logID)
	if err != nil {
		return fmt.Errorf("failed to cascade-delete documents by log: %w", err)
	}
	return nil
}

// ClearDirty resets change tracking for the pushed rows, skipping any row
// whose updated_at moved past the push snapshot.
func (r *SQLiteRepository) ClearDirty(ctx context.Context, refs []models.SyncRef) error {
	for _, ref := range refs {
		_, err := r.db.ExecContext(ctx,
			`UPDATE documents SET dirty = 0, changed_fields = '' WHERE id = ? AND updated_at <= ?`,
			ref.ID, ref.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to clear dirty document: %w", err)
		}
	}
	return nil
}

func ownerColumns(o models.DocumentOwner) (vehicleID, logID string) {
	switch o.Kind {
	case models.OwnerVehicle:
		return o.ID, ""
	case models.OwnerLog:
		return "", o.ID
	}
	return "", ""
}

func scanDocument(scan func(dest ...any) error) (*models.Document, error) {
	var d models.Document
	var kind models.OwnerKind
	var vehicleID, logID string
	err := scan(&d.ID, &d.Type, &kind, &vehicleID, &logID, &d.Reference, &d.ExpiryDate,
		&d.CoverCachePath, &d.CoverRemotePath,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt, &d.OwnerID, &d.Dirty, &d.ChangedFields)
	if err != nil {
		return nil, err
	}
	switch kind {
	case models.OwnerVehicle:
		d.Owner = models.VehicleOwned(vehicleID)
	case models.OwnerLog:
		d.Owner = models.LogOwned(logID)
	default:
		d.Owner = models.UserOwned()
	}
	return &d, nil
}
