package vehicles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/common"
	"github.com/carnetapp/carnet/internal/dbx"
)

// SQLiteRepository implements Repository over a dbx.DBTX (either *sql.DB or
// a transaction handle).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const vehicleColumns = `id, brand, model, vin, year, current_mileage, display_order,
	created_at, updated_at, deleted_at, owner_id, dirty, changed_fields`

// Upsert inserts or fully overwrites a vehicle by id.
func (r *SQLiteRepository) Upsert(ctx context.Context, v *models.Vehicle) error {
	query := `INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			brand = excluded.brand,
			model = excluded.model,
			vin = excluded.vin,
			year = excluded.year,
			current_mileage = excluded.current_mileage,
			display_order = excluded.display_order,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			owner_id = excluded.owner_id,
			dirty = excluded.dirty,
			changed_fields = excluded.changed_fields
	`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.Brand, v.Model, v.VIN, v.Year, v.CurrentMileage, v.DisplayOrder,
		v.CreatedAt, v.UpdatedAt, v.DeletedAt, v.OwnerID, v.Dirty, v.ChangedFields)
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle: %w", err)
	}
	return nil
}

// GetByID returns the vehicle with the given id, tombstoned or not.
// Returns common.ErrNotFound if no row exists.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Vehicle, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)

	v, err := scanVehicle(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return v, nil
}

// ListActive returns all non-deleted vehicles ordered by display order, ties
// broken by id for deterministic iteration.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]models.Vehicle, error) {
	return r.list(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE deleted_at = 0 ORDER BY display_order, id`)
}

// ListDirty returns every vehicle with unsynced local changes, tombstones
// included.
func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.Vehicle, error) {
	return r.list(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE dirty = 1 ORDER BY id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select vehicles: %w", err)
	}
	defer rows.Close()

	var result []models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SoftDelete stamps the tombstone and marks the row dirty so the delete is
// pushed. Idempotent: an already-deleted row keeps its original tombstone.
func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, at int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE vehicles SET deleted_at = ?, updated_at = ?, dirty = 1 WHERE id = ? AND deleted_at = 0`,
		at, at, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete vehicle: %w", err)
	}
	return nil
}

// ClearDirty resets change tracking for the pushed rows. The updated_at
// guard keeps the flag on any row mutated again after the push snapshot was
// taken, so that edit is retried next cycle instead of being lost.
func (r *SQLiteRepository) ClearDirty(ctx context.Context, refs []models.SyncRef) error {
	for _, ref := range refs {
		_, err := r.db.ExecContext(ctx,
			`UPDATE vehicles SET dirty = 0, changed_fields = '' WHERE id = ? AND updated_at <= ?`,
			ref.ID, ref.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to clear dirty vehicle: %w", err)
		}
	}
	return nil
}

func scanVehicle(scan func(dest ...any) error) (*models.Vehicle, error) {
	var v models.Vehicle
	err := scan(&v.ID, &v.Brand, &v.Model, &v.VIN, &v.Year, &v.CurrentMileage, &v.DisplayOrder,
		&v.CreatedAt, &v.UpdatedAt, &v.DeletedAt, &v.OwnerID, &v.Dirty, &v.ChangedFields)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
